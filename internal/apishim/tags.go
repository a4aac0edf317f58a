package apishim

import "strings"

// LinkPlatform is the v3 shape of one entry in the donation/social link
// platform catalog.
type LinkPlatform struct {
	Name     string
	Donation bool
}

// LegacyDonationPlatform is the v2 donation-platform tag shape: v3 dropped
// the short/display-name distinction, so the shim recreates it by
// capitalizing (with a few special-cased platforms) the v3 name.
type LegacyDonationPlatform struct {
	Name  string `json:"name"`
	Short string `json:"short"`
}

var donationPlatformDisplayNames = map[string]string{
	"bmac":   "Buy Me A Coffee",
	"github": "GitHub Sponsors",
	"ko-fi":  "Ko-fi",
	"paypal": "PayPal",
}

// DonationPlatforms filters the v3 link-platform catalog down to the
// donation-only subset and renders v2's {name, short} shape.
func DonationPlatforms(platforms []LinkPlatform) []LegacyDonationPlatform {
	var out []LegacyDonationPlatform
	for _, p := range platforms {
		if !p.Donation {
			continue
		}
		name, ok := donationPlatformDisplayNames[p.Name]
		if !ok {
			name = capitalizeFirst(p.Name)
		}
		out = append(out, LegacyDonationPlatform{Name: name, Short: p.Name})
	}
	return out
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Loader is the v3 shape of one entry in the loader catalog.
type Loader struct {
	Name                  string
	SupportedProjectTypes []string
}

// LegacyLoader is the v2 loader tag shape.
type LegacyLoader struct {
	Name                  string   `json:"name"`
	SupportedProjectTypes []string `json:"supported_project_types"`
}

var modpackCapableLoaders = map[string]bool{
	"forge": true, "fabric": true, "quilt": true, "neoforge": true,
}

// Loaders filters "mrpack" out of the v3 loader catalog (v2 modeled
// modpacks as a project type, not a loader) and retroactively adds the
// project types v2 callers expect every loader to support: "project"
// unconditionally, "modpack" for the four mod-loader families that also
// back modpacks, and "mod" for anything already flagged datapack/plugin.
func Loaders(loaders []Loader) []LegacyLoader {
	var out []LegacyLoader
	for _, l := range loaders {
		if l.Name == "mrpack" {
			continue
		}
		types := append([]string{}, l.SupportedProjectTypes...)
		types = append(types, "project")
		if modpackCapableLoaders[l.Name] {
			types = append(types, "modpack")
		}
		if containsAny(types, "datapack", "plugin") {
			types = append(types, "mod")
		}
		out = append(out, LegacyLoader{Name: l.Name, SupportedProjectTypes: types})
	}
	return out
}

func containsAny(haystack []string, needles ...string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if set[n] {
			return true
		}
	}
	return false
}
