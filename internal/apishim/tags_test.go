package apishim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDonationPlatformsFiltersAndCapitalizes(t *testing.T) {
	in := []LinkPlatform{
		{Name: "patreon", Donation: true},
		{Name: "bmac", Donation: true},
		{Name: "discord", Donation: false},
	}
	out := DonationPlatforms(in)
	require.Len(t, out, 2)
	require.Equal(t, LegacyDonationPlatform{Name: "Patreon", Short: "patreon"}, out[0])
	require.Equal(t, LegacyDonationPlatform{Name: "Buy Me A Coffee", Short: "bmac"}, out[1])
}

func TestLoadersDropsMrpackAndAddsProjectTypes(t *testing.T) {
	in := []Loader{
		{Name: "forge", SupportedProjectTypes: []string{"mod"}},
		{Name: "datapack", SupportedProjectTypes: []string{"datapack"}},
		{Name: "mrpack", SupportedProjectTypes: []string{"modpack"}},
	}
	out := Loaders(in)
	require.Len(t, out, 2)

	forge := out[0]
	require.Equal(t, "forge", forge.Name)
	require.Contains(t, forge.SupportedProjectTypes, "project")
	require.Contains(t, forge.SupportedProjectTypes, "modpack")

	datapack := out[1]
	require.Contains(t, datapack.SupportedProjectTypes, "project")
	require.Contains(t, datapack.SupportedProjectTypes, "mod")

	for _, l := range out {
		require.NotEqual(t, "mrpack", l.Name)
	}
}
