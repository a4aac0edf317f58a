package httpserver

import (
	"encoding/xml"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthforge/backend/internal/storage"
)

// mavenMetadata is the maven-metadata.xml shape a Maven-compatible build
// tool expects when it resolves a project's published versions, per
// spec.md §6's "GET /maven/modrinth/{id}/maven-metadata.xml: public,
// project metadata feed".
type mavenMetadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// mavenMetadataFeed serves a project's versions in maven-metadata.xml
// shape, letting Gradle/Maven-based mod loaders resolve it as a dependency
// repository entry. Unauthenticated: only ever exposes what the caller
// already sees as ID 0 would (searchable projects), matching the public
// contract in spec.md's endpoint table.
func (h *handlers) mavenMetadataFeed(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "id")
	p, err := h.projects.Get(r.Context(), idOrSlug, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.versions.List(r.Context(), p.ID, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	meta := mavenMetadata{GroupID: "dev.hearthforge", ArtifactID: p.Slug}
	for _, v := range versions {
		meta.Versioning.Versions = append(meta.Versioning.Versions, v.VersionNumber)
	}
	if release := latestRelease(versions); release != nil {
		meta.Versioning.Release = release.VersionNumber
	}
	if len(versions) > 0 {
		meta.Versioning.Latest = versions[0].VersionNumber
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(meta)
}

// latestRelease returns the first (newest, per ListVersionsForProject's
// ordering) version whose channel is a stable release.
func latestRelease(versions []*storage.Version) *storage.Version {
	for _, v := range versions {
		if v.VersionType == storage.VersionRelease {
			return v
		}
	}
	return nil
}
