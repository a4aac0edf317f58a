package apishim

import (
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/hearthforge/backend/internal/versions"
)

// LegacyProjectCreate is the v2 project-creation request shape (spec.md
// §4.H "Project creation (v2 → v3)"). client_side/server_side are project-
// level fields in both the v2 and this system's v3 shape, so unlike the
// original implementation (which injects them as per-version loader
// fields) there is nothing further to propagate — see DESIGN.md.
type LegacyProjectCreate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	License     string   `json:"license_id"`
	ClientSide  string   `json:"client_side"`
	ServerSide  string   `json:"server_side"`
	Slug        string   `json:"slug"`
	Categories  []string `json:"categories"`
}

// ToV3Create rewrites a v2 project-creation body into a v3
// projects.CreateInput: title → Name, the v2 short "description" → the v3
// Description field (this system's summary-equivalent), and the v2 long
// "body" → the v3 Body field (the long-form description-equivalent).
func (l LegacyProjectCreate) ToV3Create() projects.CreateInput {
	return projects.CreateInput{
		Slug:        l.Slug,
		Name:        l.Title,
		Description: l.Description,
		Body:        l.Body,
		License:     l.License,
		ClientSide:  l.ClientSide,
		ServerSide:  l.ServerSide,
		Categories:  l.Categories,
	}
}

// LegacyProject is the v2 response shape rendered from a v3 storage.Project.
type LegacyProject struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	License     string   `json:"license_id"`
	ClientSide  string   `json:"client_side"`
	ServerSide  string   `json:"server_side"`
	Categories  []string `json:"categories"`
	Downloads   int64    `json:"downloads"`
	Followers   int64    `json:"followers"`
	Status      string   `json:"status"`
}

// FromProject renders a v3 storage.Project in the v2 legacy shape.
func FromProject(p *storage.Project) LegacyProject {
	return LegacyProject{
		ID:          formatID(p.ID),
		Slug:        p.Slug,
		Title:       p.Name,
		Description: p.Description,
		Body:        p.Body,
		License:     p.License,
		ClientSide:  p.ClientSide,
		ServerSide:  p.ServerSide,
		Categories:  p.Categories,
		Downloads:   p.Downloads,
		Followers:   p.Followers,
		Status:      string(p.Status),
	}
}

// LegacyVersionCreate is the v2 version-creation request shape, carried in
// the multipart "data" field alongside the file parts. This system has no
// generalized per-version loader-field store (game_versions/loaders/
// mrpack_loaders never existed in its storage.Version), so unlike the
// original implementation those fields are accepted for backward
// compatibility and discarded rather than rewritten into a fields map —
// see DESIGN.md's Open Question decision on this.
type LegacyVersionCreate struct {
	ProjectID     string   `json:"project_id"`
	VersionTitle  string   `json:"version_title"`
	VersionNumber string   `json:"version_number"`
	Changelog     string   `json:"changelog"`
	VersionType   string   `json:"version_type"`
	Featured      bool     `json:"featured"`
	GameVersions  []string `json:"game_versions"`
	Loaders       []string `json:"loaders"`
}

// ToV3Create rewrites a v2 version-creation body into a v3
// versions.CreateInput.
func (l LegacyVersionCreate) ToV3Create(projectID int64) versions.CreateInput {
	return versions.CreateInput{
		ProjectID:     projectID,
		Name:          l.VersionTitle,
		VersionNumber: l.VersionNumber,
		Changelog:     l.Changelog,
		VersionType:   storage.VersionType(l.VersionType),
		Featured:      l.Featured,
	}
}

// LegacyVersion is the v2 response shape rendered from a v3 storage.Version.
type LegacyVersion struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Name          string `json:"name"`
	VersionNumber string `json:"version_number"`
	Changelog     string `json:"changelog"`
	VersionType   string `json:"version_type"`
	Featured      bool   `json:"featured"`
	Downloads     int64  `json:"downloads"`
}

// FromVersion renders a v3 storage.Version in the v2 legacy shape.
func FromVersion(v *storage.Version) LegacyVersion {
	return LegacyVersion{
		ID:            formatID(v.ID),
		ProjectID:     formatID(v.ProjectID),
		Name:          v.Name,
		VersionNumber: v.VersionNumber,
		Changelog:     v.Changelog,
		VersionType:   string(v.VersionType),
		Featured:      v.Featured,
		Downloads:     v.Downloads,
	}
}
