package apishim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hearthforge/backend/internal/storage"
)

func TestLegacyProjectCreateToV3Create(t *testing.T) {
	legacy := LegacyProjectCreate{
		Title: "My Mod", Description: "short summary", Body: "long body",
		License: "MIT", ClientSide: "required", ServerSide: "optional",
		Slug: "my-mod", Categories: []string{"technology"},
	}
	in := legacy.ToV3Create()
	require.Equal(t, "My Mod", in.Name)
	require.Equal(t, "short summary", in.Description)
	require.Equal(t, "long body", in.Body)
	require.Equal(t, "MIT", in.License)
	require.Equal(t, []string{"technology"}, in.Categories)
}

func TestFromProjectRendersLegacyShape(t *testing.T) {
	p := &storage.Project{
		ID: 42, Slug: "my-mod", Name: "My Mod", Description: "short", Body: "long",
		License: "MIT", Status: storage.ProjectApproved, Downloads: 10, Followers: 2,
	}
	legacy := FromProject(p)
	require.Equal(t, "42", legacy.ID)
	require.Equal(t, "My Mod", legacy.Title)
	require.Equal(t, "short", legacy.Description)
	require.Equal(t, "long", legacy.Body)
	require.Equal(t, "approved", legacy.Status)
}

func TestLegacyVersionCreateToV3CreateDropsLoaderFields(t *testing.T) {
	legacy := LegacyVersionCreate{
		VersionTitle: "1.0.0", VersionNumber: "1.0.0", Changelog: "initial release",
		VersionType: "release", Featured: true,
		GameVersions: []string{"1.20.1"}, Loaders: []string{"forge"},
	}
	in := legacy.ToV3Create(7)
	require.Equal(t, int64(7), in.ProjectID)
	require.Equal(t, "1.0.0", in.Name)
	require.Equal(t, storage.VersionType("release"), in.VersionType)
	require.True(t, in.Featured)
}

func TestFromVersionRendersLegacyShape(t *testing.T) {
	v := &storage.Version{
		ID: 3, ProjectID: 7, Name: "1.0.0", VersionNumber: "1.0.0",
		Changelog: "notes", VersionType: storage.VersionRelease, Downloads: 5,
	}
	legacy := FromVersion(v)
	require.Equal(t, "3", legacy.ID)
	require.Equal(t, "7", legacy.ProjectID)
	require.Equal(t, "release", legacy.VersionType)
	require.Equal(t, int64(5), legacy.Downloads)
}
