package filehost

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/errors"
)

func TestDisabledHostRejectsUpload(t *testing.T) {
	h, err := New(config.FileHostConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	require.False(t, h.IsEnabled())

	_, err = h.Upload(context.Background(), "project/1/icon.png", "image/png", []byte("x"))
	var fhErr *errors.Error
	require.True(t, errors.As(err, &fhErr))
	require.Equal(t, errors.CodeFileHosting, fhErr.Code)
}

func TestDisabledHostDeleteIsNoop(t *testing.T) {
	h, err := New(config.FileHostConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, h.Delete(context.Background(), "whatever"))
	h.DeleteBestEffort(context.Background(), "whatever") // must not panic
}

func TestPublicURLJoinsBaseAndKey(t *testing.T) {
	h := &Host{baseURL: "https://cdn.hearthforge.dev"}
	require.Equal(t, "https://cdn.hearthforge.dev/project/1/icon.png", h.PublicURL("project/1/icon.png"))

	bare := &Host{}
	require.Equal(t, "/project/1/icon.png", bare.PublicURL("project/1/icon.png"))
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "project/42/icon.png", KeyForIcon("project", "42", ".png"))
	require.Equal(t, "collection/7/icon.jpg", KeyForIcon("collection", "7", ".jpg"))
	require.Equal(t, "project/42/gallery/screenshot.png", KeyForGalleryImage("42", "screenshot.png"))

	sha1Hex, _ := HashFile([]byte("hello"))
	require.Equal(t, "data/"+sha1Hex+"/mod.jar", KeyForVersionFile(sha1Hex, "mod.jar"))
}

func TestHashFileMatchesKnownDigests(t *testing.T) {
	sha1Hex, sha512Hex := HashFile([]byte("hello"))
	require.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", sha1Hex)
	require.True(t, strings.HasPrefix(sha512Hex, "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca"))
}

func TestReadAllLimitedRejectsOversizedUpload(t *testing.T) {
	_, err := ReadAllLimited(strings.NewReader(strings.Repeat("a", 100)), 10)
	require.Error(t, err)
	var fhErr *errors.Error
	require.True(t, errors.As(err, &fhErr))
	require.Equal(t, errors.CodeFileHosting, fhErr.Code)
}

func TestReadAllLimitedAllowsExactLimit(t *testing.T) {
	data, err := ReadAllLimited(strings.NewReader(strings.Repeat("a", 10)), 10)
	require.NoError(t, err)
	require.Len(t, data, 10)
}
