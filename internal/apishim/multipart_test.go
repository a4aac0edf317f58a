package apishim

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func buildMultipart(t *testing.T, dataJSON string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	field, err := w.CreateFormField("data")
	require.NoError(t, err)
	_, err = field.Write([]byte(dataJSON))
	require.NoError(t, err)

	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestRewriteMultipartTransformsDataFieldAndPassesFilesThrough(t *testing.T) {
	body, contentType := buildMultipart(t, `{"title":"My Mod"}`, map[string]string{
		"pack.mrpack": "binary-contents",
	})

	newBody, newContentType, err := RewriteMultipart(body, contentType, func(data []byte, otherParts []string) ([]byte, error) {
		var in map[string]string
		require.NoError(t, DecodeJSON(data, &in))
		require.Equal(t, "My Mod", in["title"])
		require.Len(t, otherParts, 1)
		require.Contains(t, otherParts[0], `filename="pack.mrpack"`)
		return json.Marshal(map[string]string{"name": in["title"]})
	})
	require.NoError(t, err)

	reader := multipart.NewReader(newBody, extractBoundary(t, newContentType))
	part, err := reader.NextPart()
	require.NoError(t, err)
	require.Equal(t, "data", part.FormName())
	content, err := io.ReadAll(part)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"My Mod"}`, string(content))

	filePart, err := reader.NextPart()
	require.NoError(t, err)
	require.Equal(t, "pack.mrpack", filePart.FileName())
	fileContent, err := io.ReadAll(filePart)
	require.NoError(t, err)
	require.Equal(t, "binary-contents", string(fileContent))

	_, err = reader.NextPart()
	require.ErrorIs(t, err, io.EOF)
}

func TestRewriteMultipartRejectsMissingDataField(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("files", "a.jar")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, _, err = RewriteMultipart(&buf, w.FormDataContentType(), func(data []byte, otherParts []string) ([]byte, error) {
		t.Fatal("transform should not be called without a data field")
		return nil, nil
	})
	require.Error(t, err)
}

func TestRewriteMultipartPropagatesTransformError(t *testing.T) {
	body, contentType := buildMultipart(t, `{}`, nil)
	_, _, err := RewriteMultipart(body, contentType, func(data []byte, otherParts []string) ([]byte, error) {
		return nil, errBoom
	})
	require.ErrorIs(t, err, errBoom)
}

func extractBoundary(t *testing.T, contentType string) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	return params["boundary"]
}
