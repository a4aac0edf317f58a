// Package apishim implements spec.md §4.H: the /v2/* legacy API surface as
// a thin rewriting layer in front of the /v3/* handlers. Nothing here talks
// to storage directly; every function takes a legacy-shaped payload and
// either rewrites it into the v3 shape (request side) or rewrites a v3
// result into the legacy shape (response side).
package apishim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// Transform rewrites a v2-shaped "data" JSON field into its v3 shape. It
// receives the raw bytes of the first "data" part plus the content
// dispositions of every other part in the multipart body (so it can, for
// example, detect an .mrpack file among the declared file parts), and
// returns the replacement JSON to re-emit in that part's place.
type Transform func(data []byte, otherParts []string) ([]byte, error)

// RewriteMultipart is the Go analogue of the original system's
// alter_actix_multipart: it streams a multipart/form-data body part by
// part, intercepts the first part named "data", runs it through transform,
// re-emits it under the same field name, and passes every other part
// through unchanged (same field name, filename, and content). The result is
// a fresh body plus a matching Content-Type header that a v3 handler can
// consume as if the caller had sent the v3 shape to begin with.
func RewriteMultipart(body io.Reader, contentType string, transform Transform) (newBody *bytes.Buffer, newContentType string, err error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInvalidInput, "parsing multipart content-type", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, "", apperrors.New(apperrors.CodeInvalidInput, "multipart request missing boundary")
	}

	reader := multipart.NewReader(body, boundary)

	var otherParts []string
	var rawParts []rawPart
	var dataPart []byte
	sawData := false

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.CodeInvalidInput, "reading multipart part", err)
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.CodeInvalidInput, "reading multipart part body", err)
		}

		if part.FormName() == "data" && !sawData {
			dataPart = content
			sawData = true
			continue
		}

		otherParts = append(otherParts, part.Header.Get("Content-Disposition"))
		rawParts = append(rawParts, rawPart{
			fieldName:   part.FormName(),
			fileName:    part.FileName(),
			contentType: part.Header.Get("Content-Type"),
			content:     content,
		})
	}

	if !sawData {
		return nil, "", apperrors.New(apperrors.CodeInvalidInput, `multipart request missing required "data" field`)
	}

	rewritten, err := transform(dataPart, otherParts)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	dataWriter, err := writer.CreateFormField("data")
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, "re-emitting data part", err)
	}
	if _, err := dataWriter.Write(rewritten); err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, "writing rewritten data part", err)
	}

	for _, p := range rawParts {
		var partWriter io.Writer
		if p.fileName != "" {
			partWriter, err = createFilePart(writer, p.fieldName, p.fileName, p.contentType)
		} else {
			partWriter, err = writer.CreateFormField(p.fieldName)
		}
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.CodeInternal, "re-emitting multipart part", err)
		}
		if _, err := partWriter.Write(p.content); err != nil {
			return nil, "", apperrors.Wrap(apperrors.CodeInternal, "writing multipart part", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, "closing rewritten multipart body", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

type rawPart struct {
	fieldName   string
	fileName    string
	contentType string
	content     []byte
}

func createFilePart(w *multipart.Writer, fieldName, fileName, contentType string) (io.Writer, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, fileName)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{header}
	h["Content-Type"] = []string{contentType}
	return w.CreatePart(h)
}

// DecodeJSON is a small helper most Transform implementations use to parse
// the "data" part before rewriting it.
func DecodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(apperrors.CodeDecoding, "decoding v2 multipart data field", err)
	}
	return nil
}
