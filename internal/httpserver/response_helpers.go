package httpserver

import (
	"net/http"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// writeError renders err as the standard error envelope, mapping any
// non-*Error into an internal_error so every handler failure gets a
// consistent shape on the wire.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if apperrors.As(err, &appErr) {
		apperrors.Write(w, appErr)
		return
	}
	apperrors.Write(w, apperrors.Wrap(apperrors.CodeInternal, "internal error", err))
}
