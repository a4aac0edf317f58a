package httpserver

import (
	"net"
	"net/http"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/pkg/responders"
)

type analyticsViewRequest struct {
	ProjectID int64 `json:"project_id"`
}

// recordView implements spec.md §6's `POST /analytics/view`: optionally
// authenticated, CORS-gated page-view ingestion. callerID(r) is 0 for an
// anonymous caller, which internal/analytics.Recorder treats the same as
// any other user id (the separate analytics store, not this request, is
// responsible for deciding what counts towards monetization).
func (h *handlers) recordView(w http.ResponseWriter, r *http.Request) {
	var req analyticsViewRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	if req.ProjectID == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "project_id is required"))
		return
	}
	if err := h.analytics.RecordView(r.Context(), req.ProjectID, callerID(r), clientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"recorded": true})
}

type analyticsPlaytimeRequest struct {
	ProjectID int64 `json:"project_id"`
	VersionID int64 `json:"version_id"`
	Seconds   int64 `json:"seconds"`
}

// recordPlaytime implements spec.md §6's `POST /analytics/playtime`.
func (h *handlers) recordPlaytime(w http.ResponseWriter, r *http.Request) {
	var req analyticsPlaytimeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	if req.ProjectID == 0 || req.VersionID == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "project_id and version_id are required"))
		return
	}
	if err := h.analytics.RecordPlaytime(r.Context(), req.ProjectID, req.VersionID, callerID(r), req.Seconds); err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"recorded": true})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
