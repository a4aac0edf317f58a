package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthforge/backend/internal/collections"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/hearthforge/backend/pkg/responders"
)

type createCollectionRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Status      storage.CollectionStatus  `json:"status"`
	ProjectIDs  []int64                   `json:"projects"`
}

func (h *handlers) createCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	c, err := h.collections.Create(r.Context(), callerID(r), collections.CreateInput{
		Name: req.Name, Description: req.Description, Status: req.Status, ProjectIDs: req.ProjectIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, c)
}

func (h *handlers) listMyCollections(w http.ResponseWriter, r *http.Request) {
	list, err := h.collections.ListForUser(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, list)
}

func (h *handlers) getCollection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid collection id"))
		return
	}
	c, err := h.collections.Get(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, c)
}

type editCollectionRequest struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	Status      *storage.CollectionStatus `json:"status"`
	ProjectIDs  *[]int64                  `json:"projects"`
}

func (h *handlers) editCollection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid collection id"))
		return
	}
	var req editCollectionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	c, err := h.collections.Edit(r.Context(), id, callerID(r), collections.EditInput{
		Name: req.Name, Description: req.Description, Status: req.Status, ProjectIDs: req.ProjectIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid collection id"))
		return
	}
	if err := h.collections.Delete(r.Context(), id, callerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setCollectionIcon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid collection id"))
		return
	}
	ext := r.URL.Query().Get("ext")
	data, err := filehost.ReadAllLimited(r.Body, maxIconUploadBytes+1)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeImage, "reading icon upload", err))
		return
	}
	c, err := h.collections.SetIcon(r.Context(), id, callerID(r), r.Header.Get("Content-Type"), ext, data)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCollectionIcon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid collection id"))
		return
	}
	if err := h.collections.DeleteIcon(r.Context(), id, callerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
