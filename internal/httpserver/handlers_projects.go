package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/pkg/responders"
)

type createProjectRequest struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	License     string   `json:"license"`
	ClientSide  string   `json:"client_side"`
	ServerSide  string   `json:"server_side"`
	Categories  []string `json:"categories"`
}

func (h *handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	p, err := h.projects.Create(r.Context(), callerID(r), projects.CreateInput{
		Slug: req.Slug, Name: req.Name, Description: req.Description, Body: req.Body,
		License: req.License, ClientSide: req.ClientSide, ServerSide: req.ServerSide, Categories: req.Categories,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}

func (h *handlers) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}

type editProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Body        *string `json:"body"`
	License     *string `json:"license"`
	ClientSide  *string `json:"client_side"`
	ServerSide  *string `json:"server_side"`
}

func (h *handlers) editProject(w http.ResponseWriter, r *http.Request) {
	var req editProjectRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	p, err := h.projects.Edit(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r), projects.EditInput{
		Name: req.Name, Description: req.Description, Body: req.Body,
		License: req.License, ClientSide: req.ClientSide, ServerSide: req.ServerSide,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}

func (h *handlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkEditProjectsRequest struct {
	IDs              []int64  `json:"ids"`
	AddCategories    []string `json:"add_categories"`
	RemoveCategories []string `json:"remove_categories"`
}

func (h *handlers) bulkEditProjects(w http.ResponseWriter, r *http.Request) {
	var req bulkEditProjectsRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	edited, err := h.projects.BulkEdit(r.Context(), req.IDs, callerID(r), projects.BulkEditInput{
		AddCategories: req.AddCategories, RemoveCategories: req.RemoveCategories,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"edited": edited})
}

const maxIconUploadBytes = 8 << 20 // 8 MiB, mirrors internal/projects/collections icon limits

func (h *handlers) setProjectIcon(w http.ResponseWriter, r *http.Request) {
	ext := r.URL.Query().Get("ext")
	data, err := filehost.ReadAllLimited(r.Body, maxIconUploadBytes+1)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeImage, "reading icon upload", err))
		return
	}
	p, err := h.projects.SetIcon(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r), r.Header.Get("Content-Type"), ext, data)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}

func (h *handlers) deleteProjectIcon(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.DeleteIcon(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addGalleryImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := filehost.ReadAllLimited(r.Body, 32<<20)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeImage, "reading gallery upload", err))
		return
	}
	p, err := h.projects.AddGalleryImage(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r), q.Get("filename"), r.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}

func (h *handlers) removeGalleryImage(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.RemoveGalleryImage(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}

func (h *handlers) followProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.projects.Follow(r.Context(), callerID(r), p.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) unfollowProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.projects.Unfollow(r.Context(), callerID(r), p.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleProjectRequest struct {
	PublishAt time.Time `json:"publish_at"`
}

func (h *handlers) scheduleProject(w http.ResponseWriter, r *http.Request) {
	var req scheduleProjectRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	p, err := h.projects.Schedule(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r), req.PublishAt)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, p)
}
