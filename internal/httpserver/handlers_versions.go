package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/hearthforge/backend/internal/versions"
	"github.com/hearthforge/backend/pkg/responders"
)

const maxVersionUploadBytes = 512 << 20 // 512 MiB per multipart request

// createVersion implements spec.md's version upload route: a multipart
// request carrying the version's metadata fields plus one or more file
// parts under the "files" field name.
func (h *handlers) createVersion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	versionType := "unknown"
	uploadedBytes := int64(0)
	observeUpload := func(status string) {
		if h.metrics != nil {
			h.metrics.ObserveVersionUpload(versionType, status, time.Since(start), uploadedBytes)
		}
	}

	if err := r.ParseMultipartForm(maxVersionUploadBytes); err != nil {
		observeUpload("failed")
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "parsing multipart form", err))
		return
	}
	if vt := r.FormValue("version_type"); vt != "" {
		versionType = vt
	}
	projectID, err := strconv.ParseInt(r.FormValue("project_id"), 10, 64)
	if err != nil {
		observeUpload("failed")
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "project_id is required"))
		return
	}

	primaryFilename := r.FormValue("primary_file")
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		observeUpload("failed")
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "at least one file is required"))
		return
	}

	files := make([]versions.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			observeUpload("failed")
			writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "opening uploaded file", err))
			return
		}
		data, err := filehost.ReadAllLimited(f, maxVersionUploadBytes)
		f.Close()
		if err != nil {
			observeUpload("failed")
			writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "reading uploaded file", err))
			return
		}
		uploadedBytes += int64(len(data))
		contentType := fh.Header.Get("Content-Type")
		files = append(files, versions.FileUpload{
			Filename: fh.Filename, ContentType: contentType, Data: data,
			Primary: primaryFilename != "" && primaryFilename == fh.Filename,
		})
	}
	if primaryFilename == "" {
		files[0].Primary = true
	}

	v, err := h.versions.Create(r.Context(), callerID(r), versions.CreateInput{
		ProjectID: projectID, Name: r.FormValue("name"), VersionNumber: r.FormValue("version_number"),
		Changelog: r.FormValue("changelog"), VersionType: storage.VersionType(r.FormValue("version_type")),
		Featured: r.FormValue("featured") == "true", Files: files,
	})
	if err != nil {
		observeUpload("failed")
		writeError(w, err)
		return
	}
	observeUpload("success")
	responders.JSON(w, http.StatusOK, v)
}

func (h *handlers) getVersion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid version id"))
		return
	}
	v, err := h.versions.Get(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, v)
}

func (h *handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.versions.List(r.Context(), p.ID, callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, list)
}

func (h *handlers) deleteVersion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid version id"))
		return
	}
	if err := h.versions.Delete(r.Context(), id, callerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getVersionFileByHash(w http.ResponseWriter, r *http.Request) {
	algorithm := r.URL.Query().Get("algorithm")
	if algorithm == "" {
		algorithm = "sha1"
	}
	vf, err := h.versions.GetFileByHash(r.Context(), algorithm, chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, vf)
}

func (h *handlers) downloadVersionFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid version id"))
		return
	}
	url, err := h.versions.DownloadURL(r.Context(), id, chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// countDownload implements spec.md's /_count-download route: an
// admin_key_guard-protected hook the CDN/download-redirect layer calls once
// it has actually served bytes, so a redirect that was issued but never
// fetched doesn't inflate the counter.
func (h *handlers) countDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	versionID, err := strconv.ParseInt(q.Get("version_id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid version_id"))
		return
	}
	var userID int64
	if uid := q.Get("user_id"); uid != "" {
		userID, _ = strconv.ParseInt(uid, 10, 64)
	}
	counted, err := h.versions.CountDownload(r.Context(), versionID, q.Get("filename"), q.Get("ip"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if counted && h.metrics != nil {
		h.metrics.ObserveDownload("unknown")
	}
	responders.JSON(w, http.StatusOK, map[string]any{"counted": counted})
}
