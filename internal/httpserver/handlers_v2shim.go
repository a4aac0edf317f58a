package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthforge/backend/internal/apishim"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/versions"
	"github.com/hearthforge/backend/pkg/responders"
)

// createProjectV2 implements spec.md §4.H's project-creation shim: decode
// the legacy {title, description, body, ...} body, rewrite it into a v3
// projects.CreateInput, delegate to the same projects.Service the v3 route
// uses, and render the result back in the legacy {title, description,
// body, ...} shape.
func (h *handlers) createProjectV2(w http.ResponseWriter, r *http.Request) {
	var legacy apishim.LegacyProjectCreate
	if err := decodeJSON(r.Body, &legacy); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	p, err := h.projects.Create(r.Context(), callerID(r), legacy.ToV3Create())
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, apishim.FromProject(p))
}

// getProjectV2 mirrors the v3 get-project route, rendering the result in
// the legacy shape. A v3 404 (resource genuinely missing) passes straight
// through, matching spec.md's "v2 passthrough" rule for absent resources.
func (h *handlers) getProjectV2(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "idOrSlug"), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, apishim.FromProject(p))
}

// createVersionV2 implements the version-creation shim. This system's v3
// upload route already takes discrete multipart form fields rather than a
// JSON "data" part (see internal/apishim.RewriteMultipart's doc comment),
// so the shim here renames legacy field names to their v3 equivalents
// directly instead of round-tripping through the generic multipart
// rewriter; game_versions/loaders are accepted and discarded, since this
// system never built a per-version loader-field store for them to land in.
func (h *handlers) createVersionV2(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxVersionUploadBytes); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "parsing multipart form", err))
		return
	}
	projectID, err := strconv.ParseInt(r.FormValue("project_id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "project_id is required"))
		return
	}

	primaryFilename := r.FormValue("primary_file")
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "at least one file is required"))
		return
	}
	files := make([]versions.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "opening uploaded file", err))
			return
		}
		data, err := filehost.ReadAllLimited(f, maxVersionUploadBytes)
		f.Close()
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "reading uploaded file", err))
			return
		}
		files = append(files, versions.FileUpload{
			Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data,
			Primary: primaryFilename != "" && primaryFilename == fh.Filename,
		})
	}
	if primaryFilename == "" {
		files[0].Primary = true
	}

	legacy := apishim.LegacyVersionCreate{
		VersionTitle:  r.FormValue("version_title"),
		VersionNumber: r.FormValue("version_number"),
		Changelog:     r.FormValue("changelog"),
		VersionType:   r.FormValue("version_type"),
		Featured:      r.FormValue("featured") == "true",
	}
	in := legacy.ToV3Create(projectID)
	in.Files = files

	v, err := h.versions.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, apishim.FromVersion(v))
}

func (h *handlers) getVersionV2(w http.ResponseWriter, r *http.Request) {
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
	responders.JSON(w, http.StatusOK, apishim.FromVersion(v))
}

// donationPlatformsV2 and loadersV2 render this system's static tag
// catalogs in the legacy shape (spec.md §4.H "Tags shim"). This system has
// no database-backed tag catalog (labrinth's loader_fields/link_platforms
// tables have no analogue here), so the v3-shaped source list is a fixed
// slice rather than a store read; a real catalog table is a natural future
// extension of internal/storage, tracked in DESIGN.md.
var v3LinkPlatforms = []apishim.LinkPlatform{
	{Name: "patreon", Donation: true},
	{Name: "bmac", Donation: true},
	{Name: "paypal", Donation: true},
	{Name: "ko-fi", Donation: true},
	{Name: "github", Donation: true},
	{Name: "discord", Donation: false},
	{Name: "issues", Donation: false},
	{Name: "source", Donation: false},
	{Name: "wiki", Donation: false},
}

var v3Loaders = []apishim.Loader{
	{Name: "forge", SupportedProjectTypes: []string{"mod"}},
	{Name: "fabric", SupportedProjectTypes: []string{"mod"}},
	{Name: "quilt", SupportedProjectTypes: []string{"mod"}},
	{Name: "neoforge", SupportedProjectTypes: []string{"mod"}},
	{Name: "datapack", SupportedProjectTypes: []string{"datapack"}},
	{Name: "bukkit", SupportedProjectTypes: []string{"plugin"}},
	{Name: "mrpack", SupportedProjectTypes: []string{"modpack"}},
}

func (h *handlers) donationPlatformsV2(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, apishim.DonationPlatforms(v3LinkPlatforms))
}

func (h *handlers) loadersV2(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, apishim.Loaders(v3Loaders))
}
