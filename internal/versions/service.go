// Package versions implements spec.md §4.I's version CRUD and file-download
// surface: upload (one or more files per version via internal/filehost),
// get/list/delete gated by a project's team permissions, hash-keyed file
// lookup, download redirect, and the deduplicated admin-only count-download
// operation that feeds the payout batch's analytics source.
package versions

import (
	"context"
	"time"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/internal/storage"
)

// DownloadRecorder is the narrow write-side interface the count-download
// operation needs from the separate analytics store, mirroring
// internal/payouts.AnalyticsStore's read-side narrowing of the same
// ClickHouse-backed event log (spec.md §4.F step 3).
type DownloadRecorder interface {
	RecordDownload(ctx context.Context, projectID, versionID int64, userID int64) error
}

// Service implements the version domain operations. Permission checks
// delegate to *projects.Service (a version's project owns the team a
// caller's permissions are resolved against), so internal/versions never
// duplicates the org-inheritance walk.
type Service struct {
	store      storage.Store
	files      *filehost.Host
	projects   *projects.Service
	analytics  DownloadRecorder
	queue      *DownloadQueue
	Invalidate func(versionID int64)
}

// New constructs a version Service. analytics may be nil, in which case
// CountDownload only bumps the local download counters and skips the
// separate analytics write. A nil queue is replaced with a DownloadQueue
// holding up to 10000 keys for 10 minutes.
func New(store storage.Store, files *filehost.Host, projectSvc *projects.Service, analytics DownloadRecorder, queue *DownloadQueue) *Service {
	if queue == nil {
		queue = NewDownloadQueue(10*time.Minute, 10000)
	}
	return &Service{store: store, files: files, projects: projectSvc, analytics: analytics, queue: queue}
}

func (s *Service) invalidate(id int64) {
	if s.Invalidate != nil {
		s.Invalidate(id)
	}
}

func (s *Service) permissionsFor(ctx context.Context, callerID, projectID int64) (projects.TeamPermission, error) {
	p, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return s.projects.Permissions(ctx, callerID, p)
}

// FileUpload is one file attached to a version-create request.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Primary     bool
}

// CreateInput carries a new version's fields plus its file uploads.
type CreateInput struct {
	ProjectID     int64
	Name          string
	VersionNumber string
	Changelog     string
	VersionType   storage.VersionType
	Featured      bool
	Files         []FileUpload
}

// Create inserts the Version row, then uploads each of in.Files to the
// file-host and inserts one VersionFile row per upload, gated by
// PermUploadVersion. If an upload or a file insert fails partway through,
// the Version row (with any VersionFile rows already inserted) is deleted
// and every file already uploaded to the file-host this call is
// best-effort deleted (spec.md §4.I: "uploads already made to the file
// host are best-effort deleted on rollback").
func (s *Service) Create(ctx context.Context, callerID int64, in CreateInput) (*storage.Version, error) {
	perm, err := s.permissionsFor(ctx, callerID, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !perm.Has(projects.PermUploadVersion) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing UPLOAD_VERSION permission")
	}
	if len(in.Files) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "a version requires at least one file")
	}

	v := &storage.Version{
		ProjectID:     in.ProjectID,
		Name:          in.Name,
		VersionNumber: in.VersionNumber,
		Changelog:     in.Changelog,
		VersionType:   in.VersionType,
		Featured:      in.Featured,
		DatePublished: time.Now(),
	}
	if err := s.store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}

	var uploadedKeys []string
	rollback := func() {
		_ = s.store.DeleteVersion(ctx, v.ID)
		for _, k := range uploadedKeys {
			s.files.DeleteBestEffort(ctx, k)
		}
	}

	primarySeen := false
	for _, f := range in.Files {
		sha1Hex, sha512Hex := filehost.HashFile(f.Data)
		key := filehost.KeyForVersionFile(sha1Hex, f.Filename)
		url, err := s.files.Upload(ctx, key, f.ContentType, f.Data)
		if err != nil {
			rollback()
			return nil, err
		}
		uploadedKeys = append(uploadedKeys, key)

		primary := f.Primary && !primarySeen
		if primary {
			primarySeen = true
		}
		vf := &storage.VersionFile{
			VersionID: v.ID,
			URL:       url,
			Filename:  f.Filename,
			Size:      int64(len(f.Data)),
			SHA1:      sha1Hex,
			SHA512:    sha512Hex,
			Primary:   primary,
		}
		if err := s.store.AddVersionFile(ctx, vf); err != nil {
			rollback()
			return nil, err
		}
	}

	s.invalidate(v.ID)
	return v, nil
}

// Get fetches a version by id, visible under the same rule as its owning
// project (searchable project, or team-visible to callerID).
func (s *Service) Get(ctx context.Context, id, callerID int64) (*storage.Version, error) {
	v, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProjectByID(ctx, v.ProjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, p.Slug, callerID); err != nil {
		return nil, err
	}
	return v, nil
}

// List returns every version of projectID, ordered by ListVersionsForProject
// (newest date_published first), under the same visibility rule as Get.
func (s *Service) List(ctx context.Context, projectID, callerID int64) ([]*storage.Version, error) {
	p, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, p.Slug, callerID); err != nil {
		return nil, err
	}
	return s.store.ListVersionsForProject(ctx, projectID)
}

// Delete removes a version and its files, gated by PermDeleteVersion. File
// objects are best-effort deleted from the file-host; the row delete is
// authoritative regardless of file-host outcome.
func (s *Service) Delete(ctx context.Context, id, callerID int64) error {
	v, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	perm, err := s.permissionsFor(ctx, callerID, v.ProjectID)
	if err != nil {
		return err
	}
	if !perm.Has(projects.PermDeleteVersion) {
		return apperrors.New(apperrors.CodeAuthentication, "missing DELETE_VERSION permission")
	}

	files, err := s.store.ListVersionFiles(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVersion(ctx, id); err != nil {
		return err
	}
	for _, f := range files {
		s.files.DeleteBestEffort(ctx, f.URL)
	}
	s.invalidate(id)
	return nil
}

// GetFileByHash looks up a version file by its sha1 or sha512 digest, per
// `GET /v3/version_file/{hash}?algorithm=sha1|sha512`.
func (s *Service) GetFileByHash(ctx context.Context, algorithm, hash string) (*storage.VersionFile, error) {
	if algorithm != "sha1" && algorithm != "sha512" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "algorithm must be sha1 or sha512")
	}
	return s.store.GetVersionFileByHash(ctx, algorithm, hash)
}

// DownloadURL resolves the file-host URL a download request redirects to,
// without recording a download (spec.md §4.I: "version file download is
// served by redirecting to the file-host URL").
func (s *Service) DownloadURL(ctx context.Context, versionID int64, filename string) (string, error) {
	files, err := s.store.ListVersionFiles(ctx, versionID)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.Filename == filename {
			return f.URL, nil
		}
	}
	return "", apperrors.New(apperrors.CodeNotFound, "version file not found")
}

// CountDownload is the admin-only `PATCH /_count-download` operation: it
// dedupes via the DownloadQueue, then bumps the version's and project's
// download counters and records the event to the analytics store. Returns
// false (with no error) when the attempt was a recently-seen duplicate.
func (s *Service) CountDownload(ctx context.Context, versionID int64, filename, ip string, userID int64) (bool, error) {
	if s.queue.SeenRecently(versionID, filename, ip) {
		return false, nil
	}
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return false, err
	}
	if err := s.store.RecordVersionDownload(ctx, versionID); err != nil {
		return false, err
	}
	if s.analytics != nil {
		if err := s.analytics.RecordDownload(ctx, v.ProjectID, versionID, userID); err != nil {
			return false, err
		}
	}
	s.invalidate(versionID)
	return true, nil
}
