package versions

import (
	"context"
	"testing"

	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/rs/zerolog"
)

type fakeRecorder struct {
	calls []struct{ projectID, versionID, userID int64 }
}

func (f *fakeRecorder) RecordDownload(ctx context.Context, projectID, versionID, userID int64) error {
	f.calls = append(f.calls, struct{ projectID, versionID, userID int64 }{projectID, versionID, userID})
	return nil
}

func newTestService(t *testing.T) (*Service, storage.Store, *fakeRecorder) {
	t.Helper()
	store := storage.NewMemoryStore()
	host, err := filehost.New(config.FileHostConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("filehost.New: %v", err)
	}
	projSvc := projects.New(store, host)
	rec := &fakeRecorder{}
	return New(store, host, projSvc, rec, NewDownloadQueue(0, 0)), store, rec
}

func mustCreateProject(t *testing.T, store storage.Store, teamID int64, status storage.ProjectStatus) *storage.Project {
	t.Helper()
	p := &storage.Project{
		Slug: "test-project", Name: "Test Project", License: "MIT",
		ClientSide: "required", ServerSide: "unsupported", TeamID: teamID, Status: status,
	}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func mustInvite(t *testing.T, store storage.Store, teamID, userID, perms int64) {
	t.Helper()
	err := store.InviteTeamMember(context.Background(), &storage.TeamMember{
		TeamID: teamID, UserID: userID, Role: "member", Accepted: true, Permissions: perms,
	})
	if err != nil {
		t.Fatalf("InviteTeamMember: %v", err)
	}
}

func assertCode(t *testing.T, err error, want apperrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %q, got nil", want)
	}
	var ae *apperrors.Error
	if !apperrors.As(err, &ae) {
		t.Fatalf("expected *errors.Error, got %T: %v", err, err)
	}
	if ae.Code != want {
		t.Fatalf("got code %q, want %q", ae.Code, want)
	}
}

func TestCreateRequiresUploadVersionPermission(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(projects.PermEditDetails)) // not PermUploadVersion

	_, err := svc.Create(context.Background(), 42, CreateInput{
		ProjectID: p.ID, Name: "v1", VersionNumber: "1.0.0",
		Files: []FileUpload{{Filename: "mod.jar", ContentType: "application/java-archive", Data: []byte("x")}},
	})
	assertCode(t, err, apperrors.CodeAuthentication)
}

func TestCreateRequiresAtLeastOneFile(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(projects.PermUploadVersion))

	_, err := svc.Create(context.Background(), 42, CreateInput{
		ProjectID: p.ID, Name: "v1", VersionNumber: "1.0.0",
	})
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreateFailsWhenFileHostDisabled(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(projects.PermUploadVersion))

	_, err := svc.Create(context.Background(), 42, CreateInput{
		ProjectID: p.ID, Name: "v1", VersionNumber: "1.0.0",
		Files: []FileUpload{{Filename: "mod.jar", ContentType: "application/java-archive", Data: []byte("x")}},
	})
	assertCode(t, err, apperrors.CodeFileHosting)
}

func mustAddVersionWithFile(t *testing.T, store storage.Store, projectID int64) *storage.Version {
	t.Helper()
	v := &storage.Version{ProjectID: projectID, Name: "v1", VersionNumber: "1.0.0", VersionType: storage.VersionRelease}
	if err := store.CreateVersion(context.Background(), v); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	sha1Hex, sha512Hex := filehost.HashFile([]byte("contents"))
	vf := &storage.VersionFile{
		VersionID: v.ID, URL: "/data/" + sha1Hex + "/mod.jar", Filename: "mod.jar",
		Size: 8, SHA1: sha1Hex, SHA512: sha512Hex, Primary: true,
	}
	if err := store.AddVersionFile(context.Background(), vf); err != nil {
		t.Fatalf("AddVersionFile: %v", err)
	}
	return v
}

func TestGetVisibilityFollowsOwningProject(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectDraft)
	v := mustAddVersionWithFile(t, store, p.ID)

	if _, err := svc.Get(context.Background(), v.ID, 0); err == nil {
		t.Fatal("expected draft project's version to be hidden from anonymous caller")
	}

	mustInvite(t, store, 1, 42, int64(projects.PermEditDetails))
	got, err := svc.Get(context.Background(), v.ID, 42)
	if err != nil {
		t.Fatalf("Get as team member: %v", err)
	}
	if got.ID != v.ID {
		t.Fatalf("got version %d, want %d", got.ID, v.ID)
	}
}

func TestListVisibility(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustAddVersionWithFile(t, store, p.ID)

	list, err := svc.List(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d versions, want 1", len(list))
	}
}

func TestDeleteRequiresDeleteVersionPermission(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	v := mustAddVersionWithFile(t, store, p.ID)
	mustInvite(t, store, 1, 42, int64(projects.PermUploadVersion)) // not PermDeleteVersion

	err := svc.Delete(context.Background(), v.ID, 42)
	assertCode(t, err, apperrors.CodeAuthentication)
}

func TestDeleteRemovesVersionAndFiles(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	v := mustAddVersionWithFile(t, store, p.ID)
	mustInvite(t, store, 1, 42, int64(projects.PermDeleteVersion))

	if err := svc.Delete(context.Background(), v.ID, 42); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetVersion(context.Background(), v.ID); err != storage.ErrNotFound {
		t.Fatalf("expected version gone, got err=%v", err)
	}
	files, err := store.ListVersionFiles(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("ListVersionFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files left, got %d", len(files))
	}
}

func TestGetFileByHashRejectsUnknownAlgorithm(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetFileByHash(context.Background(), "md5", "deadbeef")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestGetFileByHashFindsBySHA1(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	v := mustAddVersionWithFile(t, store, p.ID)

	files, _ := store.ListVersionFiles(context.Background(), v.ID)
	got, err := svc.GetFileByHash(context.Background(), "sha1", files[0].SHA1)
	if err != nil {
		t.Fatalf("GetFileByHash: %v", err)
	}
	if got.ID != files[0].ID {
		t.Fatalf("got file %d, want %d", got.ID, files[0].ID)
	}
}

func TestDownloadURLNotFoundForUnknownFilename(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	v := mustAddVersionWithFile(t, store, p.ID)

	_, err := svc.DownloadURL(context.Background(), v.ID, "missing.jar")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCountDownloadDedupesAndRecordsAnalytics(t *testing.T) {
	svc, store, rec := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	v := mustAddVersionWithFile(t, store, p.ID)

	counted, err := svc.CountDownload(context.Background(), v.ID, "mod.jar", "1.2.3.4", 0)
	if err != nil {
		t.Fatalf("CountDownload: %v", err)
	}
	if !counted {
		t.Fatal("expected first attempt to count")
	}

	counted, err = svc.CountDownload(context.Background(), v.ID, "mod.jar", "1.2.3.4", 0)
	if err != nil {
		t.Fatalf("CountDownload (dup): %v", err)
	}
	if counted {
		t.Fatal("expected duplicate attempt within dedup window to be skipped")
	}

	updated, err := store.GetVersion(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if updated.Downloads != 1 {
		t.Fatalf("got Downloads=%d, want 1 (dup should not double-count)", updated.Downloads)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("got %d analytics calls, want 1", len(rec.calls))
	}
	if rec.calls[0].projectID != p.ID || rec.calls[0].versionID != v.ID {
		t.Fatalf("unexpected analytics call: %+v", rec.calls[0])
	}
}
