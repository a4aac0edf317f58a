package projects

import (
	"context"
	"testing"
	"time"

	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	host, err := filehost.New(config.FileHostConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("filehost.New: %v", err)
	}
	return New(store, host), store
}

func mustCreateProject(t *testing.T, store storage.Store, teamID int64, status storage.ProjectStatus) *storage.Project {
	t.Helper()
	p := &storage.Project{
		Slug:       "test-project",
		Name:       "Test Project",
		License:    "MIT",
		ClientSide: "required",
		ServerSide: "unsupported",
		TeamID:     teamID,
		Status:     status,
	}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func TestGetSearchableProjectVisibleToAnyone(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)

	got, err := svc.Get(context.Background(), p.Slug, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("got project %d, want %d", got.ID, p.ID)
	}
}

func TestGetDraftProjectHiddenFromAnonymousCaller(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectDraft)

	_, err := svc.Get(context.Background(), p.Slug, 0)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestGetDraftProjectVisibleToTeamMember(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectDraft)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	got, err := svc.Get(context.Background(), p.Slug, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("got project %d, want %d", got.ID, p.ID)
	}
}

func TestGetDraftProjectHiddenFromUnrelatedCaller(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectDraft)

	_, err := svc.Get(context.Background(), p.Slug, 99)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestEditRequiresEditDetailsForMetadata(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditBody)) // has body, not details

	name := "New Name"
	_, err := svc.Edit(context.Background(), p.Slug, 42, EditInput{Name: &name})
	assertCode(t, err, apperrors.CodeAuthentication)
}

func TestEditAppliesDetailsAndBodySeparately(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails|PermEditBody))

	name := "New Name"
	body := "new body"
	got, err := svc.Edit(context.Background(), p.Slug, 42, EditInput{Name: &name, Body: &body})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Name != name || got.Body != body {
		t.Fatalf("edit did not apply: %+v", got)
	}
}

func TestEditViaOrgInheritedPermissions(t *testing.T) {
	svc, store := newTestService(t)
	org := &storage.Organization{Slug: "org", TeamID: 7, OwnerUserID: 1}
	if err := store.CreateOrganization(context.Background(), org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	p := &storage.Project{
		Slug: "org-project", Name: "Org Project", License: "MIT",
		ClientSide: "required", ServerSide: "unsupported",
		TeamID: 2, OrganizationID: &org.ID, Status: storage.ProjectApproved,
	}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	mustInvite(t, store, org.TeamID, 55, int64(PermEditDetails))

	name := "Renamed"
	got, err := svc.Edit(context.Background(), p.Slug, 55, EditInput{Name: &name})
	if err != nil {
		t.Fatalf("Edit via org inheritance: %v", err)
	}
	if got.Name != name {
		t.Fatalf("org-inherited edit did not apply")
	}
}

func TestBulkEditSkipsProjectsCallerLacksPermissionOn(t *testing.T) {
	svc, store := newTestService(t)
	allowed := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	denied := &storage.Project{Slug: "other", Name: "Other", License: "MIT",
		ClientSide: "required", ServerSide: "unsupported", TeamID: 2, Status: storage.ProjectApproved}
	if err := store.CreateProject(context.Background(), denied); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	edited, err := svc.BulkEdit(context.Background(), []int64{allowed.ID, denied.ID}, 42, BulkEditInput{
		AddCategories: []string{"tech"},
	})
	if err != nil {
		t.Fatalf("BulkEdit: %v", err)
	}
	if len(edited) != 1 || edited[0] != allowed.ID {
		t.Fatalf("got edited=%v, want only %d", edited, allowed.ID)
	}
}

func TestApplyCategoryDiffIsCaseInsensitiveAndDeduplicates(t *testing.T) {
	got := applyCategoryDiff([]string{"Tech", "Game"}, []string{"game", "new"}, []string{"tech"})
	want := []string{"Game", "new"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSetIconFailsWhenFileHostDisabled(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	_, err := svc.SetIcon(context.Background(), p.Slug, 42, "image/png", ".png", []byte("fake-png-bytes"))
	assertCode(t, err, apperrors.CodeFileHosting)
}

func TestSetIconRejectsOversizedUpload(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	oversized := make([]byte, maxIconBytes+1)
	_, err := svc.SetIcon(context.Background(), p.Slug, 42, "image/png", ".png", oversized)
	assertCode(t, err, apperrors.CodeImage)
}

func TestRemoveGalleryImageNotFound(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	_, err := svc.RemoveGalleryImage(context.Background(), p.Slug, 42, "/project/1/gallery/missing.png")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestFollowUnfollow(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)

	if err := svc.Follow(context.Background(), 42, p.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	following, err := store.IsFollowingProject(context.Background(), 42, p.ID)
	if err != nil || !following {
		t.Fatalf("expected following=true, got %v err=%v", following, err)
	}
	if err := svc.Unfollow(context.Background(), 42, p.ID); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	following, err = store.IsFollowingProject(context.Background(), 42, p.ID)
	if err != nil || following {
		t.Fatalf("expected following=false after unfollow, got %v err=%v", following, err)
	}
}

func TestScheduleRejectsPastDate(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	_, err := svc.Schedule(context.Background(), p.Slug, 42, time.Now().Add(-time.Hour))
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestScheduleSetsStatusAndDatePublished(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails))

	future := time.Now().Add(48 * time.Hour)
	got, err := svc.Schedule(context.Background(), p.Slug, 42, future)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.Status != storage.ProjectScheduled {
		t.Fatalf("got status %q, want scheduled", got.Status)
	}
	if got.DatePublished == nil || !got.DatePublished.Equal(future) {
		t.Fatalf("DatePublished not set to %v, got %v", future, got.DatePublished)
	}
}

func TestDeleteRequiresDeleteProjectPermission(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermEditDetails)) // not PermDeleteProject

	err := svc.Delete(context.Background(), p.Slug, 42)
	assertCode(t, err, apperrors.CodeAuthentication)
}

func TestDeleteSucceedsWithPermission(t *testing.T) {
	svc, store := newTestService(t)
	p := mustCreateProject(t, store, 1, storage.ProjectApproved)
	mustInvite(t, store, 1, 42, int64(PermDeleteProject))

	invalidated := false
	svc.Invalidate = func(id int64) {
		if id == p.ID {
			invalidated = true
		}
	}

	if err := svc.Delete(context.Background(), p.Slug, 42); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !invalidated {
		t.Fatal("expected Invalidate callback to fire")
	}
	if _, err := store.GetProjectByID(context.Background(), p.ID); err != storage.ErrNotFound {
		t.Fatalf("expected project gone, got err=%v", err)
	}
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

func TestCreateStartsDraftAndOwnerHasFullPermissions(t *testing.T) {
	svc, store := newTestService(t)
	p, err := svc.Create(context.Background(), 7, CreateInput{
		Slug: "my-mod", Name: "My Mod", License: "MIT",
		ClientSide: "required", ServerSide: "unsupported",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != storage.ProjectDraft {
		t.Fatalf("got status %q, want draft", p.Status)
	}
	if p.TeamID != p.ID {
		t.Fatalf("got team id %d, want %d (project id)", p.TeamID, p.ID)
	}

	member, err := store.GetTeamMember(context.Background(), p.TeamID, 7)
	if err != nil {
		t.Fatalf("GetTeamMember: %v", err)
	}
	if !member.Accepted || TeamPermission(member.Permissions) != Owner {
		t.Fatalf("expected creator enrolled with Owner permissions, got %+v", member)
	}

	if _, err := svc.Get(context.Background(), p.Slug, 0); err == nil {
		t.Fatal("expected draft project to be hidden from anonymous caller")
	}
	if _, err := svc.Get(context.Background(), p.Slug, 7); err != nil {
		t.Fatalf("expected draft project visible to its creator: %v", err)
	}
}
