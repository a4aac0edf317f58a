package collections

import (
	"context"
	"testing"

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

func TestCreateDefaultsToListedStatus(t *testing.T) {
	svc, _ := newTestService(t)
	c, err := svc.Create(context.Background(), 1, CreateInput{Name: "My Mods"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Status != storage.CollectionListed {
		t.Fatalf("got status %q, want listed", c.Status)
	}
	if c.UserID != 1 {
		t.Fatalf("got owner %d, want 1", c.UserID)
	}
}

func TestGetListedVisibleToAnyone(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Public", Status: storage.CollectionListed})

	got, err := svc.Get(context.Background(), c.ID, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("got %d, want %d", got.ID, c.ID)
	}
}

func TestGetPrivateHiddenFromOthers(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Secret", Status: storage.CollectionPrivate})

	_, err := svc.Get(context.Background(), c.ID, 0)
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = svc.Get(context.Background(), c.ID, 2)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestGetPrivateVisibleToOwner(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Secret", Status: storage.CollectionPrivate})

	got, err := svc.Get(context.Background(), c.ID, 1)
	if err != nil {
		t.Fatalf("Get as owner: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("got %d, want %d", got.ID, c.ID)
	}
}

func TestEditRejectsNonOwner(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Mine"})

	name := "Stolen"
	_, err := svc.Edit(context.Background(), c.ID, 2, EditInput{Name: &name})
	assertCode(t, err, apperrors.CodeAuthentication)
}

func TestEditAppliesFields(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Old"})

	name := "New"
	ids := []int64{7, 8}
	got, err := svc.Edit(context.Background(), c.ID, 1, EditInput{Name: &name, ProjectIDs: &ids})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Name != "New" || len(got.ProjectIDs) != 2 {
		t.Fatalf("edit did not apply: %+v", got)
	}
}

func TestSetIconFailsWhenFileHostDisabled(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Mine"})

	_, err := svc.SetIcon(context.Background(), c.ID, 1, "image/png", ".png", []byte("fake"))
	assertCode(t, err, apperrors.CodeFileHosting)
}

func TestSetIconRejectsOversizedUpload(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Mine"})

	oversized := make([]byte, maxIconBytes+1)
	_, err := svc.SetIcon(context.Background(), c.ID, 1, "image/png", ".png", oversized)
	assertCode(t, err, apperrors.CodeImage)
}

func TestDeleteRejectsNonOwner(t *testing.T) {
	svc, _ := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Mine"})

	err := svc.Delete(context.Background(), c.ID, 2)
	assertCode(t, err, apperrors.CodeAuthentication)
}

func TestDeleteSucceedsForOwner(t *testing.T) {
	svc, store := newTestService(t)
	c, _ := svc.Create(context.Background(), 1, CreateInput{Name: "Mine"})

	invalidated := false
	svc.Invalidate = func(id int64) {
		if id == c.ID {
			invalidated = true
		}
	}

	if err := svc.Delete(context.Background(), c.ID, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !invalidated {
		t.Fatal("expected Invalidate callback to fire")
	}
	if _, err := store.GetCollection(context.Background(), c.ID); err != storage.ErrNotFound {
		t.Fatalf("expected collection gone, got err=%v", err)
	}
}

func TestListForUserReturnsOwnedCollectionsRegardlessOfStatus(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Create(context.Background(), 1, CreateInput{Name: "A", Status: storage.CollectionListed})
	svc.Create(context.Background(), 1, CreateInput{Name: "B", Status: storage.CollectionPrivate})
	svc.Create(context.Background(), 2, CreateInput{Name: "C", Status: storage.CollectionListed})

	got, err := svc.ListForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d collections, want 2", len(got))
	}
}
