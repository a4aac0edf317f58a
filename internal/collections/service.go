// Package collections implements spec.md §4.I's collection CRUD: a
// user-scoped bag of project ids with an icon, visible per its
// CollectionStatus rather than a team permission set (a collection has no
// team — it is owned outright by one user).
package collections

import (
	"context"
	"strconv"

	"github.com/hearthforge/backend/internal/cacheutil"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/storage"
)

// Service implements the collection domain operations.
type Service struct {
	store      storage.Store
	files      *filehost.Host
	Invalidate func(collectionID int64)
}

// New constructs a collection Service.
func New(store storage.Store, files *filehost.Host) *Service {
	return &Service{store: store, files: files}
}

func (s *Service) invalidate(id int64) {
	if s.Invalidate != nil {
		s.Invalidate(id)
	}
}

// searchable reports whether a collection in this status is publicly
// visible without ownership, mirroring storage.ProjectStatus.Searchable.
func searchable(status storage.CollectionStatus) bool {
	return status == storage.CollectionListed || status == storage.CollectionUnlisted
}

// Get fetches a collection by id. A non-searchable collection (private,
// rejected) is visible only to its owner; callerID of 0 means "no
// authenticated caller".
func (s *Service) Get(ctx context.Context, id, callerID int64) (*storage.Collection, error) {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireVisible(c, callerID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) requireVisible(c *storage.Collection, callerID int64) error {
	if searchable(c.Status) {
		return nil
	}
	if callerID != 0 && c.UserID == callerID {
		return nil
	}
	return apperrors.New(apperrors.CodeNotFound, "collection not found")
}

// ListForUser returns every collection owned by userID, regardless of
// status (an owner always sees their own private/rejected collections).
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*storage.Collection, error) {
	return s.store.ListCollectionsForUser(ctx, userID)
}

// CreateInput carries a new collection's fields.
type CreateInput struct {
	Name        string
	Description string
	Status      storage.CollectionStatus
	ProjectIDs  []int64
}

// Create inserts a new collection owned by userID.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*storage.Collection, error) {
	status := in.Status
	if status == "" {
		status = storage.CollectionListed
	}
	c := &storage.Collection{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Status:      status,
		ProjectIDs:  in.ProjectIDs,
	}
	if err := s.store.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EditInput carries the mutable subset of a collection's fields.
type EditInput struct {
	Name        *string
	Description *string
	Status      *storage.CollectionStatus
	ProjectIDs  *[]int64
}

// Edit applies a partial update, gated by ownership.
func (s *Service) Edit(ctx context.Context, id, callerID int64, in EditInput) (*storage.Collection, error) {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != callerID {
		return nil, apperrors.New(apperrors.CodeAuthentication, "not the collection owner")
	}

	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.ProjectIDs != nil {
		c.ProjectIDs = *in.ProjectIDs
	}

	err = cacheutil.WriteThrough(func() { s.invalidate(c.ID) }, func() error {
		return s.store.UpdateCollection(ctx, c)
	})
	return c, err
}

const maxIconBytes = 8 << 20 // 8 MiB

// SetIcon uploads a new icon, best-effort deleting the old one, gated by
// ownership, mirroring internal/projects.Service.SetIcon.
func (s *Service) SetIcon(ctx context.Context, id, callerID int64, contentType, ext string, data []byte) (*storage.Collection, error) {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != callerID {
		return nil, apperrors.New(apperrors.CodeAuthentication, "not the collection owner")
	}
	if int64(len(data)) > maxIconBytes {
		return nil, apperrors.New(apperrors.CodeImage, "icon exceeds maximum size")
	}

	oldURL := c.IconURL
	key := filehost.KeyForIcon("collection", strconv.FormatInt(c.ID, 10), ext)
	url, err := s.files.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}
	c.IconURL = &url

	if err := s.store.UpdateCollection(ctx, c); err != nil {
		return nil, err
	}
	if oldURL != nil {
		s.files.DeleteBestEffort(ctx, *oldURL)
	}
	s.invalidate(c.ID)
	return c, nil
}

// DeleteIcon removes a collection's icon, gated by ownership.
func (s *Service) DeleteIcon(ctx context.Context, id, callerID int64) error {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != callerID {
		return apperrors.New(apperrors.CodeAuthentication, "not the collection owner")
	}
	if c.IconURL == nil {
		return nil
	}
	old := *c.IconURL
	c.IconURL = nil
	if err := s.store.UpdateCollection(ctx, c); err != nil {
		return err
	}
	s.files.DeleteBestEffort(ctx, old)
	s.invalidate(c.ID)
	return nil
}

// Delete removes a collection, gated by ownership.
func (s *Service) Delete(ctx context.Context, id, callerID int64) error {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != callerID {
		return apperrors.New(apperrors.CodeAuthentication, "not the collection owner")
	}
	err = cacheutil.WriteThrough(func() { s.invalidate(c.ID) }, func() error {
		return s.store.DeleteCollection(ctx, c.ID)
	})
	return err
}
