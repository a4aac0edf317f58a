// Package projects implements spec.md §4.I's project CRUD, moderation, and
// membership surface: get/get-many, detail/body edits gated by team
// permissions, bulk category/link edits, icon and gallery management via
// internal/filehost, follow/unfollow, scheduled publishing, and deletion.
package projects

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hearthforge/backend/internal/cacheutil"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/storage"
)

// Service implements the project domain operations against a storage.Store
// and an internal/filehost.Host. Invalidate, if set, is called with a
// project id after every successful mutation (the HTTP layer wires this to
// whatever read-through cache fronts project lookups).
type Service struct {
	store      storage.Store
	files      *filehost.Host
	Invalidate func(projectID int64)
}

// New constructs a project Service.
func New(store storage.Store, files *filehost.Host) *Service {
	return &Service{store: store, files: files}
}

func (s *Service) invalidate(id int64) {
	if s.Invalidate != nil {
		s.Invalidate(id)
	}
}

// CreateInput carries a new project's fields. The project starts life in
// ProjectDraft, invisible to anyone but its team, until a moderator
// approves it or the owner schedules/publishes it.
type CreateInput struct {
	Slug        string
	Name        string
	Description string
	Body        string
	License     string
	ClientSide  string
	ServerSide  string
	Categories  []string
}

// Create inserts a new draft project owned outright by userID: there is no
// separate team-creation step in this system, so the project's own id
// doubles as its team id, and the creator is enrolled as an accepted member
// holding every TeamPermission bit.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*storage.Project, error) {
	p := &storage.Project{
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		Body:        in.Body,
		License:     in.License,
		ClientSide:  in.ClientSide,
		ServerSide:  in.ServerSide,
		Categories:  in.Categories,
		Status:      storage.ProjectDraft,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	p.TeamID = p.ID
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	err := s.store.InviteTeamMember(ctx, &storage.TeamMember{
		TeamID: p.TeamID, UserID: userID, Role: "Owner", Accepted: true,
		Split: 100, Permissions: int64(Owner),
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(p.ID)
	return p, nil
}

// Get fetches a project by numeric id or slug, per spec.md's idOrSlug
// route param. A non-searchable project is visible only to callers whose
// effective team permissions on it are non-zero; callerID of 0 means "no
// authenticated caller".
func (s *Service) Get(ctx context.Context, idOrSlug string, callerID int64) (*storage.Project, error) {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if err := s.requireVisible(ctx, p, callerID); err != nil {
		return nil, err
	}
	return p, nil
}

// GetMany fetches every project among ids that the caller is permitted to
// see (searchable, or team-visible).
func (s *Service) GetMany(ctx context.Context, ids []int64, callerID int64) ([]*storage.Project, error) {
	all, err := s.store.ListProjectsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*storage.Project, 0, len(all))
	for _, p := range all {
		if s.requireVisible(ctx, p, callerID) == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) lookup(ctx context.Context, idOrSlug string) (*storage.Project, error) {
	if id, ok := parseID(idOrSlug); ok {
		return s.store.GetProjectByID(ctx, id)
	}
	return s.store.GetProjectBySlug(ctx, idOrSlug)
}

func (s *Service) requireVisible(ctx context.Context, p *storage.Project, callerID int64) error {
	if p.Status.Searchable() {
		return nil
	}
	if callerID == 0 {
		return apperrors.New(apperrors.CodeNotFound, "project not found")
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return err
	}
	if perm == 0 {
		return apperrors.New(apperrors.CodeNotFound, "project not found")
	}
	return nil
}

// Permissions resolves callerID's TeamPermission set against p. Exported so
// sibling packages whose resources hang off a project's team (internal/versions,
// internal/collections) can gate their own mutations without duplicating the
// org-inheritance walk.
func (s *Service) Permissions(ctx context.Context, callerID int64, p *storage.Project) (TeamPermission, error) {
	return s.permissionsFor(ctx, callerID, p)
}

// permissionsFor resolves callerID's TeamPermission set against p, per
// spec.md §4.I's org-inheritance rule.
func (s *Service) permissionsFor(ctx context.Context, callerID int64, p *storage.Project) (TeamPermission, error) {
	direct, err := s.store.GetTeamMember(ctx, p.TeamID, callerID)
	if err != nil && err != storage.ErrNotFound {
		return 0, err
	}
	if err == storage.ErrNotFound {
		direct = nil
	}

	var org *storage.TeamMember
	isOrgOwner := false
	if p.OrganizationID != nil {
		orgRow, err := s.store.GetOrganizationByID(ctx, *p.OrganizationID)
		if err != nil && err != storage.ErrNotFound {
			return 0, err
		}
		if err == nil {
			isOrgOwner = orgRow.OwnerUserID == callerID
			m, err := s.store.GetTeamMember(ctx, orgRow.TeamID, callerID)
			if err != nil && err != storage.ErrNotFound {
				return 0, err
			}
			if err == nil {
				org = m
			}
		}
	}

	return EffectivePermissions(direct, org, isOrgOwner), nil
}

// EditInput carries the mutable subset of a project's details/body.
type EditInput struct {
	Name        *string
	Description *string
	Body        *string
	License     *string
	ClientSide  *string
	ServerSide  *string
}

// Edit applies a partial update gated by EDIT_DETAILS (for the metadata
// fields) and EDIT_BODY (for Body specifically) per spec.md §4.I.
func (s *Service) Edit(ctx context.Context, idOrSlug string, callerID int64, in EditInput) (*storage.Project, error) {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return nil, err
	}

	touchesDetails := in.Name != nil || in.Description != nil || in.License != nil || in.ClientSide != nil || in.ServerSide != nil
	if touchesDetails && !perm.Has(PermEditDetails) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing EDIT_DETAILS permission")
	}
	if in.Body != nil && !perm.Has(PermEditBody) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing EDIT_BODY permission")
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Body != nil {
		p.Body = *in.Body
	}
	if in.License != nil {
		p.License = *in.License
	}
	if in.ClientSide != nil {
		p.ClientSide = *in.ClientSide
	}
	if in.ServerSide != nil {
		p.ServerSide = *in.ServerSide
	}

	err = cacheutil.WriteThrough(func() { s.invalidate(p.ID) }, func() error {
		return s.store.UpdateProject(ctx, p)
	})
	return p, err
}

// BulkEditInput is spec.md §4.I's "bulk-edit (categories/links)" operation,
// applied across every project id the caller has EDIT_DETAILS on.
type BulkEditInput struct {
	AddCategories    []string
	RemoveCategories []string
}

// BulkEdit applies the same category add/remove set across multiple
// projects, skipping (not failing) any the caller lacks EDIT_DETAILS on.
func (s *Service) BulkEdit(ctx context.Context, ids []int64, callerID int64, in BulkEditInput) ([]int64, error) {
	var edited []int64
	for _, id := range ids {
		p, err := s.store.GetProjectByID(ctx, id)
		if err != nil {
			continue
		}
		perm, err := s.permissionsFor(ctx, callerID, p)
		if err != nil || !perm.Has(PermEditDetails) {
			continue
		}

		p.Categories = applyCategoryDiff(p.Categories, in.AddCategories, in.RemoveCategories)
		if err := s.store.UpdateProject(ctx, p); err != nil {
			return edited, err
		}
		s.invalidate(p.ID)
		edited = append(edited, p.ID)
	}
	return edited, nil
}

func applyCategoryDiff(current, add, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, c := range remove {
		removeSet[strings.ToLower(c)] = true
	}
	out := make([]string, 0, len(current)+len(add))
	seen := make(map[string]bool, len(current)+len(add))
	for _, c := range current {
		if removeSet[strings.ToLower(c)] || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	for _, c := range add {
		if seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	return out
}

const maxIconBytes = 8 << 20 // 8 MiB

// SetIcon uploads a new icon, replacing (best-effort deleting) the old one,
// per spec.md §4.I "images uploaded via file-host, old image deleted
// best-effort".
func (s *Service) SetIcon(ctx context.Context, idOrSlug string, callerID int64, contentType, ext string, data []byte) (*storage.Project, error) {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return nil, err
	}
	if !perm.Has(PermEditDetails) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing EDIT_DETAILS permission")
	}
	if int64(len(data)) > maxIconBytes {
		return nil, apperrors.New(apperrors.CodeImage, "icon exceeds maximum size")
	}

	oldURL := p.IconURL
	key := filehost.KeyForIcon("project", strconv.FormatInt(p.ID, 10), ext)
	url, err := s.files.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}
	p.IconURL = &url

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	if oldURL != nil {
		s.files.DeleteBestEffort(ctx, *oldURL)
	}
	s.invalidate(p.ID)
	return p, nil
}

// DeleteIcon removes a project's icon.
func (s *Service) DeleteIcon(ctx context.Context, idOrSlug string, callerID int64) error {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return err
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return err
	}
	if !perm.Has(PermEditDetails) {
		return apperrors.New(apperrors.CodeAuthentication, "missing EDIT_DETAILS permission")
	}
	if p.IconURL == nil {
		return nil
	}
	old := *p.IconURL
	p.IconURL = nil
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return err
	}
	s.files.DeleteBestEffort(ctx, old)
	s.invalidate(p.ID)
	return nil
}

// AddGalleryImage uploads and appends a gallery image.
func (s *Service) AddGalleryImage(ctx context.Context, idOrSlug string, callerID int64, filename, contentType string, data []byte) (*storage.Project, error) {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return nil, err
	}
	if !perm.Has(PermEditDetails) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing EDIT_DETAILS permission")
	}

	key := filehost.KeyForGalleryImage(strconv.FormatInt(p.ID, 10), filename)
	url, err := s.files.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}
	p.GalleryURLs = append(p.GalleryURLs, url)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(p.ID)
	return p, nil
}

// RemoveGalleryImage deletes a gallery image by URL, best-effort at the
// file-host, unconditional in the project row.
func (s *Service) RemoveGalleryImage(ctx context.Context, idOrSlug string, callerID int64, url string) (*storage.Project, error) {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return nil, err
	}
	if !perm.Has(PermEditDetails) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing EDIT_DETAILS permission")
	}

	kept := make([]string, 0, len(p.GalleryURLs))
	removed := false
	for _, u := range p.GalleryURLs {
		if u == url {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	if !removed {
		return nil, apperrors.New(apperrors.CodeNotFound, "gallery image not found")
	}
	p.GalleryURLs = kept
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.files.DeleteBestEffort(ctx, url)
	s.invalidate(p.ID)
	return p, nil
}

// Follow toggles on a follow row for (userID, projectID) and bumps the
// project's follower counter, per spec.md §4.I.
func (s *Service) Follow(ctx context.Context, userID, projectID int64) error {
	return s.store.FollowProject(ctx, userID, projectID)
}

// Unfollow is Follow's inverse.
func (s *Service) Unfollow(ctx context.Context, userID, projectID int64) error {
	return s.store.UnfollowProject(ctx, userID, projectID)
}

// Schedule sets status=scheduled with a future DatePublished, per
// spec.md §4.I.
func (s *Service) Schedule(ctx context.Context, idOrSlug string, callerID int64, publishAt time.Time) (*storage.Project, error) {
	if !publishAt.After(time.Now()) {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "schedule date must be in the future")
	}
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return nil, err
	}
	if !perm.Has(PermEditDetails) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "missing EDIT_DETAILS permission")
	}

	p.Status = storage.ProjectScheduled
	p.DatePublished = &publishAt
	err = cacheutil.WriteThrough(func() { s.invalidate(p.ID) }, func() error {
		return s.store.UpdateProject(ctx, p)
	})
	return p, err
}

// Delete removes a project, gated by PermDeleteProject, per spec.md §4.I's
// DELETE_PROJECT.
func (s *Service) Delete(ctx context.Context, idOrSlug string, callerID int64) error {
	p, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return err
	}
	perm, err := s.permissionsFor(ctx, callerID, p)
	if err != nil {
		return err
	}
	if !perm.Has(PermDeleteProject) {
		return apperrors.New(apperrors.CodeAuthentication, "missing DELETE_PROJECT permission")
	}
	err = cacheutil.WriteThrough(func() { s.invalidate(p.ID) }, func() error {
		return s.store.DeleteProject(ctx, p.ID)
	})
	return err
}

func parseID(idOrSlug string) (int64, bool) {
	if idOrSlug == "" {
		return 0, false
	}
	for _, r := range idOrSlug {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(idOrSlug, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
