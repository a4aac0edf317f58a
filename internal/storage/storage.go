// Package storage defines the persistence contract for HearthForge's auth,
// session, and payout core, and provides a Postgres-backed implementation
// plus an in-memory one for tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by Store implementations. Callers compare with
// errors.Is rather than matching driver-specific errors directly.
var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
	ErrFlowExpired   = errors.New("storage: flow token expired")
)

// Store is the persistence contract for HearthForge's authentication,
// session, and payout core. A *sql.DB-backed implementation and an
// in-memory implementation both satisfy it; domain packages (internal/auth,
// internal/payouts) depend only on this interface.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	// Provider links
	CreateProviderLink(ctx context.Context, link *ProviderLink) error
	GetProviderLink(ctx context.Context, provider, providerUserID string) (*ProviderLink, error)
	ListProviderLinks(ctx context.Context, userID int64) ([]*ProviderLink, error)
	DeleteProviderLink(ctx context.Context, userID int64, provider string) error

	// Backup codes
	ReplaceBackupCodes(ctx context.Context, userID int64, codes []string) error
	ConsumeBackupCode(ctx context.Context, userID int64, code string) (bool, error)
	CountBackupCodes(ctx context.Context, userID int64) (int, error)
	DeleteBackupCodes(ctx context.Context, userID int64) error

	// Flow tokens
	CreateFlowToken(ctx context.Context, f *FlowToken) error
	ConsumeFlowToken(ctx context.Context, token string, now time.Time) (*FlowToken, error)
	DeleteExpiredFlowTokens(ctx context.Context, now time.Time) (int64, error)

	// Sessions
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	ListSessionsForUser(ctx context.Context, userID int64) ([]*Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Personal access tokens
	CreatePAT(ctx context.Context, p *PAT) error
	GetPATByHash(ctx context.Context, tokenHash string) (*PAT, error)
	ListPATs(ctx context.Context, userID int64) ([]*PAT, error)
	RevokePAT(ctx context.Context, id int64, userID int64) error
	TouchPATLastUsed(ctx context.Context, id int64, now time.Time) error

	// OAuth clients & authorizations
	CreateOAuthClient(ctx context.Context, c *OAuthClient) error
	GetOAuthClient(ctx context.Context, id int64) (*OAuthClient, error)
	ListOAuthClientsForOwner(ctx context.Context, ownerUserID int64) ([]*OAuthClient, error)
	DeleteOAuthClient(ctx context.Context, id int64) error
	CreateOAuthAuthorization(ctx context.Context, a *OAuthAuthorization) error
	GetOAuthAuthorization(ctx context.Context, userID, clientID int64) (*OAuthAuthorization, error)
	ListOAuthAuthorizationsForUser(ctx context.Context, userID int64) ([]*OAuthAuthorization, error)
	RevokeOAuthAuthorization(ctx context.Context, userID, clientID int64) error

	// Payouts
	HasPayoutValuesForDate(ctx context.Context, createdDate time.Time) (bool, error)
	InsertPayoutValues(ctx context.Context, rows []*PayoutValue) error
	ListAvailablePayoutValues(ctx context.Context, userID int64, asOf time.Time) ([]*PayoutValue, error)
	RecordBalanceSnapshot(ctx context.Context, b *PayoutsBalance) error
	LatestBalanceSnapshot(ctx context.Context, accountType AccountType, pending bool) (*PayoutsBalance, error)

	// Projects, organizations, and teams.
	ListMonetizedProjects(ctx context.Context) ([]*Project, error)
	GetProjectByID(ctx context.Context, id int64) (*Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*Project, error)
	ListProjectsByIDs(ctx context.Context, ids []int64) ([]*Project, error)
	CreateProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id int64) error
	CreateOrganization(ctx context.Context, o *Organization) error
	GetOrganizationByID(ctx context.Context, id int64) (*Organization, error)
	GetTeamMember(ctx context.Context, teamID, userID int64) (*TeamMember, error)
	ListAcceptedTeamMembers(ctx context.Context, teamID int64) ([]*TeamMember, error)
	InviteTeamMember(ctx context.Context, m *TeamMember) error
	AcceptTeamInvite(ctx context.Context, teamID, userID int64) error
	UpdateTeamMemberRole(ctx context.Context, teamID, userID int64, role string, split int64) error
	UpdateTeamMemberPermissions(ctx context.Context, teamID, userID int64, permissions int64) error
	RemoveTeamMember(ctx context.Context, teamID, userID int64) error

	// Follows (mod_follows)
	FollowProject(ctx context.Context, userID, projectID int64) error
	UnfollowProject(ctx context.Context, userID, projectID int64) error
	IsFollowingProject(ctx context.Context, userID, projectID int64) (bool, error)

	// Versions
	CreateVersion(ctx context.Context, v *Version) error
	GetVersion(ctx context.Context, id int64) (*Version, error)
	ListVersionsForProject(ctx context.Context, projectID int64) ([]*Version, error)
	DeleteVersion(ctx context.Context, id int64) error
	AddVersionFile(ctx context.Context, f *VersionFile) error
	GetVersionFileByHash(ctx context.Context, algorithm, hash string) (*VersionFile, error)
	ListVersionFiles(ctx context.Context, versionID int64) ([]*VersionFile, error)
	RecordVersionDownload(ctx context.Context, versionID int64) error

	// Collections
	CreateCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, id int64) (*Collection, error)
	ListCollectionsForUser(ctx context.Context, userID int64) ([]*Collection, error)
	UpdateCollection(ctx context.Context, c *Collection) error
	DeleteCollection(ctx context.Context, id int64) error

	// Withdrawal execution (Component F step 1 cleanup + Component G's
	// underlying rail transactions).
	CreatePayout(ctx context.Context, p *Payout) error
	MarkStaleInTransitPayoutsFailed(ctx context.Context, olderThan time.Time) (int64, error)
}

// StoreConfig selects and configures a Store implementation.
type StoreConfig struct {
	Backend string // "postgres" or "memory"
	DB      *sql.DB
}

// NewStore constructs a Store from cfg. "memory" is intended for tests and
// local development; "postgres" is the production backend.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "postgres":
		if cfg.DB == nil {
			return nil, fmt.Errorf("storage: postgres backend requires a *sql.DB")
		}
		return NewPostgresStore(cfg.DB), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
