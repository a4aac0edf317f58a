package storage

import "time"

// Role enumerates the permission tier of a User.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is the core account row. A user must always satisfy "at least one
// authenticator": PasswordHash set, or at least one ProviderLink.
type User struct {
	ID            int64
	Username      string
	Email         *string
	EmailVerified bool
	PasswordHash  *string
	TOTPSecret    *string
	Role          Role
	Badges        int64
	VenmoHandle   *string
	StripeCustomerID *string
	AvatarURL     *string
	RawAvatarURL  *string
	AllowFriendRequests bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasAuthenticator reports whether the user still satisfies the
// at-least-one-authenticator invariant on its own (password side only;
// callers must additionally check provider links for the full invariant).
func (u *User) HasAuthenticator(hasProviderLink bool) bool {
	return u.PasswordHash != nil || hasProviderLink
}

// ProviderLink binds a third-party identity to a user. One row per
// (user_id, provider); (provider, provider_user_id) is globally unique.
type ProviderLink struct {
	UserID         int64
	Provider       string
	ProviderUserID string
	PayPalCountry  *string
	PayPalEmail    *string
	CreatedAt      time.Time
}

// FlowKind identifies the variant carried by a FlowToken.
type FlowKind string

const (
	FlowOAuth          FlowKind = "oauth"
	FlowLogin2FA       FlowKind = "login_2fa"
	FlowInitialize2FA  FlowKind = "initialize_2fa"
	FlowForgotPassword FlowKind = "forgot_password"
	FlowConfirmEmail   FlowKind = "confirm_email"
)

// FlowToken is a short-lived, single-use, server-stored token. Exactly one
// of the variant-specific fields is populated depending on Kind.
type FlowToken struct {
	Token     string
	Kind      FlowKind
	UserID    *int64 // OAuth (optional, link-mode), Login2FA, Initialize2FA, ForgotPassword, ConfirmEmail
	Provider  string // OAuth only
	URL       string // OAuth only: return url to redirect to after completion
	Secret    string // Initialize2FA only: pending TOTP secret
	Email     string // ConfirmEmail only: email being verified
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its TTL as of now.
func (f *FlowToken) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// Session is a bearer-token login backed by a server-side row.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	IPHint    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Scope is one bit in a PAT's scope bitset.
type Scope uint64

const (
	ScopeProjectRead Scope = 1 << iota
	ScopeProjectWrite
	ScopeProjectCreate
	ScopeProjectDelete
	ScopeVersionRead
	ScopeVersionWrite
	ScopeVersionCreate
	ScopeVersionDelete
	ScopeUserRead
	ScopeUserWrite
	ScopeUserAuthWrite
	ScopeUserDelete
	ScopeNotificationRead
	ScopeNotificationWrite
	ScopeCollectionRead
	ScopeCollectionWrite
	ScopeCollectionCreate
	ScopeCollectionDelete
	ScopeReportRead
	ScopeReportWrite
	ScopeReportCreate
	ScopeReportDelete
	ScopeThreadRead
	ScopeThreadWrite
	ScopePATRead
	ScopePATWrite
	ScopePATCreate
	ScopePATDelete
	ScopeOrganizationRead
	ScopeOrganizationWrite
	ScopeOrganizationCreate
	ScopeOrganizationDelete
	ScopePayoutsRead
	ScopePayoutsWrite
	ScopeSessionAccess
	ScopeSharedInstanceVersionCreate
)

// Has reports whether s contains every bit set in subset.
func (s Scope) Has(subset Scope) bool { return s&subset == subset }

// Grants reports whether s is a subset of issuer, i.e. issuer may grant s.
func (s Scope) Grants(issuer Scope) bool { return s&^issuer == 0 }

// PAT is a personal access token, presented as "mrp_<base62>". Only the
// hash of the token is ever persisted.
type PAT struct {
	ID         int64
	UserID     int64
	Name       string
	TokenHash  string
	Scopes     Scope
	LastUsedAt *time.Time
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// OAuthClient is a registered third-party application that can request
// delegated access via PAT-equivalent OAuthAuthorizations.
type OAuthClient struct {
	ID           int64
	Name         string
	IconURL      *string
	OwnerUserID  int64
	SecretHash   string
	RedirectURIs []string
	MaxScopes    Scope
	CreatedAt    time.Time
}

// OAuthAuthorization binds a user's consent to a client for a granted
// scope subset.
type OAuthAuthorization struct {
	ID           int64
	UserID       int64
	ClientID     int64
	GrantedScopes Scope
	CreatedAt    time.Time
}

// AccountType enumerates a payout rail backing a PayoutsBalance snapshot.
type AccountType string

const (
	AccountPayPal     AccountType = "paypal"
	AccountBrex       AccountType = "brex"
	AccountTremendous AccountType = "tremendous"
)

// PayoutsBalance is a point-in-time snapshot of how much HearthForge holds
// on a given rail, keyed by (AccountType, Pending, RecordedDate).
type PayoutsBalance struct {
	AccountType  AccountType
	Pending      bool
	RecordedDate time.Time
	Amount       string // decimal string; see internal/money
}

// PayoutValue is one user's earned-but-not-yet-withdrawable revenue share
// for a project on a given creation day.
type PayoutValue struct {
	ID            int64
	UserID        int64
	ProjectID     int64
	Amount        string // decimal string, > 0
	CreatedDate   time.Time
	DateAvailable time.Time
}

// MonetizationStatus gates whether a project's views/downloads count
// towards the ad-revenue payout split in the nightly batch job.
type MonetizationStatus string

const (
	MonetizationMonetized    MonetizationStatus = "monetized"
	MonetizationDemonetized  MonetizationStatus = "demonetized"
	MonetizationForceDemonetized MonetizationStatus = "force-demonetized"
)

// ProjectStatus mirrors the subset of project visibility states relevant
// to payout eligibility ("hidden" projects never earn a split) and to
// internal/projects' public-read gating.
type ProjectStatus string

const (
	ProjectApproved   ProjectStatus = "approved"
	ProjectArchived   ProjectStatus = "archived"
	ProjectHidden     ProjectStatus = "rejected" // treated as hidden for payout purposes
	ProjectDraft      ProjectStatus = "draft"
	ProjectScheduled  ProjectStatus = "scheduled"
	ProjectProcessing ProjectStatus = "processing"
	ProjectUnlisted   ProjectStatus = "unlisted"
	ProjectPrivate    ProjectStatus = "private"
)

// Searchable reports whether a project in this status is publicly visible
// without team membership (spec.md §6: "public if status is searchable").
func (s ProjectStatus) Searchable() bool {
	return s == ProjectApproved || s == ProjectArchived
}

// Project is the project row. internal/projects owns its CRUD/moderation
// semantics; the payout batch job only ever reads TeamID/OrganizationID/
// MonetizationStatus/Status off of it.
type Project struct {
	ID             int64
	Slug           string
	Name           string
	Description    string
	Body           string
	License        string
	ClientSide     string // "required", "optional", "unsupported"
	ServerSide     string
	IconURL        *string
	GalleryURLs    []string
	Categories     []string
	Downloads      int64
	Followers      int64
	TeamID         int64
	OrganizationID *int64
	MonetizationStatus MonetizationStatus
	Status             ProjectStatus
	DatePublished       *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// VersionType mirrors a release channel a Version is published under.
type VersionType string

const (
	VersionRelease VersionType = "release"
	VersionBeta    VersionType = "beta"
	VersionAlpha   VersionType = "alpha"
)

// Version is one ordered release of a Project.
type Version struct {
	ID            int64
	ProjectID     int64
	Name          string
	VersionNumber string
	Changelog     string
	VersionType   VersionType
	Featured      bool
	Downloads     int64
	DatePublished time.Time
}

// VersionFile is one uploaded artifact attached to a Version. URL points at
// the file-host (internal/filehost)-served location.
type VersionFile struct {
	ID        int64
	VersionID int64
	URL       string
	Filename  string
	Size      int64
	SHA1      string
	SHA512    string
	Primary   bool
}

// CollectionStatus mirrors a Project's visibility lattice but scoped to a
// user-curated bag of project ids.
type CollectionStatus string

const (
	CollectionListed   CollectionStatus = "listed"
	CollectionUnlisted CollectionStatus = "unlisted"
	CollectionPrivate  CollectionStatus = "private"
	CollectionRejected CollectionStatus = "rejected"
)

// Collection is a user-scoped bag of project ids.
type Collection struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	Status      CollectionStatus
	IconURL     *string
	ProjectIDs  []int64
	CreatedAt   time.Time
}

// TeamMember is one accepted-or-pending member of a project (or
// organization) team, carrying the revenue split weight the payout batch
// job uses for Component F step 5 and the permission bitset internal/projects
// uses for team-gated edit/delete/version operations.
type TeamMember struct {
	TeamID      int64
	UserID      int64
	Role        string
	Accepted    bool
	Split       int64 // relative revenue-share weight; 0 is valid (no share)
	Permissions int64 // internal/projects.TeamPermission bitset
}

// PayoutStatus tracks a user-initiated withdrawal's lifecycle on an
// external rail.
type PayoutStatus string

const (
	PayoutInTransit PayoutStatus = "in_transit"
	PayoutSucceeded PayoutStatus = "succeeded"
	PayoutFailed    PayoutStatus = "failed"
)

// Payout is one user-initiated withdrawal request against their available
// PayoutValue balance, executed against an external rail.
type Payout struct {
	ID        int64
	UserID    int64
	Amount    string // decimal string
	Method    string // PayoutMethod.ID at time of request
	Status    PayoutStatus
	CreatedAt time.Time
}

// Organization owns zero or more projects and carries its own team, whose
// members are unioned with a project's direct team for payout splitting
// (direct team overrides the org team for the same user).
type Organization struct {
	ID          int64
	Slug        string
	TeamID      int64
	OwnerUserID int64
}
