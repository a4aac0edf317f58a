package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation backed by mutex-guarded
// maps. It is used by unit tests and local development; it does not persist
// across restarts.
type MemoryStore struct {
	mu sync.RWMutex

	nextUserID int64
	users      map[int64]*User

	providerLinks map[string]*ProviderLink // key: provider + "\x00" + providerUserID
	backupCodes   map[int64]map[string]struct{}

	flowTokens map[string]*FlowToken
	sessions   map[string]*Session

	nextPATID int64
	pats      map[int64]*PAT

	nextClientID int64
	oauthClients map[int64]*OAuthClient

	nextAuthID int64
	oauthAuths map[string]*OAuthAuthorization // key: userID + "\x00" + clientID

	nextPayoutID  int64
	payoutValues  []*PayoutValue
	balanceSnaps  map[string]*PayoutsBalance // key: accountType + "\x00" + pending + "\x00" + date

	projects      map[int64]*Project
	nextOrgID     int64
	organizations map[int64]*Organization
	teamMembers   map[int64][]*TeamMember // key: teamID

	nextPayoutExecID int64
	payoutExecs      map[int64]*Payout

	nextProjectID int64
	follows       map[string]struct{} // key: userID + "\x00" + projectID

	nextVersionID     int64
	versions          map[int64]*Version
	nextVersionFileID int64
	versionFiles      map[int64]*VersionFile

	nextCollectionID int64
	collections      map[int64]*Collection
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[int64]*User),
		providerLinks: make(map[string]*ProviderLink),
		backupCodes:   make(map[int64]map[string]struct{}),
		flowTokens:    make(map[string]*FlowToken),
		sessions:      make(map[string]*Session),
		pats:          make(map[int64]*PAT),
		oauthClients:  make(map[int64]*OAuthClient),
		oauthAuths:    make(map[string]*OAuthAuthorization),
		balanceSnaps:  make(map[string]*PayoutsBalance),
		projects:      make(map[int64]*Project),
		organizations: make(map[int64]*Organization),
		teamMembers:   make(map[int64][]*TeamMember),
		payoutExecs:   make(map[int64]*Payout),
		follows:       make(map[string]struct{}),
		versions:      make(map[int64]*Version),
		versionFiles:  make(map[int64]*VersionFile),
		collections:   make(map[int64]*Collection),
	}
}

func providerKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

func authKey(userID, clientID int64) string {
	return itoa64(userID) + "\x00" + itoa64(clientID)
}

func itoa64(n int64) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// --- Users ---

func (m *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lower := strings.ToLower(u.Username)
	for _, existing := range m.users {
		if strings.ToLower(existing.Username) == lower {
			return ErrAlreadyExists
		}
		if u.Email != nil && existing.Email != nil && strings.EqualFold(*existing.Email, *u.Email) {
			return ErrAlreadyExists
		}
	}
	m.nextUserID++
	u.ID = m.nextUserID
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(username)
	for _, u := range m.users {
		if strings.ToLower(u.Username) == lower {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// --- Provider links ---

func (m *MemoryStore) CreateProviderLink(ctx context.Context, link *ProviderLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := providerKey(link.Provider, link.ProviderUserID)
	if _, ok := m.providerLinks[key]; ok {
		return ErrAlreadyExists
	}
	link.CreatedAt = time.Now()
	cp := *link
	m.providerLinks[key] = &cp
	return nil
}

func (m *MemoryStore) GetProviderLink(ctx context.Context, provider, providerUserID string) (*ProviderLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.providerLinks[providerKey(provider, providerUserID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (m *MemoryStore) ListProviderLinks(ctx context.Context, userID int64) ([]*ProviderLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ProviderLink
	for _, link := range m.providerLinks {
		if link.UserID == userID {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteProviderLink(ctx context.Context, userID int64, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, link := range m.providerLinks {
		if link.UserID == userID && link.Provider == provider {
			delete(m.providerLinks, key)
			return nil
		}
	}
	return ErrNotFound
}

// --- Backup codes ---

func (m *MemoryStore) ReplaceBackupCodes(ctx context.Context, userID int64, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	m.backupCodes[userID] = set
	return nil
}

func (m *MemoryStore) ConsumeBackupCode(ctx context.Context, userID int64, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.backupCodes[userID]
	if !ok {
		return false, nil
	}
	if _, ok := set[code]; !ok {
		return false, nil
	}
	delete(set, code)
	return true, nil
}

func (m *MemoryStore) CountBackupCodes(ctx context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.backupCodes[userID]), nil
}

func (m *MemoryStore) DeleteBackupCodes(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.backupCodes, userID)
	return nil
}

// --- Flow tokens ---

func (m *MemoryStore) CreateFlowToken(ctx context.Context, f *FlowToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.CreatedAt = time.Now()
	cp := *f
	m.flowTokens[f.Token] = &cp
	return nil
}

func (m *MemoryStore) ConsumeFlowToken(ctx context.Context, token string, now time.Time) (*FlowToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flowTokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.flowTokens, token)
	if f.Expired(now) {
		return nil, ErrFlowExpired
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) DeleteExpiredFlowTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, f := range m.flowTokens {
		if f.Expired(now) {
			delete(m.flowTokens, token)
			n++
		}
	}
	return n, nil
}

// --- Sessions ---

func (m *MemoryStore) CreateSession(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) ListSessionsForUser(ctx context.Context, userID int64) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// --- Personal access tokens ---

func (m *MemoryStore) CreatePAT(ctx context.Context, p *PAT) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPATID++
	p.ID = m.nextPATID
	p.CreatedAt = time.Now()
	cp := *p
	m.pats[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetPATByHash(ctx context.Context, tokenHash string) (*PAT, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pats {
		if p.TokenHash == tokenHash {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListPATs(ctx context.Context, userID int64) ([]*PAT, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PAT
	for _, p := range m.pats {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) RevokePAT(ctx context.Context, id int64, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pats[id]
	if !ok || p.UserID != userID {
		return ErrNotFound
	}
	delete(m.pats, id)
	return nil
}

func (m *MemoryStore) TouchPATLastUsed(ctx context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pats[id]
	if !ok {
		return ErrNotFound
	}
	t := now
	p.LastUsedAt = &t
	return nil
}

// --- OAuth clients & authorizations ---

func (m *MemoryStore) CreateOAuthClient(ctx context.Context, c *OAuthClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextClientID++
	c.ID = m.nextClientID
	c.CreatedAt = time.Now()
	cp := *c
	m.oauthClients[c.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOAuthClient(ctx context.Context, id int64) (*OAuthClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.oauthClients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListOAuthClientsForOwner(ctx context.Context, ownerUserID int64) ([]*OAuthClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*OAuthClient
	for _, c := range m.oauthClients {
		if c.OwnerUserID == ownerUserID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteOAuthClient(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.oauthClients[id]; !ok {
		return ErrNotFound
	}
	delete(m.oauthClients, id)
	return nil
}

func (m *MemoryStore) CreateOAuthAuthorization(ctx context.Context, a *OAuthAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAuthID++
	a.ID = m.nextAuthID
	a.CreatedAt = time.Now()
	cp := *a
	m.oauthAuths[authKey(a.UserID, a.ClientID)] = &cp
	return nil
}

func (m *MemoryStore) GetOAuthAuthorization(ctx context.Context, userID, clientID int64) (*OAuthAuthorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.oauthAuths[authKey(userID, clientID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) ListOAuthAuthorizationsForUser(ctx context.Context, userID int64) ([]*OAuthAuthorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*OAuthAuthorization
	for _, a := range m.oauthAuths {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) RevokeOAuthAuthorization(ctx context.Context, userID, clientID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := authKey(userID, clientID)
	if _, ok := m.oauthAuths[key]; !ok {
		return ErrNotFound
	}
	delete(m.oauthAuths, key)
	return nil
}

// --- Payouts ---

func (m *MemoryStore) HasPayoutValuesForDate(ctx context.Context, createdDate time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payoutValues {
		if p.CreatedDate.Equal(createdDate) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertPayoutValues(ctx context.Context, rows []*PayoutValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.nextPayoutID++
		row.ID = m.nextPayoutID
		cp := *row
		m.payoutValues = append(m.payoutValues, &cp)
	}
	return nil
}

func (m *MemoryStore) ListAvailablePayoutValues(ctx context.Context, userID int64, asOf time.Time) ([]*PayoutValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PayoutValue
	for _, p := range m.payoutValues {
		if p.UserID == userID && !p.DateAvailable.After(asOf) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordBalanceSnapshot(ctx context.Context, b *PayoutsBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(b.AccountType) + "\x00" + boolKey(b.Pending) + "\x00" + b.RecordedDate.Format("2006-01-02")
	cp := *b
	m.balanceSnaps[key] = &cp
	return nil
}

func (m *MemoryStore) LatestBalanceSnapshot(ctx context.Context, accountType AccountType, pending bool) (*PayoutsBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *PayoutsBalance
	for _, b := range m.balanceSnaps {
		if b.AccountType != accountType || b.Pending != pending {
			continue
		}
		if latest == nil || b.RecordedDate.After(latest.RecordedDate) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// --- Projects, organizations, teams ---

func (m *MemoryStore) ListMonetizedProjects(ctx context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Project
	for _, p := range m.projects {
		if p.MonetizationStatus == MonetizationMonetized && p.Status != ProjectHidden {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) CreateOrganization(ctx context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lower := strings.ToLower(o.Slug)
	for _, existing := range m.organizations {
		if strings.ToLower(existing.Slug) == lower {
			return ErrAlreadyExists
		}
	}
	m.nextOrgID++
	o.ID = m.nextOrgID
	cp := *o
	m.organizations[o.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOrganizationByID(ctx context.Context, id int64) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.organizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ListAcceptedTeamMembers(ctx context.Context, teamID int64) ([]*TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*TeamMember
	for _, tm := range m.teamMembers[teamID] {
		if tm.Accepted {
			cp := *tm
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Withdrawal execution ---

func (m *MemoryStore) CreatePayout(ctx context.Context, p *Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPayoutExecID++
	p.ID = m.nextPayoutExecID
	p.CreatedAt = time.Now()
	cp := *p
	m.payoutExecs[p.ID] = &cp
	return nil
}

func (m *MemoryStore) MarkStaleInTransitPayoutsFailed(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.payoutExecs {
		if p.Status == PayoutInTransit && p.CreatedAt.Before(olderThan) {
			p.Status = PayoutFailed
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(slug)
	for _, p := range m.projects {
		if strings.ToLower(p.Slug) == lower {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListProjectsByIDs(ctx context.Context, ids []int64) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateProject(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lower := strings.ToLower(p.Slug)
	for _, existing := range m.projects {
		if strings.ToLower(existing.Slug) == lower {
			return ErrAlreadyExists
		}
	}
	m.nextProjectID++
	p.ID = m.nextProjectID
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateProject(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteProject(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

// --- Teams ---

func (m *MemoryStore) InviteTeamMember(ctx context.Context, member *TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.teamMembers[member.TeamID] {
		if existing.UserID == member.UserID {
			return ErrAlreadyExists
		}
	}
	cp := *member
	m.teamMembers[member.TeamID] = append(m.teamMembers[member.TeamID], &cp)
	return nil
}

func (m *MemoryStore) AcceptTeamInvite(ctx context.Context, teamID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range m.teamMembers[teamID] {
		if member.UserID == userID {
			member.Accepted = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) UpdateTeamMemberRole(ctx context.Context, teamID, userID int64, role string, split int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range m.teamMembers[teamID] {
		if member.UserID == userID {
			member.Role, member.Split = role, split
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) RemoveTeamMember(ctx context.Context, teamID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.teamMembers[teamID]
	for i, member := range members {
		if member.UserID == userID {
			m.teamMembers[teamID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) UpdateTeamMemberPermissions(ctx context.Context, teamID, userID int64, permissions int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range m.teamMembers[teamID] {
		if member.UserID == userID {
			member.Permissions = permissions
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetTeamMember(ctx context.Context, teamID, userID int64) (*TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.teamMembers[teamID] {
		if member.UserID == userID {
			cp := *member
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// --- Follows ---

func (m *MemoryStore) FollowProject(ctx context.Context, userID, projectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := followKey(userID, projectID)
	if _, ok := m.follows[key]; ok {
		return ErrAlreadyExists
	}
	m.follows[key] = struct{}{}
	if p, ok := m.projects[projectID]; ok {
		p.Followers++
	}
	return nil
}

func (m *MemoryStore) UnfollowProject(ctx context.Context, userID, projectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := followKey(userID, projectID)
	if _, ok := m.follows[key]; !ok {
		return ErrNotFound
	}
	delete(m.follows, key)
	if p, ok := m.projects[projectID]; ok && p.Followers > 0 {
		p.Followers--
	}
	return nil
}

func (m *MemoryStore) IsFollowingProject(ctx context.Context, userID, projectID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.follows[followKey(userID, projectID)]
	return ok, nil
}

func followKey(userID, projectID int64) string {
	return itoa64(userID) + "\x00" + itoa64(projectID)
}

// --- Versions ---

func (m *MemoryStore) CreateVersion(ctx context.Context, v *Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextVersionID++
	v.ID = m.nextVersionID
	cp := *v
	m.versions[v.ID] = &cp
	return nil
}

func (m *MemoryStore) GetVersion(ctx context.Context, id int64) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) ListVersionsForProject(ctx context.Context, projectID int64) ([]*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Version
	for _, v := range m.versions {
		if v.ProjectID == projectID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteVersion(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[id]; !ok {
		return ErrNotFound
	}
	delete(m.versions, id)
	for fileID, f := range m.versionFiles {
		if f.VersionID == id {
			delete(m.versionFiles, fileID)
		}
	}
	return nil
}

func (m *MemoryStore) AddVersionFile(ctx context.Context, f *VersionFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextVersionFileID++
	f.ID = m.nextVersionFileID
	cp := *f
	m.versionFiles[f.ID] = &cp
	return nil
}

func (m *MemoryStore) GetVersionFileByHash(ctx context.Context, algorithm, hash string) (*VersionFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.versionFiles {
		if (algorithm == "sha1" && f.SHA1 == hash) || (algorithm == "sha512" && f.SHA512 == hash) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListVersionFiles(ctx context.Context, versionID int64) ([]*VersionFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*VersionFile
	for _, f := range m.versionFiles {
		if f.VersionID == versionID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordVersionDownload(ctx context.Context, versionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[versionID]
	if !ok {
		return ErrNotFound
	}
	v.Downloads++
	if p, ok := m.projects[v.ProjectID]; ok {
		p.Downloads++
	}
	return nil
}

// --- Collections ---

func (m *MemoryStore) CreateCollection(ctx context.Context, c *Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCollectionID++
	c.ID = m.nextCollectionID
	c.CreatedAt = time.Now()
	cp := *c
	m.collections[c.ID] = &cp
	return nil
}

func (m *MemoryStore) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListCollectionsForUser(ctx context.Context, userID int64) ([]*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Collection
	for _, c := range m.collections {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateCollection(ctx context.Context, c *Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	m.collections[c.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteCollection(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[id]; !ok {
		return ErrNotFound
	}
	delete(m.collections, id)
	return nil
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
