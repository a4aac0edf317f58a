package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL via database/sql + lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool as a Store. The caller
// owns db's lifecycle (opening, pooling, and closing it) — this mirrors the
// shared-pool pattern in internal/dbpool, where one *sql.DB backs multiple
// repositories.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSchema creates HearthForge's tables if they do not already exist.
// It is idempotent and safe to call on every startup.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			password_hash TEXT,
			totp_secret TEXT,
			role TEXT NOT NULL DEFAULT 'developer',
			badges BIGINT NOT NULL DEFAULT 0,
			venmo_handle TEXT,
			stripe_customer_id TEXT,
			avatar_url TEXT,
			raw_avatar_url TEXT,
			allow_friend_requests BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email)) WHERE email IS NOT NULL;

		CREATE TABLE IF NOT EXISTS provider_links (
			user_id BIGINT NOT NULL REFERENCES users(id),
			provider TEXT NOT NULL,
			provider_user_id TEXT NOT NULL,
			paypal_country TEXT,
			paypal_email TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, provider)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_provider_links_identity ON provider_links (provider, provider_user_id);

		CREATE TABLE IF NOT EXISTS backup_codes (
			user_id BIGINT NOT NULL REFERENCES users(id),
			code TEXT NOT NULL,
			PRIMARY KEY (user_id, code)
		);

		CREATE TABLE IF NOT EXISTS flow_tokens (
			token TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			user_id BIGINT,
			provider TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			secret TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			user_agent TEXT NOT NULL DEFAULT '',
			ip_hint TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS personal_access_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			scopes BIGINT NOT NULL,
			last_used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS oauth_clients (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			icon_url TEXT,
			owner_user_id BIGINT NOT NULL REFERENCES users(id),
			secret_hash TEXT NOT NULL,
			redirect_uris TEXT[] NOT NULL,
			max_scopes BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS oauth_authorizations (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			client_id BIGINT NOT NULL REFERENCES oauth_clients(id),
			granted_scopes BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, client_id)
		);

		CREATE TABLE IF NOT EXISTS payout_values (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			project_id BIGINT NOT NULL,
			amount NUMERIC(20,8) NOT NULL,
			created_date DATE NOT NULL,
			date_available DATE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_payout_values_created_date ON payout_values (created_date);
		CREATE INDEX IF NOT EXISTS idx_payout_values_user ON payout_values (user_id);

		CREATE TABLE IF NOT EXISTS payouts_balances (
			account_type TEXT NOT NULL,
			pending BOOLEAN NOT NULL,
			recorded_date DATE NOT NULL,
			amount NUMERIC(20,8) NOT NULL,
			PRIMARY KEY (account_type, pending, recorded_date)
		);

		CREATE TABLE IF NOT EXISTS organizations (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			team_id BIGINT NOT NULL,
			owner_user_id BIGINT NOT NULL REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS projects (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			license TEXT NOT NULL DEFAULT '',
			client_side TEXT NOT NULL DEFAULT 'unknown',
			server_side TEXT NOT NULL DEFAULT 'unknown',
			icon_url TEXT,
			gallery_urls TEXT[] NOT NULL DEFAULT '{}',
			categories TEXT[] NOT NULL DEFAULT '{}',
			downloads BIGINT NOT NULL DEFAULT 0,
			followers BIGINT NOT NULL DEFAULT 0,
			team_id BIGINT NOT NULL,
			organization_id BIGINT REFERENCES organizations(id),
			monetization_status TEXT NOT NULL DEFAULT 'monetized',
			status TEXT NOT NULL DEFAULT 'approved',
			date_published TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_projects_monetization ON projects (monetization_status, status);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_slug_lower ON projects (LOWER(slug));

		CREATE TABLE IF NOT EXISTS mod_follows (
			user_id BIGINT NOT NULL REFERENCES users(id),
			project_id BIGINT NOT NULL REFERENCES projects(id),
			PRIMARY KEY (user_id, project_id)
		);

		CREATE TABLE IF NOT EXISTS versions (
			id BIGSERIAL PRIMARY KEY,
			project_id BIGINT NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			version_number TEXT NOT NULL,
			changelog TEXT NOT NULL DEFAULT '',
			version_type TEXT NOT NULL DEFAULT 'release',
			featured BOOLEAN NOT NULL DEFAULT false,
			downloads BIGINT NOT NULL DEFAULT 0,
			date_published TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_versions_project ON versions (project_id);

		CREATE TABLE IF NOT EXISTS version_files (
			id BIGSERIAL PRIMARY KEY,
			version_id BIGINT NOT NULL REFERENCES versions(id),
			url TEXT NOT NULL,
			filename TEXT NOT NULL,
			size BIGINT NOT NULL,
			sha1 TEXT NOT NULL,
			sha512 TEXT NOT NULL,
			primary_file BOOLEAN NOT NULL DEFAULT false
		);
		CREATE INDEX IF NOT EXISTS idx_version_files_version ON version_files (version_id);
		CREATE INDEX IF NOT EXISTS idx_version_files_sha1 ON version_files (sha1);
		CREATE INDEX IF NOT EXISTS idx_version_files_sha512 ON version_files (sha512);

		CREATE TABLE IF NOT EXISTS collections (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'listed',
			icon_url TEXT,
			project_ids BIGINT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_collections_user ON collections (user_id);

		CREATE TABLE IF NOT EXISTS payouts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount NUMERIC(20,8) NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'in_transit',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_payouts_status_created ON payouts (status, created_at);

		CREATE TABLE IF NOT EXISTS team_members (
			team_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(id),
			role TEXT NOT NULL DEFAULT 'member',
			accepted BOOLEAN NOT NULL DEFAULT false,
			payouts_split BIGINT NOT NULL DEFAULT 0,
			permissions BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (team_id, user_id)
		);
	`)
	return err
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, email_verified, password_hash, totp_secret, role, badges,
			venmo_handle, stripe_customer_id, avatar_url, raw_avatar_url, allow_friend_requests)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.EmailVerified, u.PasswordHash, u.TOTPSecret, string(u.Role), u.Badges,
		u.VenmoHandle, u.StripeCustomerID, u.AvatarURL, u.RawAvatarURL, u.AllowFriendRequests,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.EmailVerified, &u.PasswordHash, &u.TOTPSecret,
		&role, &u.Badges, &u.VenmoHandle, &u.StripeCustomerID, &u.AvatarURL, &u.RawAvatarURL,
		&u.AllowFriendRequests, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return u, nil
}

const userColumns = `id, username, email, email_verified, password_hash, totp_secret, role, badges,
	venmo_handle, stripe_customer_id, avatar_url, raw_avatar_url, allow_friend_requests, created_at, updated_at`

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.scanUser(row)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return s.scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return s.scanUser(row)
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username=$2, email=$3, email_verified=$4, password_hash=$5, totp_secret=$6,
			role=$7, badges=$8, venmo_handle=$9, stripe_customer_id=$10, avatar_url=$11,
			raw_avatar_url=$12, allow_friend_requests=$13, updated_at=now()
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.EmailVerified, u.PasswordHash, u.TOTPSecret, string(u.Role),
		u.Badges, u.VenmoHandle, u.StripeCustomerID, u.AvatarURL, u.RawAvatarURL, u.AllowFriendRequests)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// --- Provider links ---

func (s *PostgresStore) CreateProviderLink(ctx context.Context, link *ProviderLink) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO provider_links (user_id, provider, provider_user_id, paypal_country, paypal_email)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, link.UserID, link.Provider, link.ProviderUserID, link.PayPalCountry, link.PayPalEmail).Scan(&link.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetProviderLink(ctx context.Context, provider, providerUserID string) (*ProviderLink, error) {
	l := &ProviderLink{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, provider, provider_user_id, paypal_country, paypal_email, created_at
		FROM provider_links WHERE provider=$1 AND provider_user_id=$2
	`, provider, providerUserID).Scan(&l.UserID, &l.Provider, &l.ProviderUserID, &l.PayPalCountry, &l.PayPalEmail, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func (s *PostgresStore) ListProviderLinks(ctx context.Context, userID int64) ([]*ProviderLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, provider, provider_user_id, paypal_country, paypal_email, created_at
		FROM provider_links WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ProviderLink
	for rows.Next() {
		l := &ProviderLink{}
		if err := rows.Scan(&l.UserID, &l.Provider, &l.ProviderUserID, &l.PayPalCountry, &l.PayPalEmail, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteProviderLink(ctx context.Context, userID int64, provider string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM provider_links WHERE user_id=$1 AND provider=$2`, userID, provider)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// --- Backup codes ---

func (s *PostgresStore) ReplaceBackupCodes(ctx context.Context, userID int64, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id=$1`, userID); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO backup_codes (user_id, code) VALUES ($1,$2)`, userID, code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ConsumeBackupCode(ctx context.Context, userID int64, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id=$1 AND code=$2`, userID, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStore) CountBackupCodes(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backup_codes WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) DeleteBackupCodes(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id=$1`, userID)
	return err
}

// --- Flow tokens ---

func (s *PostgresStore) CreateFlowToken(ctx context.Context, f *FlowToken) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO flow_tokens (token, kind, user_id, provider, url, secret, email, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, f.Token, string(f.Kind), f.UserID, f.Provider, f.URL, f.Secret, f.Email, f.ExpiresAt).Scan(&f.CreatedAt)
}

func (s *PostgresStore) ConsumeFlowToken(ctx context.Context, token string, now time.Time) (*FlowToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	f := &FlowToken{}
	var kind string
	err = tx.QueryRowContext(ctx, `
		SELECT token, kind, user_id, provider, url, secret, email, created_at, expires_at
		FROM flow_tokens WHERE token=$1 FOR UPDATE
	`, token).Scan(&f.Token, &kind, &f.UserID, &f.Provider, &f.URL, &f.Secret, &f.Email, &f.CreatedAt, &f.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Kind = FlowKind(kind)

	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_tokens WHERE token=$1`, token); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if f.Expired(now) {
		return nil, ErrFlowExpired
	}
	return f, nil
}

func (s *PostgresStore) DeleteExpiredFlowTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flow_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, sess *Session) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (token, user_id, user_agent, ip_hint, expires_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, sess.Token, sess.UserID, sess.UserAgent, sess.IPHint, sess.ExpiresAt).Scan(&sess.CreatedAt)
}

func (s *PostgresStore) GetSession(ctx context.Context, token string) (*Session, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	sess := &Session{}
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, user_agent, ip_hint, created_at, expires_at FROM sessions WHERE token=$1
	`, token).Scan(&sess.Token, &sess.UserID, &sess.UserAgent, &sess.IPHint, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=$1`, token)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) ListSessionsForUser(ctx context.Context, userID int64) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, user_id, user_agent, ip_hint, created_at, expires_at FROM sessions WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.Token, &sess.UserID, &sess.UserAgent, &sess.IPHint, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Personal access tokens ---

func (s *PostgresStore) CreatePAT(ctx context.Context, p *PAT) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO personal_access_tokens (user_id, name, token_hash, scopes, expires_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, p.UserID, p.Name, p.TokenHash, uint64(p.Scopes), p.ExpiresAt).Scan(&p.ID, &p.CreatedAt)
}

func (s *PostgresStore) scanPAT(row interface {
	Scan(dest ...interface{}) error
}) (*PAT, error) {
	p := &PAT{}
	var scopes int64
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.TokenHash, &scopes, &p.LastUsedAt, &p.CreatedAt, &p.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Scopes = Scope(scopes)
	return p, nil
}

const patColumns = `id, user_id, name, token_hash, scopes, last_used_at, created_at, expires_at`

func (s *PostgresStore) GetPATByHash(ctx context.Context, tokenHash string) (*PAT, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT `+patColumns+` FROM personal_access_tokens WHERE token_hash=$1`, tokenHash)
	return s.scanPAT(row)
}

func (s *PostgresStore) ListPATs(ctx context.Context, userID int64) ([]*PAT, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+patColumns+` FROM personal_access_tokens WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PAT
	for rows.Next() {
		p, err := s.scanPAT(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RevokePAT(ctx context.Context, id int64, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personal_access_tokens WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) TouchPATLastUsed(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE personal_access_tokens SET last_used_at=$2 WHERE id=$1`, id, now)
	return err
}

// --- OAuth clients & authorizations ---

func (s *PostgresStore) CreateOAuthClient(ctx context.Context, c *OAuthClient) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO oauth_clients (name, icon_url, owner_user_id, secret_hash, redirect_uris, max_scopes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, c.Name, c.IconURL, c.OwnerUserID, c.SecretHash, pq.Array(c.RedirectURIs), uint64(c.MaxScopes)).Scan(&c.ID, &c.CreatedAt)
}

func (s *PostgresStore) GetOAuthClient(ctx context.Context, id int64) (*OAuthClient, error) {
	c := &OAuthClient{}
	var maxScopes int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, icon_url, owner_user_id, secret_hash, redirect_uris, max_scopes, created_at
		FROM oauth_clients WHERE id=$1
	`, id).Scan(&c.ID, &c.Name, &c.IconURL, &c.OwnerUserID, &c.SecretHash, pq.Array(&c.RedirectURIs), &maxScopes, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.MaxScopes = Scope(maxScopes)
	return c, nil
}

func (s *PostgresStore) ListOAuthClientsForOwner(ctx context.Context, ownerUserID int64) ([]*OAuthClient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, icon_url, owner_user_id, secret_hash, redirect_uris, max_scopes, created_at
		FROM oauth_clients WHERE owner_user_id=$1
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*OAuthClient
	for rows.Next() {
		c := &OAuthClient{}
		var maxScopes int64
		if err := rows.Scan(&c.ID, &c.Name, &c.IconURL, &c.OwnerUserID, &c.SecretHash, pq.Array(&c.RedirectURIs), &maxScopes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.MaxScopes = Scope(maxScopes)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteOAuthClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_clients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) CreateOAuthAuthorization(ctx context.Context, a *OAuthAuthorization) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO oauth_authorizations (user_id, client_id, granted_scopes)
		VALUES ($1,$2,$3)
		RETURNING id, created_at
	`, a.UserID, a.ClientID, uint64(a.GrantedScopes)).Scan(&a.ID, &a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetOAuthAuthorization(ctx context.Context, userID, clientID int64) (*OAuthAuthorization, error) {
	a := &OAuthAuthorization{}
	var scopes int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, granted_scopes, created_at
		FROM oauth_authorizations WHERE user_id=$1 AND client_id=$2
	`, userID, clientID).Scan(&a.ID, &a.UserID, &a.ClientID, &scopes, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.GrantedScopes = Scope(scopes)
	return a, nil
}

func (s *PostgresStore) ListOAuthAuthorizationsForUser(ctx context.Context, userID int64) ([]*OAuthAuthorization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, client_id, granted_scopes, created_at FROM oauth_authorizations WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*OAuthAuthorization
	for rows.Next() {
		a := &OAuthAuthorization{}
		var scopes int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.ClientID, &scopes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.GrantedScopes = Scope(scopes)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RevokeOAuthAuthorization(ctx context.Context, userID, clientID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_authorizations WHERE user_id=$1 AND client_id=$2`, userID, clientID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// --- Payouts ---

func (s *PostgresStore) HasPayoutValuesForDate(ctx context.Context, createdDate time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payout_values WHERE created_date=$1`, createdDate).Scan(&n)
	return n > 0, err
}

func (s *PostgresStore) InsertPayoutValues(ctx context.Context, rows []*PayoutValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, row := range rows {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO payout_values (user_id, project_id, amount, created_date, date_available)
			VALUES ($1,$2,$3,$4,$5) RETURNING id
		`, row.UserID, row.ProjectID, row.Amount, row.CreatedDate, row.DateAvailable).Scan(&row.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ListAvailablePayoutValues(ctx context.Context, userID int64, asOf time.Time) ([]*PayoutValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, amount, created_date, date_available
		FROM payout_values WHERE user_id=$1 AND date_available <= $2
	`, userID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PayoutValue
	for rows.Next() {
		p := &PayoutValue{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProjectID, &p.Amount, &p.CreatedDate, &p.DateAvailable); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordBalanceSnapshot(ctx context.Context, b *PayoutsBalance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payouts_balances (account_type, pending, recorded_date, amount)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (account_type, pending, recorded_date) DO UPDATE SET amount=EXCLUDED.amount
	`, string(b.AccountType), b.Pending, b.RecordedDate, b.Amount)
	return err
}

func (s *PostgresStore) LatestBalanceSnapshot(ctx context.Context, accountType AccountType, pending bool) (*PayoutsBalance, error) {
	b := &PayoutsBalance{AccountType: accountType, Pending: pending}
	err := s.db.QueryRowContext(ctx, `
		SELECT recorded_date, amount FROM payouts_balances
		WHERE account_type=$1 AND pending=$2 ORDER BY recorded_date DESC LIMIT 1
	`, string(accountType), pending).Scan(&b.RecordedDate, &b.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// --- Projects, organizations, teams ---

const projectColumns = `id, slug, name, description, body, license, client_side, server_side, icon_url,
	gallery_urls, categories, downloads, followers, team_id, organization_id, monetization_status,
	status, date_published, created_at, updated_at`

func (s *PostgresStore) scanProject(row interface{ Scan(dest ...interface{}) error }) (*Project, error) {
	p := &Project{}
	var monetization, status string
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Body, &p.License, &p.ClientSide, &p.ServerSide,
		&p.IconURL, pq.Array(&p.GalleryURLs), pq.Array(&p.Categories), &p.Downloads, &p.Followers,
		&p.TeamID, &p.OrganizationID, &monetization, &status, &p.DatePublished, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.MonetizationStatus, p.Status = MonetizationStatus(monetization), ProjectStatus(status)
	return p, nil
}

func (s *PostgresStore) ListMonetizedProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE monetization_status = 'monetized' AND status != 'rejected'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Project
	for rows.Next() {
		p, err := s.scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	return s.scanProject(row)
}

func (s *PostgresStore) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE LOWER(slug)=LOWER($1)`, slug)
	return s.scanProject(row)
}

func (s *PostgresStore) ListProjectsByIDs(ctx context.Context, ids []int64) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Project
	for rows.Next() {
		p, err := s.scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (slug, name, description, body, license, client_side, server_side, icon_url,
			gallery_urls, categories, team_id, organization_id, monetization_status, status, date_published)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, created_at, updated_at
	`, p.Slug, p.Name, p.Description, p.Body, p.License, p.ClientSide, p.ServerSide, p.IconURL,
		pq.Array(p.GalleryURLs), pq.Array(p.Categories), p.TeamID, p.OrganizationID,
		string(p.MonetizationStatus), string(p.Status), p.DatePublished).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p *Project) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET slug=$2, name=$3, description=$4, body=$5, license=$6, client_side=$7,
			server_side=$8, icon_url=$9, gallery_urls=$10, categories=$11, organization_id=$12,
			monetization_status=$13, status=$14, date_published=$15, updated_at=now()
		WHERE id=$1
	`, p.ID, p.Slug, p.Name, p.Description, p.Body, p.License, p.ClientSide, p.ServerSide, p.IconURL,
		pq.Array(p.GalleryURLs), pq.Array(p.Categories), p.OrganizationID,
		string(p.MonetizationStatus), string(p.Status), p.DatePublished)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, o *Organization) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO organizations (slug, team_id, owner_user_id)
		VALUES ($1,$2,$3)
		RETURNING id
	`, o.Slug, o.TeamID, o.OwnerUserID).Scan(&o.ID)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetOrganizationByID(ctx context.Context, id int64) (*Organization, error) {
	o := &Organization{}
	err := s.db.QueryRowContext(ctx, `SELECT id, slug, team_id, owner_user_id FROM organizations WHERE id=$1`, id).
		Scan(&o.ID, &o.Slug, &o.TeamID, &o.OwnerUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *PostgresStore) ListAcceptedTeamMembers(ctx context.Context, teamID int64) ([]*TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, user_id, role, accepted, payouts_split, permissions FROM team_members
		WHERE team_id=$1 AND accepted=true
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*TeamMember
	for rows.Next() {
		tm := &TeamMember{}
		if err := rows.Scan(&tm.TeamID, &tm.UserID, &tm.Role, &tm.Accepted, &tm.Split, &tm.Permissions); err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InviteTeamMember(ctx context.Context, member *TeamMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role, accepted, payouts_split, permissions) VALUES ($1,$2,$3,$4,$5,$6)
	`, member.TeamID, member.UserID, member.Role, member.Accepted, member.Split, member.Permissions)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) AcceptTeamInvite(ctx context.Context, teamID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE team_members SET accepted=true WHERE team_id=$1 AND user_id=$2
	`, teamID, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) UpdateTeamMemberRole(ctx context.Context, teamID, userID int64, role string, split int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE team_members SET role=$3, payouts_split=$4 WHERE team_id=$1 AND user_id=$2
	`, teamID, userID, role, split)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) UpdateTeamMemberPermissions(ctx context.Context, teamID, userID int64, permissions int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE team_members SET permissions=$3 WHERE team_id=$1 AND user_id=$2
	`, teamID, userID, permissions)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) GetTeamMember(ctx context.Context, teamID, userID int64) (*TeamMember, error) {
	tm := &TeamMember{}
	err := s.db.QueryRowContext(ctx, `
		SELECT team_id, user_id, role, accepted, payouts_split, permissions FROM team_members
		WHERE team_id=$1 AND user_id=$2
	`, teamID, userID).Scan(&tm.TeamID, &tm.UserID, &tm.Role, &tm.Accepted, &tm.Split, &tm.Permissions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tm, err
}

func (s *PostgresStore) RemoveTeamMember(ctx context.Context, teamID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM team_members WHERE team_id=$1 AND user_id=$2`, teamID, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// --- Follows ---

func (s *PostgresStore) FollowProject(ctx context.Context, userID, projectID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO mod_follows (user_id, project_id) VALUES ($1,$2)`, userID, projectID)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET followers = followers + 1 WHERE id=$1`, projectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) UnfollowProject(ctx context.Context, userID, projectID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM mod_follows WHERE user_id=$1 AND project_id=$2`, userID, projectID)
	if err != nil {
		return err
	}
	if err := requireRowAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET followers = GREATEST(followers - 1, 0) WHERE id=$1`, projectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) IsFollowingProject(ctx context.Context, userID, projectID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mod_follows WHERE user_id=$1 AND project_id=$2`, userID, projectID).Scan(&n)
	return n > 0, err
}

// --- Versions ---

func (s *PostgresStore) CreateVersion(ctx context.Context, v *Version) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO versions (project_id, name, version_number, changelog, version_type, featured)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, date_published
	`, v.ProjectID, v.Name, v.VersionNumber, v.Changelog, string(v.VersionType), v.Featured).Scan(&v.ID, &v.DatePublished)
}

func (s *PostgresStore) GetVersion(ctx context.Context, id int64) (*Version, error) {
	v := &Version{}
	var vtype string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, version_number, changelog, version_type, featured, downloads, date_published
		FROM versions WHERE id=$1
	`, id).Scan(&v.ID, &v.ProjectID, &v.Name, &v.VersionNumber, &v.Changelog, &vtype, &v.Featured, &v.Downloads, &v.DatePublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.VersionType = VersionType(vtype)
	return v, nil
}

func (s *PostgresStore) ListVersionsForProject(ctx context.Context, projectID int64) ([]*Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, version_number, changelog, version_type, featured, downloads, date_published
		FROM versions WHERE project_id=$1 ORDER BY date_published DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Version
	for rows.Next() {
		v := &Version{}
		var vtype string
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.Name, &v.VersionNumber, &v.Changelog, &vtype, &v.Featured, &v.Downloads, &v.DatePublished); err != nil {
			return nil, err
		}
		v.VersionType = VersionType(vtype)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteVersion(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM version_files WHERE version_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireRowAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) AddVersionFile(ctx context.Context, f *VersionFile) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO version_files (version_id, url, filename, size, sha1, sha512, primary_file)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, f.VersionID, f.URL, f.Filename, f.Size, f.SHA1, f.SHA512, f.Primary).Scan(&f.ID)
}

func (s *PostgresStore) GetVersionFileByHash(ctx context.Context, algorithm, hash string) (*VersionFile, error) {
	column := "sha1"
	if algorithm == "sha512" {
		column = "sha512"
	}
	f := &VersionFile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, version_id, url, filename, size, sha1, sha512, primary_file FROM version_files WHERE `+column+`=$1
	`, hash).Scan(&f.ID, &f.VersionID, &f.URL, &f.Filename, &f.Size, &f.SHA1, &f.SHA512, &f.Primary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *PostgresStore) ListVersionFiles(ctx context.Context, versionID int64) ([]*VersionFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version_id, url, filename, size, sha1, sha512, primary_file FROM version_files WHERE version_id=$1
	`, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*VersionFile
	for rows.Next() {
		f := &VersionFile{}
		if err := rows.Scan(&f.ID, &f.VersionID, &f.URL, &f.Filename, &f.Size, &f.SHA1, &f.SHA512, &f.Primary); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordVersionDownload(ctx context.Context, versionID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var projectID int64
	if err := tx.QueryRowContext(ctx, `
		UPDATE versions SET downloads = downloads + 1 WHERE id=$1 RETURNING project_id
	`, versionID).Scan(&projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET downloads = downloads + 1 WHERE id=$1`, projectID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Collections ---

func (s *PostgresStore) CreateCollection(ctx context.Context, c *Collection) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO collections (user_id, name, description, status, icon_url, project_ids)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, c.UserID, c.Name, c.Description, string(c.Status), c.IconURL, pq.Array(c.ProjectIDs)).Scan(&c.ID, &c.CreatedAt)
}

func (s *PostgresStore) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	c := &Collection{}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, status, icon_url, project_ids, created_at FROM collections WHERE id=$1
	`, id).Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &status, &c.IconURL, pq.Array(&c.ProjectIDs), &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Status = CollectionStatus(status)
	return c, nil
}

func (s *PostgresStore) ListCollectionsForUser(ctx context.Context, userID int64) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, status, icon_url, project_ids, created_at
		FROM collections WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Collection
	for rows.Next() {
		c := &Collection{}
		var status string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &status, &c.IconURL, pq.Array(&c.ProjectIDs), &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Status = CollectionStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateCollection(ctx context.Context, c *Collection) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE collections SET name=$2, description=$3, status=$4, icon_url=$5, project_ids=$6 WHERE id=$1
	`, c.ID, c.Name, c.Description, string(c.Status), c.IconURL, pq.Array(c.ProjectIDs))
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// --- Withdrawal execution ---

func (s *PostgresStore) CreatePayout(ctx context.Context, p *Payout) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO payouts (user_id, amount, method, status) VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, p.UserID, p.Amount, p.Method, string(p.Status)).Scan(&p.ID, &p.CreatedAt)
}

func (s *PostgresStore) MarkStaleInTransitPayoutsFailed(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET status='failed' WHERE status='in_transit' AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
