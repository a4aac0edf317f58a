// Package auth implements HearthForge's credential, session, flow-token,
// 2FA, and PAT core (spec.md §4.C), consuming internal/storage for
// persistence and internal/email + internal/captcha for the side effects
// account operations trigger.
package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthforge/backend/internal/captcha"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/email"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/logger"
	"github.com/hearthforge/backend/internal/storage"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,39}$`)
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Authenticator implements every operation in spec.md §4.C. It holds no
// request-scoped state; one instance serves the whole process.
type Authenticator struct {
	store   storage.Store
	cfg     config.AuthConfig
	mailer  email.Mailer
	captcha captcha.Verifier
	replay  *ReplayCache
}

// NewAuthenticator wires an Authenticator from its dependencies.
func NewAuthenticator(store storage.Store, cfg config.AuthConfig, mailer email.Mailer, verifier captcha.Verifier) *Authenticator {
	return &Authenticator{
		store:   store,
		cfg:     cfg,
		mailer:  mailer,
		captcha: verifier,
		replay:  NewReplayCache(cfg.TOTPReplayTTL.Duration),
	}
}

func (a *Authenticator) argon2Params() Argon2Params {
	return Argon2Params{
		Time:        a.cfg.Argon2Time,
		MemoryKiB:   a.cfg.Argon2MemoryKiB,
		Parallelism: a.cfg.Argon2Parallelism,
		KeyLength:   DefaultArgon2Params.KeyLength,
		SaltLength:  DefaultArgon2Params.SaltLength,
	}
}

// CreateAccount implements spec.md's create_account.
func (a *Authenticator) CreateAccount(ctx context.Context, username, password, emailAddr, captchaChallenge string, subscribeNewsletter bool) (*storage.User, string, error) {
	if err := a.captcha.Verify(ctx, captchaChallenge); err != nil {
		return nil, "", err
	}
	if !usernamePattern.MatchString(username) {
		return nil, "", apperrors.New(apperrors.CodeInvalidInput, "username must match ^[A-Za-z0-9_-]{1,39}$")
	}
	if len(password) < 8 || len(password) > 256 {
		return nil, "", apperrors.New(apperrors.CodeInvalidInput, "password must be 8-256 characters")
	}
	if emailAddr != "" && !emailPattern.MatchString(emailAddr) {
		return nil, "", apperrors.New(apperrors.CodeInvalidInput, "invalid email address")
	}

	if _, err := a.store.GetUserByUsername(ctx, username); err == nil {
		return nil, "", apperrors.New(apperrors.CodeInvalidInput, "username already taken")
	}
	if emailAddr != "" {
		if _, err := a.store.GetUserByEmail(ctx, emailAddr); err == nil {
			return nil, "", apperrors.New(apperrors.CodeInvalidInput, "email already registered")
		}
	}

	if score := PasswordScore(password, username, emailAddr); score < a.cfg.MinPasswordScore {
		return nil, "", apperrors.New(apperrors.CodeValidation, "password is too weak")
	}

	hash, err := HashPassword(password, a.argon2Params())
	if err != nil {
		return nil, "", err
	}

	u := &storage.User{
		Username:            username,
		PasswordHash:        &hash,
		Role:                storage.RoleDeveloper,
		AllowFriendRequests: true,
	}
	if emailAddr != "" {
		u.Email = &emailAddr
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeDatabase, "create user", err)
	}

	sessionToken, err := a.issueSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}

	if emailAddr != "" {
		if err := a.sendConfirmEmail(ctx, u.ID, emailAddr); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("auth.confirm_email_send_failed")
		}
		if subscribeNewsletter {
			zerolog.Ctx(ctx).Info().Str("email", logger.RedactEmail(emailAddr)).Msg("auth.newsletter_subscribe")
		}
	}

	return u, sessionToken, nil
}

func (a *Authenticator) sendConfirmEmail(ctx context.Context, userID int64, emailAddr string) error {
	token, err := NewFlowToken()
	if err != nil {
		return err
	}
	now := time.Now()
	f := &storage.FlowToken{
		Token: token, Kind: storage.FlowConfirmEmail, UserID: &userID, Email: emailAddr,
		ExpiresAt: now.Add(a.cfg.ConfirmEmailTTL.Duration),
	}
	if err := a.store.CreateFlowToken(ctx, f); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "create confirm-email flow token", err)
	}
	return a.mailer.Send(ctx, emailAddr, "Confirm your email", "Confirm your email: flow="+token)
}

// LoginResult distinguishes an issued session from a required 2FA step.
type LoginResult struct {
	SessionToken string
	FlowRequired bool
	FlowToken    string
}

// LoginPassword implements spec.md's login_password.
func (a *Authenticator) LoginPassword(ctx context.Context, usernameOrEmail, password, captchaChallenge string) (*LoginResult, error) {
	if err := a.captcha.Verify(ctx, captchaChallenge); err != nil {
		return nil, err
	}

	u, err := a.resolveLoginUser(ctx, usernameOrEmail)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeAuthentication, "invalid credentials")
	}
	if u.PasswordHash == nil {
		return nil, apperrors.New(apperrors.CodeAuthentication, "invalid credentials")
	}
	ok, err := VerifyPassword(password, *u.PasswordHash)
	if err != nil || !ok {
		return nil, apperrors.New(apperrors.CodeAuthentication, "invalid credentials")
	}

	if u.TOTPSecret != nil {
		flowToken, err := a.mintLogin2FAFlow(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		return &LoginResult{FlowRequired: true, FlowToken: flowToken}, nil
	}

	token, err := a.issueSession(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{SessionToken: token}, nil
}

// resolveLoginUser implements the username-then-email resolution rule
// shared by login_password and begin_password_reset: case-insensitive
// username match first, else case-insensitive email match. Both stores keep
// emails unique case-insensitively, so the email lookup returns at most one
// user.
func (a *Authenticator) resolveLoginUser(ctx context.Context, usernameOrEmail string) (*storage.User, error) {
	if u, err := a.store.GetUserByUsername(ctx, usernameOrEmail); err == nil {
		return u, nil
	}
	u, err := a.store.GetUserByEmail(ctx, usernameOrEmail)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	if u.Email != nil && *u.Email != usernameOrEmail && !strings.EqualFold(*u.Email, usernameOrEmail) {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (a *Authenticator) mintLogin2FAFlow(ctx context.Context, userID int64) (string, error) {
	token, err := NewFlowToken()
	if err != nil {
		return "", err
	}
	f := &storage.FlowToken{
		Token: token, Kind: storage.FlowLogin2FA, UserID: &userID,
		ExpiresAt: time.Now().Add(a.cfg.TwoFactorFlowTTL.Duration),
	}
	if err := a.store.CreateFlowToken(ctx, f); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDatabase, "create login-2fa flow token", err)
	}
	return token, nil
}

func (a *Authenticator) issueSession(ctx context.Context, userID int64) (string, error) {
	token, err := NewSessionToken()
	if err != nil {
		return "", err
	}
	sess := &storage.Session{
		Token: token, UserID: userID,
		ExpiresAt: time.Now().Add(a.cfg.SessionTTL.Duration),
	}
	if err := a.store.CreateSession(ctx, sess); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDatabase, "create session", err)
	}
	return token, nil
}

// Login2FA implements spec.md's login_2fa.
func (a *Authenticator) Login2FA(ctx context.Context, flowToken, code string) (string, error) {
	f, err := a.store.ConsumeFlowToken(ctx, flowToken, time.Now())
	if err != nil || f.Kind != storage.FlowLogin2FA || f.UserID == nil {
		return "", apperrors.New(apperrors.CodeAuthentication, "invalid or expired 2fa flow")
	}

	u, err := a.store.GetUserByID(ctx, *f.UserID)
	if err != nil {
		return "", apperrors.New(apperrors.CodeAuthentication, "invalid or expired 2fa flow")
	}

	accepted := false
	if u.TOTPSecret != nil && ValidateTOTPCode(*u.TOTPSecret, code) {
		if a.replay.CheckAndMark(u.ID, code) {
			return "", apperrors.New(apperrors.CodeAuthentication, "code already used")
		}
		accepted = true
	}
	if !accepted {
		consumed, err := a.store.ConsumeBackupCode(ctx, u.ID, code)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeDatabase, "consume backup code", err)
		}
		accepted = consumed
	}
	if !accepted {
		return "", apperrors.New(apperrors.CodeAuthentication, "invalid 2fa code")
	}

	return a.issueSession(ctx, u.ID)
}

// Begin2FASetup implements spec.md's begin_2fa_setup.
func (a *Authenticator) Begin2FASetup(ctx context.Context, userID int64) (secret, flowToken string, err error) {
	u, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if u.TOTPSecret != nil {
		return "", "", apperrors.New(apperrors.CodeInvalidInput, "2fa already enabled")
	}

	secret, err = GenerateTOTPSecret(a.cfg.TOTPIssuer, u.Username)
	if err != nil {
		return "", "", err
	}
	flowToken, err = NewFlowToken()
	if err != nil {
		return "", "", err
	}
	f := &storage.FlowToken{
		Token: flowToken, Kind: storage.FlowInitialize2FA, UserID: &userID, Secret: secret,
		ExpiresAt: time.Now().Add(a.cfg.TwoFactorFlowTTL.Duration),
	}
	if err := a.store.CreateFlowToken(ctx, f); err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeDatabase, "create initialize-2fa flow token", err)
	}
	return secret, flowToken, nil
}

// Finish2FASetup implements spec.md's finish_2fa_setup.
func (a *Authenticator) Finish2FASetup(ctx context.Context, flowToken, code string) ([]string, error) {
	f, err := a.store.ConsumeFlowToken(ctx, flowToken, time.Now())
	if err != nil || f.Kind != storage.FlowInitialize2FA || f.UserID == nil {
		return nil, apperrors.New(apperrors.CodeAuthentication, "invalid or expired 2fa setup flow")
	}
	if !ValidateTOTPCode(f.Secret, code) {
		return nil, apperrors.New(apperrors.CodeAuthentication, "invalid 2fa code")
	}

	u, err := a.store.GetUserByID(ctx, *f.UserID)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	secret := f.Secret
	u.TOTPSecret = &secret
	if err := a.store.UpdateUser(ctx, u); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabase, "persist totp secret", err)
	}

	codes, err := GenerateBackupCodes(a.cfg.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	if err := a.store.ReplaceBackupCodes(ctx, u.ID, codes); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabase, "persist backup codes", err)
	}

	if u.Email != nil {
		if err := a.mailer.Send(ctx, *u.Email, "Two-factor authentication enabled", "2FA was just enabled on your account."); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("auth.2fa_notify_failed")
		}
	}

	return codes, nil
}

// Remove2FA implements spec.md's remove_2fa.
func (a *Authenticator) Remove2FA(ctx context.Context, userID int64, code string) error {
	u, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if u.TOTPSecret == nil {
		return apperrors.New(apperrors.CodeInvalidInput, "2fa not enabled")
	}

	valid := ValidateTOTPCode(*u.TOTPSecret, code)
	if !valid {
		consumed, err := a.store.ConsumeBackupCode(ctx, userID, code)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDatabase, "consume backup code", err)
		}
		valid = consumed
	}
	if !valid {
		return apperrors.New(apperrors.CodeAuthentication, "invalid 2fa code")
	}

	u.TOTPSecret = nil
	if err := a.store.UpdateUser(ctx, u); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "clear totp secret", err)
	}
	if err := a.store.DeleteBackupCodes(ctx, userID); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "delete backup codes", err)
	}
	if u.Email != nil {
		if err := a.mailer.Send(ctx, *u.Email, "Two-factor authentication removed", "2FA was just removed from your account."); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("auth.2fa_remove_notify_failed")
		}
	}
	return nil
}

// BeginPasswordReset implements spec.md's begin_password_reset. It always
// succeeds from the caller's point of view to avoid user enumeration.
func (a *Authenticator) BeginPasswordReset(ctx context.Context, usernameOrEmail, captchaChallenge string) error {
	if err := a.captcha.Verify(ctx, captchaChallenge); err != nil {
		return err
	}

	u, err := a.resolveLoginUser(ctx, usernameOrEmail)
	if err != nil || u.Email == nil {
		return nil
	}

	token, err := NewFlowToken()
	if err != nil {
		return nil
	}
	f := &storage.FlowToken{
		Token: token, Kind: storage.FlowForgotPassword, UserID: &u.ID,
		ExpiresAt: time.Now().Add(a.cfg.ForgotPasswordTTL.Duration),
	}
	if err := a.store.CreateFlowToken(ctx, f); err != nil {
		return nil
	}
	_ = a.mailer.Send(ctx, *u.Email, "Reset your password", "Reset your password: flow="+token)
	return nil
}

// ChangePassword implements spec.md's change_password. Exactly one of
// flowToken or (userID with oldPassword) must be supplied by the caller.
func (a *Authenticator) ChangePassword(ctx context.Context, flowToken string, userID int64, oldPassword string, newPassword *string) error {
	var u *storage.User
	var err error

	if flowToken != "" {
		f, ferr := a.store.ConsumeFlowToken(ctx, flowToken, time.Now())
		if ferr != nil || f.Kind != storage.FlowForgotPassword || f.UserID == nil {
			return apperrors.New(apperrors.CodeAuthentication, "invalid or expired password reset flow")
		}
		u, err = a.store.GetUserByID(ctx, *f.UserID)
	} else {
		u, err = a.store.GetUserByID(ctx, userID)
		if err == nil {
			if u.PasswordHash == nil {
				return apperrors.New(apperrors.CodeAuthentication, "no password set")
			}
			ok, verr := VerifyPassword(oldPassword, *u.PasswordHash)
			if verr != nil || !ok {
				return apperrors.New(apperrors.CodeAuthentication, "invalid current password")
			}
		}
	}
	if err != nil {
		return apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	if newPassword == nil {
		links, lerr := a.store.ListProviderLinks(ctx, u.ID)
		if lerr != nil {
			return apperrors.Wrap(apperrors.CodeDatabase, "list provider links", lerr)
		}
		if len(links) == 0 {
			return apperrors.New(apperrors.CodeInvalidInput, "removing the last authenticator is not allowed")
		}
		u.PasswordHash = nil
	} else {
		email := ""
		if u.Email != nil {
			email = *u.Email
		}
		if score := PasswordScore(*newPassword, u.Username, email); score < a.cfg.MinPasswordScore {
			return apperrors.New(apperrors.CodeValidation, "password is too weak")
		}
		hash, herr := HashPassword(*newPassword, a.argon2Params())
		if herr != nil {
			return herr
		}
		u.PasswordHash = &hash
	}

	if err := a.store.UpdateUser(ctx, u); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "persist password change", err)
	}
	if u.Email != nil {
		if err := a.mailer.Send(ctx, *u.Email, "Your password was changed", "Your account password was just changed."); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("auth.password_change_notify_failed")
		}
	}
	return nil
}
