package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hearthforge/backend/internal/captcha"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/email"
	"github.com/hearthforge/backend/internal/storage"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	cfg := config.AuthConfig{
		SessionTTL:        config.Duration{Duration: 14 * 24 * time.Hour},
		OAuthFlowTTL:      config.Duration{Duration: 30 * time.Minute},
		TwoFactorFlowTTL:  config.Duration{Duration: 30 * time.Minute},
		ForgotPasswordTTL: config.Duration{Duration: 24 * time.Hour},
		ConfirmEmailTTL:   config.Duration{Duration: 24 * time.Hour},
		MinPasswordScore:  2,
		Argon2Time:        1,
		Argon2MemoryKiB:   8 * 1024,
		Argon2Parallelism: 2,
		TOTPIssuer:        "HearthForge",
		TOTPReplayTTL:     config.Duration{Duration: 60 * time.Second},
		BackupCodeCount:   6,
	}
	a := NewAuthenticator(store, cfg, email.NewNoopMailer(zerolog.Nop()), captcha.NoopVerifier{})
	return a, store
}

func TestCreateAccountIssuesSessionAndRejectsDuplicateUsername(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	u, token, err := a.CreateAccount(ctx, "fennel", "correct-horse-battery", "fennel@example.com", "ok", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "fennel", u.Username)

	_, _, err = a.CreateAccount(ctx, "Fennel", "another-password1", "other@example.com", "ok", false)
	require.Error(t, err)
}

func TestLoginPasswordRequires2FAWhenEnabled(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	u, _, err := a.CreateAccount(ctx, "ember", "correct-horse-battery", "ember@example.com", "ok", false)
	require.NoError(t, err)

	secret, flowToken, err := a.Begin2FASetup(ctx, u.ID)
	require.NoError(t, err)
	code, err := currentTOTPCode(secret)
	require.NoError(t, err)
	_, err = a.Finish2FASetup(ctx, flowToken, code)
	require.NoError(t, err)

	result, err := a.LoginPassword(ctx, "ember", "correct-horse-battery", "ok")
	require.NoError(t, err)
	require.True(t, result.FlowRequired)
	require.Empty(t, result.SessionToken)
}

func TestLogin2FARejectsReplayedCode(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	u, _, err := a.CreateAccount(ctx, "juniper", "correct-horse-battery", "juniper@example.com", "ok", false)
	require.NoError(t, err)
	secret, flowToken, err := a.Begin2FASetup(ctx, u.ID)
	require.NoError(t, err)
	code, err := currentTOTPCode(secret)
	require.NoError(t, err)
	_, err = a.Finish2FASetup(ctx, flowToken, code)
	require.NoError(t, err)

	login, err := a.LoginPassword(ctx, "juniper", "correct-horse-battery", "ok")
	require.NoError(t, err)
	require.True(t, login.FlowRequired)

	_, err = a.Login2FA(ctx, login.FlowToken, code)
	require.NoError(t, err)

	// Replaying the flow token itself fails since it was consumed; mint a
	// fresh flow to isolate the code-replay check.
	flowToken2, err := a.mintLogin2FAFlow(ctx, u.ID)
	require.NoError(t, err)
	_, err = a.Login2FA(ctx, flowToken2, code)
	require.Error(t, err, "the same TOTP code must not be accepted twice within the replay window")
}

func TestBackupCodeIsSingleUse(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	u, _, err := a.CreateAccount(ctx, "rowan", "correct-horse-battery", "rowan@example.com", "ok", false)
	require.NoError(t, err)
	secret, flowToken, err := a.Begin2FASetup(ctx, u.ID)
	require.NoError(t, err)
	code, err := currentTOTPCode(secret)
	require.NoError(t, err)
	codes, err := a.Finish2FASetup(ctx, flowToken, code)
	require.NoError(t, err)
	require.Len(t, codes, 6)

	flowToken2, err := a.mintLogin2FAFlow(ctx, u.ID)
	require.NoError(t, err)
	_, err = a.Login2FA(ctx, flowToken2, codes[0])
	require.NoError(t, err)

	flowToken3, err := a.mintLogin2FAFlow(ctx, u.ID)
	require.NoError(t, err)
	_, err = a.Login2FA(ctx, flowToken3, codes[0])
	require.Error(t, err, "a consumed backup code must not work again")
}

func TestCreatePATCannotExceedIssuerAuthority(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	u, _, err := a.CreateAccount(ctx, "sable", "correct-horse-battery", "sable@example.com", "ok", false)
	require.NoError(t, err)

	_, _, err = a.CreatePAT(ctx, u.ID, "ci token", storage.ScopeSessionAccess, sessionScopes, nil)
	require.Error(t, err, "SESSION_ACCESS must never be grantable to a PAT")

	token, pat, err := a.CreatePAT(ctx, u.ID, "ci token", storage.ScopeProjectRead|storage.ScopeProjectWrite, sessionScopes, nil)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, pat.Scopes.Has(storage.ScopeProjectRead))
}

func currentTOTPCode(secret string) (string, error) {
	return totp.GenerateCode(secret, time.Now())
}
