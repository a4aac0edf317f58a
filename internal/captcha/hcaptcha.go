// Package captcha verifies hCaptcha challenge responses for the account
// creation, login, and password-reset flows.
package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// Verifier checks a captcha challenge response, returning a Turnstile-coded
// error (spec.md's error kind for captcha failures) on rejection.
type Verifier interface {
	Verify(ctx context.Context, response string) error
}

// HCaptchaVerifier calls the hCaptcha siteverify endpoint.
type HCaptchaVerifier struct {
	secret   string
	verifyURL string
	client   *http.Client
}

// NewHCaptchaVerifier builds a Verifier against hCaptcha's siteverify API.
func NewHCaptchaVerifier(secret, verifyURL string) *HCaptchaVerifier {
	if verifyURL == "" {
		verifyURL = "https://hcaptcha.com/siteverify"
	}
	return &HCaptchaVerifier{secret: secret, verifyURL: verifyURL, client: &http.Client{Timeout: 5 * time.Second}}
}

type siteVerifyResponse struct {
	Success bool `json:"success"`
}

func (v *HCaptchaVerifier) Verify(ctx context.Context, response string) error {
	if response == "" {
		return apperrors.New(apperrors.CodeTurnstile, "missing captcha response")
	}

	form := url.Values{"secret": {v.secret}, "response": {response}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeTurnstile, "build captcha request", err)
	}
	req.URL.RawQuery = form.Encode()

	resp, err := v.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeTurnstile, "call captcha verify endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.CodeTurnstile, "captcha verify endpoint returned "+strconv.Itoa(resp.StatusCode))
	}

	var decoded siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return apperrors.Wrap(apperrors.CodeTurnstile, "decode captcha verify response", err)
	}
	if !decoded.Success {
		return apperrors.New(apperrors.CodeTurnstile, "captcha challenge failed")
	}
	return nil
}

// NoopVerifier always succeeds; used in tests.
type NoopVerifier struct{}

func (NoopVerifier) Verify(ctx context.Context, response string) error { return nil }
