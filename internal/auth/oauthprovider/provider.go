// Package oauthprovider wires third-party login (GitHub, Discord,
// Microsoft, GitLab, Google, PayPal) through golang.org/x/oauth2's
// authorization-code flow, normalizing each provider's profile response
// into a single TempUser shape for internal/auth's oauth_callback.
package oauthprovider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// TempUser is the normalized profile fetched from a provider right after
// token exchange, matching spec.md's oauth_callback contract.
type TempUser struct {
	ProviderUserID string
	Username       string
	Email          string
	AvatarURL      string
	Bio            string
	Country        string
}

// Provider describes one third-party login integration.
type Provider struct {
	Name        string
	Config      oauth2.Config
	ProfileURL  string
	ParseProfile func([]byte) (TempUser, error)
}

// Registry holds the enabled providers, keyed by name.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry builds an empty registry; callers Register each enabled
// provider from config.OAuthConfig at startup.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*Provider)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p *Provider) {
	r.providers[p.Name] = p
}

// Get returns the named provider, or nil if it is not registered/enabled.
func (r *Registry) Get(name string) *Provider {
	return r.providers[name]
}

// AuthCodeURL returns the provider's authorization URL for the given state
// (the flow token key, per spec.md's oauth_init contract).
func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a token and fetches + parses
// the provider's profile in one step.
func (p *Provider) Exchange(ctx context.Context, code string) (TempUser, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return TempUser{}, apperrors.Wrap(apperrors.CodeAuthentication, "exchange oauth code", err)
	}

	client := p.Config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProfileURL, nil)
	if err != nil {
		return TempUser{}, apperrors.Wrap(apperrors.CodeAuthentication, "build profile request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return TempUser{}, apperrors.Wrap(apperrors.CodeAuthentication, "fetch oauth profile", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TempUser{}, apperrors.Wrap(apperrors.CodeAuthentication, "read oauth profile body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return TempUser{}, apperrors.New(apperrors.CodeAuthentication, "oauth profile endpoint returned non-200")
	}

	return p.ParseProfile(body)
}

// decodeProfile unmarshals a provider's raw JSON profile into a generic
// field map so each provider's ParseProfile can pick its own field names.
func decodeProfile(body []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDecoding, "decode oauth profile json", err)
	}
	return m, nil
}

// stringField reads key from m as a string, converting numeric ids (as
// GitHub/GitLab return them) to their decimal string form.
func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return trimFloat(v)
	default:
		return ""
	}
}

func trimFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
