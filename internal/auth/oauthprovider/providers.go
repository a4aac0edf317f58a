package oauthprovider

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/hearthforge/backend/internal/config"
)

// BuildRegistry constructs a Registry from every enabled provider in cfg,
// using each provider's well-known OAuth2 endpoints and profile URL.
func BuildRegistry(cfg config.OAuthConfig, redirectBaseURL string) *Registry {
	r := NewRegistry()
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		switch name {
		case "github":
			r.Register(&Provider{
				Name: name,
				Config: oauth2.Config{
					ClientID: p.ClientID, ClientSecret: p.ClientSecret,
					Endpoint:    endpoints.GitHub,
					Scopes:      []string{"read:user", "user:email"},
					RedirectURL: redirectBaseURL + "/v3/auth/callback/github",
				},
				ProfileURL:   "https://api.github.com/user",
				ParseProfile: parseGitHub,
			})
		case "discord":
			r.Register(&Provider{
				Name: name,
				Config: oauth2.Config{
					ClientID: p.ClientID, ClientSecret: p.ClientSecret,
					Endpoint: oauth2.Endpoint{
						AuthURL:  "https://discord.com/api/oauth2/authorize",
						TokenURL: "https://discord.com/api/oauth2/token",
					},
					Scopes:      []string{"identify", "email"},
					RedirectURL: redirectBaseURL + "/v3/auth/callback/discord",
				},
				ProfileURL:   "https://discord.com/api/users/@me",
				ParseProfile: parseDiscord,
			})
		case "microsoft":
			r.Register(&Provider{
				Name: name,
				Config: oauth2.Config{
					ClientID: p.ClientID, ClientSecret: p.ClientSecret,
					Endpoint:    endpoints.Microsoft,
					Scopes:      []string{"User.Read"},
					RedirectURL: redirectBaseURL + "/v3/auth/callback/microsoft",
				},
				ProfileURL:   "https://graph.microsoft.com/v1.0/me",
				ParseProfile: parseMicrosoft,
			})
		case "gitlab":
			r.Register(&Provider{
				Name: name,
				Config: oauth2.Config{
					ClientID: p.ClientID, ClientSecret: p.ClientSecret,
					Endpoint:    endpoints.GitLab,
					Scopes:      []string{"read_user"},
					RedirectURL: redirectBaseURL + "/v3/auth/callback/gitlab",
				},
				ProfileURL:   "https://gitlab.com/api/v4/user",
				ParseProfile: parseGitLab,
			})
		case "google":
			r.Register(&Provider{
				Name: name,
				Config: oauth2.Config{
					ClientID: p.ClientID, ClientSecret: p.ClientSecret,
					Endpoint:    endpoints.Google,
					Scopes:      []string{"openid", "email", "profile"},
					RedirectURL: redirectBaseURL + "/v3/auth/callback/google",
				},
				ProfileURL:   "https://www.googleapis.com/oauth2/v2/userinfo",
				ParseProfile: parseGoogle,
			})
		case "paypal":
			r.Register(&Provider{
				Name: name,
				Config: oauth2.Config{
					ClientID: p.ClientID, ClientSecret: p.ClientSecret,
					Endpoint: oauth2.Endpoint{
						AuthURL:  "https://www.paypal.com/signin/authorize",
						TokenURL: "https://api-m.paypal.com/v1/oauth2/token",
					},
					Scopes:      []string{"openid", "email"},
					RedirectURL: redirectBaseURL + "/v3/auth/callback/paypal",
				},
				ProfileURL:   "https://api-m.paypal.com/v1/identity/oauth2/userinfo?schema=openid",
				ParseProfile: parsePayPal,
			})
		}
	}
	return r
}

func parseGitHub(body []byte) (TempUser, error) {
	m, err := decodeProfile(body)
	if err != nil {
		return TempUser{}, err
	}
	return TempUser{
		ProviderUserID: stringField(m, "id"),
		Username:       stringField(m, "login"),
		Email:          stringField(m, "email"),
		AvatarURL:      stringField(m, "avatar_url"),
		Bio:            stringField(m, "bio"),
	}, nil
}

func parseDiscord(body []byte) (TempUser, error) {
	m, err := decodeProfile(body)
	if err != nil {
		return TempUser{}, err
	}
	return TempUser{
		ProviderUserID: stringField(m, "id"),
		Username:       stringField(m, "username"),
		Email:          stringField(m, "email"),
	}, nil
}

func parseMicrosoft(body []byte) (TempUser, error) {
	m, err := decodeProfile(body)
	if err != nil {
		return TempUser{}, err
	}
	email := stringField(m, "mail")
	if email == "" {
		email = stringField(m, "userPrincipalName")
	}
	return TempUser{
		ProviderUserID: stringField(m, "id"),
		Username:       stringField(m, "displayName"),
		Email:          email,
	}, nil
}

func parseGitLab(body []byte) (TempUser, error) {
	m, err := decodeProfile(body)
	if err != nil {
		return TempUser{}, err
	}
	return TempUser{
		ProviderUserID: stringField(m, "id"),
		Username:       stringField(m, "username"),
		Email:          stringField(m, "email"),
		AvatarURL:      stringField(m, "avatar_url"),
		Bio:            stringField(m, "bio"),
	}, nil
}

func parseGoogle(body []byte) (TempUser, error) {
	m, err := decodeProfile(body)
	if err != nil {
		return TempUser{}, err
	}
	return TempUser{
		ProviderUserID: stringField(m, "id"),
		Username:       stringField(m, "name"),
		Email:          stringField(m, "email"),
		AvatarURL:      stringField(m, "picture"),
	}, nil
}

func parsePayPal(body []byte) (TempUser, error) {
	m, err := decodeProfile(body)
	if err != nil {
		return TempUser{}, err
	}
	return TempUser{
		ProviderUserID: stringField(m, "user_id"),
		Username:       stringField(m, "name"),
		Email:          stringField(m, "email"),
		Country:        stringField(m, "address_country"),
	}, nil
}
