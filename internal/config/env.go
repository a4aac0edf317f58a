package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Internal knobs use a HEARTH_ prefix for namespace isolation; credentials
// for third-party services are read under the names those services'
// documentation and the original implementation already use, unprefixed,
// since they name an external contract rather than an internal setting.
func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Server.Address, "HEARTH_SERVER_ADDRESS")
	setIfEnv(&c.Server.RoutePrefix, "HEARTH_ROUTE_PREFIX")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "HEARTH_ADMIN_METRICS_API_KEY")
	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}

	setIfEnv(&c.Logging.Level, "HEARTH_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "HEARTH_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "HEARTH_ENVIRONMENT")

	setIfEnv(&c.Database.URL, "DATABASE_URL")

	setIfEnv(&c.Auth.HCaptchaSecret, "HCAPTCHA_SECRET")

	setIfEnv(&c.Mail.SMTPHost, "SMTP_HOST")
	setIfEnv(&c.Mail.Username, "SMTP_USERNAME")
	setIfEnv(&c.Mail.Password, "SMTP_PASSWORD")
	setIfEnv(&c.Mail.FromAddr, "SMTP_FROM_ADDRESS")

	setIfEnv(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	loadOAuthProvider(c, "github", "GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET")
	loadOAuthProvider(c, "discord", "DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET")
	loadOAuthProvider(c, "microsoft", "MICROSOFT_CLIENT_ID", "MICROSOFT_CLIENT_SECRET")
	loadOAuthProvider(c, "gitlab", "GITLAB_CLIENT_ID", "GITLAB_CLIENT_SECRET")
	loadOAuthProvider(c, "google", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET")
	loadOAuthProvider(c, "paypal", "PAYPAL_CLIENT_ID", "PAYPAL_CLIENT_SECRET")

	setIfEnv(&c.Payouts.PayPal.ClientID, "PAYPAL_CLIENT_ID")
	setIfEnv(&c.Payouts.PayPal.ClientSecret, "PAYPAL_CLIENT_SECRET")
	setIfEnv(&c.Payouts.PayPal.APIBaseURL, "PAYPAL_API_BASE_URL")
	setIfEnv(&c.Payouts.PayPal.NVPUser, "PAYPAL_NVP_USER")
	setIfEnv(&c.Payouts.PayPal.NVPPassword, "PAYPAL_NVP_PASSWORD")
	setIfEnv(&c.Payouts.PayPal.NVPSignature, "PAYPAL_NVP_SIGNATURE")
	setIfEnv(&c.Payouts.Tremendous.APIKey, "TREMENDOUS_API_KEY")
	setIfEnv(&c.Payouts.Tremendous.APIBaseURL, "TREMENDOUS_API_BASE_URL")
	setIfEnv(&c.Payouts.Brex.APIKey, "BREX_API_KEY")
	setIfEnv(&c.Payouts.Brex.APIBaseURL, "BREX_API_BASE_URL")
	setIfEnv(&c.Payouts.Aditude.APIKey, "ADITUDE_API_KEY")
	setIfEnv(&c.Payouts.Aditude.APIBaseURL, "ADITUDE_API_BASE_URL")
	setDurationIfEnv(&c.Payouts.CatalogCacheTTL, "HEARTH_PAYOUT_CATALOG_CACHE_TTL")

	setIfEnv(&c.Monitoring.LowBalanceAlertURL, "HEARTH_LOW_BALANCE_ALERT_URL")
	setIfEnv(&c.Monitoring.LowBalanceThreshold, "HEARTH_LOW_BALANCE_THRESHOLD")
	setDurationIfEnv(&c.Monitoring.CheckInterval, "HEARTH_BALANCE_CHECK_INTERVAL")

	setBoolIfEnv(&c.RateLimit.Enabled, "HEARTH_RATE_LIMIT_ENABLED")
	setIntIfEnv(&c.RateLimit.RequestsPerMinute, "HEARTH_RATE_LIMIT_RPM")
	setIntIfEnv(&c.RateLimit.Burst, "HEARTH_RATE_LIMIT_BURST")
	setBoolIfEnv(&c.RateLimit.CloudflareIntegration, "CLOUDFLARE_INTEGRATION")
	setIfEnv(&c.RateLimit.BypassHeaderKey, "RATE_LIMIT_IGNORE_KEY")

	setBoolIfEnv(&c.FileHost.Enabled, "HEARTH_FILEHOST_ENABLED")
	setIfEnv(&c.FileHost.Bucket, "HEARTH_FILEHOST_BUCKET")
	setIfEnv(&c.FileHost.Region, "HEARTH_FILEHOST_REGION")
	setIfEnv(&c.FileHost.Endpoint, "HEARTH_FILEHOST_ENDPOINT")
	setIfEnv(&c.FileHost.PublicBaseURL, "HEARTH_FILEHOST_PUBLIC_BASE_URL")
	setIfEnv(&c.FileHost.AccessKey, "HEARTH_FILEHOST_ACCESS_KEY")
	setIfEnv(&c.FileHost.SecretKey, "HEARTH_FILEHOST_SECRET_KEY")

	setBoolIfEnv(&c.ClickHouse.Enabled, "HEARTH_CLICKHOUSE_ENABLED")
	setIfEnv(&c.ClickHouse.Addr, "HEARTH_CLICKHOUSE_ADDR")
	setIfEnv(&c.ClickHouse.Database, "HEARTH_CLICKHOUSE_DATABASE")
	setIfEnv(&c.ClickHouse.Username, "HEARTH_CLICKHOUSE_USERNAME")
	setIfEnv(&c.ClickHouse.Password, "HEARTH_CLICKHOUSE_PASSWORD")
}

func loadOAuthProvider(c *Config, name, clientIDEnv, clientSecretEnv string) {
	provider, ok := c.OAuth.Providers[name]
	if !ok {
		provider = &OAuthProviderConfig{}
		c.OAuth.Providers[name] = provider
	}
	setIfEnv(&provider.ClientID, clientIDEnv)
	setIfEnv(&provider.ClientSecret, clientSecretEnv)
	if provider.ClientID != "" && provider.ClientSecret != "" {
		provider.Enabled = true
	}
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv sets an int pointer from an environment variable.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// normalizeRoutePrefix ensures the prefix starts with / and doesn't end with /.
func normalizeRoutePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return prefix
}
