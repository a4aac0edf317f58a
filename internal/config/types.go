package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	OAuth          OAuthConfig          `yaml:"oauth"`
	Mail           MailConfig           `yaml:"mail"`
	Stripe         StripeConfig         `yaml:"stripe"`
	Payouts        PayoutsConfig        `yaml:"payouts"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	FileHost       FileHostConfig       `yaml:"file_host"`
	ClickHouse     ClickHouseConfig     `yaml:"clickhouse"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout         Duration `yaml:"read_timeout"`
	WriteTimeout        Duration `yaml:"write_timeout"`
	IdleTimeout         Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	RoutePrefix         string   `yaml:"route_prefix"`
	AdminMetricsAPIKey  string   `yaml:"admin_metrics_api_key"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Environment string `yaml:"environment"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL  string             `yaml:"url"`
	Pool PostgresPoolConfig `yaml:"pool"`
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig holds password/session/flow-token/captcha parameters.
type AuthConfig struct {
	SessionTTL          Duration `yaml:"session_ttl"`
	OAuthFlowTTL         Duration `yaml:"oauth_flow_ttl"`
	TwoFactorFlowTTL     Duration `yaml:"two_factor_flow_ttl"`
	ForgotPasswordTTL    Duration `yaml:"forgot_password_ttl"`
	ConfirmEmailTTL      Duration `yaml:"confirm_email_ttl"`
	MinPasswordScore     int      `yaml:"min_password_score"` // zxcvbn-style score floor, 0-4
	Argon2Time           uint32   `yaml:"argon2_time"`
	Argon2MemoryKiB      uint32   `yaml:"argon2_memory_kib"`
	Argon2Parallelism    uint8    `yaml:"argon2_parallelism"`
	TOTPIssuer           string   `yaml:"totp_issuer"`
	TOTPReplayTTL        Duration `yaml:"totp_replay_ttl"`
	BackupCodeCount      int      `yaml:"backup_code_count"`
	HCaptchaSecret       string   `yaml:"-"` // HCAPTCHA_SECRET env only
	HCaptchaSiteVerifyURL string  `yaml:"hcaptcha_site_verify_url"`
	CanonicalSiteURL      string   `yaml:"canonical_site_url"`
	AllowedRedirectSuffixes []string `yaml:"allowed_redirect_suffixes"`
	OAuthCallbackBaseURL  string   `yaml:"oauth_callback_base_url"`
}

// OAuthProviderConfig holds a single third-party login provider's credentials.
type OAuthProviderConfig struct {
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	Enabled      bool   `yaml:"enabled"`
}

// OAuthConfig holds per-provider third-party login configuration. Secrets are
// loaded only from environment variables named after the provider
// (GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET, ...), never from the YAML file.
type OAuthConfig struct {
	Providers map[string]*OAuthProviderConfig `yaml:"providers"`
}

// MailConfig holds outbound transactional email settings.
type MailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	FromAddr string `yaml:"from_address"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// StripeConfig holds the minimal Stripe integration HearthForge exposes: a
// webhook endpoint that keeps users.stripe_customer_id in sync. There is no
// checkout/session creation surface in this system.
type StripeConfig struct {
	WebhookSecret string `yaml:"-"`
}

// PayoutsConfig holds the external payout rail credentials and the fee
// model constants used by the batch payout job.
type PayoutsConfig struct {
	PayPal     PayPalRailConfig     `yaml:"paypal"`
	Tremendous TremendousRailConfig `yaml:"tremendous"`
	Brex       BrexRailConfig       `yaml:"brex"`
	Aditude    AditudeConfig        `yaml:"aditude"`

	CatalogCacheTTL Duration `yaml:"catalog_cache_ttl"` // default 6h

	// Fee model, expressed as exact decimal strings so they load without
	// float rounding (see internal/money for the decimal type used).
	CleanIOFeePerImpression string  `yaml:"clean_io_fee_per_impression"` // "0.008" per 1000 impressions
	GAMFeePerImpression     string  `yaml:"gam_fee_per_impression"`      // "0.0154" per 1000 impressions
	PlatformCut             string `yaml:"platform_cut"`                // "0.25"
	PayoutAvailabilityDays  int     `yaml:"payout_availability_days"`    // 59, from first of next month
}

// PayPalRailConfig holds PayPal payout rail OAuth2 client-credential
// settings plus the legacy NVP GetBalance credentials (PayPal never moved
// balance reporting to the REST API).
type PayPalRailConfig struct {
	APIBaseURL    string `yaml:"api_base_url"`
	ClientID      string `yaml:"-"`
	ClientSecret  string `yaml:"-"`
	NVPUser       string `yaml:"-"`
	NVPPassword   string `yaml:"-"`
	NVPSignature  string `yaml:"-"`
}

// TremendousRailConfig holds Tremendous payout catalog/rail settings.
type TremendousRailConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	APIKey     string `yaml:"-"`
}

// BrexRailConfig holds Brex cash-account balance reporting settings.
type BrexRailConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	APIKey     string `yaml:"-"`
}

// AditudeConfig holds ad-revenue analytics API settings.
type AditudeConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	APIKey     string `yaml:"-"`
}

// MonitoringConfig holds low-balance alerting for the payout rails.
type MonitoringConfig struct {
	LowBalanceAlertURL  string   `yaml:"low_balance_alert_url"`
	LowBalanceThreshold string   `yaml:"low_balance_threshold"` // decimal string, USD
	CheckInterval       Duration `yaml:"check_interval"`
	Timeout             Duration `yaml:"timeout"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	Enabled               bool     `yaml:"enabled"`
	RequestsPerMinute      int      `yaml:"requests_per_minute"`
	Burst                  int      `yaml:"burst"`
	CloudflareIntegration  bool     `yaml:"cloudflare_integration"`
	BypassHeaderKey        string   `yaml:"-"` // RATE_LIMIT_IGNORE_KEY env only
}

// CircuitBreakerConfig holds circuit breaker configuration for external services.
type CircuitBreakerConfig struct {
	Enabled    bool                 `yaml:"enabled"`
	PayPal     BreakerServiceConfig `yaml:"paypal"`
	Tremendous BreakerServiceConfig `yaml:"tremendous"`
	Brex       BreakerServiceConfig `yaml:"brex"`
	Aditude    BreakerServiceConfig `yaml:"aditude"`
	Webhook    BreakerServiceConfig `yaml:"webhook"`
}

// FileHostConfig holds S3-compatible object storage settings used to serve
// project icons, gallery images, and version file artifacts.
type FileHostConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"` // non-empty for S3-compatible providers (R2, MinIO, Tigris)
	PublicBaseURL string `yaml:"public_base_url"`
	AccessKey     string `yaml:"-"`
	SecretKey     string `yaml:"-"`
}

// ClickHouseConfig holds connection settings for the columnar event log
// backing page-view/playtime/download analytics and the payout batch job's
// per-project aggregates. When Enabled is false, cmd/api falls back to a
// no-op recorder, and cmd/payouts' batch job (the payout revenue split)
// exits with a fatal error instead of running.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"` // host:port, e.g. "localhost:9000"
	Database string `yaml:"database"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// BreakerServiceConfig configures a circuit breaker for a specific external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}
