package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "production",
		},
		Database: DatabaseConfig{
			Pool: PostgresPoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration{Duration: 5 * time.Minute},
			},
		},
		Auth: AuthConfig{
			SessionTTL:            Duration{Duration: 14 * 24 * time.Hour},
			OAuthFlowTTL:          Duration{Duration: 30 * time.Minute},
			TwoFactorFlowTTL:      Duration{Duration: 30 * time.Minute},
			ForgotPasswordTTL:     Duration{Duration: 24 * time.Hour},
			ConfirmEmailTTL:       Duration{Duration: 24 * time.Hour},
			MinPasswordScore:      3,
			Argon2Time:            1,
			Argon2MemoryKiB:       64 * 1024,
			Argon2Parallelism:     4,
			TOTPIssuer:            "HearthForge",
			TOTPReplayTTL:         Duration{Duration: 60 * time.Second},
			BackupCodeCount:       6,
			HCaptchaSiteVerifyURL: "https://hcaptcha.com/siteverify",
			CanonicalSiteURL:      "https://hearthforge.dev",
			AllowedRedirectSuffixes: []string{"hearthforge.dev"},
			OAuthCallbackBaseURL:  "https://api.hearthforge.dev",
		},
		OAuth: OAuthConfig{
			Providers: map[string]*OAuthProviderConfig{
				"github":    {},
				"discord":   {},
				"microsoft": {},
				"gitlab":    {},
				"google":    {},
				"paypal":    {},
			},
		},
		Mail: MailConfig{
			SMTPPort: 587,
			FromAddr: "no-reply@hearthforge.dev",
		},
		Payouts: PayoutsConfig{
			PayPal:                  PayPalRailConfig{APIBaseURL: "https://api-m.paypal.com"},
			Tremendous:              TremendousRailConfig{APIBaseURL: "https://www.tremendous.com/api/v2"},
			Brex:                    BrexRailConfig{APIBaseURL: "https://platform.brexapis.com/v2"},
			Aditude:                 AditudeConfig{APIBaseURL: "https://cloud.aditude.io"},
			CatalogCacheTTL:         Duration{Duration: 6 * time.Hour},
			CleanIOFeePerImpression: "0.008",
			GAMFeePerImpression:     "0.0154",
			PlatformCut:             "0.25",
			PayoutAvailabilityDays:  59,
		},
		Monitoring: MonitoringConfig{
			LowBalanceThreshold: "100.00",
			CheckInterval:       Duration{Duration: 15 * time.Minute},
			Timeout:             Duration{Duration: 5 * time.Second},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 300,
			Burst:             30,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:    true,
			PayPal:     defaultBreaker(),
			Tremendous: defaultBreaker(),
			Brex:       defaultBreaker(),
			Aditude:    defaultBreaker(),
			Webhook:    defaultBreaker(),
		},
		FileHost: FileHostConfig{
			Region: "auto",
		},
		ClickHouse: ClickHouseConfig{
			Database: "hearthforge",
		},
	}
}

func defaultBreaker() BreakerServiceConfig {
	return BreakerServiceConfig{
		MaxRequests:         3,
		Interval:            Duration{Duration: 60 * time.Second},
		Timeout:             Duration{Duration: 30 * time.Second},
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
