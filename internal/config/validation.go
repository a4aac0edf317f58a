package config

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Payouts.CatalogCacheTTL.Duration == 0 {
		c.Payouts.CatalogCacheTTL = Duration{Duration: 6 * time.Hour}
	}
	if c.Payouts.PayoutAvailabilityDays == 0 {
		c.Payouts.PayoutAvailabilityDays = 59
	}
	if c.Monitoring.CheckInterval.Duration <= 0 {
		c.Monitoring.CheckInterval = Duration{Duration: 15 * time.Minute}
	}
	if c.Monitoring.Timeout.Duration <= 0 {
		c.Monitoring.Timeout = Duration{Duration: 5 * time.Second}
	}
	if c.OAuth.Providers == nil {
		c.OAuth.Providers = make(map[string]*OAuthProviderConfig)
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "database.url is required (DATABASE_URL)")
	}

	if c.Auth.MinPasswordScore < 0 || c.Auth.MinPasswordScore > 4 {
		errs = append(errs, "auth.min_password_score must be between 0 and 4")
	}

	for name, provider := range c.OAuth.Providers {
		if provider.Enabled && (provider.ClientID == "" || provider.ClientSecret == "") {
			errs = append(errs, "oauth provider "+name+" is enabled but missing client id/secret")
		}
	}

	if c.FileHost.Enabled && c.FileHost.Bucket == "" {
		errs = append(errs, "file_host.bucket is required when file_host.enabled is true")
	}

	if c.ClickHouse.Enabled && c.ClickHouse.Addr == "" {
		errs = append(errs, "clickhouse.addr is required when clickhouse.enabled is true")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
