// Package config provides the configuration snapshot for the dispatch layer.
// It loads from config.yaml and environment variables using Viper. The
// resulting Configuration is injected explicitly into consumers; there is no
// package-level singleton, so tests can supply isolated configurations.
package config

import (
	"fmt"

	"github.com/promptbridge/promptbridge/internal/domain"
)

// Configuration holds all application configuration values. Consumers treat
// it as a read-only snapshot for the duration of a dispatch.
type Configuration struct {
	// Server configuration for the admin/diagnostic surface.
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Providers maps vendor name to its settings and ordered credentials.
	Providers map[string]ProviderSettings `json:"providers" mapstructure:"providers"`

	// Defaults are the process-wide dispatch defaults.
	Defaults Defaults `json:"defaults" mapstructure:"defaults"`

	// Cache configures the file-backed response cache.
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Record configures the external record-field store.
	Record RecordConfig `json:"record" mapstructure:"record"`

	// Logging configuration.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host                   string `json:"host" mapstructure:"host"`
	Port                   int    `json:"port" mapstructure:"port"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// ProviderSettings holds one vendor's configuration: an optional endpoint
// override, the vendor-level default model, and the ordered credential list.
// Credential order is significant: it defines fallback order and index
// addressing.
type ProviderSettings struct {
	// BaseURL overrides the vendor endpoint (gateways, tests).
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// Model is the vendor-level default model.
	Model string `json:"model" mapstructure:"model"`

	// Credentials is the ordered list of API keys for this vendor.
	Credentials []domain.Credential `json:"credentials" mapstructure:"credentials"`
}

// Defaults holds process-wide dispatch defaults.
type Defaults struct {
	// Provider is the default vendor for calls that specify none.
	Provider string `json:"provider" mapstructure:"provider"`

	// KeyIndex selects the default credential for the default provider.
	KeyIndex int `json:"key_index" mapstructure:"key_index"`

	// System is the default system instruction.
	System string `json:"system" mapstructure:"system"`

	// MaxTokens is the default response length limit.
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is the default sampling temperature.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// TimeoutSeconds is the default per-attempt HTTP timeout.
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Enabled turns caching on by default for calls with no explicit
	// cache setting.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// DefaultTTL is the TTL specification applied when a call enables
	// caching without naming one (e.g. "D", "2W", "3600").
	DefaultTTL string `json:"default_ttl" mapstructure:"default_ttl"`

	// Dir is the cache root directory.
	Dir string `json:"dir" mapstructure:"dir"`

	// SweepIntervalHours is the cadence of the expired-entry sweep.
	SweepIntervalHours int `json:"sweep_interval_hours" mapstructure:"sweep_interval_hours"`
}

// RecordConfig configures the record-field store collaborator.
type RecordConfig struct {
	// Driver is "mysql" or "memory".
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN is the database connection string for the mysql driver.
	DSN string `json:"dsn" mapstructure:"dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`

	// Debug additionally enables verbose request/response detail. Verbose
	// lines may contain prompt content, so this is a separate switch.
	Debug bool `json:"debug" mapstructure:"debug"`
}

// Validate validates the configuration and returns an error if required
// fields are missing or malformed.
func (c *Configuration) Validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		validationErrors = append(validationErrors, "server.port must be between 1 and 65535")
	}

	for name, settings := range c.Providers {
		if !domain.IsKnownProvider(domain.ProviderType(name)) {
			validationErrors = append(validationErrors, fmt.Sprintf(
				"providers.%s is not a supported vendor", name))
		}
		for i, cred := range settings.Credentials {
			if cred.Enabled && cred.Secret == "" {
				validationErrors = append(validationErrors, fmt.Sprintf(
					"providers.%s.credentials[%d] is enabled but has no secret", name, i))
			}
		}
	}

	if c.Defaults.Provider != "" && !domain.IsKnownProvider(domain.ProviderType(c.Defaults.Provider)) {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"defaults.provider '%s' is not a supported vendor", c.Defaults.Provider))
	}

	if c.Defaults.KeyIndex < 0 {
		validationErrors = append(validationErrors, "defaults.key_index must not be negative")
	}

	if c.Cache.Enabled && c.Cache.Dir == "" {
		validationErrors = append(validationErrors, "cache.dir is required when cache.enabled is true")
	}

	if c.Record.Driver == "mysql" && c.Record.DSN == "" {
		validationErrors = append(validationErrors, "record.dsn is required when record.driver is mysql")
	}

	if c.Logging.Level != "" && !isValidLogLevel(c.Logging.Level) {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"logging.level '%s' is invalid, must be one of: debug, info, warn, error",
			c.Logging.Level,
		))
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Errors: validationErrors}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ProviderSettingsFor returns the settings for one vendor. A vendor with no
// configuration block yields empty settings, not an error.
func (c *Configuration) ProviderSettingsFor(p domain.ProviderType) ProviderSettings {
	return c.Providers[string(p)]
}

// CredentialsFor returns the ordered credential list for one vendor.
func (c *Configuration) CredentialsFor(p domain.ProviderType) []domain.Credential {
	return c.Providers[string(p)].Credentials
}

// HasActiveCredential reports whether a vendor has at least one usable key.
func (c *Configuration) HasActiveCredential(p domain.ProviderType) bool {
	for _, cred := range c.CredentialsFor(p) {
		if cred.Usable() {
			return true
		}
	}
	return false
}

// DefaultProvider returns the configured default vendor, falling back to
// anthropic when unset.
func (c *Configuration) DefaultProvider() domain.ProviderType {
	if c.Defaults.Provider == "" {
		return domain.ProviderAnthropic
	}
	return domain.ProviderType(c.Defaults.Provider)
}
