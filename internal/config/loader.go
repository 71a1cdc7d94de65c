// Package config provides the configuration snapshot for the dispatch layer.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/promptbridge/promptbridge/internal/domain"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "PROMPTBRIDGE"
)

// Load reads the configuration from config.yaml and environment variables.
// Priority order, highest first:
//  1. PROMPTBRIDGE_<VENDOR>_API_KEYS env vars (comma-separated secrets)
//  2. Environment variables prefixed with PROMPTBRIDGE_
//  3. config.yaml
//  4. Defaults
//
// Pass an empty path to use the default search locations.
func Load(configPath string) (*Configuration, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/promptbridge")
		v.AddConfigPath("$HOME/.promptbridge")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{
				Op:  "read",
				Err: fmt.Errorf("failed to read config file: %w", err),
			}
		}
		// No config file is fine; env vars may carry everything.
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{
			Op:  "unmarshal",
			Err: fmt.Errorf("failed to unmarshal config: %w", err),
		}
	}

	loadCredentialsFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 60)
	v.SetDefault("server.write_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("defaults.provider", string(domain.ProviderAnthropic))
	v.SetDefault("defaults.key_index", 0)
	v.SetDefault("defaults.max_tokens", 1024)
	v.SetDefault("defaults.temperature", 0.7)
	v.SetDefault("defaults.timeout_seconds", 30)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.default_ttl", "D")
	v.SetDefault("cache.dir", "./data/cache")
	v.SetDefault("cache.sweep_interval_hours", 24)

	v.SetDefault("record.driver", "memory")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.debug", false)
}

// loadCredentialsFromEnv appends credentials supplied through
// PROMPTBRIDGE_<VENDOR>_API_KEYS env vars (comma-separated secrets). Keys
// from the environment are appended after file-configured credentials, so
// file order keeps its index addressing.
func loadCredentialsFromEnv(cfg *Configuration) {
	for _, p := range domain.AllProviders {
		envName := fmt.Sprintf("%s_%s_API_KEYS", envPrefix, strings.ToUpper(string(p)))
		envValue := os.Getenv(envName)
		if envValue == "" {
			continue
		}

		settings := cfg.Providers[string(p)]
		for i, secret := range strings.Split(envValue, ",") {
			secret = strings.TrimSpace(secret)
			if secret == "" {
				continue
			}
			settings.Credentials = append(settings.Credentials, domain.Credential{
				Secret:  secret,
				Label:   fmt.Sprintf("env_%s_%d", p, i),
				Enabled: true,
				Status:  domain.TestUnknown,
			})
		}

		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderSettings)
		}
		cfg.Providers[string(p)] = settings
	}
}
