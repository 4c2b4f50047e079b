package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MANGONAUT_"

// Load reads configuration with the following precedence (highest wins):
//
//  1. Environment variables (MANGONAUT_GITHUB__APP_ID, ...)
//  2. YAML config file, when configPath is non-empty and the file exists
//  3. Defaults from Default()
//
// Environment variables are mapped by stripping the MANGONAUT_ prefix,
// lowercasing, and turning "__" into the section separator:
//
//	MANGONAUT_SERVER__PORT          -> server.port
//	MANGONAUT_SENTRY__WEBHOOK_SECRET -> sentry.webhook_secret
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// Missing file falls through to env-only configuration.
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
