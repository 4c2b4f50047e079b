// Package config provides configuration loading for mangonaut: a YAML
// file overlaid with MANGONAUT_-prefixed environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig    `koanf:"server"`
	Logging  LoggingConfig   `koanf:"logging"`
	Sentry   SentryConfig    `koanf:"sentry"`
	GitHub   GitHubConfig    `koanf:"github"`
	LLM      LLMConfig       `koanf:"llm"`
	Projects []ProjectConfig `koanf:"projects"`
	Behavior BehaviorConfig  `koanf:"behavior"`
	Dispatch DispatchConfig  `koanf:"dispatch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SentryConfig holds error-tracker settings.
type SentryConfig struct {
	BaseURL       string `koanf:"base_url"`
	Org           string `koanf:"org"`
	Token         Secret `koanf:"token"`
	WebhookSecret Secret `koanf:"webhook_secret"`
}

// GitHubConfig holds GitHub App settings. The private key arrives
// base64-encoded (the PEM itself re-armored), as delivered through most
// secret stores.
type GitHubConfig struct {
	BaseURL        string `koanf:"base_url"`
	AppID          string `koanf:"app_id"`
	InstallationID string `koanf:"installation_id"`
	PrivateKey     Secret `koanf:"private_key"`
}

// LLMConfig holds language-model settings.
type LLMConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
}

// ProjectConfig maps one error-tracker project to a repository.
type ProjectConfig struct {
	SourceProject string   `koanf:"source_project"`
	ScmRepo       string   `koanf:"scm_repo"`
	SourceRoots   []string `koanf:"source_roots"`
	DefaultBranch string   `koanf:"default_branch"`
	// ResolveStrategy selects how stack-frame filenames become repository
	// paths: "roots" concatenates SourceRoots, "tree" searches the git
	// tree for a suffix match.
	ResolveStrategy string `koanf:"resolve_strategy"`
}

// BehaviorConfig controls remediation policy.
type BehaviorConfig struct {
	AutoPr        bool     `koanf:"auto_pr"`
	MinConfidence string   `koanf:"min_confidence"`
	Labels        []string `koanf:"labels"`
	BranchPrefix  string   `koanf:"branch_prefix"`
	// Async makes the webhook handler return before processing completes.
	Async bool `koanf:"async"`
}

// DispatchConfig sizes the fire-and-forget worker pool.
type DispatchConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// Default returns the configuration defaults applied before file and
// environment overlays.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Sentry:  SentryConfig{BaseURL: "https://sentry.io"},
		GitHub:  GitHubConfig{BaseURL: "https://api.github.com"},
		LLM: LLMConfig{
			Provider: "claude",
			Model:    "claude-sonnet-4-20250514",
		},
		Behavior: BehaviorConfig{
			AutoPr:        true,
			MinConfidence: "MEDIUM",
			Labels:        []string{"auto-fix", "ai-generated"},
			BranchPrefix:  "fix/mangonaut-",
			Async:         true,
		},
		Dispatch: DispatchConfig{Workers: 4, QueueSize: 64},
	}
}

// RepoCacheTTL is how long the installed-repositories cache is considered
// fresh; it is also the refresh interval.
const RepoCacheTTL = 5 * time.Minute

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Behavior.MinConfidence {
	case "LOW", "MEDIUM", "HIGH":
	default:
		return fmt.Errorf("behavior.min_confidence must be LOW, MEDIUM or HIGH, got %q", c.Behavior.MinConfidence)
	}
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch.workers must be positive: %d", c.Dispatch.Workers)
	}
	if c.Dispatch.QueueSize <= 0 {
		return fmt.Errorf("dispatch.queue_size must be positive: %d", c.Dispatch.QueueSize)
	}
	for i, p := range c.Projects {
		if p.SourceProject == "" {
			return fmt.Errorf("projects[%d].source_project is required", i)
		}
		if p.ScmRepo == "" {
			return fmt.Errorf("projects[%d].scm_repo is required", i)
		}
		switch p.ResolveStrategy {
		case "", "roots", "tree":
		default:
			return fmt.Errorf("projects[%d].resolve_strategy must be roots or tree, got %q", i, p.ResolveStrategy)
		}
	}
	return nil
}
