// Package config loads, validates, and watches the wrapper configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface consumed by the wrapper.
type Config struct {
	AutoApproveDelay       int     `toml:"auto_approve_delay"`
	AutoApproveEnabled     bool    `toml:"auto_approve_enabled"`
	ShowStatusBar          bool    `toml:"show_status_bar"`
	Debug                  bool    `toml:"debug"`
	LogDir                 string  `toml:"log_dir"`
	LogRetentionDays       int     `toml:"log_retention_days"`
	ClaudePath             string  `toml:"claude_path"`
	ToggleKey              int     `toml:"toggle_key"` // byte value, default 0x01 (Ctrl+A)
	MinDetectionScore      int     `toml:"min_detection_score"`
	MaxApprovalsPerMinute  int     `toml:"max_approvals_per_minute"`
	MaxSamePromptApprovals int     `toml:"max_same_prompt_approvals"`
	IdleDetectionEnabled   bool    `toml:"idle_detection_enabled"`
	IdleTimeoutSeconds     float64 `toml:"idle_timeout_seconds"`

	Patterns PatternConfig `toml:"patterns"`
}

// PatternConfig holds operator-configured detection patterns.
type PatternConfig struct {
	// PermissionIndicators are substrings whose presence marks a
	// permission prompt.
	PermissionIndicators []string `toml:"permission_indicators"`
	// TextInputIndicators are regexes recognizing text-input prompts.
	TextInputIndicators []string `toml:"text_input_indicators"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AutoApproveDelay:       1,
		AutoApproveEnabled:     true,
		ShowStatusBar:          true,
		Debug:                  false,
		LogDir:                 defaultLogDir(),
		LogRetentionDays:       7,
		ClaudePath:             "claude",
		ToggleKey:              0x01,
		MinDetectionScore:      3,
		MaxApprovalsPerMinute:  500,
		MaxSamePromptApprovals: 5,
		IdleDetectionEnabled:   true,
		IdleTimeoutSeconds:     2.5,
		Patterns: PatternConfig{
			PermissionIndicators: []string{},
			TextInputIndicators:  []string{`Type.*yes`, `Enter.*yes`, `\(y/n\)`},
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claude-autoapprove", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "claude-autoapprove", "config.toml")
}

func defaultLogDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude-autoapprove", "logs")
}

// Load reads the TOML file at path on top of the defaults, so a partial
// file only overrides the keys it names.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Validate checks value ranges. Structural problems are configuration
// errors, reported before any PTY is created.
func (c *Config) Validate() error {
	if c.AutoApproveDelay < 0 {
		return fmt.Errorf("auto_approve_delay must be non-negative, got %d", c.AutoApproveDelay)
	}
	if c.MinDetectionScore < 0 {
		return fmt.Errorf("min_detection_score must be non-negative, got %d", c.MinDetectionScore)
	}
	if c.MaxApprovalsPerMinute <= 0 {
		return fmt.Errorf("max_approvals_per_minute must be positive, got %d", c.MaxApprovalsPerMinute)
	}
	if c.MaxSamePromptApprovals <= 0 {
		return fmt.Errorf("max_same_prompt_approvals must be positive, got %d", c.MaxSamePromptApprovals)
	}
	if c.IdleTimeoutSeconds <= 0 {
		return fmt.Errorf("idle_timeout_seconds must be positive, got %g", c.IdleTimeoutSeconds)
	}
	if c.LogRetentionDays <= 0 {
		return fmt.Errorf("log_retention_days must be positive, got %d", c.LogRetentionDays)
	}
	if c.ToggleKey <= 0 || c.ToggleKey > 0xff {
		return fmt.Errorf("toggle_key must be a single byte value, got %d", c.ToggleKey)
	}
	return nil
}

// ToggleByte returns the toggle key as the byte intercepted by the
// multiplexer.
func (c *Config) ToggleByte() byte {
	return byte(c.ToggleKey)
}

// IdleTimeout returns the idle fallback timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds * float64(time.Second))
}
