package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.AutoApproveDelay != 1 {
		t.Errorf("AutoApproveDelay = %d, want 1", cfg.AutoApproveDelay)
	}
	if !cfg.AutoApproveEnabled {
		t.Error("AutoApproveEnabled should default to true")
	}
	if cfg.MinDetectionScore != 3 {
		t.Errorf("MinDetectionScore = %d, want 3", cfg.MinDetectionScore)
	}
	if cfg.MaxApprovalsPerMinute != 500 {
		t.Errorf("MaxApprovalsPerMinute = %d, want 500", cfg.MaxApprovalsPerMinute)
	}
	if cfg.MaxSamePromptApprovals != 5 {
		t.Errorf("MaxSamePromptApprovals = %d, want 5", cfg.MaxSamePromptApprovals)
	}
	if cfg.ToggleByte() != 0x01 {
		t.Errorf("ToggleByte = %#x, want 0x01 (Ctrl+A)", cfg.ToggleByte())
	}
	if cfg.IdleTimeout() != 2500*time.Millisecond {
		t.Errorf("IdleTimeout = %v, want 2.5s", cfg.IdleTimeout())
	}
	if len(cfg.Patterns.TextInputIndicators) == 0 {
		t.Error("default text input indicators missing")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
auto_approve_delay = 5
claude_path = "/opt/claude/bin/claude"

[patterns]
permission_indicators = ["Allow this tool"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AutoApproveDelay != 5 {
		t.Errorf("AutoApproveDelay = %d, want 5", cfg.AutoApproveDelay)
	}
	if cfg.ClaudePath != "/opt/claude/bin/claude" {
		t.Errorf("ClaudePath = %q", cfg.ClaudePath)
	}
	// Untouched keys keep defaults.
	if cfg.MaxApprovalsPerMinute != 500 {
		t.Errorf("MaxApprovalsPerMinute = %d, want default 500", cfg.MaxApprovalsPerMinute)
	}
	if len(cfg.Patterns.PermissionIndicators) != 1 {
		t.Errorf("PermissionIndicators = %v", cfg.Patterns.PermissionIndicators)
	}
	if len(cfg.Patterns.TextInputIndicators) == 0 {
		t.Error("default text input indicators should survive a partial [patterns] table")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.AutoApproveDelay = 9
	cfg.Patterns.PermissionIndicators = []string{"custom marker"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AutoApproveDelay != 9 {
		t.Errorf("AutoApproveDelay = %d, want 9", loaded.AutoApproveDelay)
	}
	if len(loaded.Patterns.PermissionIndicators) != 1 || loaded.Patterns.PermissionIndicators[0] != "custom marker" {
		t.Errorf("PermissionIndicators = %v", loaded.Patterns.PermissionIndicators)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"negative delay", func(c *Config) { c.AutoApproveDelay = -1 }, "auto_approve_delay"},
		{"negative score", func(c *Config) { c.MinDetectionScore = -2 }, "min_detection_score"},
		{"zero per minute", func(c *Config) { c.MaxApprovalsPerMinute = 0 }, "max_approvals_per_minute"},
		{"zero same prompt", func(c *Config) { c.MaxSamePromptApprovals = 0 }, "max_same_prompt_approvals"},
		{"zero idle timeout", func(c *Config) { c.IdleTimeoutSeconds = 0 }, "idle_timeout_seconds"},
		{"zero retention", func(c *Config) { c.LogRetentionDays = 0 }, "log_retention_days"},
		{"toggle key out of range", func(c *Config) { c.ToggleKey = 300 }, "toggle_key"},
		{"toggle key zero", func(c *Config) { c.ToggleKey = 0 }, "toggle_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errHas) {
				t.Errorf("error %q should mention %q", err, tt.errHas)
			}
		})
	}
}

func TestDefaultPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	if got := DefaultPath(); got != "/tmp/xdg-test/claude-autoapprove/config.toml" {
		t.Errorf("DefaultPath = %q", got)
	}
}
