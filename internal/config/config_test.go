package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
auth:
  jwt_secret: test-secret
storage:
  path: `+filepath.Join(dir, "lumin.bolt")+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("expected default storage type bolt, got %s", cfg.Storage.Type)
	}
	if cfg.Timer.DefaultFocusMinutes != 25 || cfg.Timer.DefaultBreakMinutes != 5 {
		t.Errorf("expected 25/5 timer defaults, got %d/%d",
			cfg.Timer.DefaultFocusMinutes, cfg.Timer.DefaultBreakMinutes)
	}
	if cfg.Stripe.UnitAmountCents != 99 {
		t.Errorf("expected default price of 99 cents, got %d", cfg.Stripe.UnitAmountCents)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"missing jwt secret",
			`
storage:
  path: /tmp/lumin-test.bolt
`,
		},
		{
			"unknown storage type",
			`
auth:
  jwt_secret: s
storage:
  type: postgres
`,
		},
		{
			"focus minutes out of range",
			`
auth:
  jwt_secret: s
storage:
  path: /tmp/lumin-test.bolt
timer:
  default_focus_minutes: 600
`,
		},
		{
			"lets encrypt without server name",
			`
auth:
  jwt_secret: s
storage:
  path: /tmp/lumin-test.bolt
tls:
  use_lets_encrypt: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
