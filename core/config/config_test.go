package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: from-file
  admin_ids: [1]
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("ADMIN_IDS", "10,20,10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env value", cfg.Telegram.Token)
	}
	if got := cfg.Telegram.AdminIDs; len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Fatalf("admin ids = %v, want [10 20]", got)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want longpoll default", cfg.Telegram.RunMode)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("exclude = %v", cfg.RateLimit.ExcludeUpdates)
	}
	if !cfg.Telegram.IsAdmin(20) || cfg.Telegram.IsAdmin(1) || cfg.Telegram.IsAdmin(0) {
		t.Fatal("IsAdmin does not follow the env override")
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing token", Config{}, "token"},
		{"bad mode", Config{Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}}, "run_mode"},
		{"webhook without url", Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}, "webhook.url"},
		{"negative admin", Config{Telegram: TelegramConfig{Token: "t", AdminIDs: []int64{-5}}}, "admin_ids"},
		{"bad exclude", Config{Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}}, "exclude_updates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize(&tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Normalize() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := Config{Telegram: TelegramConfig{Token: "t", RunMode: "Polling"}}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
}
