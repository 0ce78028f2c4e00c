package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pusoy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer("")
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.MaxActionTimer != 0 {
		t.Fatalf("MaxActionTimer default = %v, want 0 (server picks)", cfg.MaxActionTimer)
	}
}

func TestLoadServerFileAndEnvOverride(t *testing.T) {
	path := writeFile(t, "addr: \":9090\"\nlog_level: debug\nmax_action_timer: 30s\n")
	t.Setenv("PUSOY_ADDR", ":7070")
	t.Setenv("PUSOY_BOT_ACTION_TIMER", "2500")

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("Addr = %q, env should win over file", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.MaxActionTimer != 30*time.Second {
		t.Fatalf("MaxActionTimer = %v", cfg.MaxActionTimer)
	}
	if cfg.BotActionTimer != 2500*time.Millisecond {
		t.Fatalf("BotActionTimer = %v, bare numbers are milliseconds", cfg.BotActionTimer)
	}
}

func TestLoadServerMissingFile(t *testing.T) {
	if _, err := LoadServer(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing named config file")
	}
}

func TestLoadClientEnvOverride(t *testing.T) {
	t.Setenv("PUSOY_SERVER_URL", "http://game.example:9000")
	t.Setenv("PUSOY_SESSION_ID", "4be0643f-1d98-573b-97cd-ca98a65347dd")

	cfg, err := LoadClient("")
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.ServerURL != "http://game.example:9000" {
		t.Fatalf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.SessionID != "4be0643f-1d98-573b-97cd-ca98a65347dd" {
		t.Fatalf("SessionID = %q", cfg.SessionID)
	}
}

func TestLoadClientBadYAML(t *testing.T) {
	path := writeFile(t, "server_url: [not\n")
	if _, err := LoadClient(path); err == nil {
		t.Fatal("expected parse error")
	}
}
