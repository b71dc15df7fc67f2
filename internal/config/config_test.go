package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otme.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
client:
  dataDir: /var/lib/otme
dispatch:
  timeout: 3s
  rateLimitRPS: 0
retry:
  maxAttempts: 5
  baseDelay: 100ms
  maxJitter: 0s
metrics:
  enabled: false
log:
  format: text
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Client.DataDir != "/var/lib/otme" {
		t.Fatalf("dataDir: %q", cfg.Client.DataDir)
	}
	if cfg.Client.WalletFile != Default().Client.WalletFile {
		t.Fatalf("walletFile should keep default, got %q", cfg.Client.WalletFile)
	}
	if cfg.Dispatch.Timeout != 3*time.Second {
		t.Fatalf("timeout: %s", cfg.Dispatch.Timeout)
	}
	if cfg.Dispatch.RateLimitRPS != 0 {
		t.Fatalf("explicit zero rps should disable limiting, got %v", cfg.Dispatch.RateLimitRPS)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.BaseDelay != 100*time.Millisecond || cfg.Retry.MaxJitter != 0 {
		t.Fatalf("retry: %+v", cfg.Retry)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled")
	}
	if cfg.Log.Format != "text" || cfg.Log.Level != "info" {
		t.Fatalf("log: %+v", cfg.Log)
	}
	if cfg.WalletPath() != filepath.Join("/var/lib/otme", "wallet.sealed") {
		t.Fatalf("wallet path: %s", cfg.WalletPath())
	}
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, "retry:\n  maxAttempts: 5\n")
	t.Setenv(EnvRetryMaxAttempts, "99")
	t.Setenv(EnvDispatchTimeout, "750ms")
	t.Setenv(EnvMetricsEnabled, "off")
	t.Setenv(EnvWalletPassphrase, "  spaced  ")
	t.Setenv(EnvWalletFile, "/tmp/custom.sealed")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retry.MaxAttempts != 20 {
		t.Fatalf("max attempts should clamp to 20, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Dispatch.Timeout != 750*time.Millisecond {
		t.Fatalf("timeout: %s", cfg.Dispatch.Timeout)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled by env")
	}
	if cfg.WalletPassphrase != "  spaced  " {
		t.Fatalf("passphrase must be taken verbatim, got %q", cfg.WalletPassphrase)
	}
	if cfg.WalletPath() != "/tmp/custom.sealed" {
		t.Fatalf("absolute wallet file should win, got %s", cfg.WalletPath())
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, "dispatch:\n  timeout: 4s\n"))
	t.Setenv(EnvDispatchTimeout, "soon")
	t.Setenv(EnvRateLimitBurst, "many")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.Timeout != 4*time.Second {
		t.Fatalf("timeout: %s", cfg.Dispatch.Timeout)
	}
	if cfg.Dispatch.RateLimitBurst != Default().Dispatch.RateLimitBurst {
		t.Fatalf("burst: %d", cfg.Dispatch.RateLimitBurst)
	}
}

func TestLoadExplicitPathErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
	if _, err := Load(writeConfig(t, "client: [")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 0
	cfg.Retry.MaxDelay = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cfg = Default()
	cfg.Retry.MaxAttempts = MaxRetryAttempts + 1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "retry.maxAttempts") {
		t.Fatalf("expected maxAttempts bound error, got %v", err)
	}
}

func TestLogLevel(t *testing.T) {
	if got := (LogConfig{Level: "debug"}).LogLevel(); got != slog.LevelDebug {
		t.Fatalf("got %s", got)
	}
	if got := (LogConfig{Level: "loud"}).LogLevel(); got != slog.LevelInfo {
		t.Fatalf("got %s", got)
	}
}

func TestLoadRejectsUnboundedYAMLAttempts(t *testing.T) {
	path := writeConfig(t, "retry:\n  maxAttempts: 64\n  baseDelay: 1h\n  maxDelay: 2h\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "retry.maxAttempts") {
		t.Fatalf("expected maxAttempts bound error, got %v", err)
	}
}
