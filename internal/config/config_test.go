package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestValidateTradeModeNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("err = %v, want api_key complaint", err)
	}

	cfg.Exchange.ApiKey = "k"
	cfg.Exchange.SecretKey = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Risk.MarginRate = 2
	cfg.Risk.Overshoot = "maybe"
	cfg.Engine.Symbols = nil
	cfg.Scheduler.ResetTime = "nine thirty"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"unknown mode", "margin_rate", "overshoot", "symbols", "reset_time"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "paper"

[risk]
max_daily_loss = 750.0

[engine]
symbols = ["ETHUSDT", "SOLUSDT"]
scan_interval = "10s"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Risk.MaxDailyLoss != 750 {
		t.Errorf("max_daily_loss = %v, want 750", cfg.Risk.MaxDailyLoss)
	}
	if len(cfg.Engine.Symbols) != 2 || cfg.Engine.Symbols[0] != "ETHUSDT" {
		t.Errorf("symbols = %v", cfg.Engine.Symbols)
	}
	if cfg.Engine.ScanInterval.Duration != 10*time.Second {
		t.Errorf("scan_interval = %v, want 10s", cfg.Engine.ScanInterval.Duration)
	}
	// Untouched values keep their defaults.
	if cfg.Risk.MarginRate != 0.10 {
		t.Errorf("margin_rate = %v, want default 0.10", cfg.Risk.MarginRate)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`mode = "paper"`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FUTURESBOT_MODE", "monitor")
	t.Setenv("FUTURESBOT_RISK_MAX_DAILY_LOSS", "1234.5")
	t.Setenv("FUTURESBOT_ENGINE_SYMBOLS", "BTCUSDT, ETHUSDT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" {
		t.Errorf("mode = %q, want monitor", cfg.Mode)
	}
	if cfg.Risk.MaxDailyLoss != 1234.5 {
		t.Errorf("max_daily_loss = %v, want 1234.5", cfg.Risk.MaxDailyLoss)
	}
	if len(cfg.Engine.Symbols) != 2 || cfg.Engine.Symbols[1] != "ETHUSDT" {
		t.Errorf("symbols = %v", cfg.Engine.Symbols)
	}
}
