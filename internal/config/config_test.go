package config

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFromBytesOverridesDefaults(t *testing.T) {
	yaml := `
market:
  instruments: [EUR_USD, USD_JPY]
risk:
  max_drawdown_pct: 0.08
engine:
  scan_interval_sec: 15
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Market.Instruments) != 2 {
		t.Errorf("instruments = %v", cfg.Market.Instruments)
	}
	if cfg.Risk.MaxDrawdownPct != 0.08 {
		t.Errorf("max drawdown = %v, want override 0.08", cfg.Risk.MaxDrawdownPct)
	}
	if cfg.Engine.ScanIntervalSec != 15 {
		t.Errorf("scan interval = %d, want override 15", cfg.Engine.ScanIntervalSec)
	}
	// Untouched settings keep their defaults.
	if cfg.Lifecycle.TrailingStopPips != 15 {
		t.Errorf("trailing stop = %v, want default 15", cfg.Lifecycle.TrailingStopPips)
	}
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	t.Setenv("TEST_STATE_PATH", "/var/lib/bot/state.json")

	cfg, err := LoadFromBytes([]byte("state:\n  path: ${TEST_STATE_PATH}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.State.Path != "/var/lib/bot/state.json" {
		t.Errorf("state path = %s", cfg.State.Path)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		mention string
	}{
		{
			name:    "unknown instrument",
			mutate:  func(c *Config) { c.Market.Instruments = []string{"EUR_MARS"} },
			mention: "not supported",
		},
		{
			name:    "empty watchlist",
			mutate:  func(c *Config) { c.Market.Instruments = nil },
			mention: "must not be empty",
		},
		{
			name:    "candle count below history",
			mutate:  func(c *Config) { c.Market.CandleCount = 10 },
			mention: "candle_count",
		},
		{
			name:    "drawdown out of range",
			mutate:  func(c *Config) { c.Risk.MaxDrawdownPct = 1.5 },
			mention: "max_drawdown_pct",
		},
		{
			name:    "inverted risk fractions",
			mutate:  func(c *Config) { c.Risk.MinRiskFraction = 0.05; c.Risk.MaxRiskFraction = 0.03 },
			mention: "min_risk_fraction",
		},
		{
			name:    "reward risk below floor",
			mutate:  func(c *Config) { c.Sizing.MinRewardRisk = 1.0 },
			mention: "min_reward_risk",
		},
		{
			name:    "unknown bias policy",
			mutate:  func(c *Config) { c.Scoring.PerformanceBias = "quadratic" },
			mention: "performance_bias",
		},
		{
			name:    "zero scan interval",
			mutate:  func(c *Config) { c.Engine.ScanIntervalSec = 0 },
			mention: "scan_interval_sec",
		},
		{
			name:    "missing state path",
			mutate:  func(c *Config) { c.State.Path = "" },
			mention: "state.path",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, types.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Errorf("error %q does not mention %q", err, tc.mention)
			}
		})
	}
}

func TestLoadSecretsRequiresCredentials(t *testing.T) {
	for _, key := range []string{"OANDA_API_KEY", "OANDA_ACCOUNT_ID", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if _, err := LoadSecrets(); err == nil {
		t.Fatal("missing broker credentials must fail")
	}

	t.Setenv("OANDA_API_KEY", "key")
	t.Setenv("OANDA_ACCOUNT_ID", "001-001-1234567-001")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("load secrets: %v", err)
	}
	if secrets.HasTelegram() {
		t.Error("telegram must be off without both credentials")
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	secrets, err = LoadSecrets()
	if err != nil {
		t.Fatal(err)
	}
	if !secrets.HasTelegram() {
		t.Error("telegram must be on with both credentials")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	if cfg.ScanInterval().Seconds() != 30 {
		t.Errorf("scan interval = %s", cfg.ScanInterval())
	}
	if cfg.ExecutionCooldown().Seconds() != 6 {
		t.Errorf("cooldown = %s", cfg.ExecutionCooldown())
	}
	if cfg.InstrumentCooldown().Minutes() != 15 {
		t.Errorf("instrument cooldown = %s", cfg.InstrumentCooldown())
	}
	if cfg.MaxTradeDuration().Hours() != 4 {
		t.Errorf("max duration = %s", cfg.MaxTradeDuration())
	}
}
