// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Risk      RiskConfig      `yaml:"risk"`
	Sizing    SizingConfig    `yaml:"sizing"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Execution ExecutionConfig `yaml:"execution"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Engine    EngineConfig    `yaml:"engine"`
	State     StateConfig     `yaml:"state"`
	Journal   JournalConfig   `yaml:"journal"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// MarketConfig holds the watch universe and candle settings.
type MarketConfig struct {
	Instruments []string `yaml:"instruments"`
	Granularity string   `yaml:"granularity"`  // OANDA granularity, e.g. M5
	CandleCount int      `yaml:"candle_count"` // lookback per scan
}

// RiskConfig holds the risk manager limits.
type RiskConfig struct {
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`        // e.g. 0.10
	MaxDailyLossPct      float64 `yaml:"max_daily_loss_pct"`      // e.g. 0.02
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`  // e.g. 5
	MinRiskFraction      float64 `yaml:"min_risk_fraction"`       // e.g. 0.01
	MaxRiskFraction      float64 `yaml:"max_risk_fraction"`       // e.g. 0.03
	ConfidenceThreshold  float64 `yaml:"confidence_threshold"`    // e.g. 0.5
}

// SizingConfig holds position sizing settings.
type SizingConfig struct {
	ATRStopMultiple float64 `yaml:"atr_stop_multiple"`
	MinStopPips     float64 `yaml:"min_stop_pips"`
	MaxStopPips     float64 `yaml:"max_stop_pips"`
	MinRewardRisk   float64 `yaml:"min_reward_risk"`
}

// ScoringConfig holds indicator periods and the performance-bias policy.
type ScoringConfig struct {
	MinHistory      int    `yaml:"min_history"`
	RSIPeriod       int    `yaml:"rsi_period"`
	RSIOversold     int    `yaml:"rsi_oversold"`
	RSIOverbought   int    `yaml:"rsi_overbought"`
	MACDFast        int    `yaml:"macd_fast"`
	MACDSlow        int    `yaml:"macd_slow"`
	MACDSignal      int    `yaml:"macd_signal"`
	BandPeriod      int    `yaml:"band_period"`
	ATRPeriod       int    `yaml:"atr_period"`
	PerformanceBias string `yaml:"performance_bias"` // multiplicative | additive
}

// ExecutionConfig holds trade execution settings.
type ExecutionConfig struct {
	CooldownSec           int `yaml:"cooldown_sec"`
	InstrumentCooldownMin int `yaml:"instrument_cooldown_min"`
	MaxNewTradesPerCycle  int `yaml:"max_new_trades_per_cycle"`
}

// LifecycleConfig holds exit management settings.
type LifecycleConfig struct {
	TrailingStopPips     float64 `yaml:"trailing_stop_pips"`
	TrailingArmPips      float64 `yaml:"trailing_arm_pips"`
	MaxTradeDurationHour float64 `yaml:"max_trade_duration_hours"`
	MaxLossPips          float64 `yaml:"max_loss_pips"`
	CloseRetryEscalate   int     `yaml:"close_retry_escalate"`
}

// EngineConfig holds the cycle scheduler settings.
type EngineConfig struct {
	ScanIntervalSec int `yaml:"scan_interval_sec"`
}

// StateConfig holds state persistence settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// JournalConfig holds the trade journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GatewayConfig holds brokerage transport settings.
type GatewayConfig struct {
	BaseURL            string `yaml:"base_url"`
	TimeoutSec         int    `yaml:"timeout_sec"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig holds metrics server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Secrets holds credentials loaded from the environment, never from YAML.
type Secrets struct {
	OandaAPIKey      string `envconfig:"OANDA_API_KEY" required:"true"`
	OandaAccountID   string `envconfig:"OANDA_ACCOUNT_ID" required:"true"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
}

// LoadSecrets loads credentials from the environment, reading a .env file
// first if one is present.
func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	return &s, nil
}

// HasTelegram returns true if both Telegram credentials are set.
func (s *Secrets) HasTelegram() bool {
	return s.TelegramBotToken != "" && s.TelegramChatID != ""
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration defaults before YAML overrides.
func Default() *Config {
	return &Config{
		Market: MarketConfig{
			Instruments: []string{"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD"},
			Granularity: "M5",
			CandleCount: 60,
		},
		Risk: RiskConfig{
			MaxDrawdownPct:       0.10,
			MaxDailyLossPct:      0.02,
			MaxConsecutiveLosses: 5,
			MinRiskFraction:      0.01,
			MaxRiskFraction:      0.03,
			ConfidenceThreshold:  0.5,
		},
		Sizing: SizingConfig{
			ATRStopMultiple: 1.5,
			MinStopPips:     12,
			MaxStopPips:     45,
			MinRewardRisk:   1.2,
		},
		Scoring: ScoringConfig{
			MinHistory:      50,
			RSIPeriod:       14,
			RSIOversold:     30,
			RSIOverbought:   70,
			MACDFast:        12,
			MACDSlow:        26,
			MACDSignal:      9,
			BandPeriod:      20,
			ATRPeriod:       14,
			PerformanceBias: "multiplicative",
		},
		Execution: ExecutionConfig{
			CooldownSec:           6,
			InstrumentCooldownMin: 15,
			MaxNewTradesPerCycle:  2,
		},
		Lifecycle: LifecycleConfig{
			TrailingStopPips:     15,
			TrailingArmPips:      3,
			MaxTradeDurationHour: 4,
			MaxLossPips:          30,
			CloseRetryEscalate:   3,
		},
		Engine: EngineConfig{
			ScanIntervalSec: 30,
		},
		State: StateConfig{
			Path: "state.json",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "journal.db",
		},
		Gateway: GatewayConfig{
			BaseURL:            "https://api-fxpractice.oanda.com/v3",
			TimeoutSec:         10,
			RateLimitPerSecond: 10,
		},
		Alerting: AlertingConfig{Enabled: true},
		Metrics:  MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Market.Instruments) == 0 {
		errs = append(errs, "market.instruments must not be empty")
	}
	for _, inst := range c.Market.Instruments {
		if _, ok := types.GetInstrumentSpec(inst); !ok {
			errs = append(errs, fmt.Sprintf("market.instruments: '%s' is not supported", inst))
		}
	}
	if c.Market.CandleCount < c.Scoring.MinHistory {
		errs = append(errs, "market.candle_count must be >= scoring.min_history")
	}

	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 1 {
		errs = append(errs, "risk.max_drawdown_pct must be between 0 and 1")
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		errs = append(errs, "risk.max_daily_loss_pct must be between 0 and 1")
	}
	if c.Risk.MaxConsecutiveLosses < 1 {
		errs = append(errs, "risk.max_consecutive_losses must be at least 1")
	}
	if c.Risk.MinRiskFraction <= 0 || c.Risk.MaxRiskFraction > 0.1 {
		errs = append(errs, "risk fractions must be within (0, 0.1]")
	}
	if c.Risk.MinRiskFraction > c.Risk.MaxRiskFraction {
		errs = append(errs, "risk.min_risk_fraction must be <= risk.max_risk_fraction")
	}
	if c.Risk.ConfidenceThreshold < 0 || c.Risk.ConfidenceThreshold >= 1 {
		errs = append(errs, "risk.confidence_threshold must be within [0, 1)")
	}

	if c.Sizing.MinStopPips <= 0 || c.Sizing.MinStopPips > c.Sizing.MaxStopPips {
		errs = append(errs, "sizing stop pip range is invalid")
	}
	if c.Sizing.MinRewardRisk < 1.2 {
		errs = append(errs, "sizing.min_reward_risk must be at least 1.2")
	}

	switch c.Scoring.PerformanceBias {
	case "multiplicative", "additive":
	default:
		errs = append(errs, "scoring.performance_bias must be 'multiplicative' or 'additive'")
	}
	if c.Scoring.MinHistory < c.Scoring.MACDSlow {
		errs = append(errs, "scoring.min_history must be >= scoring.macd_slow")
	}

	if c.Execution.CooldownSec < 0 {
		errs = append(errs, "execution.cooldown_sec must not be negative")
	}
	if c.Execution.MaxNewTradesPerCycle < 1 {
		errs = append(errs, "execution.max_new_trades_per_cycle must be at least 1")
	}

	if c.Lifecycle.TrailingStopPips <= 0 || c.Lifecycle.TrailingArmPips < 0 {
		errs = append(errs, "lifecycle trailing settings are invalid")
	}
	if c.Lifecycle.MaxTradeDurationHour <= 0 {
		errs = append(errs, "lifecycle.max_trade_duration_hours must be positive")
	}
	if c.Lifecycle.MaxLossPips <= 0 {
		errs = append(errs, "lifecycle.max_loss_pips must be positive")
	}

	if c.Engine.ScanIntervalSec < 1 {
		errs = append(errs, "engine.scan_interval_sec must be at least 1")
	}
	if c.State.Path == "" {
		errs = append(errs, "state.path is required")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when journal is enabled")
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, "gateway.base_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ScanInterval returns the cycle scan interval.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Engine.ScanIntervalSec) * time.Second
}

// ExecutionCooldown returns the global cooldown between order submissions.
func (c *Config) ExecutionCooldown() time.Duration {
	return time.Duration(c.Execution.CooldownSec) * time.Second
}

// InstrumentCooldown returns the per-instrument re-entry cooldown.
func (c *Config) InstrumentCooldown() time.Duration {
	return time.Duration(c.Execution.InstrumentCooldownMin) * time.Minute
}

// MaxTradeDuration returns the time-based exit threshold.
func (c *Config) MaxTradeDuration() time.Duration {
	return time.Duration(c.Lifecycle.MaxTradeDurationHour * float64(time.Hour))
}

// GatewayTimeout returns the per-request gateway timeout.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSec) * time.Second
}

// ConfidenceThresholdDecimal returns the entry threshold as a decimal.
func (c *Config) ConfidenceThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Risk.ConfidenceThreshold)
}
