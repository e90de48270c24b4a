// Package config defines all configuration for the order execution
// pipeline. Config is loaded from a YAML file (default:
// configs/config.yaml) with sensitive fields overridable via
// ORDERPIPE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun     bool             `mapstructure:"dry_run"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Splitter   SplitterConfig   `mapstructure:"splitter"`
	Confirm    ConfirmConfig    `mapstructure:"confirmation"`
	Breaker    BreakerConfig    `mapstructure:"circuit_breaker"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Fallback   FallbackConfig   `mapstructure:"fallback"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Executors  ExecutorsConfig  `mapstructure:"executors"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// EngineConfig tunes the central orchestrator (C10).
type EngineConfig struct {
	EnableAudit        bool          `mapstructure:"enable_audit"`
	EnableCostCheck    bool          `mapstructure:"enable_cost_check"`
	DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
	MaxConcurrentPlans int           `mapstructure:"max_concurrent_plans"`
}

// SplitterConfig tunes order-value-driven algorithm selection (C5).
//
//   - SizeThresholds: target-quantity cutoffs ({medium,large,huge};
//     below medium is small) feeding the splitter's scoring.
//   - ConfirmationThreshold: order value at or above which the splitter
//     consults the confirmation manager before returning a plan decision.
type SplitterConfig struct {
	SizeThresholds struct {
		Medium float64 `mapstructure:"medium"`
		Large  float64 `mapstructure:"large"`
		Huge   float64 `mapstructure:"huge"`
	} `mapstructure:"size_thresholds"`
	EnableConfirmation    bool    `mapstructure:"enable_confirmation"`
	ConfirmationThreshold float64 `mapstructure:"confirmation_threshold"`
}

// ConfirmConfig tunes the Confirmation Manager (C6).
type ConfirmConfig struct {
	ValueThresholds struct {
		AutoMax        float64 `mapstructure:"auto_max"`
		SoftConfirmMax float64 `mapstructure:"soft_confirm_max"`
	} `mapstructure:"order_value_thresholds"`
	MarketThresholds struct {
		VolatilityPct float64 `mapstructure:"volatility_pct"`
		PriceGapPct   float64 `mapstructure:"price_gap_pct"`
		LimitHitCount int     `mapstructure:"limit_hit_count"`
	} `mapstructure:"market"`
	SoftTimeout               time.Duration `mapstructure:"soft_confirm_timeout"`
	SoftTimeoutPermissive     bool          `mapstructure:"soft_timeout_permissive"`
	HardTimeout               time.Duration `mapstructure:"hard_confirm_timeout"`
	EnableNightSessionDegrade bool          `mapstructure:"enable_night_session_degradation"`
}

// BreakerConfig tunes the circuit-breaker-aware confirmation guard (C7).
type BreakerConfig struct {
	FailureThreshold         int           `mapstructure:"failure_threshold"`
	TriggerWindow            time.Duration `mapstructure:"trigger_window"`
	OpenDuration             time.Duration `mapstructure:"open_duration"`
	HalfOpenSuccessesToClose int           `mapstructure:"half_open_successes_to_close"`
	EnableExemption          bool          `mapstructure:"enable_exemption"`
	MaxExemptValue           float64       `mapstructure:"max_exempt_value"`
	InstrumentWhitelist      []string      `mapstructure:"instrument_whitelist"`
}

// RiskConfig groups the Adaptive VaR Scheduler and Dynamic Margin
// Monitor (C8).
type RiskConfig struct {
	VaR struct {
		BaseIntervalMs int     `mapstructure:"base_interval_ms"`
		CPULimitPct    float64 `mapstructure:"cpu_limit_pct"`
		CPUWindowSize  int     `mapstructure:"cpu_window_size"`
	} `mapstructure:"var"`
	Margin struct {
		WarningThreshold    float64       `mapstructure:"warning_threshold"`
		DangerThreshold     float64       `mapstructure:"danger_threshold"`
		CriticalThreshold   float64       `mapstructure:"critical_threshold"`
		ForceCloseWarnRatio float64       `mapstructure:"force_close_warn_threshold"`
		ForceCloseThreshold float64       `mapstructure:"force_close_threshold"`
		MarginCallBuffer    float64       `mapstructure:"margin_call_buffer"`
		UpdateInterval      time.Duration `mapstructure:"update_interval"`
		HistorySize         int           `mapstructure:"history_size"`
		VarTriggerThreshold float64       `mapstructure:"var_trigger_threshold"`
	} `mapstructure:"margin"`
}

// FallbackConfig tunes the Fallback Executor's manual-intervention queue (C9).
type FallbackConfig struct {
	ManualQueueMaxSize int `mapstructure:"manual_queue_max_size"`
}

// AuditConfig tunes the non-blocking audit stream (C11).
type AuditConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// RegistryConfig tunes the intent registry (C2). Currently bounded only
// indirectly via EngineConfig.MaxConcurrentPlans; kept as its own
// section since spec.md §6 lists registry knobs separately from the
// engine's.
type RegistryConfig struct {
	PruneTerminalAfter time.Duration `mapstructure:"prune_terminal_after"`
}

// ExecutorsConfig tunes the five concrete executors (C4).
type ExecutorsConfig struct {
	MaxSliceQty         string        `mapstructure:"max_slice_qty"`
	RetryCount          int           `mapstructure:"retry_count"`
	PendingOrderTimeout time.Duration `mapstructure:"pending_order_timeout"`

	TWAP struct {
		DurationSeconds int `mapstructure:"duration_seconds"`
		MinIntervalMs   int `mapstructure:"min_interval_ms"`
		MaxIntervalMs   int `mapstructure:"max_interval_ms"`
	} `mapstructure:"twap"`

	VWAP struct {
		VolumeProfile    []float64 `mapstructure:"volume_profile"`
		DurationSeconds  int       `mapstructure:"duration_seconds"`
		MinSliceQtyRatio float64   `mapstructure:"min_slice_qty_ratio"`
	} `mapstructure:"vwap"`

	Iceberg struct {
		TipSize         string `mapstructure:"tip_size"`
		RefillDelayMs   int    `mapstructure:"refill_delay_ms"`
	} `mapstructure:"iceberg"`

	Behavioral struct {
		Pattern         string  `mapstructure:"pattern"`
		NoiseType       string  `mapstructure:"noise_type"`
		DurationSeconds int     `mapstructure:"duration_seconds"`
		MinIntervalMs   int     `mapstructure:"min_interval_ms"`
		MaxIntervalMs   int     `mapstructure:"max_interval_ms"`
		MinSlices       int     `mapstructure:"min_slices"`
		MaxSlices       int     `mapstructure:"max_slices"`
		SizeVariance    float64 `mapstructure:"size_variance"`
		TimingVariance  float64 `mapstructure:"timing_variance"`
	} `mapstructure:"behavioral"`
}

// BrokerConfig selects and tunes the broker adapter.
type BrokerConfig struct {
	Demo struct {
		BaseURL    string `mapstructure:"base_url"`
		WSEndpoint string `mapstructure:"ws_endpoint"`
	} `mapstructure:"demo"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ORDERPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if os.Getenv("ORDERPIPE_DRY_RUN") == "true" || os.Getenv("ORDERPIPE_DRY_RUN") == "1" {
		cfg.DryRun = true
	}
	if ws := os.Getenv("ORDERPIPE_BROKER_DEMO_WS_ENDPOINT"); ws != "" {
		cfg.Broker.Demo.WSEndpoint = ws
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.enable_audit", true)
	v.SetDefault("engine.enable_cost_check", true)
	v.SetDefault("engine.default_timeout", "30s")
	v.SetDefault("engine.max_concurrent_plans", 50)

	v.SetDefault("splitter.size_thresholds.medium", 10)
	v.SetDefault("splitter.size_thresholds.large", 50)
	v.SetDefault("splitter.size_thresholds.huge", 200)
	v.SetDefault("splitter.enable_confirmation", true)
	v.SetDefault("splitter.confirmation_threshold", 100000)

	v.SetDefault("confirmation.soft_confirm_timeout", "3s")
	v.SetDefault("confirmation.soft_timeout_permissive", true)
	v.SetDefault("confirmation.hard_confirm_timeout", "30s")
	v.SetDefault("confirmation.enable_night_session_degradation", true)

	v.SetDefault("circuit_breaker.failure_threshold", 3)
	v.SetDefault("circuit_breaker.trigger_window", "5m")
	v.SetDefault("circuit_breaker.open_duration", "60s")
	v.SetDefault("circuit_breaker.half_open_successes_to_close", 3)

	v.SetDefault("risk.var.base_interval_ms", 1000)
	v.SetDefault("risk.var.cpu_limit_pct", 0.10)
	v.SetDefault("risk.var.cpu_window_size", 10)

	v.SetDefault("risk.margin.warning_threshold", 0.70)
	v.SetDefault("risk.margin.danger_threshold", 0.80)
	v.SetDefault("risk.margin.critical_threshold", 0.90)
	v.SetDefault("risk.margin.force_close_warn_threshold", 0.95)
	v.SetDefault("risk.margin.force_close_threshold", 1.00)
	v.SetDefault("risk.margin.history_size", 500)

	v.SetDefault("fallback.manual_queue_max_size", 1000)
	v.SetDefault("audit.buffer_size", 1024)

	v.SetDefault("executors.max_slice_qty", "10")
	v.SetDefault("executors.retry_count", 3)
	v.SetDefault("executors.pending_order_timeout", "15s")
	v.SetDefault("executors.twap.duration_seconds", 300)
	v.SetDefault("executors.twap.min_interval_ms", 2000)
	v.SetDefault("executors.twap.max_interval_ms", 30000)
	v.SetDefault("executors.vwap.duration_seconds", 300)
	v.SetDefault("executors.vwap.volume_profile", []float64{0.1, 0.15, 0.2, 0.25, 0.2, 0.1})
	v.SetDefault("executors.vwap.min_slice_qty_ratio", 0.02)
	v.SetDefault("executors.iceberg.tip_size", "1")
	v.SetDefault("executors.iceberg.refill_delay_ms", 1000)
	v.SetDefault("executors.behavioral.pattern", "RETAIL")
	v.SetDefault("executors.behavioral.noise_type", "BOTH")
	v.SetDefault("executors.behavioral.duration_seconds", 300)
	v.SetDefault("executors.behavioral.min_interval_ms", 2000)
	v.SetDefault("executors.behavioral.max_interval_ms", 20000)
	v.SetDefault("executors.behavioral.min_slices", 3)
	v.SetDefault("executors.behavioral.max_slices", 12)
	v.SetDefault("executors.behavioral.size_variance", 0.3)
	v.SetDefault("executors.behavioral.timing_variance", 0.4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Engine.MaxConcurrentPlans <= 0 {
		return fmt.Errorf("engine.max_concurrent_plans must be > 0")
	}
	if c.Engine.DefaultTimeout <= 0 {
		return fmt.Errorf("engine.default_timeout must be > 0")
	}
	if c.Risk.Margin.WarningThreshold <= 0 || c.Risk.Margin.WarningThreshold >= c.Risk.Margin.DangerThreshold {
		return fmt.Errorf("risk.margin thresholds must be strictly increasing starting above 0")
	}
	if c.Risk.Margin.DangerThreshold >= c.Risk.Margin.CriticalThreshold {
		return fmt.Errorf("risk.margin.danger_threshold must be < critical_threshold")
	}
	if c.Risk.Margin.CriticalThreshold >= c.Risk.Margin.ForceCloseWarnRatio {
		return fmt.Errorf("risk.margin.critical_threshold must be < force_close_warn_threshold")
	}
	if c.Risk.Margin.ForceCloseWarnRatio >= c.Risk.Margin.ForceCloseThreshold {
		return fmt.Errorf("risk.margin.force_close_warn_threshold must be < force_close_threshold")
	}
	if !c.DryRun && c.Broker.Demo.BaseURL == "" {
		return fmt.Errorf("broker.demo.base_url is required when dry_run is false")
	}
	if c.Fallback.ManualQueueMaxSize <= 0 {
		return fmt.Errorf("fallback.manual_queue_max_size must be > 0")
	}
	return nil
}
