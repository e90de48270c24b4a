package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `
dry_run: true
engine:
  max_concurrent_plans: 10
  default_timeout: 15s
risk:
  margin:
    warning_threshold: 0.70
    danger_threshold: 0.80
    critical_threshold: 0.90
    force_close_warn_threshold: 0.95
    force_close_threshold: 1.00
broker:
  demo:
    base_url: "http://localhost:9999"
fallback:
  manual_queue_max_size: 100
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DryRun {
		t.Error("expected dry_run to be true from the YAML file")
	}
	if cfg.Engine.MaxConcurrentPlans != 10 {
		t.Errorf("got max_concurrent_plans=%d, want 10", cfg.Engine.MaxConcurrentPlans)
	}
	if !cfg.Engine.EnableAudit {
		t.Error("expected engine.enable_audit default of true")
	}
	if cfg.Audit.BufferSize != 1024 {
		t.Errorf("got audit.buffer_size=%d, want default 1024", cfg.Audit.BufferSize)
	}
}

func TestLoadEnvOverridesDryRun(t *testing.T) {
	t.Setenv("ORDERPIPE_DRY_RUN", "1")
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DryRun {
		t.Error("expected ORDERPIPE_DRY_RUN=1 to force dry_run true")
	}
}

func validConfig() Config {
	var cfg Config
	cfg.Engine.MaxConcurrentPlans = 10
	cfg.Engine.DefaultTimeout = 30 * time.Second
	cfg.Risk.Margin.WarningThreshold = 0.70
	cfg.Risk.Margin.DangerThreshold = 0.80
	cfg.Risk.Margin.CriticalThreshold = 0.90
	cfg.Risk.Margin.ForceCloseWarnRatio = 0.95
	cfg.Risk.Margin.ForceCloseThreshold = 1.00
	cfg.Fallback.ManualQueueMaxSize = 100
	cfg.DryRun = true
	return cfg
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected a well-formed config to validate, got %v", err)
	}
}

func TestValidateRejectsOutOfOrderMarginThresholds(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Risk.Margin.DangerThreshold = cfg.Risk.Margin.WarningThreshold
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for non-increasing margin thresholds")
	}
}

func TestValidateRejectsMissingBrokerURLWhenLive(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.DryRun = false
	cfg.Broker.Demo.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when broker.demo.base_url is empty and dry_run is false")
	}
}
