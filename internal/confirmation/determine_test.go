package confirmation

import "testing"

func TestDetermineLevelAutoForHighFrequencyOrdinaryOrder(t *testing.T) {
	t.Parallel()
	level, reasons := DetermineLevel(Context{
		OrderValue: 1000,
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelAuto {
		t.Fatalf("got level=%s, want AUTO", level)
	}
	if len(reasons) != 0 {
		t.Errorf("expected no reasons for an ordinary HF order, got %v", reasons)
	}
}

func TestDetermineLevelProductionStrategyAlwaysAtLeastSoft(t *testing.T) {
	t.Parallel()
	level, reasons := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyProduction,
		Session:    SessionDay,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelSoft {
		t.Fatalf("got level=%s, want SOFT", level)
	}
	if len(reasons) == 0 {
		t.Error("expected a reason explaining the production-strategy escalation")
	}
}

func TestDetermineLevelExperimentalStrategyAlwaysHard(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyExperimental,
		Session:    SessionDay,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelHard {
		t.Fatalf("got level=%s, want HARD", level)
	}
}

func TestDetermineLevelSoftAboveAutoCeiling(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 600_000,
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelSoft {
		t.Fatalf("got level=%s, want SOFT", level)
	}
}

func TestDetermineLevelHardAboveSoftCeiling(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 3_000_000,
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelHard {
		t.Fatalf("got level=%s, want HARD", level)
	}
}

func TestDetermineLevelNightSessionEscalatesToSoft(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyHighFrequency,
		Session:    SessionNight,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelSoft {
		t.Fatalf("got level=%s, want SOFT", level)
	}
}

func TestDetermineLevelVolatileSessionEscalatesToHard(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyHighFrequency,
		Session:    SessionVolatile,
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelHard {
		t.Fatalf("got level=%s, want HARD", level)
	}
}

func TestDetermineLevelPriceGapEscalatesToSoft(t *testing.T) {
	t.Parallel()
	level, reasons := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
		Market:     MarketConditions{PriceGapPct: 0.05},
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelSoft {
		t.Fatalf("got level=%s, want SOFT", level)
	}
	if len(reasons) != 1 {
		t.Errorf("expected exactly one reason, got %v", reasons)
	}
}

func TestDetermineLevelLimitHitCountEscalatesToHard(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
		Market:     MarketConditions{LimitHitCount: 2},
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelHard {
		t.Fatalf("got level=%s, want HARD", level)
	}
}

func TestDetermineLevelAtLimitEscalatesToSoft(t *testing.T) {
	t.Parallel()
	level, _ := DetermineLevel(Context{
		OrderValue: 1,
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
		Market:     MarketConditions{IsLimitUp: true},
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelSoft {
		t.Fatalf("got level=%s, want SOFT", level)
	}
}

func TestDetermineLevelTakesHighestOfMultipleTriggers(t *testing.T) {
	t.Parallel()
	level, reasons := DetermineLevel(Context{
		OrderValue: 600_000, // SOFT on its own
		Strategy:   StrategyHighFrequency,
		Session:    SessionDay,
		Market:     MarketConditions{LimitHitCount: 5}, // HARD on its own
	}, DefaultOrderValueThresholds, DefaultMarketConditionThresholds)
	if level != LevelHard {
		t.Fatalf("got level=%s, want HARD (max of SOFT and HARD triggers)", level)
	}
	if len(reasons) != 2 {
		t.Errorf("expected both contributing reasons recorded, got %v", reasons)
	}
}
