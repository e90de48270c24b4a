package splitter

import (
	"testing"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

func TestExtremeVolatilityOverridesToTWAP(t *testing.T) {
	t.Parallel()
	sel := NewSelector(DefaultSizeThresholds)
	algo, scores := sel.Select(
		types.Intent{TargetQty: decimal.NewFromInt(5)},
		MarketContext{Volatility: VolatilityExtreme},
	)
	if algo != types.AlgoTWAP {
		t.Errorf("algo = %v, want TWAP", algo)
	}
	if scores != nil {
		t.Error("expected no scoring trail on extreme-market override")
	}
}

func TestLimitUpOverridesToTWAPEvenAtNormalVolatility(t *testing.T) {
	t.Parallel()
	sel := NewSelector(DefaultSizeThresholds)
	algo, scores := sel.Select(
		types.Intent{TargetQty: decimal.NewFromInt(5)},
		MarketContext{Volatility: VolatilityHigh, IsLimitUp: true},
	)
	if algo != types.AlgoTWAP {
		t.Errorf("algo = %v, want TWAP (limit-up override)", algo)
	}
	if scores != nil {
		t.Error("expected no scoring trail on limit-up override")
	}
}

func TestExplicitAlgoHonored(t *testing.T) {
	t.Parallel()
	sel := NewSelector(DefaultSizeThresholds)
	algo, scores := sel.Select(
		types.Intent{TargetQty: decimal.NewFromInt(5), Algo: types.AlgoVWAP},
		MarketContext{Volatility: VolatilityNormal, Liquidity: LiquidityNormal, Session: SessionMorning},
	)
	if algo != types.AlgoVWAP {
		t.Errorf("algo = %v, want VWAP (explicitly requested)", algo)
	}
	if scores != nil {
		t.Error("expected no scoring trail when an explicit algo is honored")
	}
}

func TestScoredSelectionPicksHighestScore(t *testing.T) {
	t.Parallel()
	sel := NewSelector(DefaultSizeThresholds)
	algo, scores := sel.Select(
		types.Intent{TargetQty: decimal.NewFromInt(300)}, // HUGE
		MarketContext{Liquidity: LiquidityCritical, Session: SessionNightQuiet, Volatility: VolatilityHigh},
	)
	if len(scores) != 4 {
		t.Fatalf("expected 4 scored candidates, got %d", len(scores))
	}
	if algo != types.AlgoIceberg {
		t.Errorf("expected ICEBERG to win for a HUGE order in critical liquidity, got %v", algo)
	}
}

func TestClassifyOrderSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		qty  int64
		want OrderSizeCategory
	}{
		{5, SizeSmall},
		{10, SizeMedium},
		{50, SizeLarge},
		{200, SizeHuge},
	}
	for _, c := range cases {
		got := ClassifyOrderSize(decimal.NewFromInt(c.qty), DefaultSizeThresholds)
		if got != c.want {
			t.Errorf("ClassifyOrderSize(%d) = %v, want %v", c.qty, got, c.want)
		}
	}
}
