package splitter

import (
	"testing"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

func TestDecideRejectsWhenConfirmationCallbackDenies(t *testing.T) {
	t.Parallel()
	s := New(Config{EnableConfirmation: true, ConfirmationThreshold: 100}, func(types.Intent, float64) bool {
		return false
	})
	in := types.Intent{
		IntentID:  "big-one",
		TargetQty: decimal.NewFromInt(10),
		RefPrice:  decimal.NewFromInt(50), // value = 500 >= threshold
	}
	_, err := s.Decide(in, MarketContext{Volatility: VolatilityNormal, Liquidity: LiquidityNormal, Session: SessionMorning})
	if err == nil {
		t.Fatal("expected error when confirmation callback rejects")
	}
}

func TestDecideSkipsConfirmationBelowThreshold(t *testing.T) {
	t.Parallel()
	called := false
	s := New(Config{EnableConfirmation: true, ConfirmationThreshold: 1000}, func(types.Intent, float64) bool {
		called = true
		return true
	})
	in := types.Intent{
		IntentID:  "small-one",
		TargetQty: decimal.NewFromInt(1),
		RefPrice:  decimal.NewFromInt(1),
	}
	if _, err := s.Decide(in, MarketContext{Volatility: VolatilityNormal, Liquidity: LiquidityNormal, Session: SessionMorning}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("confirmation callback should not be called below threshold")
	}
}
