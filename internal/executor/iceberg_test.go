package executor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

func TestIcebergTipsSumToTarget(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ex := NewIceberg(IcebergConfig{
		Config:      Config{RetryCount: 3},
		TipSize:     decimal.NewFromInt(10),
		RefillDelay: time.Second,
	})
	plan, err := ex.MakePlan(types.Intent{IntentID: "ice-1", TargetQty: decimal.NewFromInt(25)}, start)
	if err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	if len(plan.Slices) != 3 {
		t.Fatalf("slice count = %d, want 3 (10,10,5)", len(plan.Slices))
	}
	want := []int64{10, 10, 5}
	for i, s := range plan.Slices {
		if !s.Qty.Equal(decimal.NewFromInt(want[i])) {
			t.Errorf("slice %d qty = %s, want %d", i, s.Qty, want[i])
		}
	}
}

func TestIcebergWaitsWhilePendingOrderOutstanding(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ex := NewIceberg(IcebergConfig{
		Config:      Config{RetryCount: 3},
		TipSize:     decimal.NewFromInt(10),
		RefillDelay: time.Second,
	})
	plan, _ := ex.MakePlan(types.Intent{IntentID: "ice-2", TargetQty: decimal.NewFromInt(20)}, start)

	first := ex.NextAction(plan, start)
	if first.Kind != ActionPlaceOrder {
		t.Fatalf("expected PLACE_ORDER, got %v", first.Kind)
	}

	second := ex.NextAction(plan, start.Add(2*time.Second))
	if second.Kind != ActionWait {
		t.Fatalf("expected WAIT while tip is outstanding, got %v", second.Kind)
	}
}
