package executor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

func TestTWAPWorkedExample(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ex := NewTWAP(TWAPConfig{
		Config:   Config{MaxSliceQty: decimal.NewFromInt(40), RetryCount: 3},
		Duration: 60 * time.Second,
	})

	plan, err := ex.MakePlan(types.Intent{
		IntentID:  "intent-1",
		TargetQty: decimal.NewFromInt(100),
	}, start)
	if err != nil {
		t.Fatalf("MakePlan: %v", err)
	}

	if len(plan.Slices) != 3 {
		t.Fatalf("slice count = %d, want 3", len(plan.Slices))
	}

	wantQty := []int64{34, 33, 33}
	wantOffsets := []time.Duration{0, 30 * time.Second, 60 * time.Second}
	for i, s := range plan.Slices {
		if !s.Qty.Equal(decimal.NewFromInt(wantQty[i])) {
			t.Errorf("slice %d qty = %s, want %d", i, s.Qty, wantQty[i])
		}
		want := start.Add(wantOffsets[i])
		if !s.ScheduledTime.Equal(want) {
			t.Errorf("slice %d time = %v, want %v", i, s.ScheduledTime, want)
		}
	}
}

func TestTWAPPlaceThenFillCompletesPlan(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ex := NewTWAP(TWAPConfig{
		Config:   Config{MaxSliceQty: decimal.NewFromInt(100), RetryCount: 3},
		Duration: 0,
	})
	plan, _ := ex.MakePlan(types.Intent{IntentID: "i2", TargetQty: decimal.NewFromInt(50)}, start)

	action := ex.NextAction(plan, start)
	if action.Kind != ActionPlaceOrder {
		t.Fatalf("expected PLACE_ORDER, got %v", action.Kind)
	}

	ex.OnEvent(plan, types.OrderEvent{
		ClientOrderID: action.ClientOrderID,
		Kind:          types.EventFill,
		FilledQty:     decimal.NewFromInt(50),
		FillPrice:     decimal.NewFromInt(10),
		At:            start,
	})

	final := ex.NextAction(plan, start)
	if final.Kind != ActionComplete {
		t.Fatalf("expected COMPLETE after full fill, got %v", final.Kind)
	}
	if plan.Status != types.PlanCompleted {
		t.Errorf("plan.Status = %v, want COMPLETED", plan.Status)
	}
}

func TestTWAPRejectResetsSliceForRetry(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ex := NewTWAP(TWAPConfig{
		Config:   Config{MaxSliceQty: decimal.NewFromInt(100), RetryCount: 3},
		Duration: 0,
	})
	plan, _ := ex.MakePlan(types.Intent{IntentID: "i3", TargetQty: decimal.NewFromInt(50)}, start)

	first := ex.NextAction(plan, start)
	ex.OnEvent(plan, types.OrderEvent{ClientOrderID: first.ClientOrderID, Kind: types.EventReject, Reason: "no liquidity", At: start})

	if plan.Slices[0].Executed {
		t.Error("expected slice 0 to be reset to unexecuted after reject")
	}
	if len(plan.Cancelled) != 1 {
		t.Fatalf("expected 1 cancelled entry, got %d", len(plan.Cancelled))
	}

	retry := ex.NextAction(plan, start)
	if retry.Kind != ActionPlaceOrder {
		t.Fatalf("expected retry PLACE_ORDER, got %v", retry.Kind)
	}
	if retry.ClientOrderID == first.ClientOrderID {
		t.Error("expected a new clientOrderId on retry")
	}
}
