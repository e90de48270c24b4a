package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// IcebergConfig adds the visible-tip and refill parameters.
type IcebergConfig struct {
	Config
	TipSize    decimal.Decimal // visible quantity per tip; takes precedence over TipRatio if set
	TipRatio   decimal.Decimal // tip size as a fraction of targetQty, used when TipSize is zero
	RefillDelay time.Duration  // minimum gap before the next tip may be scheduled
}

// Iceberg releases the target quantity as a sequence of equal-size
// "tips," never exposing more than one tip's worth of resting quantity
// at a time: the next tip's order is not placed until the previous one
// has resolved (filled or cancelled), which checkPendingOrders already
// enforces by returning WAIT while pendingOrders is non-empty.
type Iceberg struct {
	cfg IcebergConfig
}

// NewIceberg builds an Iceberg executor.
func NewIceberg(cfg IcebergConfig) *Iceberg {
	return &Iceberg{cfg: cfg}
}

func (e *Iceberg) Algorithm() types.Algorithm { return types.AlgoIceberg }

func (e *Iceberg) MakePlan(in types.Intent, now time.Time) (*types.PlanContext, error) {
	tip := e.cfg.TipSize
	if tip.LessThanOrEqual(decimal.Zero) {
		ratio := e.cfg.TipRatio
		if ratio.LessThanOrEqual(decimal.Zero) {
			ratio = decimal.NewFromFloat(0.1)
		}
		tip = in.TargetQty.Mul(ratio).Round(0)
	}
	if tip.LessThanOrEqual(decimal.Zero) {
		tip = in.TargetQty
	}

	slices := computeIcebergSlices(in.TargetQty, tip, in.LimitPrice, now, e.cfg.RefillDelay)
	plan := &types.PlanContext{
		PlanID:    in.IntentID,
		Intent:    in,
		Algo:      types.AlgoIceberg,
		Status:    types.PlanPending,
		Slices:    slices,
		Progress:  types.Progress{TargetQty: in.TargetQty, SliceCount: len(slices)},
		StartedAt: now,
		Metadata:  map[string]any{"algo": string(types.AlgoIceberg), "tip_size": tip.String()},
	}
	return plan, nil
}

func computeIcebergSlices(targetQty, tip, limitPrice decimal.Decimal, start time.Time, refillDelay time.Duration) []types.Slice {
	var slices []types.Slice
	remaining := targetQty
	idx := 0
	for remaining.GreaterThan(decimal.Zero) {
		qty := tip
		if qty.GreaterThan(remaining) {
			qty = remaining
		}
		slices = append(slices, types.Slice{
			Index:         idx,
			Qty:           qty,
			TargetPrice:   limitPrice,
			ScheduledTime: start.Add(time.Duration(idx) * refillDelay),
		})
		remaining = remaining.Sub(qty)
		idx++
	}
	return slices
}

func (e *Iceberg) NextAction(plan *types.PlanContext, now time.Time) NextAction {
	if a, handled := checkTerminal(plan); handled {
		return a
	}
	if a, handled := checkPaused(plan); handled {
		return a
	}
	if a, handled := checkPendingOrders(plan, e.cfg.Config, now); handled {
		return a
	}
	if a, handled := checkComplete(plan); handled {
		return a
	}
	if a, handled := advancePastExhaustedSlices(plan, e.cfg.Config); handled {
		return a
	}
	slice := plan.Slices[plan.CurrentSliceIdx]
	if now.Before(slice.ScheduledTime) {
		return NextAction{Kind: ActionWait, WaitUntil: slice.ScheduledTime, Reason: "awaiting refill delay"}
	}
	return placeSliceOrder(plan, now, sliceRetryCount(plan, plan.CurrentSliceIdx))
}

func (e *Iceberg) OnEvent(plan *types.PlanContext, ev types.OrderEvent) {
	handleEvent(plan, ev)
}
