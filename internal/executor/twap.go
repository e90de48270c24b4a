package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// TWAPConfig adds the scheduling window to the shared Config.
type TWAPConfig struct {
	Config
	Duration    time.Duration // total time over which slices are spread
	MinInterval time.Duration // floor on inter-slice spacing (0 = no floor)
	MaxInterval time.Duration // ceiling on inter-slice spacing (0 = no ceiling)
}

// TWAP splits the target quantity into roughly equal slices spread evenly
// across Duration, each capped at MaxSliceQty. Any remainder from the
// integer division is distributed to the earliest slices so no slice
// exceeds MaxSliceQty and the last slice is never disproportionately
// large.
//
// Worked example: targetQty=100, duration=60s, maxSliceQty=40 produces 3
// slices of 34/33/33 at t, t+30s, t+60s.
type TWAP struct {
	cfg TWAPConfig
}

// NewTWAP builds a TWAP executor.
func NewTWAP(cfg TWAPConfig) *TWAP {
	return &TWAP{cfg: cfg}
}

func (e *TWAP) Algorithm() types.Algorithm { return types.AlgoTWAP }

func (e *TWAP) MakePlan(in types.Intent, now time.Time) (*types.PlanContext, error) {
	slices := computeTWAPSlices(in.TargetQty, e.cfg.MaxSliceQty, e.cfg.Duration, e.cfg.MinInterval, e.cfg.MaxInterval, in.LimitPrice, now)
	plan := &types.PlanContext{
		PlanID:    in.IntentID,
		Intent:    in,
		Algo:      types.AlgoTWAP,
		Status:    types.PlanPending,
		Slices:    slices,
		Progress:  types.Progress{TargetQty: in.TargetQty, SliceCount: len(slices)},
		StartedAt: now,
		Metadata:  map[string]any{"algo": string(types.AlgoTWAP), "slice_count": len(slices)},
	}
	return plan, nil
}

func computeTWAPSlices(targetQty, maxSliceQty decimal.Decimal, duration, minInterval, maxInterval time.Duration, limitPrice decimal.Decimal, start time.Time) []types.Slice {
	if maxSliceQty.LessThanOrEqual(decimal.Zero) {
		maxSliceQty = targetQty
	}
	n := int(targetQty.Div(maxSliceQty).Ceil().IntPart())
	if n < 1 {
		n = 1
	}

	base := targetQty.Div(decimal.NewFromInt(int64(n))).Truncate(0)
	remainder := targetQty.Sub(base.Mul(decimal.NewFromInt(int64(n))))

	var interval time.Duration
	if n > 1 {
		interval = duration / time.Duration(n-1)
		if minInterval > 0 && interval < minInterval {
			interval = minInterval
		}
		if maxInterval > 0 && interval > maxInterval {
			interval = maxInterval
		}
	}

	slices := make([]types.Slice, n)
	remainderUnits := remainder.IntPart()
	for i := 0; i < n; i++ {
		qty := base
		if int64(i) < remainderUnits {
			qty = qty.Add(decimal.NewFromInt(1))
		}
		slices[i] = types.Slice{
			Index:         i,
			Qty:           qty,
			TargetPrice:   limitPrice,
			ScheduledTime: start.Add(time.Duration(i) * interval),
		}
	}
	return slices
}

func (e *TWAP) NextAction(plan *types.PlanContext, now time.Time) NextAction {
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
		return NextAction{Kind: ActionWait, WaitUntil: slice.ScheduledTime, Reason: "awaiting slice schedule"}
	}
	return placeSliceOrder(plan, now, sliceRetryCount(plan, plan.CurrentSliceIdx))
}

func (e *TWAP) OnEvent(plan *types.PlanContext, ev types.OrderEvent) {
	handleEvent(plan, ev)
}
