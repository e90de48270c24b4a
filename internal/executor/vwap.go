package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// CanonicalIntradayUShape is the default volume profile used when a VWAP
// config doesn't supply one: a coarse U-shape (heavier at session open and
// close, lighter around midday) typical of Chinese-futures intraday
// volume, expressed as 6 equal-width buckets across the session.
var CanonicalIntradayUShape = []decimal.Decimal{
	decimal.NewFromFloat(0.22),
	decimal.NewFromFloat(0.16),
	decimal.NewFromFloat(0.10),
	decimal.NewFromFloat(0.10),
	decimal.NewFromFloat(0.16),
	decimal.NewFromFloat(0.26),
}

// VWAPConfig adds the volume profile and participation parameters.
type VWAPConfig struct {
	Config
	VolumeProfile    []decimal.Decimal // weights, need not be pre-normalized
	Duration         time.Duration
	ParticipationRate decimal.Decimal // informational; not read when building slices
	MinSliceQtyRatio decimal.Decimal // every slice but the last is at least targetQty * this ratio
}

// VWAP allocates slices proportional to a (typically historical) volume
// profile so that the execution pattern roughly tracks expected market
// volume instead of being spread uniformly.
type VWAP struct {
	cfg VWAPConfig
}

// NewVWAP builds a VWAP executor.
func NewVWAP(cfg VWAPConfig) *VWAP {
	return &VWAP{cfg: cfg}
}

func (e *VWAP) Algorithm() types.Algorithm { return types.AlgoVWAP }

func (e *VWAP) MakePlan(in types.Intent, now time.Time) (*types.PlanContext, error) {
	profile := e.cfg.VolumeProfile
	if len(profile) == 0 {
		profile = CanonicalIntradayUShape
	}
	slices := computeVWAPSlices(in.TargetQty, profile, e.cfg.MinSliceQtyRatio, e.cfg.Duration, in.LimitPrice, now)
	plan := &types.PlanContext{
		PlanID:    in.IntentID,
		Intent:    in,
		Algo:      types.AlgoVWAP,
		Status:    types.PlanPending,
		Slices:    slices,
		Progress:  types.Progress{TargetQty: in.TargetQty, SliceCount: len(slices)},
		StartedAt: now,
		Metadata:  map[string]any{"algo": string(types.AlgoVWAP), "slice_count": len(slices)},
	}
	return plan, nil
}

// computeVWAPSlices normalizes profile, allocates qty_i ~ round(target *
// profile[i]/sum), enforces a per-slice floor on every slice but the
// last, and sets the last slice to the remainder so the sum is exactly
// targetQty (the last slice is not floored). Slices are not capped at
// MaxSliceQty.
func computeVWAPSlices(targetQty decimal.Decimal, profile []decimal.Decimal, minRatio decimal.Decimal, duration time.Duration, limitPrice decimal.Decimal, start time.Time) []types.Slice {
	n := len(profile)
	sum := decimal.Zero
	for _, w := range profile {
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		sum = decimal.NewFromInt(int64(n))
		profile = make([]decimal.Decimal, n)
		for i := range profile {
			profile[i] = decimal.NewFromInt(1)
		}
	}

	floor := decimal.Zero
	if minRatio.GreaterThan(decimal.Zero) {
		floor = targetQty.Mul(minRatio)
	}

	var interval time.Duration
	if n > 1 {
		interval = duration / time.Duration(n-1)
	}

	qtys := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		q := targetQty.Mul(profile[i]).Div(sum).Round(0)
		if q.LessThan(floor) {
			q = floor.Round(0)
		}
		qtys[i] = q
		allocated = allocated.Add(q)
	}
	// Last slice absorbs the remainder so the total is exact.
	qtys[n-1] = targetQty.Sub(allocated)

	slices := make([]types.Slice, n)
	for i := 0; i < n; i++ {
		slices[i] = types.Slice{
			Index:         i,
			Qty:           qtys[i],
			TargetPrice:   limitPrice,
			ScheduledTime: start.Add(time.Duration(i) * interval),
			Metadata:      map[string]any{"normalized_weight": profile[i].Div(sum)},
		}
	}
	return slices
}

func (e *VWAP) NextAction(plan *types.PlanContext, now time.Time) NextAction {
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

func (e *VWAP) OnEvent(plan *types.PlanContext, ev types.OrderEvent) {
	handleEvent(plan, ev)
}
