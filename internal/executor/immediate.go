package executor

import (
	"time"

	"orderpipe/pkg/types"
)

// ImmediateConfig carries no fields beyond the shared Config — immediate
// execution is a single slice for the full target quantity, placed at
// once, matching original_source's ImmediateConfig ("use the base
// executor config unchanged").
type ImmediateConfig struct {
	Config
}

// Immediate places the entire target quantity as a single slice and
// retries it (up to RetryCount) until filled or rejected too many times.
type Immediate struct {
	cfg ImmediateConfig
}

// NewImmediate builds an Immediate executor.
func NewImmediate(cfg ImmediateConfig) *Immediate {
	return &Immediate{cfg: cfg}
}

func (e *Immediate) Algorithm() types.Algorithm { return types.AlgoImmediate }

func (e *Immediate) MakePlan(in types.Intent, now time.Time) (*types.PlanContext, error) {
	plan := &types.PlanContext{
		PlanID: in.IntentID,
		Intent: in,
		Algo:   types.AlgoImmediate,
		Status: types.PlanPending,
		Slices: []types.Slice{
			{Index: 0, Qty: in.TargetQty, TargetPrice: in.LimitPrice, ScheduledTime: now},
		},
		Progress:  types.Progress{TargetQty: in.TargetQty, SliceCount: 1},
		StartedAt: now,
		Metadata:  map[string]any{"algo": string(types.AlgoImmediate)},
	}
	return plan, nil
}

func (e *Immediate) NextAction(plan *types.PlanContext, now time.Time) NextAction {
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
	return placeSliceOrder(plan, now, sliceRetryCount(plan, plan.CurrentSliceIdx))
}

func (e *Immediate) OnEvent(plan *types.PlanContext, ev types.OrderEvent) {
	handleEvent(plan, ev)
}
