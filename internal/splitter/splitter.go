package splitter

import (
	"fmt"

	"orderpipe/pkg/types"
)

// ConfirmCheck is invoked before an order at or above ConfirmationThreshold
// is split, giving the caller (the confirmation/circuit-breaker layer) a
// chance to reject it. Returning false aborts Decide.
type ConfirmCheck func(in types.Intent, orderValue float64) bool

// Config tunes splitting/selection behavior.
type Config struct {
	SizeThresholds        SizeThresholds
	EnableConfirmation    bool
	ConfirmationThreshold float64 // order value at or above which ConfirmCheck is consulted
}

// PlanDecision is what Decide hands back to the engine: the
// chosen algorithm plus the scoring trail for audit.
type PlanDecision struct {
	Algo       types.Algorithm
	OrderValue float64
	Scores     []AlgorithmScore
}

// Splitter wraps a Selector with the confirmation-gating and audit-value
// estimation steps that sit between "an intent arrived" and "an executor
// was asked to build a plan."
type Splitter struct {
	cfg      Config
	selector *Selector
	confirm  ConfirmCheck
}

// New builds a Splitter. confirm may be nil if EnableConfirmation is false.
func New(cfg Config, confirm ConfirmCheck) *Splitter {
	return &Splitter{cfg: cfg, selector: NewSelector(cfg.SizeThresholds), confirm: confirm}
}

// Decide estimates order value, consults the confirmation callback when
// configured and the value crosses ConfirmationThreshold, and then selects
// an algorithm.
func (s *Splitter) Decide(in types.Intent, mkt MarketContext) (PlanDecision, error) {
	value, _ := EstimateOrderValue(in).Float64()

	if s.cfg.EnableConfirmation && s.confirm != nil && value >= s.cfg.ConfirmationThreshold {
		if !s.confirm(in, value) {
			return PlanDecision{}, fmt.Errorf("splitter: confirmation rejected intent %s (value=%.2f)", in.IntentID, value)
		}
	}

	algo, scores := s.selector.Select(in, mkt)
	return PlanDecision{Algo: algo, OrderValue: value, Scores: scores}, nil
}
