// Package executor implements the closed set of execution algorithms a
// plan can run under: Immediate, TWAP, VWAP, Iceberg, and
// Behavioral-Disguise. Each is a small state machine driven by
// NextAction/OnEvent calls from the owning engine goroutine — no
// executor spawns its own goroutine or timer; scheduling is entirely
// data (Slice.ScheduledTime) so a plan's decisions replay identically
// regardless of wall-clock jitter.
package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// ActionKind is the instruction an executor hands back to the engine.
type ActionKind string

const (
	ActionWait        ActionKind = "WAIT"
	ActionPlaceOrder  ActionKind = "PLACE_ORDER"
	ActionCancelOrder ActionKind = "CANCEL_ORDER"
	ActionComplete    ActionKind = "COMPLETE"
	ActionFail        ActionKind = "FAIL"
	ActionAbort       ActionKind = "ABORT"
)

// NextAction is the result of asking an executor what to do next for a plan.
type NextAction struct {
	Kind          ActionKind
	ClientOrderID string
	SliceIndex    int
	Qty           decimal.Decimal
	Price         decimal.Decimal
	Offset        types.Offset // meaningful only when Kind == ActionPlaceOrder
	WaitUntil     time.Time    // meaningful only when Kind == ActionWait
	Reason        string
	Metadata      map[string]any
}

// Config holds the parameters shared by every executor variant. Variant
// configs embed this and add their own fields (see immediate.go, twap.go,
// vwap.go, iceberg.go, behavioral.go).
type Config struct {
	MaxSliceQty         decimal.Decimal
	RetryCount          int
	PendingOrderTimeout time.Duration
}

// Executor is the closed sum-type contract every algorithm implements.
// The engine dispatches to the right implementation via Algo (see
// internal/engine's selection table) — there is no open-ended plugin
// registration, by design: the set of variants is fixed.
type Executor interface {
	Algorithm() types.Algorithm
	MakePlan(in types.Intent, now time.Time) (*types.PlanContext, error)
	NextAction(plan *types.PlanContext, now time.Time) NextAction
	OnEvent(plan *types.PlanContext, ev types.OrderEvent)
}
