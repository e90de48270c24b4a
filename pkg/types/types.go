// Package types defines the shared data structures used across all layers
// of the order execution pipeline. It has no dependency on any internal
// package, so it can be imported everywhere.
package types

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Offset distinguishes opening a new position from closing an existing one.
// CloseToday vs Close matters on exchanges (like CTP) that track same-day
// positions separately for fee/margin purposes.
type Offset string

const (
	OffsetOpen       Offset = "OPEN"
	OffsetClose      Offset = "CLOSE"
	OffsetCloseToday Offset = "CLOSE_TODAY"
)

// Algorithm names the execution algorithm assigned to an intent, either
// requested by the caller or chosen by the splitter.
type Algorithm string

const (
	AlgoImmediate  Algorithm = "IMMEDIATE"
	AlgoTWAP       Algorithm = "TWAP"
	AlgoVWAP       Algorithm = "VWAP"
	AlgoIceberg    Algorithm = "ICEBERG"
	AlgoBehavioral Algorithm = "BEHAVIORAL"
)

// Urgency expresses how time-sensitive an intent is. CRITICAL bypasses
// algorithm selection entirely (see internal/engine's executor table).
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// PlanStatus is the lifecycle state of an execution plan.
type PlanStatus string

const (
	PlanPending   PlanStatus = "PENDING"
	PlanActive    PlanStatus = "ACTIVE"
	PlanPaused    PlanStatus = "PAUSED"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanFailed    PlanStatus = "FAILED"
	PlanAborted   PlanStatus = "ABORTED"
	PlanCancelled PlanStatus = "CANCELLED"
)

// IsTerminal reports whether a plan in this status can no longer transition.
func (s PlanStatus) IsTerminal() bool {
	switch s {
	case PlanCompleted, PlanFailed, PlanAborted, PlanCancelled:
		return true
	default:
		return false
	}
}

// OrderEventKind enumerates the broker-reported events an executor reacts to.
type OrderEventKind string

const (
	EventAck          OrderEventKind = "ACK"
	EventPartialFill  OrderEventKind = "PARTIAL_FILL"
	EventFill         OrderEventKind = "FILL"
	EventReject       OrderEventKind = "REJECT"
	EventCancelAck    OrderEventKind = "CANCEL_ACK"
	EventCancelReject OrderEventKind = "CANCEL_REJECT"
)

// ErrorCode classifies a broker-reported rejection beyond its free-text
// Reason, for the subset of rejections a caller must react to
// programmatically rather than just log.
type ErrorCode string

// ErrCloseTodayRejected marks a REJECT caused by the instrument not
// having a same-day-opened position to close today against (CTP's
// close-today/close distinction). It authorizes falling back to a plain
// CLOSE offset on retry.
const ErrCloseTodayRejected ErrorCode = "CLOSETODAY"

// ————————————————————————————————————————————————————————————————————————
// Intent & plan data model
// ————————————————————————————————————————————————————————————————————————

// Intent is the immutable request to execute a trade, produced by an
// upstream strategy layer. IntentID is derived deterministically from its
// fields (see package intent) so re-submitting the same logical intent is
// idempotent.
type Intent struct {
	IntentID     string
	StrategyID   string
	DecisionHash string
	Instrument   string
	Side         Side
	Offset       Offset
	TargetQty    decimal.Decimal
	Algo         Algorithm // "" = let the splitter choose; may also be "POV"/"ADAPTIVE" (see engine substitution)
	Urgency      Urgency   // "" treated as NORMAL
	SignalTS     time.Time
	ExpiryTS     time.Time // zero value = never expires
	LimitPrice   decimal.Decimal // zero value = no limit (market-ish reference)
	RefPrice     decimal.Decimal // reference price used for order-value estimation
}

// Slice is a single child-order unit of an execution plan.
type Slice struct {
	Index         int
	Qty           decimal.Decimal
	TargetPrice   decimal.Decimal
	ScheduledTime time.Time
	Executed      bool
	Metadata      map[string]any // algo-specific audit metadata (e.g. VWAP normalized weight)
}

// PendingOrder tracks a child order that has been placed but not yet
// resolved (filled, rejected, or cancelled).
type PendingOrder struct {
	ClientOrderID string
	SliceIndex    int
	Qty           decimal.Decimal
	Price         decimal.Decimal
	PlacedAt      time.Time
}

// FilledOrder records a completed (fully or partially filled) child order.
type FilledOrder struct {
	ClientOrderID string
	SliceIndex    int
	Qty           decimal.Decimal
	Price         decimal.Decimal
	FilledAt      time.Time
}

// CancelledOrder records a child order that was rejected or cancelled,
// making its slice eligible for retry.
type CancelledOrder struct {
	ClientOrderID string
	SliceIndex    int
	Reason        string
	At            time.Time
}

// Progress summarizes fill progress for a plan.
type Progress struct {
	TargetQty  decimal.Decimal
	FilledQty  decimal.Decimal
	AvgPrice   decimal.Decimal
	SliceCount int
}

// PlanContext is the mutable execution state owned exclusively by the
// single goroutine (or striped lock) responsible for a given plan. No other
// component mutates it directly.
type PlanContext struct {
	PlanID          string // == Intent.IntentID
	Intent          Intent
	Algo            Algorithm
	Status          PlanStatus
	Slices          []Slice
	CurrentSliceIdx int
	PendingOrders   []PendingOrder
	FilledOrders    []FilledOrder
	Cancelled       []CancelledOrder
	Progress        Progress
	RetryCount      int
	StartedAt       time.Time
	Metadata        map[string]any
}

// OrderEvent is a broker-reported lifecycle event for one child order.
type OrderEvent struct {
	ClientOrderID string
	Kind          OrderEventKind
	FilledQty     decimal.Decimal
	FillPrice     decimal.Decimal
	Reason        string
	ErrorCode     ErrorCode
	At            time.Time
}

// ExecutionPlan is the read-only view of a PlanContext exposed to callers
// outside the owning goroutine (engine API, audit consumers).
type ExecutionPlan struct {
	PlanID   string
	IntentID string
	Algo     Algorithm
	Status   PlanStatus
	Progress Progress
}

// ClientOrderID returns the structured id: intentId-sliceIndex-retry.
func ClientOrderID(intentID string, sliceIndex, retry int) string {
	return intentID + "-" + strconv.Itoa(sliceIndex) + "-" + strconv.Itoa(retry)
}
