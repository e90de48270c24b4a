// Package confirmation implements the tiered order-confirmation gate
// (AUTO / SOFT / HARD) that sits between the splitter choosing an
// algorithm and the engine actually building an execution plan.
package confirmation

import (
	"time"

	"orderpipe/pkg/types"
)

// Level is the confirmation tier an order is routed through.
type Level string

const (
	LevelAuto Level = "AUTO"
	LevelSoft Level = "SOFT"
	LevelHard Level = "HARD"
)

var levelPriority = map[Level]int{LevelAuto: 0, LevelSoft: 1, LevelHard: 2}

// maxLevel returns whichever of a, b has the higher priority.
func maxLevel(a, b Level) Level {
	if levelPriority[b] > levelPriority[a] {
		return b
	}
	return a
}

// Result is the outcome of running a confirmation check.
type Result string

const (
	ResultApproved Result = "APPROVED"
	ResultRejected Result = "REJECTED"
	ResultTimeout  Result = "TIMEOUT"
	ResultDegraded Result = "DEGRADED"
)

// SessionType classifies when in the trading calendar an order arrives.
type SessionType string

const (
	SessionDay      SessionType = "DAY"
	SessionNight    SessionType = "NIGHT"
	SessionVolatile SessionType = "VOLATILE_PERIOD"
)

// StrategyType classifies the originating strategy for routing purposes.
type StrategyType string

const (
	StrategyHighFrequency StrategyType = "HIGH_FREQUENCY"
	StrategyProduction    StrategyType = "PRODUCTION"
	StrategyExperimental  StrategyType = "EXPERIMENTAL"
)

// OrderValueThresholds gate AUTO vs SOFT vs HARD by notional value.
type OrderValueThresholds struct {
	AutoMax      float64
	SoftConfirmMax float64
}

// DefaultOrderValueThresholds mirrors the reference implementation's
// defaults (500,000 / 2,000,000 notional units).
var DefaultOrderValueThresholds = OrderValueThresholds{AutoMax: 500_000, SoftConfirmMax: 2_000_000}

// MarketConditionThresholds gate level escalation by market stress.
type MarketConditionThresholds struct {
	VolatilityPct float64
	PriceGapPct   float64
	LimitHitCount int
}

// DefaultMarketConditionThresholds mirrors the reference defaults.
var DefaultMarketConditionThresholds = MarketConditionThresholds{VolatilityPct: 0.05, PriceGapPct: 0.03, LimitHitCount: 2}

// MarketConditions is the caller-supplied snapshot used for level
// determination.
type MarketConditions struct {
	VolatilityPct float64
	PriceGapPct   float64
	LimitHitCount int
	IsLimitUp     bool
	IsLimitDown   bool
}

// Context is everything DetermineLevel and the confirmation checks need
// to decide and execute a confirmation.
type Context struct {
	IntentID    string
	OrderValue  float64
	Side        types.Side
	Strategy    StrategyType
	Session     SessionType
	Market      MarketConditions
	RequestedAt time.Time
}

// Decision is the final outcome of a confirmation run.
type Decision struct {
	ConfirmationID string
	Level          Level
	Result         Result
	Reasons        []string
	Elapsed        time.Duration
}
