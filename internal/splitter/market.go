// Package splitter chooses which execution algorithm a plan runs under
// and estimates its notional order value for confirmation routing.
package splitter

import (
	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// OrderSizeCategory buckets an order by how large it is relative to
// typical clip sizes.
type OrderSizeCategory string

const (
	SizeSmall  OrderSizeCategory = "SMALL"
	SizeMedium OrderSizeCategory = "MEDIUM"
	SizeLarge  OrderSizeCategory = "LARGE"
	SizeHuge   OrderSizeCategory = "HUGE"
)

// LiquidityLevel buckets how liquid the instrument currently is.
type LiquidityLevel string

const (
	LiquidityHigh     LiquidityLevel = "HIGH"
	LiquidityNormal   LiquidityLevel = "NORMAL"
	LiquidityLow      LiquidityLevel = "LOW"
	LiquidityCritical LiquidityLevel = "CRITICAL"
)

// SessionPhase buckets where in the trading session the order arrives.
type SessionPhase string

const (
	SessionOpening     SessionPhase = "OPENING"
	SessionMorning     SessionPhase = "MORNING"
	SessionAfternoon   SessionPhase = "AFTERNOON"
	SessionClosing     SessionPhase = "CLOSING"
	SessionNightActive SessionPhase = "NIGHT_ACTIVE"
	SessionNightQuiet  SessionPhase = "NIGHT_QUIET"
)

// VolatilityLevel buckets instantaneous market volatility.
type VolatilityLevel string

const (
	VolatilityLow     VolatilityLevel = "LOW"
	VolatilityNormal  VolatilityLevel = "NORMAL"
	VolatilityHigh    VolatilityLevel = "HIGH"
	VolatilityExtreme VolatilityLevel = "EXTREME"
)

// MarketContext is the externally supplied snapshot the selector scores
// against. Nothing in this package computes these fields from raw market
// data — that's the caller's (an upstream market-data component's) job,
// out of this pipeline's scope.
type MarketContext struct {
	Liquidity   LiquidityLevel
	Session     SessionPhase
	Volatility  VolatilityLevel
	IsLimitUp   bool
	IsLimitDown bool
}

// SizeThresholds classify a target quantity into an OrderSizeCategory.
type SizeThresholds struct {
	Medium decimal.Decimal
	Large  decimal.Decimal
	Huge   decimal.Decimal
}

// DefaultSizeThresholds provides reasonable futures-lot boundaries.
var DefaultSizeThresholds = SizeThresholds{
	Medium: decimal.NewFromInt(10),
	Large:  decimal.NewFromInt(50),
	Huge:   decimal.NewFromInt(200),
}

// ClassifyOrderSize buckets a target quantity by the configured thresholds.
func ClassifyOrderSize(qty decimal.Decimal, th SizeThresholds) OrderSizeCategory {
	switch {
	case qty.GreaterThanOrEqual(th.Huge):
		return SizeHuge
	case qty.GreaterThanOrEqual(th.Large):
		return SizeLarge
	case qty.GreaterThanOrEqual(th.Medium):
		return SizeMedium
	default:
		return SizeSmall
	}
}

// EstimateOrderValue is refPrice * targetQty, used by Decide to gate the
// confirmation callback. The selector's extreme-market override does not
// use it.
func EstimateOrderValue(in types.Intent) decimal.Decimal {
	return in.RefPrice.Mul(in.TargetQty)
}
