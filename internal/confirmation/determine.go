package confirmation

import "fmt"

// DetermineLevel evaluates every criterion independently, collects a
// (level, reason) pair from each, and returns the highest level reached
// plus all contributing reasons — so an operator reading an audit event
// sees exactly why an order escalated, not just the final tier.
func DetermineLevel(ctx Context, valueTh OrderValueThresholds, marketTh MarketConditionThresholds) (Level, []string) {
	level := LevelAuto
	var reasons []string

	add := func(l Level, reason string) {
		level = maxLevel(level, l)
		reasons = append(reasons, reason)
	}

	switch {
	case ctx.OrderValue >= valueTh.SoftConfirmMax:
		add(LevelHard, fmt.Sprintf("order value %.2f exceeds soft-confirm ceiling %.2f", ctx.OrderValue, valueTh.SoftConfirmMax))
	case ctx.OrderValue >= valueTh.AutoMax:
		add(LevelSoft, fmt.Sprintf("order value %.2f exceeds auto ceiling %.2f", ctx.OrderValue, valueTh.AutoMax))
	}

	if ctx.Market.VolatilityPct > marketTh.VolatilityPct {
		add(LevelSoft, fmt.Sprintf("market volatility %.4f > threshold %.4f", ctx.Market.VolatilityPct, marketTh.VolatilityPct))
	}
	if ctx.Market.PriceGapPct > marketTh.PriceGapPct {
		add(LevelSoft, fmt.Sprintf("price gap %.4f > threshold %.4f", ctx.Market.PriceGapPct, marketTh.PriceGapPct))
	}
	if ctx.Market.LimitHitCount >= marketTh.LimitHitCount {
		add(LevelHard, fmt.Sprintf("limit-hit count %d >= threshold %d", ctx.Market.LimitHitCount, marketTh.LimitHitCount))
	}
	if ctx.Market.IsLimitUp || ctx.Market.IsLimitDown {
		add(LevelSoft, "instrument currently at limit")
	}

	switch ctx.Session {
	case SessionNight:
		add(LevelSoft, "order arrived during the night session")
	case SessionVolatile:
		add(LevelHard, "order arrived during a volatile session window")
	}

	switch ctx.Strategy {
	case StrategyProduction:
		add(LevelSoft, "production strategy always requires at least soft confirmation")
	case StrategyExperimental:
		add(LevelHard, "experimental strategy always requires hard confirmation")
	}

	return level, reasons
}
