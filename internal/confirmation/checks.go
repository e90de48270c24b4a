package confirmation

import (
	"context"

	"orderpipe/pkg/types"
)

// DefaultRiskCheck is the permissive stand-in for a real pre-trade risk
// recheck (position limits, exposure caps): it always passes. A deployment
// wires its own risk engine in through NewManager's softChecks instead of
// relying on this.
func DefaultRiskCheck(ctx context.Context, c Context) (bool, string) {
	return true, "default risk check: no risk engine wired, pass-through"
}

// DefaultCostCheck is the permissive stand-in for a real cost/slippage
// recheck, mirroring DefaultRiskCheck.
func DefaultCostCheck(ctx context.Context, c Context) (bool, string) {
	return true, "default cost check: no cost engine wired, pass-through"
}

// DefaultLimitPriceCheck rejects an order that would cross a limit the
// instrument is already pinned against: a BUY while the instrument is
// limit-up, or a SELL while it is limit-down, can never fill and only
// queues a doomed order.
func DefaultLimitPriceCheck(ctx context.Context, c Context) (bool, string) {
	if c.Market.IsLimitUp && c.Side == types.SideBuy {
		return false, "instrument is limit-up, BUY cannot execute"
	}
	if c.Market.IsLimitDown && c.Side == types.SideSell {
		return false, "instrument is limit-down, SELL cannot execute"
	}
	return true, "limit-price check passed"
}

// DefaultSoftChecks is the SOFT tier's default sub-check set when a
// caller has no bespoke risk/cost engine of its own to wire in.
var DefaultSoftChecks = []Check{DefaultRiskCheck, DefaultCostCheck, DefaultLimitPriceCheck}

// DefaultUserConfirm is the no-operator stand-in for a real paging
// channel: it always times out rather than fabricating an approval,
// so HARD-tier flow degrades/rejects exactly as it would with a human
// operator who never responds.
func DefaultUserConfirm(ctx context.Context, c Context) (bool, string) {
	<-ctx.Done()
	return false, "no user-confirm channel configured, treated as no response"
}
