package breaker

import (
	"context"
	"time"

	"orderpipe/internal/confirmation"
)

// ExemptionConfig controls the HF exemption that lets qualifying
// high-frequency flow through an OPEN breaker.
type ExemptionConfig struct {
	EnableExemption     bool
	MaxExemptValue      float64
	InstrumentWhitelist []string // empty = allow all instruments
}

// UpgradeTable maps a confirmation level to the level it escalates to
// while the breaker is HALF_OPEN. Missing entries mean "no upgrade".
type UpgradeTable map[confirmation.Level]confirmation.Level

// DefaultUpgradeTable implements the spec's default AUTO->SOFT,
// SOFT->HARD half-open scrutiny bump.
var DefaultUpgradeTable = UpgradeTable{
	confirmation.LevelAuto: confirmation.LevelSoft,
	confirmation.LevelSoft: confirmation.LevelHard,
}

func (t UpgradeTable) upgrade(l confirmation.Level) confirmation.Level {
	if up, ok := t[l]; ok {
		return up
	}
	return l
}

// GuardedManager wraps a confirmation.Manager with breaker awareness:
// it blocks confirmation outright while OPEN (save for HF-exempt flow)
// and demands one extra tier of scrutiny while HALF_OPEN.
type GuardedManager struct {
	inner     *confirmation.Manager
	breaker   *Breaker
	exemption ExemptionConfig
	upgrades  UpgradeTable
}

// NewGuardedManager wires a confirmation manager behind a breaker.
func NewGuardedManager(inner *confirmation.Manager, b *Breaker, exemption ExemptionConfig, upgrades UpgradeTable) *GuardedManager {
	if upgrades == nil {
		upgrades = DefaultUpgradeTable
	}
	return &GuardedManager{inner: inner, breaker: b, exemption: exemption, upgrades: upgrades}
}

// Request carries what the breaker guard needs in addition to what
// confirmation.Context already provides.
type Request struct {
	confirmation.Context
	Instrument string
}

func (g *GuardedManager) isHFExempt(r Request) bool {
	e := g.exemption
	if !e.EnableExemption {
		return false
	}
	if r.Strategy != confirmation.StrategyHighFrequency {
		return false
	}
	if r.OrderValue > e.MaxExemptValue {
		return false
	}
	if len(e.InstrumentWhitelist) == 0 {
		return true
	}
	for _, sym := range e.InstrumentWhitelist {
		if sym == r.Instrument {
			return true
		}
	}
	return false
}

// Confirm inspects breaker state before delegating to the wrapped
// confirmation manager: OPEN rejects non-exempt flow outright; HALF_OPEN
// upgrades the computed level by one tier; CLOSED is a pass-through.
// Every decision then feeds back into the breaker — REJECTED calls
// Trigger (accumulating toward CLOSED->OPEN, or re-opening immediately
// from HALF_OPEN), APPROVED calls RecordSuccess (a no-op outside
// HALF_OPEN, where enough consecutive successes close it again).
func (g *GuardedManager) Confirm(ctx context.Context, r Request) confirmation.Decision {
	state := g.breaker.State()

	if state == StateOpen {
		if g.isHFExempt(r) {
			return g.inner.ConfirmWithLevelOverride(ctx, r.Context, nil)
		}
		return confirmation.Decision{
			ConfirmationID: "",
			Level:          confirmation.LevelHard,
			Result:         confirmation.ResultRejected,
			Reasons:        []string{"CIRCUIT_BREAKER_BLOCK"},
		}
	}

	var override func(confirmation.Level) confirmation.Level
	if state == StateHalfOpen {
		override = g.upgrades.upgrade
	}

	decision := g.inner.ConfirmWithLevelOverride(ctx, r.Context, override)
	// Every decision feeds the breaker, not just HALF_OPEN probes: a
	// REJECTED result while CLOSED must still accumulate toward
	// FailureThreshold, or CLOSED->OPEN (and therefore HALF_OPEN) can
	// never be reached. RecordSuccess is a no-op outside HALF_OPEN.
	if decision.Result == confirmation.ResultApproved {
		g.breaker.RecordSuccess()
	} else {
		g.breaker.Trigger(time.Now())
	}
	return decision
}
