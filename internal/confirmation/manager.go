package confirmation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"orderpipe/internal/audit"
)

// Check is one of SOFT's three independent sub-checks (risk, cost, limit).
// It should respect ctx cancellation promptly.
type Check func(ctx context.Context, c Context) (bool, string)

// UserConfirm is the HARD-tier external callback that pages a human and
// waits for their decision.
type UserConfirm func(ctx context.Context, c Context) (bool, string)

// AlertFunc notifies a human operator that a HARD-tier confirmation is
// awaiting their decision. It runs before the blocking wait on
// UserConfirm and should not itself block on that decision.
type AlertFunc func(ctx context.Context, confirmationID string, c Context)

// Config tunes manager behavior, including the Open-Question decision to
// keep the SOFT-timeout permissive posture configurable.
type Config struct {
	ValueThresholds            OrderValueThresholds
	MarketThresholds           MarketConditionThresholds
	SoftTimeout                time.Duration
	SoftTimeoutPermissive      bool // true: SOFT overall timeout -> APPROVED
	HardTimeout                time.Duration
	EnableNightSessionDegrade  bool
	Alert                      AlertFunc
}

// DefaultConfig mirrors the reference implementation's defaults.
var DefaultConfig = Config{
	ValueThresholds:           DefaultOrderValueThresholds,
	MarketThresholds:          DefaultMarketConditionThresholds,
	SoftTimeout:               3 * time.Second,
	SoftTimeoutPermissive:     true,
	HardTimeout:               30 * time.Second,
	EnableNightSessionDegrade: true,
}

// Manager routes intents through the appropriate confirmation tier and
// emits audit events for every decision.
type Manager struct {
	cfg         Config
	softChecks  []Check
	userConfirm UserConfirm
	stream      *audit.Stream
	counter     atomic.Int64
}

// NewManager builds a confirmation manager. softChecks should contain the
// SOFT tier's independent sub-checks (risk/cost/limit, in the reference
// implementation); userConfirm is the HARD tier's human-in-the-loop hook.
func NewManager(cfg Config, softChecks []Check, userConfirm UserConfirm, stream *audit.Stream) *Manager {
	return &Manager{cfg: cfg, softChecks: softChecks, userConfirm: userConfirm, stream: stream}
}

func (m *Manager) nextConfirmationID(now time.Time) string {
	n := m.counter.Add(1)
	return fmt.Sprintf("CONF-%d-%06d", now.UnixMilli(), n)
}

// Confirm runs the full confirmation flow for a context, routing to
// AUTO/SOFT/HARD per DetermineLevel.
func (m *Manager) Confirm(ctx context.Context, c Context) Decision {
	return m.ConfirmWithLevelOverride(ctx, c, nil)
}

// ConfirmWithLevelOverride runs the same flow as Confirm but, when
// override is non-nil, applies it to the level DetermineLevel computed
// before routing — this is the hook the circuit-breaker wrapper uses to
// upgrade one tier while the breaker is HALF_OPEN.
func (m *Manager) ConfirmWithLevelOverride(ctx context.Context, c Context, override func(Level) Level) Decision {
	start := time.Now()
	level, reasons := DetermineLevel(c, m.cfg.ValueThresholds, m.cfg.MarketThresholds)
	if override != nil {
		if upgraded := override(level); upgraded != level {
			reasons = append(reasons, fmt.Sprintf("level upgraded from %s to %s by circuit-breaker half-open policy", level, upgraded))
			level = upgraded
		}
	}
	confirmationID := m.nextConfirmationID(start)

	var decision Decision
	switch level {
	case LevelAuto:
		decision = Decision{ConfirmationID: confirmationID, Level: level, Result: ResultApproved, Reasons: reasons}
	case LevelSoft:
		decision = m.runSoft(ctx, c, confirmationID, reasons)
	case LevelHard:
		decision = m.runHard(ctx, c, confirmationID, reasons)
	}
	decision.Elapsed = time.Since(start)

	m.stream.Emit(audit.Event{
		Kind:          audit.KindConfirmationDecided,
		CorrelationID: c.IntentID,
		Data: map[string]any{
			"confirmation_id": decision.ConfirmationID,
			"level":           decision.Level,
			"result":          decision.Result,
			"reasons":         decision.Reasons,
		},
	})
	return decision
}

// runSoft fans out the configured sub-checks concurrently, each bounded
// to SoftTimeout/3, and resolves to REJECTED if any check explicitly
// rejects. A check that times out is treated as a pass (permissive),
// matching the reference implementation. If the overall SOFT timeout
// elapses before all checks report, the result depends on
// SoftTimeoutPermissive.
func (m *Manager) runSoft(parent context.Context, c Context, confirmationID string, reasons []string) Decision {
	overall, cancel := context.WithTimeout(parent, m.cfg.SoftTimeout)
	defer cancel()

	perCheck := m.cfg.SoftTimeout / 3
	if perCheck <= 0 {
		perCheck = time.Second
	}

	type result struct {
		ok     bool
		reason string
	}
	results := make(chan result, len(m.softChecks))
	for _, check := range m.softChecks {
		check := check
		go func() {
			cctx, ccancel := context.WithTimeout(overall, perCheck)
			defer ccancel()
			done := make(chan result, 1)
			go func() {
				ok, reason := check(cctx, c)
				done <- result{ok: ok, reason: reason}
			}()
			select {
			case r := <-done:
				results <- r
			case <-cctx.Done():
				results <- result{ok: true, reason: "sub-check timed out, treated as pass"}
			}
		}()
	}

	collected := 0
	for collected < len(m.softChecks) {
		select {
		case r := <-results:
			collected++
			if !r.ok {
				return Decision{ConfirmationID: confirmationID, Level: LevelSoft, Result: ResultRejected, Reasons: append(reasons, r.reason)}
			}
		case <-overall.Done():
			if m.cfg.SoftTimeoutPermissive {
				return Decision{ConfirmationID: confirmationID, Level: LevelSoft, Result: ResultApproved, Reasons: append(reasons, "soft confirmation overall timeout, permissive policy")}
			}
			return Decision{ConfirmationID: confirmationID, Level: LevelSoft, Result: ResultRejected, Reasons: append(reasons, "soft confirmation overall timeout, restrictive policy")}
		}
	}
	return Decision{ConfirmationID: confirmationID, Level: LevelSoft, Result: ResultApproved, Reasons: reasons}
}

// runHard pages a human via userConfirm. It emits a granular audit trail
// around the page (STARTED, ALERT_SENT, and on timeout either DEGRADED or
// the existing circuit-break event) so a HARD confirmation's full
// lifecycle is reconstructible from the audit stream alone, not just its
// terminal CONFIRMATION_DECIDED event. On timeout: during the night
// session (if degrade is enabled) it falls back to the SOFT tier and
// returns a DEGRADED result merging reasons; during the day session it
// rejects and emits a circuit-break audit event.
func (m *Manager) runHard(parent context.Context, c Context, confirmationID string, reasons []string) Decision {
	m.stream.Emit(audit.Event{
		Kind:          audit.KindHardConfirmStarted,
		CorrelationID: c.IntentID,
		Data:          map[string]any{"confirmation_id": confirmationID, "session": c.Session},
	})

	if m.userConfirm == nil {
		return Decision{ConfirmationID: confirmationID, Level: LevelHard, Result: ResultRejected, Reasons: append(reasons, "no user-confirm channel configured")}
	}

	hctx, cancel := context.WithTimeout(parent, m.cfg.HardTimeout)
	defer cancel()

	if m.cfg.Alert != nil {
		m.cfg.Alert(hctx, confirmationID, c)
	}
	m.stream.Emit(audit.Event{
		Kind:          audit.KindHardConfirmAlertSent,
		CorrelationID: c.IntentID,
		Data:          map[string]any{"confirmation_id": confirmationID},
	})

	type result struct {
		ok     bool
		reason string
	}
	done := make(chan result, 1)
	go func() {
		ok, reason := m.userConfirm(hctx, c)
		done <- result{ok: ok, reason: reason}
	}()

	select {
	case r := <-done:
		if r.ok {
			return Decision{ConfirmationID: confirmationID, Level: LevelHard, Result: ResultApproved, Reasons: append(reasons, r.reason)}
		}
		return Decision{ConfirmationID: confirmationID, Level: LevelHard, Result: ResultRejected, Reasons: append(reasons, r.reason)}
	case <-hctx.Done():
		m.stream.Emit(audit.Event{
			Kind:          audit.KindHardConfirmTimeout,
			CorrelationID: c.IntentID,
			Data:          map[string]any{"confirmation_id": confirmationID},
		})
		if c.Session == SessionNight && m.cfg.EnableNightSessionDegrade {
			m.stream.Emit(audit.Event{
				Kind:          audit.KindHardConfirmDegraded,
				CorrelationID: c.IntentID,
				Data:          map[string]any{"confirmation_id": confirmationID},
			})
			soft := m.runSoft(parent, c, confirmationID, append(reasons, "hard confirmation timed out during night session, degrading to soft"))
			soft.Result = ResultDegraded
			return soft
		}
		m.stream.Emit(audit.Event{
			Kind:          audit.KindHardConfirmBreak,
			CorrelationID: c.IntentID,
			Data:          map[string]any{"confirmation_id": confirmationID},
		})
		return Decision{ConfirmationID: confirmationID, Level: LevelHard, Result: ResultRejected, Reasons: append(reasons, "hard confirmation timed out during day session")}
	}
}
