package fallback

import (
	"sync"

	"orderpipe/internal/breaker"
	"orderpipe/internal/risk/margin"
)

var levelPriority = map[Level]int{
	LevelNormal: 0, LevelGraceful: 1, LevelReduced: 2, LevelManual: 3, LevelEmergency: 4,
}

// Manager owns the FallbackLevel state machine: it never lowers the
// level on its own (only escalates from the signals it observes), since
// recovering from a degraded mode is judged to need an explicit
// operator decision, not an automatic bounce back to NORMAL the moment a
// single alert clears.
type Manager struct {
	mu       sync.Mutex
	executor *Executor
}

// NewManager wires a fallback level state machine around an Executor.
func NewManager(executor *Executor) *Manager {
	return &Manager{executor: executor}
}

// OnMarginUpdate escalates the fallback level in response to a margin
// alert level, per the ladder: WARNING->GRACEFUL, DANGER->REDUCED,
// CRITICAL->MANUAL, FORCE_CLOSE->EMERGENCY.
func (m *Manager) OnMarginUpdate(alert margin.AlertLevel) {
	var target Level
	switch alert {
	case margin.AlertWarning:
		target = LevelGraceful
	case margin.AlertDanger:
		target = LevelReduced
	case margin.AlertCritical:
		target = LevelManual
	case margin.AlertForceClose:
		target = LevelEmergency
	default:
		return
	}
	m.escalateTo(target)
}

// OnBreakerStateChange escalates in response to circuit-breaker state:
// HALF_OPEN nudges into GRACEFUL (extra caution while the system proves
// itself recovered), OPEN escalates straight to MANUAL (no more
// unsupervised order flow until a human clears it).
func (m *Manager) OnBreakerStateChange(state breaker.State) {
	switch state {
	case breaker.StateHalfOpen:
		m.escalateTo(LevelGraceful)
	case breaker.StateOpen:
		m.escalateTo(LevelManual)
	}
}

func (m *Manager) escalateTo(target Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.executor.Level()
	if levelPriority[target] > levelPriority[current] {
		m.executor.SetLevel(target)
	}
}

// Recover is the explicit operator action that lowers the fallback level
// back toward NORMAL.
func (m *Manager) Recover(target Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executor.SetLevel(target)
}
