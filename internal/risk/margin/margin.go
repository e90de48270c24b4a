// Package margin implements the Dynamic Margin Monitor: usage-ratio
// snapshots, an alert-level ladder, bounded history, trend analysis, and
// force-close risk estimation for accounts approaching a margin call.
package margin

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"orderpipe/internal/audit"
	varsched "orderpipe/internal/risk/var"
)

// AlertLevel is the margin-usage ladder the monitor walks.
type AlertLevel string

const (
	AlertSafe       AlertLevel = "SAFE"
	AlertWarning    AlertLevel = "WARNING"
	AlertDanger     AlertLevel = "DANGER"
	AlertCritical   AlertLevel = "CRITICAL"
	AlertForceClose AlertLevel = "FORCE_CLOSE"
)

var alertPriority = map[AlertLevel]int{
	AlertSafe: 0, AlertWarning: 1, AlertDanger: 2, AlertCritical: 3, AlertForceClose: 4,
}

// Thresholds maps usage ratio to alert level, plus ForceCloseWarn, the
// ratio at which a force-close is considered imminent (consulted by
// assessForceCloseRisk, not by classify — CRITICAL already spans
// [Critical, ForceClose)).
type Thresholds struct {
	Warning, Danger, Critical, ForceCloseWarn, ForceClose float64
}

// DefaultThresholds mirrors the reference implementation's defaults.
var DefaultThresholds = Thresholds{Warning: 0.70, Danger: 0.80, Critical: 0.90, ForceCloseWarn: 0.95, ForceClose: 1.00}

func (th Thresholds) classify(usageRatio float64) AlertLevel {
	switch {
	case usageRatio >= th.ForceClose:
		return AlertForceClose
	case usageRatio >= th.Critical:
		return AlertCritical
	case usageRatio >= th.Danger:
		return AlertDanger
	case usageRatio >= th.Warning:
		return AlertWarning
	default:
		return AlertSafe
	}
}

// Snapshot is one recorded margin status observation.
type Snapshot struct {
	At              time.Time
	Equity          float64
	MarginUsed      float64
	MarginFrozen    float64
	MarginAvailable float64
	UsageRatio      float64
	AlertLevel      AlertLevel
}

// EscapeActionKind enumerates the suggested mitigations tied to an alert
// level — English, enum-tagged, not the literal strings a human operator
// would have seen in the source system.
type EscapeActionKind string

const (
	ActionReduceIcebergPosition EscapeActionKind = "REDUCE_ICEBERG_POSITION"
	ActionRequestMarginTopUp    EscapeActionKind = "REQUEST_MARGIN_TOP_UP"
	ActionHaltNewOpenOrders     EscapeActionKind = "HALT_NEW_OPEN_ORDERS"
	ActionForceReduceAll        EscapeActionKind = "FORCE_REDUCE_ALL_POSITIONS"
)

// EscapeAction is one suggested mitigation surfaced alongside an alert.
type EscapeAction struct {
	Kind   EscapeActionKind
	Detail string
}

func escapeActionsFor(level AlertLevel) []EscapeAction {
	switch level {
	case AlertWarning:
		return []EscapeAction{{ActionReduceIcebergPosition, "shrink iceberg tip sizes to slow new margin consumption"}}
	case AlertDanger:
		return []EscapeAction{
			{ActionReduceIcebergPosition, "shrink iceberg tip sizes to slow new margin consumption"},
			{ActionRequestMarginTopUp, "request additional margin from the account owner"},
		}
	case AlertCritical:
		return []EscapeAction{
			{ActionRequestMarginTopUp, "request additional margin from the account owner"},
			{ActionHaltNewOpenOrders, "stop accepting new OPEN-offset intents until margin recovers"},
		}
	case AlertForceClose:
		return []EscapeAction{
			{ActionHaltNewOpenOrders, "stop accepting new OPEN-offset intents until margin recovers"},
			{ActionForceReduceAll, "begin forced reduction of open positions"},
		}
	default:
		return nil
	}
}

// ForceCloseRisk is only populated for DANGER-and-above alert levels.
type ForceCloseRisk struct {
	Probability      float64
	TimeToForceClose *time.Duration // nil if trend is non-increasing or history too short
}

// TrendAnalysis summarizes recent usage-ratio movement.
type TrendAnalysis struct {
	Direction        string // "stable", "increasing", "decreasing"
	ChangeRatePerHour float64
	Volatility       float64
}

// Alert is emitted on an upward alert-level transition.
type Alert struct {
	At       time.Time
	From, To AlertLevel
	Snapshot Snapshot
}

// UpdateResult is returned from UpdateStatus.
type UpdateResult struct {
	Snapshot       Snapshot
	Alert          *Alert // non-nil only on an upward transition
	EscapeActions  []EscapeAction
	ForceCloseRisk *ForceCloseRisk
	Trend          TrendAnalysis
}

// Config tunes the monitor.
type Config struct {
	Thresholds    Thresholds
	HistoryLimit  int // bounded snapshot history, default 500
	DeltaWarnStep float64 // Δusage triggering an immediate VaR event, default 0.05
}

// DefaultConfig mirrors the reference implementation's defaults.
var DefaultConfig = Config{Thresholds: DefaultThresholds, HistoryLimit: 500, DeltaWarnStep: 0.05}

// Listener is invoked on every snapshot, in addition to audit emission.
type Listener func(UpdateResult)

// Monitor is the Dynamic Margin Monitor.
type Monitor struct {
	mu sync.Mutex

	cfg         Config
	varSched    *varsched.Scheduler
	stream      *audit.Stream
	logger      *slog.Logger
	listeners   []Listener

	history    []Snapshot
	lastLevel  AlertLevel
}

// NewMonitor builds a monitor. varSched may be nil if VaR event-triggering
// integration isn't wired (it is optional per the Open Question on
// ADAPTIVE/POV — margin monitoring itself never requires it).
func NewMonitor(cfg Config, varSched *varsched.Scheduler, stream *audit.Stream, logger *slog.Logger) *Monitor {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}
	if cfg.DeltaWarnStep <= 0 {
		cfg.DeltaWarnStep = 0.05
	}
	return &Monitor{cfg: cfg, varSched: varSched, stream: stream, logger: logger.With("component", "margin_monitor"), lastLevel: AlertSafe}
}

// AddListener registers a callback invoked after every UpdateStatus call.
func (m *Monitor) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// UpdateStatus records a new margin observation, classifies it, updates
// history, and triggers the downstream signals (VaR event, audit
// emission, listener callbacks) the ladder calls for.
func (m *Monitor) UpdateStatus(equity, marginUsed, marginFrozen float64) UpdateResult {
	available := equity - marginUsed - marginFrozen
	var usageRatio float64
	if equity > 0 {
		usageRatio = (marginUsed + marginFrozen) / equity
	}
	level := m.cfg.Thresholds.classify(usageRatio)
	snap := Snapshot{
		At:              time.Now(),
		Equity:          equity,
		MarginUsed:      marginUsed,
		MarginFrozen:    marginFrozen,
		MarginAvailable: available,
		UsageRatio:      usageRatio,
		AlertLevel:      level,
	}

	m.mu.Lock()
	prevLevel := m.lastLevel
	var prevRatio float64
	if len(m.history) > 0 {
		prevRatio = m.history[len(m.history)-1].UsageRatio
	}
	m.history = append(m.history, snap)
	if len(m.history) > m.cfg.HistoryLimit {
		m.history = m.history[len(m.history)-m.cfg.HistoryLimit:]
	}
	m.lastLevel = level
	trend := m.trendAnalysisLocked()
	history := append([]Snapshot(nil), m.history...)
	m.mu.Unlock()

	delta := usageRatio - prevRatio

	var alert *Alert
	if alertPriority[level] > alertPriority[prevLevel] {
		a := Alert{At: snap.At, From: prevLevel, To: level, Snapshot: snap}
		alert = &a
	}

	if m.varSched != nil && (alertPriority[level] >= alertPriority[AlertDanger] || math.Abs(delta) >= m.cfg.DeltaWarnStep) {
		m.varSched.TriggerEvent(varsched.EventMarginWarning)
	}

	var risk *ForceCloseRisk
	if alertPriority[level] >= alertPriority[AlertDanger] {
		risk = assessForceCloseRisk(history, m.cfg.Thresholds)
	}

	result := UpdateResult{Snapshot: snap, Alert: alert, EscapeActions: escapeActionsFor(level), ForceCloseRisk: risk, Trend: trend}

	if alert != nil {
		m.stream.Emit(audit.Event{
			Kind: audit.KindMarginAlert,
			Data: map[string]any{
				"from":        alert.From,
				"to":          alert.To,
				"usage_ratio": snap.UsageRatio,
			},
		})
	}

	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l(result)
	}

	return result
}

// History returns a copy of the bounded snapshot history.
func (m *Monitor) History() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.history...)
}

// GetTrendAnalysis returns the current trend analysis from stored history.
func (m *Monitor) GetTrendAnalysis() TrendAnalysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trendAnalysisLocked()
}

func (m *Monitor) trendAnalysisLocked() TrendAnalysis {
	return trendAnalysis(m.history)
}

func trendAnalysis(history []Snapshot) TrendAnalysis {
	if len(history) < 2 {
		return TrendAnalysis{Direction: "stable"}
	}
	n := len(history)
	window := history
	if n > 20 {
		window = history[n-20:]
	}

	slope, deltas := linearSlope(window)
	elapsed := window[len(window)-1].At.Sub(window[0].At).Hours()
	var changeRatePerHour float64
	if elapsed > 0 {
		changeRatePerHour = (window[len(window)-1].UsageRatio - window[0].UsageRatio) / elapsed
	}

	direction := "stable"
	const epsilon = 1e-6
	switch {
	case slope > epsilon:
		direction = "increasing"
	case slope < -epsilon:
		direction = "decreasing"
	}

	return TrendAnalysis{Direction: direction, ChangeRatePerHour: changeRatePerHour, Volatility: stddev(deltas)}
}

// linearSlope fits a simple least-squares slope of usage ratio against
// sample index, and returns the per-step deltas alongside it for
// volatility estimation.
func linearSlope(window []Snapshot) (float64, []float64) {
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	deltas := make([]float64, 0, len(window)-1)
	for i, s := range window {
		x := float64(i)
		y := s.UsageRatio
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		if i > 0 {
			deltas = append(deltas, y-window[i-1].UsageRatio)
		}
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, deltas
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return slope, deltas
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// assessForceCloseRisk estimates how close an account is to a forced
// liquidation: Probability scales distance-to-threshold by trend slope,
// and TimeToForceClose linearly extrapolates the usage-ratio trend.
// Probability is always computed; TimeToForceClose is set only when the
// trend is increasing and at least 3 samples exist, otherwise it is nil.
func assessForceCloseRisk(history []Snapshot, th Thresholds) *ForceCloseRisk {
	if len(history) == 0 {
		return nil
	}
	latest := history[len(history)-1]
	distance := th.ForceClose - latest.UsageRatio
	if distance < 0 {
		distance = 0
	}

	slope, _ := linearSlope(history)
	probability := 1 - math.Min(1, distance/0.30)
	if slope > 0 {
		probability = math.Min(1, probability+slope*10)
	}
	if latest.UsageRatio >= th.ForceCloseWarn {
		probability = math.Max(probability, 0.75)
	}
	probability = math.Max(0, math.Min(1, probability))

	risk := &ForceCloseRisk{Probability: probability}
	if slope > 0 && len(history) >= 3 {
		stepsRemaining := distance / slope
		if stepsRemaining >= 0 {
			perStep := latest.At.Sub(history[len(history)-2].At)
			if perStep > 0 {
				eta := time.Duration(stepsRemaining * float64(perStep))
				risk.TimeToForceClose = &eta
			}
		}
	}
	return risk
}
