// Package varsched implements the Adaptive VaR Scheduler: a cadence/method
// table keyed by market regime, event-triggered immediate recomputation,
// and CPU self-throttling so the scheduler backs off under its own load.
package varsched

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"orderpipe/internal/audit"
)

// MarketRegime classifies current market stress for scheduling purposes.
type MarketRegime string

const (
	RegimeCalm     MarketRegime = "CALM"
	RegimeNormal   MarketRegime = "NORMAL"
	RegimeVolatile MarketRegime = "VOLATILE"
	RegimeExtreme  MarketRegime = "EXTREME"
)

// Method is the VaR calculation method associated with a regime.
type Method string

const (
	MethodParametric  Method = "parametric"
	MethodHistorical  Method = "historical"
	MethodMonteCarlo  Method = "monte_carlo"
)

// EventTrigger is a hard event that forces immediate recomputation
// regardless of the regime's normal cadence.
type EventTrigger string

const (
	EventPositionChange EventTrigger = "POSITION_CHANGE"
	EventPriceGap3Pct   EventTrigger = "PRICE_GAP_3PCT"
	EventMarginWarning  EventTrigger = "MARGIN_WARNING"
	EventLimitPriceHit  EventTrigger = "LIMIT_PRICE_HIT"
)

// RegimeRule is the cadence/method pair for one regime.
type RegimeRule struct {
	Interval time.Duration
	Method   Method
}

// DefaultRules mirrors the reference implementation's regime table.
var DefaultRules = map[MarketRegime]RegimeRule{
	RegimeCalm:     {Interval: 5000 * time.Millisecond, Method: MethodParametric},
	RegimeNormal:   {Interval: 1000 * time.Millisecond, Method: MethodHistorical},
	RegimeVolatile: {Interval: 500 * time.Millisecond, Method: MethodHistorical},
	RegimeExtreme:  {Interval: 200 * time.Millisecond, Method: MethodMonteCarlo},
}

// regimeDetectionThresholds classify annualized volatility into a
// regime: below Calm is CALM, below Normal is NORMAL, below Volatile is
// VOLATILE, everything at or above is EXTREME.
type regimeDetectionThresholds struct {
	Calm, Normal, Volatile float64
}

var defaultDetectionThresholds = regimeDetectionThresholds{Calm: 0.15, Normal: 0.30, Volatile: 0.50}

// CalcFunc computes a VaR figure for a given method. It returns the
// computed value and how long the computation took, so the scheduler can
// feed its own CPU self-throttle.
type CalcFunc func(method Method) (value float64, elapsed time.Duration)

// Config tunes the scheduler.
type Config struct {
	Rules              map[MarketRegime]RegimeRule
	CPULimitPct        float64 // default 0.10
	CPUWindowSize      int     // rolling-average sample count, default 10
}

// DefaultConfig mirrors the reference implementation's defaults.
var DefaultConfig = Config{Rules: DefaultRules, CPULimitPct: 0.10, CPUWindowSize: 10}

// Scheduler drives periodic VaR recomputation with regime-adaptive
// cadence, hard-event preemption, and CPU self-throttling.
type Scheduler struct {
	mu sync.Mutex

	cfg    Config
	calc   CalcFunc
	stream *audit.Stream
	logger *slog.Logger

	regime       MarketRegime
	cpuSamples   []float64
	skipNext     bool
	lastValue    float64
	lastComputed time.Time
}

// NewScheduler builds a scheduler starting in the NORMAL regime.
func NewScheduler(cfg Config, calc CalcFunc, stream *audit.Stream, logger *slog.Logger) *Scheduler {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules
	}
	if cfg.CPULimitPct <= 0 {
		cfg.CPULimitPct = 0.10
	}
	if cfg.CPUWindowSize <= 0 {
		cfg.CPUWindowSize = 10
	}
	return &Scheduler{cfg: cfg, calc: calc, stream: stream, logger: logger.With("component", "var_scheduler"), regime: RegimeNormal}
}

// SetRegime updates the tracked market regime, overriding whatever
// DetectRegime would otherwise infer. Safe to call concurrently with Tick.
func (s *Scheduler) SetRegime(r MarketRegime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regime = r
}

// Regime returns the currently tracked regime.
func (s *Scheduler) Regime() MarketRegime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regime
}

// Interval returns the current regime's configured cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rule().Interval
}

func (s *Scheduler) rule() RegimeRule {
	if r, ok := s.cfg.Rules[s.regime]; ok {
		return r
	}
	return s.cfg.Rules[RegimeNormal]
}

// Tick runs one scheduled recomputation cycle unless the CPU
// self-throttle decided to skip it. It always clears the skip flag after
// honoring it once.
func (s *Scheduler) Tick() (ran bool) {
	s.mu.Lock()
	if s.skipNext {
		s.skipNext = false
		s.mu.Unlock()
		s.logger.Warn("skipping var recompute cycle, cpu budget exceeded")
		return false
	}
	rule := s.rule()
	s.mu.Unlock()

	s.recompute(rule.Method, "")
	return true
}

// TriggerEvent forces an immediate recomputation, bypassing cadence and
// the CPU self-throttle (hard events always run).
func (s *Scheduler) TriggerEvent(event EventTrigger) {
	s.mu.Lock()
	rule := s.rule()
	s.mu.Unlock()
	s.recompute(rule.Method, event)
}

func (s *Scheduler) recompute(method Method, event EventTrigger) {
	value, elapsed := s.calc(method)

	s.mu.Lock()
	s.lastValue = value
	s.lastComputed = time.Now()
	interval := s.rule().Interval
	if interval > 0 {
		cpuFrac := float64(elapsed) / float64(interval)
		s.cpuSamples = append(s.cpuSamples, cpuFrac)
		if len(s.cpuSamples) > s.cfg.CPUWindowSize {
			s.cpuSamples = s.cpuSamples[len(s.cpuSamples)-s.cfg.CPUWindowSize:]
		}
		if avg(s.cpuSamples) > s.cfg.CPULimitPct {
			s.skipNext = true
		}
	}
	regime := s.regime
	s.mu.Unlock()

	data := map[string]any{
		"regime": regime,
		"method": method,
		"value":  value,
	}
	if event != "" {
		data["event"] = event
	}
	s.stream.Emit(audit.Event{Kind: audit.KindVaRRecalculated, Data: data})
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// LastValue returns the most recently computed VaR value and when it was
// computed.
func (s *Scheduler) LastValue() (float64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastValue, s.lastComputed
}

// DetectRegime classifies a recent return series into a MarketRegime by
// annualized sample volatility (stdev * sqrt(252)). Fewer than 5 samples
// defaults to NORMAL — not enough history to trust a classification.
func DetectRegime(returns []float64) MarketRegime {
	return detectRegimeWithThresholds(returns, defaultDetectionThresholds)
}

func detectRegimeWithThresholds(returns []float64, th regimeDetectionThresholds) MarketRegime {
	if len(returns) < 5 {
		return RegimeNormal
	}
	mean := avg(returns)
	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(returns)-1)
	annualizedVol := math.Sqrt(variance) * math.Sqrt(252)

	switch {
	case annualizedVol < th.Calm:
		return RegimeCalm
	case annualizedVol < th.Normal:
		return RegimeNormal
	case annualizedVol < th.Volatile:
		return RegimeVolatile
	default:
		return RegimeExtreme
	}
}
