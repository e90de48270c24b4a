// Package engine implements the central orchestrator of the order
// execution pipeline (C10).
//
// Engine owns the intent registry, a pool of per-algorithm executor
// singletons, and the audit stream, and mediates every transition a plan
// goes through: submit, the getNextAction/onOrderEvent poll loop a
// caller drives, pause/resume/cancel, and read-only queries. It never
// decides which algorithm to use for an intent that arrives without one
// already assigned — that is the splitter's job, run upstream — it only
// maps an already-resolved algorithm (or a CRITICAL urgency override) to
// the matching executor singleton.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"orderpipe/internal/audit"
	"orderpipe/internal/executor"
	"orderpipe/internal/intent"
	"orderpipe/pkg/types"
)

// povAlgo and adaptiveAlgo are intent-level algorithm requests that have
// no dedicated executor; selectExecutor substitutes them onto the
// closed set's nearest equivalent before lookup.
const (
	povAlgo      types.Algorithm = "POV"
	adaptiveAlgo types.Algorithm = "ADAPTIVE"
)

// CostCheck is a pre-trade cost/margin gate consulted during Submit when
// Config.EnableCostCheck is set. A false result rejects the intent.
type CostCheck func(in types.Intent) bool

// Config tunes Engine behavior.
type Config struct {
	EnableAudit        bool
	EnableCostCheck    bool
	DefaultTimeout     time.Duration
	MaxConcurrentPlans int
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	EnableAudit:        true,
	EnableCostCheck:    true,
	DefaultTimeout:     30 * time.Second,
	MaxConcurrentPlans: 50,
}

// Statistics is a point-in-time snapshot of engine throughput.
type Statistics struct {
	TotalSubmitted int
	TotalRejected  int
	TotalCompleted int
	TotalFailed    int
	ActivePlans    int
}

// Engine is the central orchestrator. All state-mutating operations take
// a single mutex — plans are cheap state machines and the registry itself
// is already safe for concurrent use, but Engine's own rejection-reason
// bookkeeping and audit emission need to observe a consistent view.
type Engine struct {
	cfg       Config
	registry  *intent.Registry
	executors map[types.Algorithm]executor.Executor
	stream    *audit.Stream
	costCheck CostCheck
	logger    *slog.Logger

	mu    sync.Mutex
	stats Statistics
}

// New wires an Engine from a pool of executor singletons, one per
// algorithm in the closed set (IMMEDIATE, TWAP, VWAP, ICEBERG,
// BEHAVIORAL).
func New(cfg Config, executors map[types.Algorithm]executor.Executor, registry *intent.Registry, stream *audit.Stream, costCheck CostCheck, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		registry:  registry,
		executors: executors,
		stream:    stream,
		costCheck: costCheck,
		logger:    logger.With("component", "engine"),
	}
}

// Submit admits a new intent into the pipeline. It runs the fixed
// 8-step sequence: duplicate check, expiry check, cost check, concurrency
// check, executor selection + plan construction, registration, and
// audit emission.
func (e *Engine) Submit(in types.Intent, now time.Time) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	intentID := in.IntentID
	if intentID == "" {
		intentID = intent.Generate(in)
		in.IntentID = intentID
	}

	if _, ok := e.registry.Get(intentID); ok {
		e.reject(intentID, "DUPLICATE", nil)
		return "", fmt.Errorf("engine: intent %s already registered", intentID)
	}

	if !in.ExpiryTS.IsZero() && now.After(in.ExpiryTS) {
		e.reject(intentID, "EXPIRED", nil)
		return "", fmt.Errorf("engine: intent %s expired at %s", intentID, in.ExpiryTS)
	}

	if e.cfg.EnableCostCheck && e.costCheck != nil && !e.costCheck(in) {
		e.reject(intentID, "COST_CHECK_FAILED", nil)
		return "", fmt.Errorf("engine: intent %s failed cost check", intentID)
	}

	if e.cfg.MaxConcurrentPlans > 0 && len(e.registry.Active()) >= e.cfg.MaxConcurrentPlans {
		e.reject(intentID, "MAX_CONCURRENT", nil)
		return "", fmt.Errorf("engine: max concurrent plans (%d) reached", e.cfg.MaxConcurrentPlans)
	}

	ex, err := e.selectExecutor(in)
	if err != nil {
		e.reject(intentID, "NO_EXECUTOR", map[string]any{"error": err.Error()})
		return "", err
	}

	plan, err := ex.MakePlan(in, now)
	if err != nil {
		e.reject(intentID, "MAKE_PLAN_FAILED", map[string]any{"error": err.Error()})
		return "", fmt.Errorf("engine: make plan for intent %s: %w", intentID, err)
	}

	e.registry.Register(plan)
	e.stats.TotalSubmitted++
	e.emit(audit.KindIntentCreated, intentID, map[string]any{"algo": string(plan.Algo)})
	e.emit(audit.KindPlanCreated, plan.PlanID, map[string]any{
		"sliceCount": len(plan.Slices),
		"algo":       string(plan.Algo),
	})

	return plan.PlanID, nil
}

func (e *Engine) reject(intentID, reason string, extra map[string]any) {
	e.stats.TotalRejected++
	data := map[string]any{"reason": reason}
	for k, v := range extra {
		data[k] = v
	}
	e.emit(audit.KindIntentRejected, intentID, data)
}

// selectExecutor implements §4.5.1: CRITICAL urgency always routes to
// Immediate; otherwise intent.algo maps onto the closed set, with VWAP
// substituted for POV and TWAP for ADAPTIVE.
func (e *Engine) selectExecutor(in types.Intent) (executor.Executor, error) {
	algo := in.Algo
	if in.Urgency == types.UrgencyCritical {
		algo = types.AlgoImmediate
	} else {
		algo = substituteAlgo(algo)
	}
	ex, ok := e.executors[algo]
	if !ok {
		return nil, fmt.Errorf("engine: no executor registered for algorithm %q", algo)
	}
	return ex, nil
}

func substituteAlgo(algo types.Algorithm) types.Algorithm {
	switch algo {
	case povAlgo:
		return types.AlgoVWAP
	case adaptiveAlgo:
		return types.AlgoTWAP
	default:
		return algo
	}
}

// GetNextAction delegates to the plan's executor and intercepts the
// resulting state transition to emit the matching audit event.
func (e *Engine) GetNextAction(planID string, now time.Time) (executor.NextAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.registry.Get(planID)
	if !ok {
		return executor.NextAction{}, fmt.Errorf("engine: unknown plan %s", planID)
	}
	ex, ok := e.executors[plan.Algo]
	if !ok {
		return executor.NextAction{}, fmt.Errorf("engine: no executor for algo %q", plan.Algo)
	}

	action := ex.NextAction(plan, now)

	switch action.Kind {
	case executor.ActionPlaceOrder:
		if plan.Status == types.PlanPending {
			plan.Status = types.PlanActive
		}
		e.emit(audit.KindSliceSent, action.ClientOrderID, map[string]any{
			"planId":     planID,
			"sliceIndex": action.SliceIndex,
			"qty":        action.Qty.String(),
			"price":      action.Price.String(),
		})
	case executor.ActionComplete:
		e.stats.TotalCompleted++
		e.emit(audit.KindIntentCompleted, planID, map[string]any{
			"filledQty":  plan.Progress.FilledQty.String(),
			"avgPrice":   plan.Progress.AvgPrice.String(),
			"sliceCount": len(plan.Slices),
			"elapsed":    now.Sub(plan.StartedAt).String(),
		})
	case executor.ActionFail, executor.ActionAbort:
		e.stats.TotalFailed++
		remaining := plan.Progress.TargetQty.Sub(plan.Progress.FilledQty)
		e.emit(audit.KindIntentFailed, planID, map[string]any{
			"filledQty":    plan.Progress.FilledQty.String(),
			"remainingQty": remaining.String(),
			"errorCode":    string(action.Kind),
			"errorMsg":     action.Reason,
		})
	case executor.ActionCancelOrder:
		e.emit(audit.KindSliceCancelled, action.ClientOrderID, map[string]any{
			"planId": planID,
			"reason": action.Reason,
		})
	}

	return action, nil
}

// OnOrderEvent forwards a broker-reported event to the plan's executor
// and emits the matching slice-level audit event.
func (e *Engine) OnOrderEvent(planID string, ev types.OrderEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.registry.Get(planID)
	if !ok {
		return fmt.Errorf("engine: unknown plan %s", planID)
	}
	ex, ok := e.executors[plan.Algo]
	if !ok {
		return fmt.Errorf("engine: no executor for algo %q", plan.Algo)
	}

	ex.OnEvent(plan, ev)

	data := map[string]any{"planId": planID}
	var kind audit.Kind
	switch ev.Kind {
	case types.EventAck:
		kind = audit.KindSliceAck
	case types.EventPartialFill:
		kind = audit.KindSliceFilled
		data["partial"] = true
		data["filledQty"] = ev.FilledQty.String()
		data["fillPrice"] = ev.FillPrice.String()
	case types.EventFill:
		kind = audit.KindSliceFilled
		data["partial"] = false
		data["filledQty"] = ev.FilledQty.String()
		data["fillPrice"] = ev.FillPrice.String()
	case types.EventReject:
		kind = audit.KindSliceRejected
		data["reason"] = ev.Reason
		if ev.ErrorCode != "" {
			data["errorCode"] = string(ev.ErrorCode)
		}
	case types.EventCancelAck:
		kind = audit.KindSliceCancelled
		data["reason"] = ev.Reason
	default:
		return nil // CANCEL_REJECT and anything unrecognized has no audit point
	}
	e.emit(kind, ev.ClientOrderID, data)
	return nil
}

// Pause transitions an active plan to PAUSED.
func (e *Engine) Pause(planID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.registry.Get(planID)
	if !ok {
		return fmt.Errorf("engine: unknown plan %s", planID)
	}
	if plan.Status.IsTerminal() {
		return fmt.Errorf("engine: cannot pause plan %s in terminal status %s", planID, plan.Status)
	}
	plan.Status = types.PlanPaused
	e.emit(audit.KindPlanPaused, planID, nil)
	return nil
}

// Resume transitions a paused plan back to ACTIVE.
func (e *Engine) Resume(planID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.registry.Get(planID)
	if !ok {
		return fmt.Errorf("engine: unknown plan %s", planID)
	}
	if plan.Status != types.PlanPaused {
		return fmt.Errorf("engine: plan %s is not paused (status %s)", planID, plan.Status)
	}
	plan.Status = types.PlanActive
	e.emit(audit.KindPlanResumed, planID, nil)
	return nil
}

// Cancel transitions a non-terminal plan to CANCELLED.
func (e *Engine) Cancel(planID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.registry.Get(planID)
	if !ok {
		return fmt.Errorf("engine: unknown plan %s", planID)
	}
	if plan.Status.IsTerminal() {
		return fmt.Errorf("engine: plan %s already terminal (%s)", planID, plan.Status)
	}
	plan.Status = types.PlanCancelled
	e.emit(audit.KindPlanCancelled, planID, map[string]any{"reason": reason})
	return nil
}

// GetPlan returns the read-only view of a plan.
func (e *Engine) GetPlan(planID string) (types.ExecutionPlan, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.registry.Get(planID)
	if !ok {
		return types.ExecutionPlan{}, false
	}
	return toExecutionPlan(plan), true
}

// GetProgress returns a plan's fill progress.
func (e *Engine) GetProgress(planID string) (types.Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.registry.Get(planID)
	if !ok {
		return types.Progress{}, false
	}
	return plan.Progress, true
}

// GetActivePlans returns read-only views of every non-terminal plan.
func (e *Engine) GetActivePlans() []types.ExecutionPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	active := e.registry.Active()
	out := make([]types.ExecutionPlan, 0, len(active))
	for _, p := range active {
		out = append(out, toExecutionPlan(p))
	}
	return out
}

// GetPendingCancelOrders returns a snapshot of a plan's outstanding
// orders — the ones a cancel/retry decision could still apply to.
func (e *Engine) GetPendingCancelOrders(planID string) ([]types.PendingOrder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.registry.Get(planID)
	if !ok {
		return nil, false
	}
	out := make([]types.PendingOrder, len(plan.PendingOrders))
	copy(out, plan.PendingOrders)
	return out, true
}

// IsIntentRegistered reports whether an intentId already has a plan.
func (e *Engine) IsIntentRegistered(intentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.registry.Get(intentID)
	return ok
}

// Statistics returns a snapshot of engine-wide counters.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := e.stats
	stats.ActivePlans = len(e.registry.Active())
	return stats
}

func toExecutionPlan(plan *types.PlanContext) types.ExecutionPlan {
	return types.ExecutionPlan{
		PlanID:   plan.PlanID,
		IntentID: plan.Intent.IntentID,
		Algo:     plan.Algo,
		Status:   plan.Status,
		Progress: plan.Progress,
	}
}

func (e *Engine) emit(kind audit.Kind, correlationID string, data map[string]any) {
	if !e.cfg.EnableAudit || e.stream == nil {
		return
	}
	e.stream.Emit(audit.Event{Kind: kind, CorrelationID: correlationID, Data: data})
}
