// Package fallback implements the Fallback Executor: a degraded-mode
// dispatcher that adapts order execution to a system-wide FallbackLevel,
// from full pass-through down to close-only emergency handling, plus the
// bounded manual-review queue MANUAL mode feeds into.
package fallback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/internal/audit"
	"orderpipe/pkg/types"
)

// Level is the fallback mode the executor currently operates under.
type Level string

const (
	LevelNormal    Level = "NORMAL"
	LevelGraceful  Level = "GRACEFUL"
	LevelReduced   Level = "REDUCED"
	LevelManual    Level = "MANUAL"
	LevelEmergency Level = "EMERGENCY"
)

// downgradeChain mirrors AGGRESSIVE->TWAP->ICEBERG from the reference
// implementation, generalized across this pipeline's five algorithms:
// everything downgrades one tier toward ICEBERG, which is terminal.
var downgradeChain = map[types.Algorithm]types.Algorithm{
	types.AlgoImmediate:  types.AlgoTWAP,
	types.AlgoTWAP:       types.AlgoIceberg,
	types.AlgoVWAP:       types.AlgoIceberg,
	types.AlgoBehavioral: types.AlgoIceberg,
	types.AlgoIceberg:    types.AlgoIceberg,
}

// DowngradeAlgorithm returns the next-gentler algorithm in the chain.
func DowngradeAlgorithm(a types.Algorithm) types.Algorithm {
	if down, ok := downgradeChain[a]; ok {
		return down
	}
	return types.AlgoIceberg
}

// ExecutionRequest describes one order the caller wants dispatched
// through the fallback layer.
type ExecutionRequest struct {
	Intent            types.Intent
	Algo              types.Algorithm
	Qty               decimal.Decimal
	ParticipationRate float64
	NewOrderPermitted bool
}

// ExecutionResponse is returned for every ExecutionRequest.
type ExecutionResponse struct {
	Success                 bool
	Mode                    Level
	AdjustedVolume          decimal.Decimal
	AdjustedAlgorithm       types.Algorithm
	ParticipationRateCapped float64
	Queued                  bool
	RequiresConfirmation    bool
	Message                 string
}

// Counters tracks cumulative outcomes across Execute calls.
type Counters struct {
	Total, Success, Failed, Queued, Rejected int
}

// QuantityScaler scales a requested quantity for GRACEFUL mode, per
// manager-provided parameters (e.g. a configured participation cap).
type QuantityScaler func(qty decimal.Decimal) decimal.Decimal

// Executor dispatches ExecutionRequests under the current fallback level.
type Executor struct {
	mu sync.Mutex

	level   Level
	scaler  QuantityScaler
	queue   *ManualQueue
	stream  *audit.Stream
	logger  *slog.Logger
	counters Counters
}

// NewExecutor builds a fallback executor starting at NORMAL. scaler may
// be nil, in which case GRACEFUL mode passes quantity through unscaled.
func NewExecutor(queueSize int, scaler QuantityScaler, stream *audit.Stream, logger *slog.Logger) *Executor {
	return &Executor{
		level:  LevelNormal,
		scaler: scaler,
		queue:  NewManualQueue(queueSize),
		stream: stream,
		logger: logger.With("component", "fallback_executor"),
	}
}

// SetLevel changes the active fallback mode and emits an audit event on
// any real change.
func (e *Executor) SetLevel(l Level) {
	e.mu.Lock()
	prev := e.level
	e.level = l
	e.mu.Unlock()
	if prev == l {
		return
	}
	e.stream.Emit(audit.Event{Kind: audit.KindFallbackLevelChanged, Data: map[string]any{"from": prev, "to": l}})
}

// Level returns the current fallback mode.
func (e *Executor) Level() Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Counters returns a copy of the cumulative outcome counters.
func (e *Executor) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// Execute dispatches req under the executor's current level.
func (e *Executor) Execute(req ExecutionRequest) ExecutionResponse {
	e.mu.Lock()
	level := e.level
	e.counters.Total++
	e.mu.Unlock()

	var resp ExecutionResponse
	switch level {
	case LevelNormal:
		resp = e.executeNormal(req)
	case LevelGraceful:
		resp = e.executeGraceful(req)
	case LevelReduced:
		resp = e.executeReduced(req)
	case LevelManual:
		resp = e.executeManual(req)
	case LevelEmergency:
		resp = e.executeEmergency(req)
	default:
		resp = ExecutionResponse{Success: false, Mode: level, Message: "unknown fallback level"}
	}
	resp.Mode = level

	e.mu.Lock()
	switch {
	case resp.Queued:
		e.counters.Queued++
	case resp.Success:
		e.counters.Success++
	default:
		e.counters.Failed++
		if !resp.Queued {
			e.counters.Rejected++
		}
	}
	e.mu.Unlock()

	return resp
}

func (e *Executor) executeNormal(req ExecutionRequest) ExecutionResponse {
	return ExecutionResponse{Success: true, AdjustedVolume: req.Qty, AdjustedAlgorithm: req.Algo, Message: "pass-through"}
}

func (e *Executor) executeGraceful(req ExecutionRequest) ExecutionResponse {
	adjustedAlgo := DowngradeAlgorithm(req.Algo)
	qty := req.Qty
	if e.scaler != nil {
		qty = e.scaler(qty)
	}
	return ExecutionResponse{Success: true, AdjustedVolume: qty, AdjustedAlgorithm: adjustedAlgo, Message: "degraded: algorithm downgraded and volume scaled"}
}

func (e *Executor) executeReduced(req ExecutionRequest) ExecutionResponse {
	if req.Intent.Offset == types.OffsetOpen {
		if !req.NewOrderPermitted {
			return ExecutionResponse{Success: false, Message: "REDUCED mode rejects OPEN requests when new orders are not permitted"}
		}
	}
	rate := req.ParticipationRate
	const reducedCap = 0.10
	if rate > reducedCap || rate == 0 {
		rate = reducedCap
	}
	return ExecutionResponse{Success: true, AdjustedVolume: req.Qty, AdjustedAlgorithm: req.Algo, ParticipationRateCapped: rate, Message: "reduced mode: participation rate capped"}
}

func (e *Executor) executeManual(req ExecutionRequest) ExecutionResponse {
	if req.Intent.Offset != types.OffsetOpen {
		// CLOSE offsets still execute, under REDUCED rules.
		resp := e.executeReduced(req)
		resp.Message = "manual mode: close-offset executed under reduced rules"
		return resp
	}
	entry := ManualQueueEntry{Request: req, QueuedAt: time.Now()}
	if !e.queue.Push(entry) {
		e.stream.Emit(audit.Event{Kind: audit.KindManualQueueRejected, CorrelationID: req.Intent.IntentID})
		return ExecutionResponse{Success: false, Message: "manual review queue full"}
	}
	return ExecutionResponse{Success: false, Queued: true, RequiresConfirmation: true, Message: "queued for manual review"}
}

func (e *Executor) executeEmergency(req ExecutionRequest) ExecutionResponse {
	if req.Intent.Offset == types.OffsetOpen {
		return ExecutionResponse{Success: false, Message: "EMERGENCY mode rejects all OPEN requests"}
	}
	return ExecutionResponse{Success: true, AdjustedVolume: req.Qty, AdjustedAlgorithm: req.Algo, Message: "emergency mode: close-only"}
}

// ProcessManualQueue drains the manual queue, executing each entry under
// REDUCED rules when confirmCb approves it, leaving declined entries
// dropped (the caller is expected to have already notified the submitter
// via a rejection event, not re-queue it).
func (e *Executor) ProcessManualQueue(confirmCb func(ExecutionRequest) bool) []ExecutionResponse {
	var out []ExecutionResponse
	for {
		entry, ok := e.queue.Pop()
		if !ok {
			break
		}
		if !confirmCb(entry.Request) {
			out = append(out, ExecutionResponse{Success: false, Message: "manual review declined"})
			continue
		}
		resp := e.executeReduced(entry.Request)
		resp.Message = fmt.Sprintf("manual queue entry approved after %s wait, executed under reduced rules", time.Since(entry.QueuedAt))
		out = append(out, resp)
	}
	return out
}

// QueueLen reports how many entries are currently pending manual review.
func (e *Executor) QueueLen() int {
	return e.queue.Len()
}
