// Package audit implements the append-only, non-blocking audit event
// stream every other component emits into. It never persists events
// itself — that is an explicit non-goal — it only fans them out to
// whatever in-process consumer is listening (logging, tests, a future
// dashboard).
package audit

import (
	"log/slog"
	"time"
)

// Kind enumerates the fixed set of audit event shapes this pipeline emits.
type Kind string

const (
	KindIntentCreated        Kind = "INTENT_CREATED"
	KindIntentRejected       Kind = "INTENT_REJECTED"
	KindIntentCompleted      Kind = "INTENT_COMPLETED"
	KindIntentFailed         Kind = "INTENT_FAILED"
	KindPlanCreated          Kind = "PLAN_CREATED"
	KindPlanPaused           Kind = "PLAN_PAUSED"
	KindPlanResumed          Kind = "PLAN_RESUMED"
	KindPlanCancelled        Kind = "PLAN_CANCELLED"
	KindSliceSent            Kind = "SLICE_SENT"
	KindSliceAck             Kind = "SLICE_ACK"
	KindSliceFilled          Kind = "SLICE_FILLED"
	KindSliceRejected        Kind = "SLICE_REJECTED"
	KindSliceCancelled       Kind = "SLICE_CANCELLED"
	KindConfirmationDecided  Kind = "CONFIRMATION_DECIDED"
	KindHardConfirmStarted   Kind = "HARD_CONFIRM_STARTED"
	KindHardConfirmAlertSent Kind = "HARD_CONFIRM_ALERT_SENT"
	KindHardConfirmTimeout   Kind = "HARD_CONFIRM_TIMEOUT"
	KindHardConfirmDegraded  Kind = "HARD_CONFIRM_DEGRADED"
	KindHardConfirmBreak     Kind = "HARD_CONFIRM_CIRCUIT_BREAK"
	KindBreakerStateChange   Kind = "BREAKER_STATE_CHANGE"
	KindVaRRecalculated      Kind = "VAR_RECALCULATED"
	KindMarginAlert          Kind = "MARGIN_ALERT"
	KindFallbackLevelChanged Kind = "FALLBACK_LEVEL_CHANGED"
	KindManualQueueRejected  Kind = "MANUAL_QUEUE_REJECTED"
)

// Event is the fixed-shape payload recorded for every audit point.
// CorrelationID carries whichever id is most specific to the event
// (intentId, planId, clientOrderId, or confirmationId) so consumers can
// stitch a timeline together without parsing Data.
type Event struct {
	Kind           Kind
	At             time.Time
	CorrelationID  string
	Data           map[string]any
}

// Stream is a non-blocking, buffered fan-out of audit events. Producers
// never wait on a slow consumer: Emit drops the oldest buffered event
// rather than blocking, since audit is observability, not a source of
// truth a component may depend on synchronously.
type Stream struct {
	ch     chan Event
	logger *slog.Logger
}

// NewStream creates an audit stream with the given buffer size.
func NewStream(buffer int, logger *slog.Logger) *Stream {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Stream{
		ch:     make(chan Event, buffer),
		logger: logger.With("component", "audit"),
	}
}

// Emit records an event. It never blocks: if the buffer is full, the
// oldest queued event is dropped to make room, and that drop itself is
// logged (but not re-emitted into the stream, to avoid unbounded recursion).
func (s *Stream) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case dropped := <-s.ch:
		s.logger.Warn("audit buffer full, dropping oldest event", "dropped_kind", dropped.Kind)
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.logger.Error("audit buffer still full after drop, discarding event", "kind", ev.Kind)
	}
}

// Events returns the read-only channel consumers drain.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// LogMirror drains the stream on a background goroutine and mirrors every
// event to the structured logger, until done is closed. This is the default
// consumer wired in main — a stand-in for a real persistence/dashboard
// sink, neither of which this pipeline owns.
func (s *Stream) LogMirror(done <-chan struct{}) {
	go func() {
		for {
			select {
			case ev, ok := <-s.ch:
				if !ok {
					return
				}
				s.logger.Info("audit", "kind", ev.Kind, "correlation_id", ev.CorrelationID, "data", ev.Data)
			case <-done:
				return
			}
		}
	}()
}
