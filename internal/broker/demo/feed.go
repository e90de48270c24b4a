// Package demo implements a dry-run-capable broker.Adapter for exercising
// the pipeline end-to-end without a live CTP gateway.
package demo

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderpipe/pkg/types"
)

const (
	feedBufferSize = 256
	wsReadTimeout  = 90 * time.Second
	maxBackoff     = 30 * time.Second
)

// Feed delivers order events to the engine. When an external
// mock-exchange WS endpoint is configured it dials and decodes that
// connection's messages; otherwise it runs purely in-process, fed
// directly by Client's dry-run simulation.
type Feed struct {
	url    string
	events chan types.OrderEvent
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewFeed builds a Feed. wsEndpoint == "" disables the WS dial entirely;
// push remains the only way events arrive (used by Client's dry-run path).
func NewFeed(wsEndpoint string, logger *slog.Logger) *Feed {
	f := &Feed{
		url:    wsEndpoint,
		events: make(chan types.OrderEvent, feedBufferSize),
		logger: logger.With("component", "broker_demo_feed"),
	}
	if wsEndpoint != "" {
		ctx, cancel := context.WithCancel(context.Background())
		f.cancel = cancel
		go f.runWS(ctx)
	}
	return f
}

// Events returns the read-only channel consumers drain.
func (f *Feed) Events() <-chan types.OrderEvent {
	return f.events
}

// Close stops the WS dial loop, if any, and releases the connection.
func (f *Feed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
}

// push delivers an event in-process. It never blocks: a consumer that
// falls behind loses the event rather than stalling order submission.
func (f *Feed) push(ev types.OrderEvent) {
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("order event feed full, dropping event", "client_order_id", ev.ClientOrderID)
	}
}

func (f *Feed) runWS(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Warn("mock-exchange ws dial failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		f.readLoop(ctx, conn)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("mock-exchange ws read error", "error", err)
			return
		}

		var ev types.OrderEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			f.logger.Warn("mock-exchange ws: malformed event", "error", err)
			continue
		}
		f.push(ev)
	}
}
