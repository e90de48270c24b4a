package demo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"orderpipe/internal/broker"
	"orderpipe/internal/ctp"
	"orderpipe/pkg/types"
)

// Config tunes the demo adapter.
type Config struct {
	BaseURL    string
	DryRun     bool
	WSEndpoint string // optional external mock-exchange WS endpoint; empty = in-process only
}

// wirePayload is the CTP-flavored order body the demo REST endpoint expects.
type wirePayload struct {
	ClientOrderID string `json:"client_order_id"`
	InstrumentID  string `json:"instrument_id"`
	Direction     string `json:"direction"`
	OffsetFlag    string `json:"offset_flag"`
	Volume        string `json:"volume"`
	Price         string `json:"price"`
}

// Client is a resty-based demo implementation of broker.Adapter. In
// dry-run mode every call short-circuits with a synthetic ack/cancel-ack
// fed straight back through its Feed; with dry-run off it talks to a
// real HTTP endpoint (typically a local mock-exchange process) with
// retry-on-5xx and per-category rate limiting.
type Client struct {
	http   *resty.Client
	rl     *broker.RateLimiter
	dryRun bool
	feed   *Feed
	logger *slog.Logger
}

// NewClient builds a demo adapter.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	logger = logger.With("component", "broker_demo")
	return &Client{
		http:   httpClient,
		rl:     broker.NewRateLimiter(),
		dryRun: cfg.DryRun,
		feed:   NewFeed(cfg.WSEndpoint, logger),
		logger: logger,
	}
}

// SubmitOrder places a single child order.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) error {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return err
	}

	if c.dryRun {
		c.logger.Info("dry-run submit", "client_order_id", req.ClientOrderID, "instrument", req.Instrument, "qty", req.Qty.String())
		c.feed.push(types.OrderEvent{ClientOrderID: req.ClientOrderID, Kind: types.EventAck, At: time.Now()})
		return nil
	}

	payload, err := toWirePayload(req)
	if err != nil {
		return fmt.Errorf("submit order %s: %w", req.ClientOrderID, err)
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post("/orders")
	if err != nil {
		return fmt.Errorf("submit order %s: %w", req.ClientOrderID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("submit order %s: status %d: %s", req.ClientOrderID, resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelOrder cancels a previously submitted order.
func (c *Client) CancelOrder(ctx context.Context, clientOrderID string) error {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	if c.dryRun {
		c.logger.Info("dry-run cancel", "client_order_id", clientOrderID)
		c.feed.push(types.OrderEvent{ClientOrderID: clientOrderID, Kind: types.EventCancelAck, At: time.Now()})
		return nil
	}

	resp, err := c.http.R().SetContext(ctx).Delete("/orders/" + clientOrderID)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", clientOrderID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order %s: status %d: %s", clientOrderID, resp.StatusCode(), resp.String())
	}
	return nil
}

// Events returns the read-only order-event channel.
func (c *Client) Events() <-chan types.OrderEvent {
	return c.feed.Events()
}

// Close releases the underlying feed.
func (c *Client) Close() {
	c.feed.Close()
}

func toWirePayload(req broker.OrderRequest) (wirePayload, error) {
	direction, err := ctp.SideToDirection(req.Side)
	if err != nil {
		return wirePayload{}, err
	}
	offsetFlag, err := ctp.OffsetToFlag(req.Offset)
	if err != nil {
		return wirePayload{}, err
	}
	return wirePayload{
		ClientOrderID: req.ClientOrderID,
		InstrumentID:  req.Instrument,
		Direction:     direction,
		OffsetFlag:    offsetFlag,
		Volume:        req.Qty.String(),
		Price:         req.Price.String(),
	}, nil
}
