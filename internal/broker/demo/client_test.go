package demo

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/internal/broker"
	"orderpipe/pkg/types"
)

func TestDryRunSubmitEmitsAck(t *testing.T) {
	t.Parallel()
	c := NewClient(Config{DryRun: true}, slog.Default())
	defer c.Close()

	req := broker.OrderRequest{
		ClientOrderID: "plan-1-0-0",
		Instrument:    "IF2409",
		Side:          types.SideBuy,
		Offset:        types.OffsetOpen,
		Qty:           decimal.NewFromInt(10),
		Price:         decimal.NewFromInt(4000),
	}
	if err := c.SubmitOrder(context.Background(), req); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	select {
	case ev := <-c.Events():
		if ev.Kind != types.EventAck || ev.ClientOrderID != req.ClientOrderID {
			t.Fatalf("got %+v, want ACK for %s", ev, req.ClientOrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an ACK event")
	}
}

func TestDryRunCancelEmitsCancelAck(t *testing.T) {
	t.Parallel()
	c := NewClient(Config{DryRun: true}, slog.Default())
	defer c.Close()

	if err := c.CancelOrder(context.Background(), "plan-2-0-0"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	select {
	case ev := <-c.Events():
		if ev.Kind != types.EventCancelAck || ev.ClientOrderID != "plan-2-0-0" {
			t.Fatalf("got %+v, want CANCEL_ACK for plan-2-0-0", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a CANCEL_ACK event")
	}
}

func TestToWirePayloadMapsSideAndOffset(t *testing.T) {
	t.Parallel()
	payload, err := toWirePayload(broker.OrderRequest{
		ClientOrderID: "p-1",
		Instrument:    "IF2409",
		Side:          types.SideSell,
		Offset:        types.OffsetCloseToday,
		Qty:           decimal.NewFromInt(5),
		Price:         decimal.NewFromInt(3950),
	})
	if err != nil {
		t.Fatalf("toWirePayload: %v", err)
	}
	if payload.Direction != "1" || payload.OffsetFlag != "3" {
		t.Fatalf("got direction=%s offsetFlag=%s, want 1/3 for SELL/CLOSE_TODAY", payload.Direction, payload.OffsetFlag)
	}
}

func TestToWirePayloadRejectsUnknownSide(t *testing.T) {
	t.Parallel()
	_, err := toWirePayload(broker.OrderRequest{Side: types.Side("BOGUS"), Offset: types.OffsetOpen})
	if err == nil {
		t.Fatal("expected an error for an unmapped side")
	}
}
