package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// OrderRequest is the wire-agnostic order-placement request an Adapter
// translates into whatever a real broker gateway expects.
type OrderRequest struct {
	ClientOrderID string
	Instrument    string
	Side          types.Side
	Offset        types.Offset
	Qty           decimal.Decimal
	Price         decimal.Decimal
}

// Adapter is the boundary between the engine's PLACE_ORDER/CANCEL_ORDER
// actions and a broker gateway. Real CTP transport is explicitly out of
// scope (spec's Non-goals) — this interface exists so the engine can be
// driven end-to-end against the demo adapter without depending on any
// particular wire implementation.
type Adapter interface {
	SubmitOrder(ctx context.Context, req OrderRequest) error
	CancelOrder(ctx context.Context, clientOrderID string) error
	Events() <-chan types.OrderEvent
}
