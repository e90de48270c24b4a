package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// checkTerminal returns a handled action if the plan is already in a
// terminal status — every variant checks this first.
func checkTerminal(plan *types.PlanContext) (NextAction, bool) {
	if !plan.Status.IsTerminal() {
		return NextAction{}, false
	}
	kind := ActionComplete
	if plan.Status != types.PlanCompleted {
		kind = ActionAbort
	}
	return NextAction{Kind: kind, Reason: "plan already " + string(plan.Status)}, true
}

// checkPaused returns a Wait action if the plan is paused.
func checkPaused(plan *types.PlanContext) (NextAction, bool) {
	if plan.Status != types.PlanPaused {
		return NextAction{}, false
	}
	return NextAction{Kind: ActionWait, Reason: "plan paused"}, true
}

// checkPendingOrders returns a CancelOrder action for the first pending
// order that has exceeded its timeout, or a Wait action if any pending
// order exists but none has timed out yet. A plan never places a new
// slice order while a pending order is outstanding.
func checkPendingOrders(plan *types.PlanContext, cfg Config, now time.Time) (NextAction, bool) {
	if len(plan.PendingOrders) == 0 {
		return NextAction{}, false
	}
	for _, po := range plan.PendingOrders {
		if cfg.PendingOrderTimeout > 0 && now.Sub(po.PlacedAt) >= cfg.PendingOrderTimeout {
			return NextAction{
				Kind:          ActionCancelOrder,
				ClientOrderID: po.ClientOrderID,
				SliceIndex:    po.SliceIndex,
				Reason:        "pending order timeout",
			}, true
		}
	}
	return NextAction{Kind: ActionWait, Reason: "awaiting pending order resolution"}, true
}

// checkComplete returns a Complete action once filled quantity has
// reached the target.
func checkComplete(plan *types.PlanContext) (NextAction, bool) {
	if plan.Progress.FilledQty.LessThan(plan.Progress.TargetQty) {
		return NextAction{}, false
	}
	plan.Status = types.PlanCompleted
	return NextAction{Kind: ActionComplete, Reason: "target quantity filled"}, true
}

// advanceToNextUnexecutedSlice moves CurrentSliceIdx forward past any
// slice already marked executed, and reports whether the plan has run out
// of slices without reaching target (a FAILED condition the caller
// should generally surface, since it means the split under-allocated).
func advanceToNextUnexecutedSlice(plan *types.PlanContext) (exhausted bool) {
	for plan.CurrentSliceIdx < len(plan.Slices) && plan.Slices[plan.CurrentSliceIdx].Executed {
		plan.CurrentSliceIdx++
	}
	return plan.CurrentSliceIdx >= len(plan.Slices)
}

// sliceRetryCount returns how many times the given slice index has been
// cancelled/rejected so far.
func sliceRetryCount(plan *types.PlanContext, sliceIndex int) int {
	n := 0
	for _, c := range plan.Cancelled {
		if c.SliceIndex == sliceIndex {
			n++
		}
	}
	return n
}

// advancePastExhaustedSlices skips past any slice already executed and
// any slice whose own retry budget (RetryCount rejects/cancels against
// that slice specifically) is used up, per the skip-that-slice-and-
// continue rule: one slice repeatedly failing doesn't abort the whole
// plan. Returns a Fail action only once every slice has been skipped or
// placed and the plan still hasn't reached target.
func advancePastExhaustedSlices(plan *types.PlanContext, cfg Config) (NextAction, bool) {
	for {
		if advanceToNextUnexecutedSlice(plan) {
			plan.Status = types.PlanFailed
			return NextAction{Kind: ActionFail, Reason: "slices exhausted without reaching target"}, true
		}
		idx := plan.CurrentSliceIdx
		if cfg.RetryCount <= 0 || sliceRetryCount(plan, idx) < cfg.RetryCount {
			return NextAction{}, false
		}
		plan.Slices[idx].Executed = true
		plan.CurrentSliceIdx++
	}
}

// placeSliceOrder builds the PLACE_ORDER action for the current slice,
// recording a PendingOrder and marking the slice executed. qty is the
// amount actually to place, which may be less than the slice's nominal
// qty when remaining target quantity is smaller (final-slice rounding).
func placeSliceOrder(plan *types.PlanContext, now time.Time, retry int) NextAction {
	slice := &plan.Slices[plan.CurrentSliceIdx]
	remaining := plan.Progress.TargetQty.Sub(plan.Progress.FilledQty)
	qty := slice.Qty
	if qty.GreaterThan(remaining) {
		qty = remaining
	}
	coid := types.ClientOrderID(plan.PlanID, slice.Index, retry)

	plan.PendingOrders = append(plan.PendingOrders, types.PendingOrder{
		ClientOrderID: coid,
		SliceIndex:    slice.Index,
		Qty:           qty,
		Price:         slice.TargetPrice,
		PlacedAt:      now,
	})
	slice.Executed = true

	return NextAction{
		Kind:          ActionPlaceOrder,
		ClientOrderID: coid,
		SliceIndex:    slice.Index,
		Qty:           qty,
		Price:         slice.TargetPrice,
		Offset:        plan.Intent.Offset,
	}
}

// handleEvent implements the OnEvent behavior shared by every executor
// variant; each variant's OnEvent delegates to it unchanged. A
// PARTIAL_FILL leaves the order pending; only a FILL removes it.
func handleEvent(plan *types.PlanContext, ev types.OrderEvent) {
	switch ev.Kind {
	case types.EventAck, types.EventCancelReject:
		return
	case types.EventPartialFill, types.EventFill:
		idx := sliceIndexFromClientOrderID(plan, ev.ClientOrderID)
		if ev.Kind == types.EventFill {
			removePending(plan, ev.ClientOrderID)
		}
		plan.FilledOrders = append(plan.FilledOrders, types.FilledOrder{
			ClientOrderID: ev.ClientOrderID,
			SliceIndex:    idx,
			Qty:           ev.FilledQty,
			Price:         ev.FillPrice,
			FilledAt:      ev.At,
		})
		updateProgress(plan)
	case types.EventReject, types.EventCancelAck:
		po, ok := removePending(plan, ev.ClientOrderID)
		plan.Cancelled = append(plan.Cancelled, types.CancelledOrder{
			ClientOrderID: ev.ClientOrderID,
			SliceIndex:    po.SliceIndex,
			Reason:        ev.Reason,
			At:            ev.At,
		})
		if ev.Kind == types.EventReject && ev.ErrorCode == types.ErrCloseTodayRejected && plan.Intent.Offset == types.OffsetCloseToday {
			// CTP rejected close-today because the position wasn't
			// opened today; fall back to a plain CLOSE for every
			// subsequent slice so the retry doesn't just repeat the
			// same rejection (spec scenario: no order is lost).
			plan.Intent.Offset = types.OffsetClose
		}
		if ok && po.SliceIndex >= 0 && po.SliceIndex < len(plan.Slices) {
			plan.Slices[po.SliceIndex].Executed = false
			if po.SliceIndex < plan.CurrentSliceIdx {
				plan.CurrentSliceIdx = po.SliceIndex
			}
		}
	}
}

func removePending(plan *types.PlanContext, clientOrderID string) (types.PendingOrder, bool) {
	for i, po := range plan.PendingOrders {
		if po.ClientOrderID == clientOrderID {
			plan.PendingOrders = append(plan.PendingOrders[:i], plan.PendingOrders[i+1:]...)
			return po, true
		}
	}
	return types.PendingOrder{SliceIndex: -1}, false
}

func sliceIndexFromClientOrderID(plan *types.PlanContext, clientOrderID string) int {
	for _, po := range plan.PendingOrders {
		if po.ClientOrderID == clientOrderID {
			return po.SliceIndex
		}
	}
	for _, fo := range plan.FilledOrders {
		if fo.ClientOrderID == clientOrderID {
			return fo.SliceIndex
		}
	}
	return -1
}

func updateProgress(plan *types.PlanContext) {
	filled := decimal.Zero
	notional := decimal.Zero
	for _, fo := range plan.FilledOrders {
		filled = filled.Add(fo.Qty)
		notional = notional.Add(fo.Qty.Mul(fo.Price))
	}
	plan.Progress.FilledQty = filled
	if filled.GreaterThan(decimal.Zero) {
		plan.Progress.AvgPrice = notional.Div(filled)
	}
}
