package fallback

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"orderpipe/internal/audit"
	"orderpipe/pkg/types"
)

func testStream() *audit.Stream {
	return audit.NewStream(16, slog.Default())
}

func TestNormalModePassesThroughUnchanged(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	resp := e.Execute(ExecutionRequest{
		Intent: types.Intent{Offset: types.OffsetOpen},
		Algo:   types.AlgoTWAP,
		Qty:    decimal.NewFromInt(100),
	})
	if !resp.Success || resp.AdjustedAlgorithm != types.AlgoTWAP || !resp.AdjustedVolume.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("got %+v, want unchanged pass-through", resp)
	}
}

func TestGracefulModeDowngradesAlgorithmAndScales(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, func(q decimal.Decimal) decimal.Decimal { return q.Div(decimal.NewFromInt(2)) }, testStream(), slog.Default())
	e.SetLevel(LevelGraceful)
	resp := e.Execute(ExecutionRequest{
		Intent: types.Intent{Offset: types.OffsetOpen},
		Algo:   types.AlgoImmediate,
		Qty:    decimal.NewFromInt(100),
	})
	if resp.AdjustedAlgorithm != types.AlgoTWAP {
		t.Errorf("got algo=%s, want TWAP (one tier down from IMMEDIATE)", resp.AdjustedAlgorithm)
	}
	if !resp.AdjustedVolume.Equal(decimal.NewFromInt(50)) {
		t.Errorf("got volume=%s, want 50 (scaled)", resp.AdjustedVolume)
	}
}

func TestIcebergDowngradeChainIsTerminal(t *testing.T) {
	t.Parallel()
	if got := DowngradeAlgorithm(types.AlgoIceberg); got != types.AlgoIceberg {
		t.Errorf("got %s, want ICEBERG to stay terminal", got)
	}
}

func TestReducedModeRejectsOpenWithoutPermission(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	e.SetLevel(LevelReduced)
	resp := e.Execute(ExecutionRequest{
		Intent:            types.Intent{Offset: types.OffsetOpen},
		Algo:              types.AlgoTWAP,
		Qty:               decimal.NewFromInt(100),
		NewOrderPermitted: false,
	})
	if resp.Success {
		t.Fatal("expected REDUCED mode to reject an OPEN request when new orders aren't permitted")
	}
}

func TestReducedModeAllowsCloseAndCapsParticipation(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	e.SetLevel(LevelReduced)
	resp := e.Execute(ExecutionRequest{
		Intent:            types.Intent{Offset: types.OffsetClose},
		Algo:              types.AlgoTWAP,
		Qty:               decimal.NewFromInt(100),
		ParticipationRate: 0.50,
	})
	if !resp.Success {
		t.Fatal("expected CLOSE offset to succeed in REDUCED mode")
	}
	if resp.ParticipationRateCapped != 0.10 {
		t.Errorf("got capped rate=%v, want 0.10", resp.ParticipationRateCapped)
	}
}

func TestManualModeQueuesOpenAndClosesDirectly(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	e.SetLevel(LevelManual)

	openResp := e.Execute(ExecutionRequest{
		Intent: types.Intent{IntentID: "open-1", Offset: types.OffsetOpen},
		Algo:   types.AlgoTWAP,
		Qty:    decimal.NewFromInt(10),
	})
	if !openResp.Queued || !openResp.RequiresConfirmation {
		t.Fatalf("expected OPEN request to be queued for manual review, got %+v", openResp)
	}
	if e.QueueLen() != 1 {
		t.Fatalf("got queue len %d, want 1", e.QueueLen())
	}

	closeResp := e.Execute(ExecutionRequest{
		Intent: types.Intent{IntentID: "close-1", Offset: types.OffsetClose},
		Algo:   types.AlgoTWAP,
		Qty:    decimal.NewFromInt(10),
	})
	if closeResp.Queued {
		t.Fatal("expected CLOSE offset to execute directly, not queue")
	}
}

func TestManualQueueFullRejects(t *testing.T) {
	t.Parallel()
	e := NewExecutor(1, nil, testStream(), slog.Default())
	e.SetLevel(LevelManual)
	e.Execute(ExecutionRequest{Intent: types.Intent{IntentID: "a", Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(1)})
	resp := e.Execute(ExecutionRequest{Intent: types.Intent{IntentID: "b", Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(1)})
	if resp.Success || resp.Queued {
		t.Fatalf("expected a full manual queue to reject, got %+v", resp)
	}
}

func TestProcessManualQueueExecutesApprovedEntries(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	e.SetLevel(LevelManual)
	e.Execute(ExecutionRequest{Intent: types.Intent{IntentID: "a", Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(10)})
	e.Execute(ExecutionRequest{Intent: types.Intent{IntentID: "b", Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(20)})

	results := e.ProcessManualQueue(func(ExecutionRequest) bool { return true })
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("expected approved manual entries to execute successfully, got %+v", r)
		}
	}
	if e.QueueLen() != 0 {
		t.Errorf("expected queue to drain, got len %d", e.QueueLen())
	}
}

func TestEmergencyModeRejectsOpenAllowsClose(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	e.SetLevel(LevelEmergency)
	openResp := e.Execute(ExecutionRequest{Intent: types.Intent{Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(1)})
	if openResp.Success {
		t.Fatal("expected EMERGENCY to reject OPEN")
	}
	closeResp := e.Execute(ExecutionRequest{Intent: types.Intent{Offset: types.OffsetClose}, Qty: decimal.NewFromInt(1)})
	if !closeResp.Success {
		t.Fatal("expected EMERGENCY to allow CLOSE")
	}
}

func TestCountersTrackOutcomes(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	e.Execute(ExecutionRequest{Intent: types.Intent{Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(1)})
	e.SetLevel(LevelEmergency)
	e.Execute(ExecutionRequest{Intent: types.Intent{Offset: types.OffsetOpen}, Qty: decimal.NewFromInt(1)})
	c := e.Counters()
	if c.Total != 2 || c.Success != 1 || c.Rejected != 1 {
		t.Fatalf("got counters %+v, want total=2 success=1 rejected=1", c)
	}
}

func TestManagerEscalatesOnMarginAlertsAndNeverAutoDeescalates(t *testing.T) {
	t.Parallel()
	e := NewExecutor(10, nil, testStream(), slog.Default())
	m := NewManager(e)

	m.OnMarginUpdate("WARNING")
	if e.Level() != LevelGraceful {
		t.Fatalf("got level=%s, want GRACEFUL after WARNING", e.Level())
	}
	m.OnMarginUpdate("WARNING") // repeated, should not regress
	if e.Level() != LevelGraceful {
		t.Fatalf("got level=%s after repeated WARNING, want still GRACEFUL", e.Level())
	}
	m.OnMarginUpdate("CRITICAL")
	if e.Level() != LevelManual {
		t.Fatalf("got level=%s, want MANUAL after CRITICAL", e.Level())
	}
	m.OnMarginUpdate("WARNING") // lower severity should not de-escalate
	if e.Level() != LevelManual {
		t.Fatalf("got level=%s, want still MANUAL (no auto de-escalation)", e.Level())
	}
}
