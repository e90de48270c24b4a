package margin

import (
	"log/slog"
	"testing"
	"time"

	"orderpipe/internal/audit"
)

func testStream() *audit.Stream {
	return audit.NewStream(16, slog.Default())
}

func TestUpdateStatusClassifiesAlertLevel(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultConfig, nil, testStream(), slog.Default())
	cases := []struct {
		used, frozen, equity float64
		want                 AlertLevel
	}{
		{used: 10, frozen: 0, equity: 100, want: AlertSafe},   // 0.10
		{used: 75, frozen: 0, equity: 100, want: AlertWarning}, // 0.75
		{used: 85, frozen: 0, equity: 100, want: AlertDanger},  // 0.85
		{used: 95, frozen: 0, equity: 100, want: AlertCritical},// 0.95
		{used: 100, frozen: 0, equity: 100, want: AlertForceClose},
	}
	for _, c := range cases {
		r := m.UpdateStatus(c.equity, c.used, c.frozen)
		if r.Snapshot.AlertLevel != c.want {
			t.Errorf("equity=%v used=%v frozen=%v: got %s, want %s", c.equity, c.used, c.frozen, r.Snapshot.AlertLevel, c.want)
		}
	}
}

func TestUpdateStatusEmitsAlertOnlyOnUpwardTransition(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultConfig, nil, testStream(), slog.Default())
	r1 := m.UpdateStatus(100, 10, 0) // SAFE
	if r1.Alert != nil {
		t.Fatal("expected no alert on first SAFE observation")
	}
	r2 := m.UpdateStatus(100, 75, 0) // WARNING, upward
	if r2.Alert == nil {
		t.Fatal("expected an alert on SAFE->WARNING transition")
	}
	r3 := m.UpdateStatus(100, 72, 0) // still WARNING, no transition
	if r3.Alert != nil {
		t.Error("expected no alert when staying within the same level")
	}
	r4 := m.UpdateStatus(100, 10, 0) // back down to SAFE, not an upward transition
	if r4.Alert != nil {
		t.Error("expected no alert on a downward transition")
	}
}

func TestUpdateStatusProvidesEscapeActionsAboveWarning(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultConfig, nil, testStream(), slog.Default())
	r := m.UpdateStatus(100, 95, 0)
	if len(r.EscapeActions) == 0 {
		t.Error("expected escape actions for a CRITICAL alert level")
	}
}

func TestUpdateStatusForceCloseRiskOnlyAboveDanger(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultConfig, nil, testStream(), slog.Default())
	rSafe := m.UpdateStatus(100, 10, 0)
	if rSafe.ForceCloseRisk != nil {
		t.Error("expected no force-close risk at SAFE")
	}
	rDanger := m.UpdateStatus(100, 85, 0)
	if rDanger.ForceCloseRisk == nil {
		t.Error("expected a force-close risk estimate at DANGER")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig
	cfg.HistoryLimit = 3
	m := NewMonitor(cfg, nil, testStream(), slog.Default())
	for i := 0; i < 10; i++ {
		m.UpdateStatus(100, float64(i), 0)
	}
	if len(m.History()) != 3 {
		t.Fatalf("got history length %d, want 3", len(m.History()))
	}
}

func TestTrendAnalysisDetectsIncreasingUsage(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultConfig, nil, testStream(), slog.Default())
	for i := 0; i < 10; i++ {
		m.UpdateStatus(100, float64(10+i*5), 0)
		time.Sleep(time.Millisecond)
	}
	trend := m.GetTrendAnalysis()
	if trend.Direction != "increasing" {
		t.Errorf("got direction=%s, want increasing", trend.Direction)
	}
}

func TestListenerInvokedOnEveryUpdate(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultConfig, nil, testStream(), slog.Default())
	calls := 0
	m.AddListener(func(UpdateResult) { calls++ })
	m.UpdateStatus(100, 10, 0)
	m.UpdateStatus(100, 20, 0)
	if calls != 2 {
		t.Fatalf("got %d listener calls, want 2", calls)
	}
}
