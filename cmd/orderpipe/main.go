// Order Execution Pipeline — splits trading intents into algorithmic
// execution plans, gates risky ones behind confirmation and a circuit
// breaker, and drives them to completion against a broker adapter.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	internal/intent            — Intent model, deterministic id generation, plan registry
//	internal/executor          — Immediate/TWAP/VWAP/Iceberg/Behavioral-Disguise plan builders
//	internal/splitter          — order-value/market-regime driven algorithm selection
//	internal/confirmation      — AUTO/SOFT/HARD confirmation tiers
//	internal/breaker           — circuit-breaker-aware confirmation escalation
//	internal/risk/var          — adaptive VaR recompute scheduler
//	internal/risk/margin       — dynamic margin usage monitor
//	internal/fallback          — degraded-mode executor + manual review queue
//	internal/engine            — central orchestrator mediating every plan transition
//	internal/broker/demo       — resty/websocket demo broker adapter
//	internal/audit             — non-blocking audit event stream
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/internal/audit"
	"orderpipe/internal/breaker"
	"orderpipe/internal/broker"
	"orderpipe/internal/broker/demo"
	"orderpipe/internal/config"
	"orderpipe/internal/confirmation"
	"orderpipe/internal/engine"
	"orderpipe/internal/executor"
	"orderpipe/internal/fallback"
	"orderpipe/internal/intent"
	"orderpipe/internal/risk/margin"
	varsched "orderpipe/internal/risk/var"
	"orderpipe/internal/splitter"
	"orderpipe/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ORDERPIPE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := audit.NewStream(cfg.Audit.BufferSize, logger)
	mirrorDone := make(chan struct{})
	stream.LogMirror(mirrorDone)
	defer close(mirrorDone)

	registry := intent.NewRegistry()

	varScheduler := varsched.NewScheduler(varsched.Config{
		Rules:         varsched.DefaultRules,
		CPULimitPct:   cfg.Risk.VaR.CPULimitPct,
		CPUWindowSize: cfg.Risk.VaR.CPUWindowSize,
	}, placeholderVaRCalc, stream, logger)
	go runVaRLoop(ctx, varScheduler, logger)

	fallbackExec := fallback.NewExecutor(cfg.Fallback.ManualQueueMaxSize, nil, stream, logger)
	fallbackMgr := fallback.NewManager(fallbackExec)

	marginMonitor := margin.NewMonitor(margin.Config{
		Thresholds: margin.Thresholds{
			Warning:        cfg.Risk.Margin.WarningThreshold,
			Danger:         cfg.Risk.Margin.DangerThreshold,
			Critical:       cfg.Risk.Margin.CriticalThreshold,
			ForceCloseWarn: cfg.Risk.Margin.ForceCloseWarnRatio,
			ForceClose:     cfg.Risk.Margin.ForceCloseThreshold,
		},
		HistoryLimit:  cfg.Risk.Margin.HistorySize,
		DeltaWarnStep: 0.05,
	}, varScheduler, stream, logger)

	var latestAlert atomic.Value
	latestAlert.Store(margin.AlertSafe)
	marginMonitor.AddListener(func(r margin.UpdateResult) {
		latestAlert.Store(r.Snapshot.AlertLevel)
		fallbackMgr.OnMarginUpdate(r.Snapshot.AlertLevel)
	})

	confirmManager := confirmation.NewManager(confirmation.Config{
		ValueThresholds:           confirmation.DefaultOrderValueThresholds,
		MarketThresholds:          confirmation.DefaultMarketConditionThresholds,
		SoftTimeout:               cfg.Confirm.SoftTimeout,
		SoftTimeoutPermissive:     cfg.Confirm.SoftTimeoutPermissive,
		HardTimeout:               cfg.Confirm.HardTimeout,
		EnableNightSessionDegrade: cfg.Confirm.EnableNightSessionDegrade,
		Alert:                     alertHardConfirm(logger),
	}, confirmation.DefaultSoftChecks, confirmation.DefaultUserConfirm, stream)

	cb := breaker.New(breaker.Config{
		FailureThreshold:         cfg.Breaker.FailureThreshold,
		TriggerWindow:            cfg.Breaker.TriggerWindow,
		OpenDuration:             cfg.Breaker.OpenDuration,
		HalfOpenSuccessesToClose: cfg.Breaker.HalfOpenSuccessesToClose,
	})
	guarded := breaker.NewGuardedManager(confirmManager, cb, breaker.ExemptionConfig{
		EnableExemption:     cfg.Breaker.EnableExemption,
		MaxExemptValue:      cfg.Breaker.MaxExemptValue,
		InstrumentWhitelist: cfg.Breaker.InstrumentWhitelist,
	}, breaker.DefaultUpgradeTable)
	go runBreakerWatchLoop(ctx, cb, fallbackMgr)

	splitterComp := splitter.New(splitter.Config{
		SizeThresholds: splitter.SizeThresholds{
			Medium: decimal.NewFromFloat(cfg.Splitter.SizeThresholds.Medium),
			Large:  decimal.NewFromFloat(cfg.Splitter.SizeThresholds.Large),
			Huge:   decimal.NewFromFloat(cfg.Splitter.SizeThresholds.Huge),
		},
		EnableConfirmation:    cfg.Splitter.EnableConfirmation,
		ConfirmationThreshold: cfg.Splitter.ConfirmationThreshold,
	}, confirmCheckFor(guarded))

	executors, err := buildExecutors(cfg.Executors)
	if err != nil {
		logger.Error("failed to build executor pool", "error", err)
		os.Exit(1)
	}

	costCheck := func(in types.Intent) bool {
		return latestAlert.Load().(margin.AlertLevel) != margin.AlertForceClose
	}

	eng := engine.New(engine.Config{
		EnableAudit:        cfg.Engine.EnableAudit,
		EnableCostCheck:    cfg.Engine.EnableCostCheck,
		DefaultTimeout:     cfg.Engine.DefaultTimeout,
		MaxConcurrentPlans: cfg.Engine.MaxConcurrentPlans,
	}, executors, registry, stream, costCheck, logger)

	brokerClient := demo.NewClient(demo.Config{
		BaseURL:    cfg.Broker.Demo.BaseURL,
		DryRun:     cfg.DryRun,
		WSEndpoint: cfg.Broker.Demo.WSEndpoint,
	}, logger)
	defer brokerClient.Close()

	go dispatchOrderEvents(ctx, eng, brokerClient, logger)
	go runSampleIntentLoop(ctx, splitterComp, eng, brokerClient, logger)

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	logger.Info("order execution pipeline started",
		"max_concurrent_plans", cfg.Engine.MaxConcurrentPlans,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
	cancel()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildExecutors constructs the five concrete algorithm executors from
// config, keyed by the algorithm they implement. Decimal fields arrive
// as strings in config so operators can express exact lot sizes without
// float rounding.
func buildExecutors(cfg config.ExecutorsConfig) (map[types.Algorithm]executor.Executor, error) {
	maxSliceQty, err := parseDecimalOrDefault(cfg.MaxSliceQty, decimal.NewFromInt(10))
	if err != nil {
		return nil, fmt.Errorf("executors.max_slice_qty: %w", err)
	}
	base := executor.Config{
		MaxSliceQty:         maxSliceQty,
		RetryCount:          cfg.RetryCount,
		PendingOrderTimeout: cfg.PendingOrderTimeout,
	}

	tipSize, err := parseDecimalOrDefault(cfg.Iceberg.TipSize, decimal.NewFromInt(1))
	if err != nil {
		return nil, fmt.Errorf("executors.iceberg.tip_size: %w", err)
	}

	volumeProfile := make([]decimal.Decimal, len(cfg.VWAP.VolumeProfile))
	for i, w := range cfg.VWAP.VolumeProfile {
		volumeProfile[i] = decimal.NewFromFloat(w)
	}

	pool := map[types.Algorithm]executor.Executor{
		types.AlgoImmediate: executor.NewImmediate(executor.ImmediateConfig{Config: base}),
		types.AlgoTWAP: executor.NewTWAP(executor.TWAPConfig{
			Config:      base,
			Duration:    time.Duration(cfg.TWAP.DurationSeconds) * time.Second,
			MinInterval: time.Duration(cfg.TWAP.MinIntervalMs) * time.Millisecond,
			MaxInterval: time.Duration(cfg.TWAP.MaxIntervalMs) * time.Millisecond,
		}),
		types.AlgoVWAP: executor.NewVWAP(executor.VWAPConfig{
			Config:           base,
			VolumeProfile:    volumeProfile,
			Duration:         time.Duration(cfg.VWAP.DurationSeconds) * time.Second,
			MinSliceQtyRatio: decimal.NewFromFloat(cfg.VWAP.MinSliceQtyRatio),
		}),
		types.AlgoIceberg: executor.NewIceberg(executor.IcebergConfig{
			Config:      base,
			TipSize:     tipSize,
			RefillDelay: time.Duration(cfg.Iceberg.RefillDelayMs) * time.Millisecond,
		}),
		types.AlgoBehavioral: executor.NewBehavioral(executor.BehavioralConfig{
			Config:         base,
			Pattern:        executor.DisguisePattern(cfg.Behavioral.Pattern),
			Noise:          executor.NoiseType(cfg.Behavioral.NoiseType),
			Duration:       time.Duration(cfg.Behavioral.DurationSeconds) * time.Second,
			MinInterval:    time.Duration(cfg.Behavioral.MinIntervalMs) * time.Millisecond,
			MaxInterval:    time.Duration(cfg.Behavioral.MaxIntervalMs) * time.Millisecond,
			MinSlices:      cfg.Behavioral.MinSlices,
			MaxSlices:      cfg.Behavioral.MaxSlices,
			SizeVariance:   cfg.Behavioral.SizeVariance,
			TimingVariance: cfg.Behavioral.TimingVariance,
		}),
	}
	return pool, nil
}

func parseDecimalOrDefault(s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	return decimal.NewFromString(s)
}

// runVaRLoop drives the scheduler's own adaptive cadence: Tick reports
// whether it actually recomputed, so the loop just keeps polling at the
// current regime's interval rather than resetting a ticker on every
// regime change.
func runVaRLoop(ctx context.Context, s *varsched.Scheduler, logger *slog.Logger) {
	for {
		interval := s.Interval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			s.Tick()
		}
	}
}

// runBreakerWatchLoop notifies the fallback manager of breaker state
// transitions. The breaker has no change-listener hook of its own, so
// this polls State() at a short, fixed interval rather than reacting
// to every Confirm call site individually.
func runBreakerWatchLoop(ctx context.Context, cb *breaker.Breaker, fallbackMgr *fallback.Manager) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	last := cb.State()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if state := cb.State(); state != last {
				last = state
				fallbackMgr.OnBreakerStateChange(state)
			}
		}
	}
}

// planIDFromClientOrderID strips types.ClientOrderID's "-sliceIndex-retry"
// suffix to recover the owning plan's id (== its originating intent id).
func planIDFromClientOrderID(clientOrderID string) string {
	idx := strings.LastIndex(clientOrderID, "-")
	if idx < 0 {
		return clientOrderID
	}
	rest := clientOrderID[:idx]
	idx = strings.LastIndex(rest, "-")
	if idx < 0 {
		return rest
	}
	return rest[:idx]
}

// placeholderVaRCalc stands in for a real pricing/risk engine: the
// pipeline core only needs a CalcFunc with the right shape to drive its
// scheduling logic, not an actual VaR model.
func placeholderVaRCalc(method varsched.Method) (value float64, elapsed time.Duration) {
	return 0, 0
}

// confirmCheckFor adapts the circuit-breaker-guarded confirmation
// manager to the splitter's ConfirmCheck shape.
func confirmCheckFor(guarded *breaker.GuardedManager) splitter.ConfirmCheck {
	return func(in types.Intent, orderValue float64) bool {
		now := time.Now()
		decision := guarded.Confirm(context.Background(), breaker.Request{
			Context: confirmation.Context{
				IntentID:    in.IntentID,
				OrderValue:  orderValue,
				Side:        in.Side,
				Strategy:    confirmation.StrategyProduction,
				Session:     confirmation.CurrentSessionType(now),
				RequestedAt: now,
			},
			Instrument: in.Instrument,
		})
		return decision.Result == confirmation.ResultApproved
	}
}

// alertHardConfirm builds the HARD-tier paging callback. No real
// operator-paging channel (SMS/IM gateway) is wired up in this
// demonstration deployment, so the alert surfaces as a structured warning
// log an operator dashboard would otherwise subscribe to.
func alertHardConfirm(logger *slog.Logger) confirmation.AlertFunc {
	return func(ctx context.Context, confirmationID string, c confirmation.Context) {
		logger.Warn("HARD confirmation awaiting operator decision",
			"confirmation_id", confirmationID,
			"intent_id", c.IntentID,
			"order_value", c.OrderValue,
			"session", c.Session,
		)
	}
}

// runSampleIntentLoop periodically submits a synthetic intent through
// the splitter and into the engine, then drives its plan to completion
// by polling GetNextAction/dispatching PLACE_ORDER actions to the broker
// adapter. This is what exercises the full pipeline end to end in the
// absence of a real upstream strategy/signal feed, which is out of this
// pipeline's scope.
func runSampleIntentLoop(ctx context.Context, sp *splitter.Splitter, eng *engine.Engine, client *demo.Client, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			submitSampleIntent(ctx, sp, eng, client, logger, seq)
		}
	}
}

func submitSampleIntent(ctx context.Context, sp *splitter.Splitter, eng *engine.Engine, client *demo.Client, logger *slog.Logger, seq int) {
	now := time.Now()
	in := types.Intent{
		StrategyID:   "sample-strategy",
		DecisionHash: fmt.Sprintf("sample-%d", seq),
		Instrument:   "IF2409",
		Side:         types.SideBuy,
		Offset:       types.OffsetOpen,
		TargetQty:    decimal.NewFromInt(20),
		Urgency:      types.UrgencyNormal,
		SignalTS:     now,
		RefPrice:     decimal.NewFromInt(4000),
	}
	in.IntentID = intent.Generate(in)

	decision, err := sp.Decide(in, splitter.MarketContext{
		Liquidity:  splitter.LiquidityNormal,
		Session:    splitter.SessionMorning,
		Volatility: splitter.VolatilityNormal,
	})
	if err != nil {
		logger.Warn("splitter rejected sample intent", "error", err)
		return
	}
	in.Algo = decision.Algo

	planID, err := eng.Submit(in, now)
	if err != nil {
		logger.Warn("engine rejected sample intent", "error", err)
		return
	}
	logger.Info("submitted sample intent", "plan_id", planID, "algo", decision.Algo)

	go driveplan(ctx, eng, client, logger, planID, in)
}

// driveplan polls an active plan and dispatches every PLACE_ORDER action
// to the broker adapter until the plan reaches a terminal state. in is
// the originating intent, kept here since the engine's read-only
// ExecutionPlan view doesn't carry instrument/side/offset.
func driveplan(ctx context.Context, eng *engine.Engine, client *demo.Client, logger *slog.Logger, planID string, in types.Intent) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			action, err := eng.GetNextAction(planID, time.Now())
			if err != nil {
				logger.Warn("get next action failed", "error", err, "plan_id", planID)
				return
			}
			switch action.Kind {
			case executor.ActionPlaceOrder:
				if err := client.SubmitOrder(ctx, broker.OrderRequest{
					ClientOrderID: action.ClientOrderID,
					Instrument:    in.Instrument,
					Side:          in.Side,
					Offset:        action.Offset,
					Qty:           action.Qty,
					Price:         action.Price,
				}); err != nil {
					logger.Warn("submit order failed", "error", err, "client_order_id", action.ClientOrderID)
				}
			case executor.ActionCancelOrder:
				if err := client.CancelOrder(ctx, action.ClientOrderID); err != nil {
					logger.Warn("cancel order failed", "error", err, "client_order_id", action.ClientOrderID)
				}
			case executor.ActionComplete, executor.ActionFail, executor.ActionAbort:
				return
			}
		}
	}
}

// dispatchOrderEvents bridges broker-reported events back into the
// engine. Executors build slice client order ids as
// planId-sliceIndex-retry, so the plan id is recovered by stripping that
// suffix (planIDFromClientOrderID).
func dispatchOrderEvents(ctx context.Context, eng *engine.Engine, client *demo.Client, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-client.Events():
			planID := planIDFromClientOrderID(ev.ClientOrderID)
			if err := eng.OnOrderEvent(planID, ev); err != nil {
				logger.Warn("failed to apply order event", "error", err, "client_order_id", ev.ClientOrderID)
			}
		}
	}
}
