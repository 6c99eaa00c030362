package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/config"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/exchange"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/monitoring"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/notifications"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/performance"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/risk"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/safety"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/state"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

// cycleTimeout caps the venue work done within a single tick.
const cycleTimeout = 30 * time.Second

// MarketDataProvider supplies one snapshot per symbol per cycle. All
// decisions for a symbol within one tick use the same snapshot.
type MarketDataProvider interface {
	Snapshots(ctx context.Context, symbols []string) (map[string]types.SymbolSnapshot, error)
}

// Deps bundles the collaborators the engine drives.
type Deps struct {
	Market   MarketDataProvider
	Executor exchange.Executor
	Venue    exchange.VenueReader
	Stats    exchange.APIStats
	Logger   *logger.Logger
	Notifier notifications.Notifier
	Health   *monitoring.HealthChecker
}

// Engine owns all mutable trading state and runs the cycle loop. State is
// single-owner: only the tick goroutine mutates it, and manual commands
// take the same mutex as the tick.
type Engine struct {
	cfg *config.EngineConfig

	market   MarketDataProvider
	executor exchange.Executor
	venue    exchange.VenueReader
	stats    exchange.APIStats

	store      *position.Store
	evaluator  *position.ExitEvaluator
	reconciler *position.Reconciler
	emergency  *risk.EmergencyMonitor
	breaker    *risk.BreakerState
	tracker    *performance.Tracker
	states     *state.Store
	validator  *safety.Validator

	logger   *logger.Logger
	notifier notifications.Notifier
	health   *monitoring.HealthChecker

	sessionStart time.Time
	halted       bool
	haltReason   string

	// Serializes the tick against manual commands.
	mu sync.Mutex

	running  bool
	stopChan chan struct{}
}

// NewEngine creates the engine with empty state. Call Start to load the
// persisted snapshot and begin ticking.
func NewEngine(cfg *config.EngineConfig, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine configuration is required")
	}
	if deps.Market == nil || deps.Executor == nil {
		return nil, fmt.Errorf("market data provider and executor are required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}

	return &Engine{
		cfg:        cfg,
		market:     deps.Market,
		executor:   deps.Executor,
		venue:      deps.Venue,
		stats:      deps.Stats,
		store:      position.NewStore(),
		evaluator:  position.NewExitEvaluator(cfg.Exit),
		reconciler: position.NewReconciler(cfg.Reconciler, deps.Logger),
		emergency:  risk.NewEmergencyMonitor(cfg.Emergency),
		breaker:    risk.NewBreakerState(time.Now()),
		tracker:    performance.NewTracker(),
		states:     state.NewStore(cfg.Engine.StateDir, cfg.Engine.Account, deps.Logger),
		validator:  safety.NewValidator(),
		logger:     deps.Logger,
		notifier:   notifier,
		health:     deps.Health,
		stopChan:   make(chan struct{}),
	}, nil
}

// Start restores persisted state and launches the cycle loop.
func (e *Engine) Start() error {
	if err := e.restore(); err != nil {
		return err
	}

	e.running = true
	go e.loop()

	return nil
}

// restore loads the persisted snapshot into the engine's state.
func (e *Engine) restore() error {
	if err := e.states.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize state store: %w", err)
	}

	saved, err := e.states.Load(time.Now())
	if err != nil {
		return fmt.Errorf("failed to load persisted state: %w", err)
	}

	saved.RestorePositions(e.store)
	e.tracker.Restore(saved.Trades)
	if saved.Breaker != nil {
		e.breaker = saved.Breaker
	}
	e.halted = saved.Halted
	e.haltReason = saved.HaltReason
	e.sessionStart = saved.SessionStart
	if e.sessionStart.IsZero() {
		e.sessionStart = time.Now()
	}

	if e.store.Len() > 0 {
		e.logger.Info("Restored %d open position(s) from previous session", e.store.Len())
	}
	if e.halted {
		e.logger.Warning("Session restored in HALTED state: %s", e.haltReason)
	}

	return nil
}

// Stop ends the cycle loop and persists a final snapshot.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.running = false
	close(e.stopChan)

	if err := e.persist(); err != nil {
		e.logger.LogError("final state save", err)
	}
}

// loop ticks at the configured interval until stopped.
func (e *Engine) loop() {
	ticker := time.NewTicker(e.cfg.Engine.CycleInterval)
	defer ticker.Stop()

	// Run the first cycle immediately rather than waiting a full interval.
	e.RunCycle()

	for {
		select {
		case <-ticker.C:
			e.RunCycle()
		case <-e.stopChan:
			e.logger.Info("Stop signal received - ending cycle loop")
			return
		}
	}
}

// RunCycle executes one full tick: refresh, protect, exit, enter,
// reconcile, persist, report. Any one failing step is logged and the
// cycle continues; a market data failure skips the tick entirely.
func (e *Engine) RunCycle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered from panic in cycle: %v", r)
			monitoring.RecordError("cycle_panic")
		}
	}()

	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	now := time.Now()

	// Daily reset clears the PnL window and any latched halt.
	if e.breaker.NeedsDailyReset(now) {
		e.breaker.ResetDaily(now)
		if e.halted {
			e.halted = false
			e.haltReason = ""
			e.logger.Status("Daily reset: halt cleared, trading resumes")
		}
	}

	snapshots, err := e.market.Snapshots(ctx, e.universe())
	if err != nil {
		e.logger.LogError("market data refresh", err)
		monitoring.RecordError("market_data")
		if e.health != nil {
			e.health.RecordCycle(string(e.breaker.Status), e.store.Len(), false)
		}
		return
	}

	e.refreshPositions(snapshots, now)

	result := e.evaluateBreaker(ctx, now)

	if result.ShouldCloseAll && e.store.Len() > 0 {
		e.logger.Warning("Circuit breaker STOPPED: %s - closing all positions", result.Reason)
		e.closeAll(ctx, snapshots, string(position.ExitCircuitBreaker), now)
	}
	if result.Status == risk.StatusStopped && !e.halted {
		e.halted = true
		e.haltReason = result.Reason
		e.notify(notifications.LevelError, fmt.Sprintf("Trading halted: %s", result.Reason))
	}

	// Protective passes always run: a latched halt blocks entries only.
	// A position surviving a failed close-all still gets its stop-loss,
	// trailing-stop, and emergency checks every tick.
	e.checkEmergencies(ctx, snapshots, now)
	e.checkExits(ctx, snapshots, now)

	if !e.halted && !result.ShouldPauseEntries {
		e.checkEntries(ctx, snapshots, now)
	}

	e.reconcile(ctx, now)

	if err := e.persist(); err != nil {
		e.logger.LogError("state save", err)
		monitoring.RecordError("persistence")
	}

	e.report(now)

	if e.health != nil {
		e.health.RecordCycle(string(e.breaker.Status), e.store.Len(), true)
	}
	monitoring.ObserveCycleDuration(time.Since(started).Seconds())
}

// universe returns the configured symbols plus any tracked symbols that
// fell out of the configured list, so open positions are never blind.
func (e *Engine) universe() []string {
	seen := make(map[string]bool, len(e.cfg.Engine.Symbols))
	symbols := make([]string, 0, len(e.cfg.Engine.Symbols))
	for _, s := range e.cfg.Engine.Symbols {
		seen[s] = true
		symbols = append(symbols, s)
	}
	if ref := e.emergency.ReferenceSymbol(); ref != "" && !seen[ref] {
		seen[ref] = true
		symbols = append(symbols, ref)
	}
	for _, p := range e.store.All() {
		if !seen[p.Symbol] {
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols
}

// refreshPositions folds the tick's snapshot prices into tracked
// positions and the emergency monitor's reference window.
func (e *Engine) refreshPositions(snapshots map[string]types.SymbolSnapshot, now time.Time) {
	for symbol, snap := range snapshots {
		monitoring.UpdatePrice(symbol, snap.Price)
	}

	if ref, ok := snapshots[e.emergency.ReferenceSymbol()]; ok {
		e.emergency.RecordReferencePrice(ref.Price, now)
	}

	for _, p := range e.store.All() {
		snap, ok := snapshots[p.Symbol]
		if !ok {
			e.logger.Warning("No snapshot for tracked symbol %s this tick", p.Symbol)
			continue
		}
		if v := e.validator.ValidatePrice(snap.Price, p.Symbol); !v.Valid {
			e.logger.LogWarning("price validation", "%s", v.Message)
			monitoring.RecordError("bad_price")
			continue
		}
		p.RefreshPrice(snap.Price)
	}

	monitoring.UpdateOpenPositions(e.store.Len())
}

// evaluateBreaker runs the circuit breaker against current counters and
// applies the outcome to the session state.
func (e *Engine) evaluateBreaker(ctx context.Context, now time.Time) risk.BreakerResult {
	apiErrors, apiRequests := 0, 0
	if e.stats != nil {
		apiErrors, apiRequests = e.stats.APICounters()
	}

	marginLevel := 0.0
	if e.venue != nil {
		if ml, err := e.venue.MarginLevel(ctx); err == nil {
			marginLevel = ml
		} else {
			e.logger.LogWarning("margin level", "%v", err)
		}
	}

	prev := e.breaker.Status
	result := risk.Evaluate(e.breaker, e.cfg.Breaker, apiErrors, apiRequests, marginLevel)
	e.breaker.Apply(result, apiErrors, apiRequests, marginLevel, now)

	switch e.breaker.Status {
	case risk.StatusNormal:
		monitoring.UpdateAccountStatus(0)
	case risk.StatusPaused:
		monitoring.UpdateAccountStatus(1)
	case risk.StatusStopped:
		monitoring.UpdateAccountStatus(2)
	}

	if prev != e.breaker.Status {
		e.logger.Status("Account status %s -> %s (%s)", prev, e.breaker.Status, result.Reason)
		if e.breaker.Status == risk.StatusPaused {
			e.notify(notifications.LevelWarning, fmt.Sprintf("Entries paused: %s", result.Reason))
		}
	}

	return result
}

// checkEmergencies runs the per-position emergency checks and executes
// the advised reduction for the most urgent triggered condition.
func (e *Engine) checkEmergencies(ctx context.Context, snapshots map[string]types.SymbolSnapshot, now time.Time) {
	for _, p := range e.store.All() {
		snap, ok := snapshots[p.Symbol]
		if !ok {
			continue
		}

		advice := e.emergency.Check(p, snap.FundingRate)
		if advice.Action == risk.ActionHold {
			continue
		}

		sizePct := 0.0
		switch advice.Action {
		case risk.ActionCloseAll:
			sizePct = 100
		case risk.ActionReduce50:
			sizePct = 50
		case risk.ActionReduce25:
			sizePct = 25
		}
		if sizePct == 0 {
			continue
		}

		for _, cond := range advice.Conditions {
			if cond.Triggered {
				monitoring.RecordEmergencyTrigger(cond.Category, string(cond.Urgency))
				e.logger.Warning("🚨 EMERGENCY %s [%s]: %s", p.Symbol, cond.Urgency, cond.Message)
			}
		}
		e.notify(notifications.LevelError, fmt.Sprintf("Emergency exit %s: closing %.0f%% of position", p.Symbol, sizePct))

		e.executeExit(ctx, p, string(position.ExitEmergency), sizePct, snap.Price, len(advice.Conditions), now)
	}
}

// checkExits evaluates the ordered exit conditions and acts on the
// highest-priority one per position.
func (e *Engine) checkExits(ctx context.Context, snapshots map[string]types.SymbolSnapshot, now time.Time) {
	for _, p := range e.store.All() {
		snap, ok := snapshots[p.Symbol]
		if !ok {
			continue
		}

		conditions := e.evaluator.Evaluate(p, snap, now)
		if len(conditions) == 0 {
			continue
		}

		action := position.DetermineExitAction(conditions[0], snap.Price)
		e.logger.Info("Exit condition %s on %s: %s (%.0f%% at %.4f)",
			action.Condition.Reason, p.Symbol, action.Condition.Description, action.ExitSize, action.ExitPrice)

		e.executeExit(ctx, p, string(action.Condition.Reason), action.ExitSize, action.ExitPrice, len(conditions), now)
	}
}

// checkEntries sizes and submits entries for fresh signals, respecting
// the position cap and the sizing safety checks.
func (e *Engine) checkEntries(ctx context.Context, snapshots map[string]types.SymbolSnapshot, now time.Time) {
	for _, symbol := range e.cfg.Engine.Symbols {
		snap, ok := snapshots[symbol]
		if !ok || snap.Signal == nil {
			continue
		}
		if e.store.Has(symbol) {
			continue
		}
		if e.store.Len() >= e.cfg.Engine.MaxPositions {
			e.logger.Info("Position cap reached (%d), skipping signal for %s", e.cfg.Engine.MaxPositions, symbol)
			return
		}

		signal := *snap.Signal
		if v := e.validator.ValidateConfidence(signal.Confidence); !v.Valid {
			e.logger.LogWarning("signal validation", "%s: %s", symbol, v.Message)
			continue
		}

		side := position.SideLong
		if signal.Direction == types.DirectionShort {
			side = position.SideShort
		}

		sizing := e.cfg.Sizing
		sizing.VolatilityPct = snap.VolatilityPct

		leverage := signal.Leverage
		if leverage == 0 {
			leverage = risk.SafeLeverage(snap.VolatilityPct, sizing.MinLiquidationBufferPct,
				sizing.MaxLeverage, snap.Price, nearest(snap.Price, snap.LiquidationClusters))
		}
		if v := e.validator.ValidateLeverage(leverage, sizing.MaxLeverage); !v.Valid {
			e.logger.LogWarning("leverage validation", "%s: %s", symbol, v.Message)
			continue
		}

		sized, err := risk.SafePositionSize(snap.Price, side, signal.StopLoss, leverage, sizing, snap.LiquidationClusters)
		if err != nil {
			e.logger.LogWarning("position sizing", "%s: %v", symbol, err)
			continue
		}
		if ok, reason := risk.ValidatePositionSafety(snap.Price, sized.Leverage, side, sizing, snap.LiquidationClusters); !ok {
			e.logger.LogWarning("position safety", "%s: %s", symbol, reason)
			continue
		}

		quantity := sized.Size / snap.Price
		if v := e.validator.ValidateOrderValue(snap.Price, quantity, symbol); !v.Valid {
			e.logger.LogWarning("order validation", "%s", v.Message)
			continue
		}

		order, err := e.executor.ExecuteEntry(ctx, exchange.EntryRequest{
			Signal:   signal,
			Quantity: quantity,
			Leverage: sized.Leverage,
		}, snap.Price)
		if err != nil {
			e.logger.LogError("entry execution", err)
			monitoring.RecordError("entry")
			continue
		}

		switch order.Status {
		case exchange.OrderStatusRejected:
			e.logger.Warning("Entry rejected for %s: %s", symbol, order.RejectReason)
		case exchange.OrderStatusTimeout:
			e.logger.Warning("Entry fill timed out for %s, resolving via reconciliation", symbol)
		default:
			if !order.IsFilled() {
				continue
			}
			p := &position.Position{
				Symbol:          symbol,
				Side:            side,
				Quantity:        order.FilledQty,
				EntryPrice:      order.FilledPrice,
				Leverage:        sized.Leverage,
				CurrentPrice:    order.FilledPrice,
				EntryTime:       now,
				StopLoss:        signal.StopLoss,
				TakeProfit:      signal.TakeProfit,
				TrailingStopPct: e.cfg.Exit.TrailingStopPct,
			}
			if err := e.store.Open(p); err != nil {
				e.logger.LogError("position open", err)
				continue
			}
			e.logger.LogTradeExecution("ENTRY", order.ID, symbol, order.FilledQty, order.FilledPrice,
				fmt.Sprintf("%s signal, confidence %.2f, %s tier %.1fx", signal.Direction, signal.Confidence, sized.Tier, sized.Leverage))
			monitoring.UpdateOpenPositions(e.store.Len())
		}
	}
}

// executeExit submits a reduce-only exit and folds a fill into the
// position store, trade log, and circuit breaker state.
func (e *Engine) executeExit(ctx context.Context, p *position.Position, reason string, sizePct, price float64, conditionsFired int, now time.Time) {
	if v := e.validator.ValidateExitSizePct(sizePct); !v.Valid {
		e.logger.LogWarning("exit validation", "%s: %s", p.Symbol, v.Message)
		return
	}

	order, err := e.executor.ExecuteExit(ctx, p, sizePct, reason, price)
	if err != nil {
		e.logger.LogError("exit execution", err)
		monitoring.RecordError("exit")
		return
	}

	switch {
	case order.Status == exchange.OrderStatusRejected:
		e.logger.Warning("Exit rejected for %s: %s", p.Symbol, order.RejectReason)
	case order.Status == exchange.OrderStatusTimeout:
		e.logger.Warning("Exit fill timed out for %s, resolving via reconciliation", p.Symbol)
	case order.IsFilled():
		tr, err := e.store.ApplyExitFill(p.Symbol, order.FilledPrice, sizePct, reason, conditionsFired, now)
		if err != nil {
			e.logger.LogError("exit fill apply", err)
			return
		}
		e.recordClosedTrade(tr)
		e.logger.LogTradeExecution("EXIT", order.ID, tr.Symbol, tr.Quantity, tr.ExitPrice,
			fmt.Sprintf("%s, PnL %.2f (%.2f%%)", reason, tr.PnL, tr.PnLPct))
	}
}

// closeAll exits every open position at the tick's snapshot prices.
func (e *Engine) closeAll(ctx context.Context, snapshots map[string]types.SymbolSnapshot, reason string, now time.Time) {
	for _, p := range e.store.All() {
		price := p.CurrentPrice
		if snap, ok := snapshots[p.Symbol]; ok {
			price = snap.Price
		}
		e.executeExit(ctx, p, reason, 100, price, 0, now)
	}
}

// reconcile folds the venue's view of the account back into local state.
func (e *Engine) reconcile(ctx context.Context, now time.Time) {
	if e.venue == nil {
		return
	}

	remote, err := e.venue.RemotePositions(ctx)
	if err != nil {
		e.logger.LogWarning("reconciliation", "could not fetch venue positions: %v", err)
		monitoring.RecordError("reconcile")
		return
	}

	result := e.reconciler.Reconcile(e.store, remote, now)
	for _, tr := range result.ClosedTrades {
		e.recordClosedTrade(tr)
		e.notify(notifications.LevelWarning, fmt.Sprintf("Position %s closed outside the engine, PnL %.2f", tr.Symbol, tr.PnL))
	}
	for _, ev := range result.Events {
		e.logger.Warning("Reconcile %s on %s: %s", ev.Type, ev.Symbol, ev.Detail)
	}
	if len(result.Events) > 0 {
		monitoring.UpdateOpenPositions(e.store.Len())
	}
}

// recordClosedTrade routes one closed trade into the tracker, breaker
// counters, and metrics.
func (e *Engine) recordClosedTrade(tr *position.TradeRecord) {
	e.tracker.RecordTrade(*tr)
	e.breaker.RecordTrade(tr, e.cfg.Sizing.Capital)
	monitoring.RecordTrade(tr.Symbol, string(tr.Side), tr.ExitReason, tr.PnL)
}

// persist writes the current session snapshot to disk.
func (e *Engine) persist() error {
	snapshot := &state.CycleState{
		SavedAt:      time.Now(),
		SessionStart: e.sessionStart,
		Positions:    e.store.Snapshot(),
		Trades:       e.tracker.Trades(),
		Breaker:      e.breaker,
		Halted:       e.halted,
		HaltReason:   e.haltReason,
	}
	return e.states.Save(snapshot)
}

// report records the equity sample and rewrites the performance report.
func (e *Engine) report(now time.Time) {
	equity := e.equity()
	e.tracker.RecordEquity(equity, now)
	if err := e.tracker.WriteReport(e.cfg.Engine.ReportPath); err != nil {
		e.logger.LogWarning("performance report", "%v", err)
	}

	e.logger.LogCycleStatus(e.store.Len(), equity, e.breaker.DailyPnLPct, string(e.breaker.Status))
}

// equity is configured capital plus realized and unrealized PnL.
func (e *Engine) equity() float64 {
	equity := e.cfg.Sizing.Capital
	for _, tr := range e.tracker.Trades() {
		equity += tr.PnL
	}
	for _, p := range e.store.All() {
		equity += p.UnrealizedPnL
	}
	return equity
}

// Halted reports whether trading is latched off.
func (e *Engine) Halted() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted, e.haltReason
}

// ResetHalt clears a latched halt and returns the breaker to NORMAL.
// Intended for explicit operator intervention only.
func (e *Engine) ResetHalt() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.halted = false
	e.haltReason = ""
	e.breaker.Status = risk.StatusNormal
	e.breaker.Reason = ""
	e.logger.Status("Halt reset by operator, trading resumes")
}

// CloseAll closes every open position at last known prices. Manual
// command, serialized against the tick.
func (e *Engine) CloseAll(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	for _, p := range e.store.All() {
		e.executeExit(ctx, p, reason, 100, p.CurrentPrice, 0, time.Now())
	}
}

// ClosePosition closes one position at its last known price. Manual
// command, serialized against the tick.
func (e *Engine) ClosePosition(symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Get(symbol)
	if !ok {
		return fmt.Errorf("no open position for %s", symbol)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	e.executeExit(ctx, p, string(position.ExitManualClose), 100, p.CurrentPrice, 0, time.Now())
	return nil
}

// Performance exposes the tracker's derived metrics.
func (e *Engine) Performance() performance.Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Metrics()
}

// notify sends an alert and logs delivery failures without blocking the
// cycle on notification problems.
func (e *Engine) notify(level, message string) {
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.logger.LogWarning("notification", "%v", err)
	}
}

// nearest picks the cluster price closest to the entry, or 0 when no
// clusters are known.
func nearest(price float64, clusters []float64) float64 {
	best := 0.0
	bestDist := 0.0
	for _, c := range clusters {
		d := c - price
		if d < 0 {
			d = -d
		}
		if best == 0 || d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
