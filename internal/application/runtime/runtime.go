// Package runtime wires every core component into the six concurrent
// tasks that make up one trading day: tick ingestion, bar aggregation +
// classifier triggering, the 09:40 plan-builder cron, the paper-engine
// tick loop, the persistence/heartbeat debouncer, and read-only metrics
// serving. All six share one cancellation context and shut down
// cooperatively.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akhanrex/probedge/internal/adapters/journal"
	"github.com/akhanrex/probedge/internal/adapters/metrics"
	"github.com/akhanrex/probedge/internal/adapters/notify"
	"github.com/akhanrex/probedge/internal/adapters/statestore"
	"github.com/akhanrex/probedge/internal/application/aggregator"
	"github.com/akhanrex/probedge/internal/application/classifier"
	"github.com/akhanrex/probedge/internal/application/gate"
	"github.com/akhanrex/probedge/internal/application/paperengine"
	"github.com/akhanrex/probedge/internal/application/planner"
	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

// planBuildOffset is how long after midnight the portfolio plan is
// built and locked.
const planBuildOffset = 9*time.Hour + 40*time.Minute

// persistenceInterval is how often the backstop persist/heartbeat-check
// cycle runs, independent of the state store's own write debounce.
const persistenceInterval = 5 * time.Second

// Deps bundles every collaborator the runtime wires together. All
// fields are required except Metrics, Journal and Report, which may be
// nil to run without Prometheus export, fill journaling, or console
// reporting (e.g. in tests).
type Deps struct {
	Clock     ports.Clock
	Ticks     ports.TickSource
	State     *statestore.Store
	Snapshots ports.SnapshotStore
	Masters   interface {
		ports.FrequencyTable
		ports.MasterDataSource
	}
	Engine  *paperengine.Engine
	Journal *journal.Store
	Metrics *metrics.Registry
	Report  *notify.Report
	Gate    gate.Gate
}

// Runtime owns one trading day's orchestration.
type Runtime struct {
	cfg  config.Config
	deps Deps
	agg  *aggregator.Aggregator

	day  string
	mode domain.Mode

	mu           sync.Mutex
	tags         map[string]domain.Tags
	openingBars  map[string][]domain.Bar
	planBuilt    bool
	eodFlattened bool
}

// New constructs a Runtime for the given day. day is the YYYY-MM-DD
// trading date the plan cron and journal entries key off of.
func New(cfg config.Config, deps Deps, day string) *Runtime {
	return &Runtime{
		cfg:         cfg,
		deps:        deps,
		agg:         aggregator.New(),
		day:         day,
		mode:        deps.Ticks.Mode(),
		tags:        map[string]domain.Tags{},
		openingBars: map[string][]domain.Bar{},
	}
}

// Reconcile rehydrates in-flight state from a prior run of the same
// day: open/pending positions and the daily-loss latch from the state
// store and journal, and whether the plan snapshot already locked (in
// which case the plan cron is skipped on this run). Ticks already
// consumed before a restart are not replayed, so a mid-morning restart
// may rebuild opening-range bars from an empty window — an accepted gap
// for a tool whose restart path is operator-driven, not automatic.
func (r *Runtime) Reconcile(ctx context.Context) error {
	snap := r.deps.State.Snapshot()

	for sym, tg := range snap.Tags {
		r.tags[sym] = tg
	}

	if len(snap.Positions) > 0 {
		var realized float64
		var halted bool
		var reason string
		if r.deps.Journal != nil {
			if v, h, rsn, ok, err := r.deps.Journal.LoadDailyPnL(ctx, r.day); err != nil {
				slog.Warn("runtime: load daily pnl failed", "err", err)
			} else if ok {
				realized, halted, reason = v, h, rsn
			}
		}
		if err := r.deps.Engine.RestoreState(snap.Positions, realized, halted, reason); err != nil {
			return fmt.Errorf("runtime: restore state: %w", err)
		}
		slog.Info("runtime: restored positions from prior run", "count", len(snap.Positions), "halted", halted)
	}

	existing, ok, err := r.deps.Snapshots.Load(r.day)
	if err != nil {
		return fmt.Errorf("runtime: load snapshot: %w", err)
	}
	if ok && existing.Locked {
		r.planBuilt = true
		slog.Info("runtime: plan already locked, skipping cron", "date", r.day)
	}
	return nil
}

// Run starts all six tasks and blocks until ctx is cancelled or one of
// them fails. On cancellation every task exits cooperatively and a
// final state persist runs before Run returns — positions are not
// auto-flattened on shutdown, by design; they are reconciled at the
// next start via Reconcile.
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	tickCh := make(chan domain.Tick, 256)
	wake := make(chan time.Time, 16)

	g.Go(func() error { return r.runIngestion(ctx, tickCh, wake) })
	g.Go(func() error { return r.runAggregation(ctx, wake) })
	g.Go(func() error { return r.runPlanCron(ctx) })
	g.Go(func() error { return r.runPaperLoop(ctx, tickCh) })
	g.Go(func() error { return r.runPersistence(ctx) })
	g.Go(func() error { return r.runMetricsServer(ctx) })

	return g.Wait()
}

// --- tick ingestion ---------------------------------------------------

func (r *Runtime) runIngestion(ctx context.Context, tickCh chan<- domain.Tick, wake chan<- time.Time) error {
	defer close(tickCh)
	for {
		tick, err := r.deps.Ticks.Next(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrEndOfStream) {
				r.closeTrailingWindows()
				slog.Info("runtime: tick source exhausted")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("runtime: tick source: %w", err)
		}

		r.mu.Lock()
		// Close must be attempted with this tick's own timestamp, before
		// Ingest: Ingest silently rolls over to a new window the moment
		// a tick for a later window arrives, so checking closure only
		// from the separate wake-driven task would run too late and
		// lose the bar.
		if bar, closed := r.agg.Close(tick.Symbol, tick.TS); closed && len(r.openingBars[tick.Symbol]) < 5 {
			r.openingBars[tick.Symbol] = append(r.openingBars[tick.Symbol], bar)
		}
		r.agg.Ingest(tick)
		r.mu.Unlock()
		r.publishQuote(tick)
		r.heartbeat("ticksource", tick.TS)

		select {
		case tickCh <- tick:
		case <-ctx.Done():
			return nil
		}
		select {
		case wake <- tick.TS:
		default:
		}
	}
}

// closeTrailingWindows force-closes any still-open window once the tick
// stream ends, so the last bar of the day is not silently dropped for
// want of a next-window tick to trigger it.
func (r *Runtime) closeTrailingWindows() {
	now := r.deps.Clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sym := range r.cfg.Symbols {
		if bar, closed := r.agg.Close(sym, now.Add(5*time.Minute)); closed && len(r.openingBars[sym]) < 5 {
			r.openingBars[sym] = append(r.openingBars[sym], bar)
		}
	}
}

func (r *Runtime) publishQuote(tick domain.Tick) {
	r.mu.Lock()
	open, high, low, last, vol, ok := r.agg.InProgress(tick.Symbol)
	r.mu.Unlock()
	if !ok {
		return
	}

	prevClose := 0.0
	if row, priorOK := r.deps.Masters.PriorDay(tick.Symbol); priorOK {
		prevClose = row.Close
	}
	changePct := 0.0
	if prevClose != 0 {
		changePct = (last - prevClose) / prevClose * 100
	}

	q := domain.Quote{
		Symbol:       tick.Symbol,
		LTP:          last,
		LastUpdateTS: tick.TS,
		TodayOpen:    open,
		RunningHigh:  high,
		RunningLow:   low,
		LastClose:    prevClose,
		Volume:       vol,
		ChangePct:    changePct,
	}
	r.deps.State.Apply(ports.StateDelta{Quotes: map[string]domain.Quote{tick.Symbol: q}})
}

// --- bar aggregation + classifier trigger ------------------------------

func (r *Runtime) runAggregation(ctx context.Context, wake <-chan time.Time) error {
	fallback := time.NewTicker(time.Second)
	defer fallback.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
			r.advanceAll()
		case <-fallback.C:
			r.advanceAll()
		}
	}
}

func (r *Runtime) advanceAll() {
	now := r.deps.Clock.Now()
	for _, sym := range r.cfg.Symbols {
		r.advanceSymbol(sym, now)
	}
	r.heartbeat("aggregator", now)
}

// advanceSymbol re-evaluates symbol's tags against the clock's cutovers
// and whatever opening bars tick ingestion has recorded so far. Bar
// closure itself is detected in the ingestion path, not here.
func (r *Runtime) advanceSymbol(symbol string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tg, ok := r.tags[symbol]
	if !ok {
		tg = domain.Tags{Symbol: symbol}
	}
	changed := false

	if tg.PDC == nil && r.deps.Gate.CanComputePDC(now) {
		prior, priorOK := r.deps.Masters.PriorDay(symbol)
		if dir, cok := classifier.ClassifyPDC(prior, priorOK); cok {
			tg = tg.WithPDC(dir, now)
			changed = true
		}
	}

	if tg.OL == nil && r.deps.Gate.CanComputeOL(now) && len(r.openingBars[symbol]) > 0 {
		open := r.openingBars[symbol][0].Open
		prior, priorOK := r.deps.Masters.PriorDay(symbol)
		if loc, cok := classifier.ClassifyOL(prior, priorOK, open); cok {
			tg = tg.WithOL(loc, now)
			changed = true
		}
	}

	if tg.OT == nil && r.deps.Gate.CanComputeOT(now) && len(r.openingBars[symbol]) >= 5 {
		if dir, cok := classifier.ClassifyOT(r.openingBars[symbol], r.cfg.Picker.OTThreshold); cok {
			tg = tg.WithOT(dir, now)
			changed = true
		}
	}

	if changed {
		r.tags[symbol] = tg
		r.deps.State.Apply(ports.StateDelta{Tags: map[string]domain.Tags{symbol: tg}})
	}
}

// --- plan cron ----------------------------------------------------------

func (r *Runtime) runPlanCron(ctx context.Context) error {
	r.mu.Lock()
	already := r.planBuilt
	r.mu.Unlock()
	if already {
		return nil
	}
	if err := r.deps.Clock.WaitUntil(ctx, r.planTime()); err != nil {
		return nil
	}
	// advanceAll is driven off tick arrival and the 1s fallback ticker, so
	// it may not yet have reacted to the clock crossing the OT cutover by
	// the time WaitUntil returns. Force one final pass here so the plan is
	// never built against stale tags.
	r.advanceAll()
	r.buildPlan()
	return nil
}

// planTime is the instant the plan builder actually fires. It is nominally
// 09:40:00, but the OT tag it depends on is itself gated to its own cutover
// (09:40:01 by default, strictly after the 09:35-09:40 bar closes), so the
// cron waits for whichever of the two comes later rather than racing the
// classifier.
func (r *Runtime) planTime() time.Time {
	now := r.deps.Clock.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	nominal := day.Add(planBuildOffset)
	otCutover := r.deps.Gate.OTCutover(now)
	if otCutover.After(nominal) {
		return otCutover
	}
	return nominal
}

func (r *Runtime) buildPlan() {
	r.mu.Lock()
	inputs := make([]planner.SymbolInput, 0, len(r.cfg.Symbols))
	for _, sym := range r.cfg.Symbols {
		bars := append([]domain.Bar(nil), r.openingBars[sym]...)
		inputs = append(inputs, planner.SymbolInput{
			Symbol:      sym,
			Tags:        r.tags[sym],
			OpeningBars: bars,
			ATR5:        classifier.ATR5(bars),
		})
	}
	r.mu.Unlock()

	start := time.Now()
	snap := planner.Build(r.deps.Masters, inputs, len(r.cfg.Symbols), r.day, r.mode, r.deps.Clock.Now(), r.cfg)
	if r.deps.Metrics != nil {
		r.deps.Metrics.PlanBuildSeconds.Observe(time.Since(start).Seconds())
	}

	for _, row := range snap.Plan.Plans {
		if err := planner.Validate(row, r.cfg.Risk.PerTradeRs); err != nil {
			slog.Warn("runtime: plan row failed validation", "err", err)
		}
	}

	if err := r.deps.Snapshots.Write(snap); err != nil {
		slog.Error("runtime: failed to persist plan snapshot", "err", err)
	}

	r.deps.Engine.Seed(snap.Plan)

	r.mu.Lock()
	r.planBuilt = true
	r.mu.Unlock()

	meta := r.deps.State.Snapshot().Meta
	meta.PlanStatus = snap.Status
	meta.PlanBuiltAt = snap.BuiltAt
	meta.PlanLocked = snap.Locked
	meta.DailyRiskRs = snap.Plan.DailyRiskRs
	meta.RiskPerTradeRs = snap.Plan.RiskPerTradeRs
	meta.TotalPlannedRs = snap.Plan.TotalPlannedRisk
	meta.ActiveTrades = snap.Plan.ActiveTrades
	r.deps.State.Apply(ports.StateDelta{Meta: &meta, Positions: r.deps.Engine.Positions()})
	r.heartbeat("planner", r.deps.Clock.Now())

	if r.deps.Report != nil {
		r.deps.Report.PrintPlan(snap.Plan)
	}
}

// --- paper execution loop ------------------------------------------------

func (r *Runtime) runPaperLoop(ctx context.Context, tickCh <-chan domain.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, ok := <-tickCh:
			if !ok {
				return nil
			}
			r.processTick(tick)
		}
	}
}

func (r *Runtime) processTick(tick domain.Tick) {
	r.mu.Lock()
	flattenedAlready := r.eodFlattened
	pastEOD := !flattenedAlready && r.deps.Gate.PastEODFlatten(tick.TS)
	if pastEOD {
		r.eodFlattened = true
	}
	r.mu.Unlock()

	if pastEOD {
		r.forceFlat(tick.TS)
		return
	}

	fills := r.deps.Engine.OnTick(tick)
	if len(fills) > 0 {
		r.publishFills(fills)
	}
	r.heartbeat("paperengine", tick.TS)
}

func (r *Runtime) forceFlat(now time.Time) {
	quotes := r.deps.State.Snapshot().Quotes
	fills := r.deps.Engine.ForceFlat(now, quotes)
	r.publishFills(fills)
}

// KillSwitch triggers an immediate flatten of every OPEN position and
// cancellation of every PENDING one, bypassing the EOD cutover. Exposed
// for an external operator control surface (out of scope here) to call.
func (r *Runtime) KillSwitch(now time.Time) {
	quotes := r.deps.State.Snapshot().Quotes
	fills := r.deps.Engine.KillSwitch(now, quotes)
	r.publishFills(fills)
}

func (r *Runtime) publishFills(fills []domain.Fill) {
	positions := r.deps.Engine.Positions()
	halted, reason := r.deps.Engine.Halted()

	meta := r.deps.State.Snapshot().Meta
	meta.PnLRealized = r.deps.Engine.DailyRealized()
	var openPnL float64
	for _, p := range positions {
		if p.Status == domain.PositionOpen {
			openPnL += p.OpenPnL
		}
	}
	meta.PnLOpen = openPnL
	meta.PnLDay = meta.PnLRealized + meta.PnLOpen
	if halted {
		meta.Risk = domain.RiskState{Status: "HALTED", Reason: reason}
	}

	r.deps.State.Apply(ports.StateDelta{Positions: positions, Meta: &meta})

	if r.deps.Metrics != nil {
		r.deps.Metrics.RealizedPnL.Set(meta.PnLRealized)
		r.deps.Metrics.OpenPositions.Set(float64(countOpen(positions)))
		r.deps.Metrics.SetHalted(halted)
		for _, f := range fills {
			r.deps.Metrics.Fills.WithLabelValues(f.Symbol, string(f.Side)).Inc()
			if f.Side != domain.SideEntry {
				r.deps.Metrics.Exits.WithLabelValues(f.Reason).Inc()
			}
		}
	}

	if r.deps.Report != nil {
		r.deps.Report.PrintPositions(positions)
	}
}

// heartbeat records component as alive both in the state store (for the
// watchdog in CheckHeartbeats) and, if metrics export is enabled, as a
// Prometheus counter observation.
func (r *Runtime) heartbeat(component string, at time.Time) {
	r.deps.State.Heartbeat(component, at)
	if r.deps.Metrics != nil {
		r.deps.Metrics.AgentHeartbeats.WithLabelValues(component, "OK").Inc()
	}
}

func countOpen(positions map[string]domain.Position) int {
	n := 0
	for _, p := range positions {
		if p.Status == domain.PositionOpen {
			n++
		}
	}
	return n
}

// --- persistence + heartbeat debouncer ------------------------------------

func (r *Runtime) runPersistence(ctx context.Context) error {
	ticker := time.NewTicker(persistenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.flush()
			slog.Info("runtime: cooperative shutdown complete")
			return nil
		case <-ticker.C:
			r.deps.State.CheckHeartbeats(r.deps.Clock.Now())
			r.flush()
		}
	}
}

func (r *Runtime) flush() {
	if err := r.deps.State.Persist(); err != nil {
		slog.Warn("runtime: persist failed", "err", err)
	}
	if r.deps.Journal == nil {
		return
	}
	halted, reason := r.deps.Engine.Halted()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.deps.Journal.SaveDailyPnL(ctx, r.day, r.deps.Engine.DailyRealized(), halted, reason); err != nil {
		slog.Warn("runtime: save daily pnl failed", "err", err)
	}
}

// --- read-only metrics serving --------------------------------------------

func (r *Runtime) runMetricsServer(ctx context.Context) error {
	if r.deps.Metrics == nil || r.cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.deps.Metrics.Handler())
	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("runtime: metrics server: %w", err)
		}
		return nil
	}
}
