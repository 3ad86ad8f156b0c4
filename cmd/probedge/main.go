package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/akhanrex/probedge/internal/adapters/clock"
	"github.com/akhanrex/probedge/internal/adapters/csvdata"
	"github.com/akhanrex/probedge/internal/adapters/journal"
	"github.com/akhanrex/probedge/internal/adapters/metrics"
	"github.com/akhanrex/probedge/internal/adapters/notify"
	"github.com/akhanrex/probedge/internal/adapters/snapshotstore"
	"github.com/akhanrex/probedge/internal/adapters/statestore"
	"github.com/akhanrex/probedge/internal/adapters/ticksource"
	"github.com/akhanrex/probedge/internal/application/gate"
	"github.com/akhanrex/probedge/internal/application/paperengine"
	"github.com/akhanrex/probedge/internal/application/runtime"
	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	date := flag.String("date", "", "trading date YYYY-MM-DD (default: today in IST)")
	live := flag.Bool("live", false, "drive ticks from a broker feed instead of the replay CSVs")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	resetState := flag.Bool("reset-state", false, "ignore any persisted live_state.json and start fresh")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *resetState {
		cfg.ResetState = true
	}
	setupLogger(cfg.Log)

	day := *date
	if day == "" {
		day = clock.NewWall().Now().Format("2006-01-02")
	}

	slog.Info("probedge starting",
		"config", *configPath,
		"date", day,
		"live", *live,
		"symbols", cfg.Symbols,
	)

	masters, err := csvdata.LoadMasterStore(filepath.Join(cfg.DataDir, cfg.Paths.Masters), cfg.Symbols)
	if err != nil {
		slog.Error("failed to load master statistics", "err", err)
		os.Exit(1)
	}

	clk, ticks, err := buildTickSource(*cfg, day, *live)
	if err != nil {
		slog.Error("failed to build tick source", "err", err)
		os.Exit(1)
	}

	statePath := filepath.Join(cfg.DataDir, cfg.Paths.State)
	initial := loadOrInitState(statePath, day, ticks.Mode(), cfg.ResetState)
	state := statestore.New(statePath, initial)

	snapshotDir := cfg.DataDir
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		slog.Error("failed to create data dir", "err", err, "dir", snapshotDir)
		os.Exit(1)
	}
	snaps := snapshotstore.New(snapshotDir)

	journalPath := filepath.Join(cfg.DataDir, cfg.Paths.Journal)
	j, err := journal.Open(journalPath)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "path", journalPath)
		os.Exit(1)
	}
	defer j.Close()

	engine := paperengine.New(paperengine.Config{DailyRiskRs: cfg.Risk.DailyRs}, j)
	reg := metrics.New()
	report := notify.NewReport()

	rt := runtime.New(*cfg, runtime.Deps{
		Clock:     clk,
		Ticks:     ticks,
		State:     state,
		Snapshots: snaps,
		Masters:   masters,
		Engine:    engine,
		Journal:   j,
		Metrics:   reg,
		Report:    report,
		Gate:      gate.New(cfg.Cutovers),
	}, day)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rt.Reconcile(ctx); err != nil {
		slog.Error("failed to reconcile prior state", "err", err)
		os.Exit(1)
	}

	if err := rt.Run(ctx); err != nil {
		slog.Error("probedge exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("probedge stopped cleanly")
}

// buildTickSource wires the clock and tick source appropriate to the
// run mode. Live mode needs a concrete ticksource.BrokerFeed, which is
// an external collaborator this module does not implement (brokerage
// integration is explicitly out of scope) — a deployment wanting live
// ticks supplies its own feed and constructs ticksource.NewLive itself.
func buildTickSource(cfg config.Config, day string, live bool) (*clock.Replay, *ticksource.Replay, error) {
	if live {
		return nil, nil, fmt.Errorf("live mode requires a ticksource.BrokerFeed implementation, which is not wired in this build")
	}

	start, err := time.ParseInLocation("2006-01-02 15:04:05", day+" 09:15:00", clock.IST())
	if err != nil {
		return nil, nil, fmt.Errorf("parse trading date %q: %w", day, err)
	}
	clk := clock.NewReplay(start)

	bars := map[string][]domain.Bar{}
	for _, sym := range cfg.Symbols {
		b, err := csvdata.LoadIntraday(filepath.Join(cfg.DataDir, cfg.Paths.Intraday), sym)
		if err != nil {
			return nil, nil, fmt.Errorf("load intraday bars for %s: %w", sym, err)
		}
		bars[sym] = b
	}
	return clk, ticksource.NewReplay(clk, bars), nil
}

// loadOrInitState recovers a prior run's persisted state for a mid-day
// restart, or seeds a fresh SystemState for a new trading day.
func loadOrInitState(path, day string, mode domain.Mode, reset bool) domain.SystemState {
	if !reset {
		if loaded, ok, err := statestore.Load(path); err != nil {
			slog.Warn("failed to load persisted state, starting fresh", "err", err, "path", path)
		} else if ok && loaded.Meta.Date == day {
			slog.Info("restored persisted state", "date", day)
			return loaded
		}
	}
	return domain.NewSystemState(day, mode)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
