package backtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
	"github.com/newthinker/tradeledger/internal/metrics"
	"github.com/newthinker/tradeledger/internal/runlog"
	"github.com/newthinker/tradeledger/internal/storage/archive"
	"github.com/newthinker/tradeledger/internal/storage/record"
)

// Outcome describes a successful trigger run.
type Outcome struct {
	RunID           string
	Summary         Summary
	TradesProcessed int
	ArchiveKey      string
}

// Report is the archived form of a run.
type Report struct {
	RunID       string                `json:"run_id"`
	StartedAt   time.Time             `json:"started_at"`
	Summary     Summary               `json:"summary"`
	FinalEquity float64               `json:"final_equity"`
	Rejected    map[Rejection]int     `json:"rejected,omitempty"`
	Trades      []core.BacktestResult `json:"trades"`
}

// Runner executes trigger runs: fetch every signal, simulate, replace the
// stored results and summarise. Runs are serialised so that two triggers
// never interleave their delete and insert.
type Runner struct {
	store   record.Store
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	archive archive.Storage
	runs    *runlog.Log
	metrics *metrics.Registry

	mu sync.Mutex
}

// NewRunner creates a Runner over the record store.
func NewRunner(store record.Store, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetArchive enables archiving of run reports.
func (r *Runner) SetArchive(s archive.Storage) {
	r.archive = s
}

// SetRunLog enables run history.
func (r *Runner) SetRunLog(l *runlog.Log) {
	r.runs = l
}

// SetMetrics enables Prometheus recording.
func (r *Runner) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// SetClock replaces the wall clock used for close timestamps and run times.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run performs one trigger run. Errors are *core.Error values coded
// FETCH_FAILED, BACKTEST_FAILED or WRITEBACK_FAILED.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	runID := uuid.NewString()
	if r.runs != nil {
		runID = r.runs.Start().ID
	}
	log := r.logger.With(zap.String("run_id", runID))

	out, err := r.run(ctx, runID, start, log)
	duration := r.now().Sub(start).Seconds()

	if err != nil {
		var cerr *core.Error
		if !errors.As(err, &cerr) {
			cerr = core.WrapError(core.ErrBacktestFailed, err)
		}
		log.Error("backtest run failed", zap.Error(cerr))
		if r.runs != nil {
			r.runs.Fail(runID, cerr)
		}
		if r.metrics != nil {
			r.metrics.RecordBacktest("failed", 0, duration)
		}
		return nil, cerr
	}

	if r.runs != nil {
		r.runs.Succeed(runID, out.TradesProcessed, out.Summary, out.ArchiveKey)
	}
	if r.metrics != nil {
		r.metrics.RecordBacktest("success", out.TradesProcessed, duration)
	}
	log.Info("backtest run completed",
		zap.Int("trades", out.TradesProcessed),
		zap.Float64("final_equity", out.Summary.FinalEquity),
		zap.Float64("duration_s", duration),
	)
	return out, nil
}

func (r *Runner) run(ctx context.Context, runID string, start time.Time, log *zap.Logger) (*Outcome, error) {
	recs, err := r.store.ListSignals(ctx, record.ListFilter{Ascending: true})
	if err != nil {
		return nil, core.WrapError(core.ErrFetchFailed, err)
	}
	signals := ingest.Signals(recs)
	log.Info("starting backtest", zap.Int("signals", len(signals)))

	sim := NewSimulator(r.cfg, log, r.now)
	result, err := sim.Run(ctx, signals)
	if err != nil {
		return nil, core.WrapError(core.ErrBacktestFailed, err)
	}
	if r.metrics != nil {
		for reason, n := range result.Rejected {
			r.metrics.RecordRejections(string(reason), n)
		}
	}

	// Delete and insert run to completion once started, so a dropped caller
	// cannot leave the results table empty.
	ctx = context.WithoutCancel(ctx)

	// A failed delete leaves stale rows beside the new ones; the run goes on.
	if err := r.store.DeleteResults(ctx); err != nil {
		log.Warn("failed to clear existing results", zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordWriteBackFailure("delete")
		}
	}

	if len(result.Trades) > 0 {
		if err := r.store.InsertResults(ctx, ingest.EncodeResults(result.Trades)); err != nil {
			if r.metrics != nil {
				r.metrics.RecordWriteBackFailure("insert")
			}
			return nil, core.WrapError(core.ErrWriteBackFailed, err)
		}
	}

	out := &Outcome{
		RunID:           runID,
		Summary:         Summarize(result.Trades, r.cfg.InitialEquity),
		TradesProcessed: len(result.Trades),
	}

	if r.archive != nil {
		key := archive.ReportKey(runID, start)
		report := Report{
			RunID:       runID,
			StartedAt:   start.UTC(),
			Summary:     out.Summary,
			FinalEquity: result.FinalEquity,
			Rejected:    result.Rejected,
			Trades:      result.Trades,
		}
		if err := archive.PutJSON(ctx, r.archive, key, report); err != nil {
			log.Warn("failed to archive run report", zap.Error(core.WrapError(core.ErrArchiveFailed, err)))
		} else {
			out.ArchiveKey = key
		}
	}

	return out, nil
}

// LoadReport reads an archived run report.
func LoadReport(ctx context.Context, s archive.Storage, key string) (*Report, error) {
	var report Report
	if err := archive.GetJSON(ctx, s, key, &report); err != nil {
		return nil, core.WrapError(core.ErrNotFound, err)
	}
	return &report, nil
}
