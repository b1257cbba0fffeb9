// Package pipeline runs refresh cycles: fetch raw records, normalize them and
// publish the derived reports as one snapshot.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
	"github.com/newthinker/tradeledger/internal/metrics"
	"github.com/newthinker/tradeledger/internal/normalize"
	"github.com/newthinker/tradeledger/internal/performance"
	"github.com/newthinker/tradeledger/internal/quality"
	"github.com/newthinker/tradeledger/internal/storage/record"
)

// Default fetch limits.
const (
	DefaultSignalLimit = 500
	DefaultResultLimit = 1000
)

// Snapshot is the output of one refresh cycle. It is never modified after
// publication.
type Snapshot struct {
	Trades         []core.NormalizedTrade  `json:"trades"`
	Quality        core.DataQualityMetrics `json:"quality"`
	Metrics        core.DashboardMetrics   `json:"metrics"`
	Configurations []core.Configuration    `json:"configurations"`
	RefreshedAt    time.Time               `json:"refreshed_at"`
}

// Config controls fetch limits and the optional refresh schedule.
type Config struct {
	SignalLimit int
	ResultLimit int
	Interval    time.Duration
}

// Pipeline owns the last published snapshot.
type Pipeline struct {
	store   record.Store
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	metrics *metrics.Registry

	current atomic.Pointer[Snapshot]
	// refreshMu serialises cycles so two never race to publish.
	refreshMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a Pipeline over store. Zero limits fall back to the defaults.
func New(store record.Store, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignalLimit <= 0 {
		cfg.SignalLimit = DefaultSignalLimit
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = DefaultResultLimit
	}
	return &Pipeline{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetMetrics enables Prometheus recording.
func (p *Pipeline) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

// SetClock replaces the wall clock.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Snapshot returns the last published snapshot, or ErrNoSnapshot before the
// first successful refresh.
func (p *Pipeline) Snapshot() (*Snapshot, error) {
	snap := p.current.Load()
	if snap == nil {
		return nil, core.ErrNoSnapshot
	}
	return snap, nil
}

// Refresh runs one cycle. On fetch failure the previous snapshot stays
// published and a FETCH_FAILED error is returned.
func (p *Pipeline) Refresh(ctx context.Context) (*Snapshot, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	start := p.now()
	snap, err := p.build(ctx)
	duration := p.now().Sub(start).Seconds()

	if err != nil {
		p.logger.Error("refresh failed", zap.Error(err))
		if p.metrics != nil {
			p.metrics.RecordRefresh("failed", duration)
		}
		return nil, err
	}

	p.current.Store(snap)
	if p.metrics != nil {
		p.metrics.RecordRefresh("success", duration)
		p.metrics.SetLedger(len(snap.Trades), snap.Quality.DataIntegrityScore)
	}
	p.logger.Info("refresh completed",
		zap.Int("trades", len(snap.Trades)),
		zap.Int("integrity_score", snap.Quality.DataIntegrityScore),
		zap.Int("configurations", len(snap.Configurations)),
	)
	return snap, nil
}

func (p *Pipeline) build(ctx context.Context) (*Snapshot, error) {
	var signals, results, configs []core.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		signals, err = p.store.ListSignals(gctx, record.ListFilter{Limit: p.cfg.SignalLimit})
		return err
	})
	g.Go(func() error {
		var err error
		results, err = p.store.ListResults(gctx, record.ListFilter{Limit: p.cfg.ResultLimit})
		return err
	})
	g.Go(func() error {
		var err error
		configs, err = p.store.ListConfigurations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, core.WrapError(core.ErrFetchFailed, err)
	}

	now := p.now()
	trades := normalize.New(p.now).Normalize(ingest.Signals(signals), ingest.Results(results))

	return &Snapshot{
		Trades:         trades,
		Quality:        quality.Score(trades, now),
		Metrics:        performance.Compute(trades),
		Configurations: ingest.Configurations(configs),
		RefreshedAt:    now,
	}, nil
}

// Start refreshes immediately and then on every interval until ctx is done
// or Stop is called. Failed cycles are logged and retried on the next tick.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return errors.New("refresh interval must be positive")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("pipeline already running")
	}
	p.running = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.Info("scheduled refresh starting", zap.Duration("interval", p.cfg.Interval))
	p.Refresh(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scheduled refresh stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Stop cancels a running Start loop.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}
