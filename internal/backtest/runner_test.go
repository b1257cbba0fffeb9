package backtest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
	"github.com/newthinker/tradeledger/internal/metrics"
	"github.com/newthinker/tradeledger/internal/runlog"
	"github.com/newthinker/tradeledger/internal/storage/archive"
	"github.com/newthinker/tradeledger/internal/storage/record"
)

var runNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// faultyStore fails selected operations of an in-memory store.
type faultyStore struct {
	*record.MemoryStore
	listErr   error
	deleteErr error
	insertErr error
}

func (f *faultyStore) ListSignals(ctx context.Context, filter record.ListFilter) ([]core.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListSignals(ctx, filter)
}

func (f *faultyStore) DeleteResults(ctx context.Context) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.DeleteResults(ctx)
}

func (f *faultyStore) InsertResults(ctx context.Context, records []core.Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MemoryStore.InsertResults(ctx, records)
}

// cancellingStore cancels the caller's context once results are deleted and,
// like the SQL backends, refuses to insert on a cancelled context.
type cancellingStore struct {
	*record.MemoryStore
	cancel context.CancelFunc
}

func (c *cancellingStore) DeleteResults(ctx context.Context) error {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemoryStore.DeleteResults(ctx)
}

func (c *cancellingStore) InsertResults(ctx context.Context, records []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemoryStore.InsertResults(ctx, records)
}

func seededStore(t *testing.T) *record.MemoryStore {
	t.Helper()
	store := record.NewMemoryStore()
	require.NoError(t, store.Put(record.TableSignals,
		core.Record{"SignalID": "B", "Timestamp": "2024-01-02T00:00:00Z", "Symbol": "BTC", "Action": "long", "Entry": 110.0, "StopLoss": 100.0},
		core.Record{"SignalID": "A", "Timestamp": "2024-01-01T00:00:00Z", "Symbol": "BTC", "Action": "long", "Entry": "100", "StopLoss": "95", "TakeProfit": 110.0},
	))
	require.NoError(t, store.Put(record.TableResults, core.Record{"SignalID": "stale"}))
	return store
}

func newTestRunner(store record.Store) *Runner {
	r := NewRunner(store, singleSlot(), nil)
	r.SetClock(func() time.Time { return runNow })
	return r
}

func TestRunner_Run(t *testing.T) {
	store := seededStore(t)
	runs := runlog.New(10, nil)
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	r := newTestRunner(store)
	r.SetRunLog(runs)
	r.SetArchive(fs)

	out, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, out.TradesProcessed)
	assert.Equal(t, "100.0", out.Summary.WinRate)
	assert.Equal(t, "4.00", out.Summary.TotalPnL)
	assert.InDelta(t, 10004.0, out.Summary.FinalEquity, 1e-9)
	assert.Equal(t, "runs/2024/06/01/"+out.RunID+".json", out.ArchiveKey)

	recs, err := store.ListResults(context.Background(), record.ListFilter{})
	require.NoError(t, err)
	results := ingest.Results(recs)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].SignalID)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", results[0].ClosedAt)

	run, err := runs.Get(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusSucceeded, run.Status)
	assert.Equal(t, 1, run.TradesProcessed)
	assert.Equal(t, out.ArchiveKey, run.ArchiveKey)

	report, err := LoadReport(context.Background(), fs, out.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, out.RunID, report.RunID)
	assert.Equal(t, out.Summary, report.Summary)
	assert.Equal(t, 1, report.Rejected[RejectCapacity])
	require.Len(t, report.Trades, 1)
	assert.Equal(t, "A", report.Trades[0].SignalID)
}

func TestRunner_NoSignalsClearsResults(t *testing.T) {
	store := record.NewMemoryStore()
	require.NoError(t, store.Put(record.TableResults, core.Record{"SignalID": "stale"}))

	out, err := newTestRunner(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.TradesProcessed)
	assert.Equal(t, Summary{WinRate: "0.0", TotalPnL: "0.00", FinalEquity: 10000}, out.Summary)
	assert.Empty(t, out.ArchiveKey)

	recs, err := store.ListResults(context.Background(), record.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunner_FetchFailure(t *testing.T) {
	store := &faultyStore{MemoryStore: seededStore(t), listErr: errors.New("connection refused")}
	runs := runlog.New(10, nil)

	r := newTestRunner(store)
	r.SetRunLog(runs)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFetchFailed)

	history := runs.List()
	require.Len(t, history, 1)
	assert.Equal(t, runlog.StatusFailed, history[0].Status)
	assert.Equal(t, core.ErrFetchFailed.Code, history[0].Error.Code)
}

func TestRunner_InsertFailure(t *testing.T) {
	store := &faultyStore{MemoryStore: seededStore(t), insertErr: errors.New("disk full")}
	reg := metrics.NewRegistry()

	r := newTestRunner(store)
	r.SetMetrics(reg)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrWriteBackFailed)

	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Error(), "disk full")

	expected := `
# HELP tradeledger_writeback_failures_total Failed result write-back operations
# TYPE tradeledger_writeback_failures_total counter
tradeledger_writeback_failures_total{stage="insert"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradeledger_writeback_failures_total"))

	expected = `
# HELP tradeledger_backtests_total Total number of backtest runs
# TYPE tradeledger_backtests_total counter
tradeledger_backtests_total{status="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradeledger_backtests_total"))
}

func TestRunner_DeleteFailureIsNotFatal(t *testing.T) {
	store := &faultyStore{MemoryStore: seededStore(t), deleteErr: errors.New("lock timeout")}
	reg := metrics.NewRegistry()

	r := newTestRunner(store)
	r.SetMetrics(reg)

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.TradesProcessed)

	// The stale row survives beside the new one.
	recs, err := store.ListResults(context.Background(), record.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	expected := `
# HELP tradeledger_writeback_failures_total Failed result write-back operations
# TYPE tradeledger_writeback_failures_total counter
tradeledger_writeback_failures_total{stage="delete"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradeledger_writeback_failures_total"))

	expected = `
# HELP tradeledger_signals_rejected_total Signals skipped by the simulator
# TYPE tradeledger_signals_rejected_total counter
tradeledger_signals_rejected_total{reason="capacity"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradeledger_signals_rejected_total"))
}

func TestRunner_WriteBackSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := seededStore(t)
	r := newTestRunner(&cancellingStore{MemoryStore: mem, cancel: cancel})

	out, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.TradesProcessed)

	recs, err := mem.ListResults(context.Background(), record.ListFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A", recs[0]["SignalID"])
}

func TestLoadReport_Missing(t *testing.T) {
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = LoadReport(context.Background(), fs, "runs/2024/01/01/nope.json")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
