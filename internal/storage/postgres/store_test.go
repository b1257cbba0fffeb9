package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
	"github.com/newthinker/tradeledger/internal/storage/record"
)

// setupTestDB starts a PostgreSQL container and applies migrations.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Applying twice must be harmless.
	require.NoError(t, RunMigrations(ctx, pool))

	return pool
}

func TestStore_ListSignalsOrdering(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO ai_trade_log ("SignalID", "Timestamp", "Symbol", "Action", "Entry", "StopLoss", "TakeProfit")
		VALUES
			('B', '2024-01-02T00:00:00Z', 'ETH', 'short', 50, 55, 40),
			('A', '2024-01-01T00:00:00Z', 'BTC', 'long', 100, 95, 110),
			('C', '2024-01-03T00:00:00Z', 'SOL', 'long', 20, 19, 24)`)
	require.NoError(t, err)

	store := NewStore(pool)

	newest, err := store.ListSignals(ctx, record.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "C", newest[0][ingest.ColSignalID])
	assert.Equal(t, "B", newest[1][ingest.ColSignalID])

	all, err := store.ListSignals(ctx, record.ListFilter{Ascending: true})
	require.NoError(t, err)
	require.Len(t, all, 3)

	sig := ingest.Signal(all[0])
	assert.Equal(t, "A", sig.SignalID)
	assert.Equal(t, 100.0, sig.Entry)
	assert.Equal(t, "2024-01-01T00:00:00Z", sig.Timestamp)
	assert.Nil(t, sig.ConfidenceScore)
}

func TestStore_ReplaceResults(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(pool)

	require.NoError(t, store.InsertResults(ctx, ingest.EncodeResults([]core.BacktestResult{
		{SignalID: "old", ClosedAt: "2024-01-01T00:00:00Z"},
	})))
	require.NoError(t, store.DeleteResults(ctx))

	results := []core.BacktestResult{
		{SignalID: "A", Symbol: "BTC", Action: "long", Entry: 100, StopLoss: 95, Leverage: 1,
			Outcome: "Win", ClosedAt: "2024-02-01T00:00:00Z", PnL: 4, RiskReward: 2, EndingEquity: 10004},
		{SignalID: "B", Symbol: "ETH", Action: "short", Entry: 50, StopLoss: 55, Leverage: 2,
			Outcome: "Loss", ClosedAt: "2024-02-02T00:00:00Z", PnL: -3, RiskReward: 0.5, EndingEquity: 10001},
	}
	require.NoError(t, store.InsertResults(ctx, ingest.EncodeResults(results)))

	recs, err := store.ListResults(ctx, record.ListFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	got := ingest.Results(recs)
	assert.Equal(t, "B", got[0].SignalID)
	assert.Equal(t, -3.0, got[0].PnL)
	assert.Equal(t, 10001.0, got[0].EndingEquity)
	assert.Equal(t, "A", got[1].SignalID)
	assert.Equal(t, 2.0, got[1].RiskReward)
}

func TestStore_InsertRejectsNilRecord(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(pool)

	err := store.InsertResults(ctx, []core.Record{{ingest.ColSignalID: "A"}, nil})
	assert.ErrorIs(t, err, record.ErrInvalidInput)

	recs, err := store.ListResults(ctx, record.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_ListConfigurations(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO configurations (symbol, is_active, risk_per_trade_percent, status)
		VALUES ('SOL', true, 1.5, 'active'), ('BTC', false, 2, 'paused')`)
	require.NoError(t, err)

	recs, err := NewStore(pool).ListConfigurations(ctx)
	require.NoError(t, err)

	cfgs := ingest.Configurations(recs)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "BTC", cfgs[0].Symbol)
	assert.False(t, cfgs[0].IsActive)
	assert.Equal(t, 1.5, cfgs[1].RiskPerTradePercent)
}
