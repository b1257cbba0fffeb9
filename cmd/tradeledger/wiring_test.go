package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/config"
	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/pipeline"
	"github.com/newthinker/tradeledger/internal/storage/archive"
	"github.com/newthinker/tradeledger/internal/storage/record"
	"github.com/newthinker/tradeledger/internal/storage/sqlite"
)

func TestOpenStore_Memory(t *testing.T) {
	store, err := openStore(context.Background(), config.RecordsConfig{Driver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &record.MemoryStore{}, store)
}

func TestOpenStore_SQLiteMigrates(t *testing.T) {
	cfg := config.RecordsConfig{
		Driver:  config.DriverSQLite,
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Migrate: true,
	}

	store, err := openStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &sqlite.Store{}, store)
	recs, err := store.ListSignals(context.Background(), record.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), config.RecordsConfig{Driver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenArchive(t *testing.T) {
	none, err := openArchive(config.ArchiveConfig{Type: config.ArchiveNone})
	require.NoError(t, err)
	assert.Nil(t, none)

	local, err := openArchive(config.ArchiveConfig{Type: config.ArchiveLocalFS, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &archive.LocalFS{}, local)

	s3, err := openArchive(config.ArchiveConfig{Type: config.ArchiveS3, S3: config.S3Config{
		Bucket:   "reports",
		Endpoint: "http://localhost:9000",
		Region:   "us-east-1",
	}})
	require.NoError(t, err)
	assert.IsType(t, &archive.S3Storage{}, s3)

	_, err = openArchive(config.ArchiveConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestBacktestConfig(t *testing.T) {
	bc := backtestConfig(config.Defaults().Backtest)

	assert.Equal(t, 10000.0, bc.InitialEquity)
	assert.Equal(t, 2.0, bc.RiskPerTrade)
	assert.Equal(t, 5, bc.MaxConcurrentTrades)
	assert.Equal(t, []float64{2.0, 2.5, 3.0}, bc.TPMultipliers)
	assert.NoError(t, bc.Validate())
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	err := printReport(&buf, &pipeline.Snapshot{
		Metrics: core.DashboardMetrics{TotalTrades: 4, WinRate: 50, FinalEquity: 10150},
		Quality: core.DataQualityMetrics{
			TotalRecords:       4,
			ValidRecords:       3,
			DataIntegrityScore: 75,
			MissingValues:      map[string]int{"symbol": 1, "id": 0},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Win rate:")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "10150.00")
	assert.Contains(t, out, "Missing symbol:")
	assert.NotContains(t, out, "Missing id:")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), "tradeledger dev")
}
