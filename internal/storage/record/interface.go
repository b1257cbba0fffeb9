// Package record defines the external record store that supplies trade
// signals, backtest results and per-symbol configurations.
package record

import (
	"context"
	"errors"

	"github.com/newthinker/tradeledger/internal/core"
)

// Table names used by every backend.
const (
	TableSignals        = "ai_trade_log"
	TableResults        = "backtest_results"
	TableConfigurations = "configurations"
)

var (
	// ErrInvalidInput is returned when a write carries an unusable record.
	ErrInvalidInput = errors.New("invalid record")

	// ErrUnknownTable is returned when a table name is not one of the three
	// collections above.
	ErrUnknownTable = errors.New("unknown table")
)

// Store is the record store. Rows are returned as loosely-typed records keyed
// by their contractual column names; decoding happens in package ingest.
type Store interface {
	// ListSignals returns trade signals ordered by Timestamp.
	ListSignals(ctx context.Context, filter ListFilter) ([]core.Record, error)

	// ListResults returns backtest results ordered by ClosedAt.
	ListResults(ctx context.Context, filter ListFilter) ([]core.Record, error)

	// ListConfigurations returns configuration rows ordered by symbol.
	ListConfigurations(ctx context.Context) ([]core.Record, error)

	// DeleteResults removes every backtest result.
	DeleteResults(ctx context.Context) error

	// InsertResults appends backtest results. The batch is all-or-nothing
	// where the backend supports it.
	InsertResults(ctx context.Context, records []core.Record) error

	// Close releases backend resources.
	Close() error
}

// ListFilter bounds a listing. Limit <= 0 means no limit. Ascending selects
// oldest-first order; the default is newest-first.
type ListFilter struct {
	Limit     int
	Ascending bool
}

// ValidTable reports whether name is a known collection.
func ValidTable(name string) bool {
	switch name {
	case TableSignals, TableResults, TableConfigurations:
		return true
	}
	return false
}
