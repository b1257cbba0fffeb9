package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
	"github.com/newthinker/tradeledger/internal/storage/record"
)

// Store implements record.Store on PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore creates a Store over an open pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ record.Store = (*Store)(nil)

// ListSignals returns signals ordered by Timestamp.
func (s *Store) ListSignals(ctx context.Context, filter record.ListFilter) ([]core.Record, error) {
	return s.list(ctx, record.TableSignals, record.SignalColumns, ingest.ColTimestamp, filter)
}

// ListResults returns results ordered by ClosedAt.
func (s *Store) ListResults(ctx context.Context, filter record.ListFilter) ([]core.Record, error) {
	return s.list(ctx, record.TableResults, record.ResultColumns, ingest.ColClosedAt, filter)
}

// ListConfigurations returns configuration rows ordered by symbol.
func (s *Store) ListConfigurations(ctx context.Context) ([]core.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY symbol ASC, id ASC",
		columnList(record.ConfigurationColumns), record.TableConfigurations)
	return s.query(ctx, record.TableConfigurations, query)
}

// DeleteResults removes every backtest result.
func (s *Store) DeleteResults(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM "+record.TableResults); err != nil {
		return fmt.Errorf("delete %s: %w", record.TableResults, err)
	}
	return nil
}

// InsertResults copies the batch in a single transaction.
func (s *Store) InsertResults(ctx context.Context, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		if rec == nil {
			return fmt.Errorf("%w: result %d is nil", record.ErrInvalidInput, i)
		}
		row := make([]any, len(record.ResultColumns))
		for j, col := range record.ResultColumns {
			row[j] = col.Value(rec[col.Name])
		}
		rows = append(rows, row)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{record.TableResults},
		record.Names(record.ResultColumns),
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", record.TableResults, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) list(ctx context.Context, table string, cols []record.Column, orderCol string, filter record.ListFilter) ([]core.Record, error) {
	order := "DESC NULLS LAST"
	if filter.Ascending {
		order = "ASC NULLS FIRST"
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s %s, id ASC",
		columnList(cols), table, pgx.Identifier{orderCol}.Sanitize(), order)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.query(ctx, table, query)
}

func (s *Store) query(ctx context.Context, table, query string) ([]core.Record, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		if isUndefinedTableError(err) {
			return nil, fmt.Errorf("query %s: %w (run migrations)", table, err)
		}
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	out := make([]core.Record, len(maps))
	for i, m := range maps {
		rec := make(core.Record, len(m))
		for k, v := range m {
			rec[k] = plainValue(v)
		}
		out[i] = rec
	}
	return out, nil
}

// plainValue converts pgx-specific decoded values into the plain Go values
// package ingest understands.
func plainValue(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

func columnList(cols []record.Column) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c.Name}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
