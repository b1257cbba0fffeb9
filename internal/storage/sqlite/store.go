// Package sqlite implements the record store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
	"github.com/newthinker/tradeledger/internal/storage/record"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

//go:embed schema.sql
var schema string

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements record.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time interface check.
var _ record.Store = (*Store)(nil)

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

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
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+record.TableResults); err != nil {
		return fmt.Errorf("delete %s: %w", record.TableResults, err)
	}
	return nil
}

// InsertResults inserts the batch in a single transaction.
func (s *Store) InsertResults(ctx context.Context, records []core.Record) error {
	return s.Put(ctx, record.TableResults, records...)
}

// Put inserts rows into any of the three tables in a single transaction.
func (s *Store) Put(ctx context.Context, table string, records ...core.Record) error {
	cols, err := record.Columns(table)
	if err != nil {
		return fmt.Errorf("%w: %q", err, table)
	}
	if len(records) == 0 {
		return nil
	}
	for i, rec := range records {
		if rec == nil {
			return fmt.Errorf("%w: %s row %d is nil", record.ErrInvalidInput, table, i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, columnList(cols), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, rec := range records {
		for j, col := range cols {
			args[j] = storedValue(col.Value(rec[col.Name]))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, table string, cols []record.Column, orderCol string, filter record.ListFilter) ([]core.Record, error) {
	// SQLite puts NULLs first in ascending order and last in descending order.
	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s %s, id ASC",
		columnList(cols), table, quote(orderCol), order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.query(ctx, table, query)
}

func (s *Store) query(ctx context.Context, table, query string) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	var out []core.Record
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		rec := make(core.Record, len(names))
		for i, name := range names {
			rec[name] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func storedValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(timeLayout)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnList(cols []record.Column) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c.Name)
	}
	return strings.Join(quoted, ", ")
}
