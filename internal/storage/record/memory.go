package record

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
)

// MemoryStore is an in-memory record store.
type MemoryStore struct {
	mu      sync.RWMutex
	signals []core.Record
	results []core.Record
	configs []core.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

// Put appends rows to the named table.
func (m *MemoryStore) Put(table string, records ...core.Record) error {
	if !ValidTable(table) {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := copyRecords(records)
	switch table {
	case TableSignals:
		m.signals = append(m.signals, copied...)
	case TableResults:
		m.results = append(m.results, copied...)
	case TableConfigurations:
		m.configs = append(m.configs, copied...)
	}
	return nil
}

// ListSignals returns signals ordered by Timestamp.
func (m *MemoryStore) ListSignals(ctx context.Context, filter ListFilter) ([]core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return list(m.signals, ingest.ColTimestamp, filter), nil
}

// ListResults returns results ordered by ClosedAt.
func (m *MemoryStore) ListResults(ctx context.Context, filter ListFilter) ([]core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return list(m.results, ingest.ColClosedAt, filter), nil
}

// ListConfigurations returns configuration rows ordered by symbol.
func (m *MemoryStore) ListConfigurations(ctx context.Context) ([]core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := copyRecords(m.configs)
	sort.SliceStable(out, func(i, j int) bool {
		return ingest.String(out[i]["symbol"]) < ingest.String(out[j]["symbol"])
	})
	return out, nil
}

// DeleteResults clears the results table.
func (m *MemoryStore) DeleteResults(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = nil
	return nil
}

// InsertResults appends results. A nil record rejects the whole batch.
func (m *MemoryStore) InsertResults(ctx context.Context, records []core.Record) error {
	for i, rec := range records {
		if rec == nil {
			return fmt.Errorf("%w: result %d is nil", ErrInvalidInput, i)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, copyRecords(records)...)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func list(rows []core.Record, timeCol string, filter ListFilter) []core.Record {
	out := copyRecords(rows)
	SortByTime(out, timeCol, filter.Ascending)
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}

// SortByTime orders records by the parsed timestamp in col. Rows whose
// timestamp is missing or unparseable sort as the zero time. Ties keep their
// existing order.
func SortByTime(rows []core.Record, col string, ascending bool) {
	keys := make(map[int]time.Time, len(rows))
	idx := make([]int, len(rows))
	for i, r := range rows {
		idx[i] = i
		if ts, ok := core.ParseTimestamp(ingest.String(r[col])); ok {
			keys[i] = ts
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := keys[idx[a]], keys[idx[b]]
		if ascending {
			return ta.Before(tb)
		}
		return ta.After(tb)
	})

	sorted := make([]core.Record, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func copyRecords(rows []core.Record) []core.Record {
	out := make([]core.Record, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}
