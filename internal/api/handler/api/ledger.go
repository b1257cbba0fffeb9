// internal/api/handler/api/ledger.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/newthinker/tradeledger/internal/api/response"
	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/pipeline"
)

// SnapshotSource publishes ledger snapshots.
type SnapshotSource interface {
	Snapshot() (*pipeline.Snapshot, error)
	Refresh(ctx context.Context) (*pipeline.Snapshot, error)
}

// LedgerHandler serves the last published snapshot.
type LedgerHandler struct {
	source SnapshotSource
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(source SnapshotSource) *LedgerHandler {
	return &LedgerHandler{source: source}
}

// Trades returns the normalized ledger. Optional filters: symbol, status,
// side, limit.
func (h *LedgerHandler) Trades(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	symbol := strings.ToUpper(q.Get("symbol"))
	status := core.TradeStatus(q.Get("status"))
	side := core.Side(q.Get("side"))

	trades := make([]core.NormalizedTrade, 0, len(snap.Trades))
	for _, t := range snap.Trades {
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		if side != "" && t.Side != side {
			continue
		}
		trades = append(trades, t)
	}

	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n >= 0 && n < len(trades) {
			trades = trades[:n]
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"trades":       trades,
		"total":        len(trades),
		"refreshed_at": snap.RefreshedAt,
	})
}

// Metrics returns the dashboard performance statistics.
func (h *LedgerHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w); ok {
		response.JSON(w, http.StatusOK, snap.Metrics)
	}
}

// Quality returns the data quality report.
func (h *LedgerHandler) Quality(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w); ok {
		response.JSON(w, http.StatusOK, snap.Quality)
	}
}

// Configurations returns the per-symbol configuration rows.
func (h *LedgerHandler) Configurations(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w); ok {
		response.JSON(w, http.StatusOK, map[string]any{
			"configurations": snap.Configurations,
			"total":          len(snap.Configurations),
		})
	}
}

// Refresh runs one refresh cycle and returns the new report headline.
func (h *LedgerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.source.Refresh(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrFetchFailed) {
			status = http.StatusBadGateway
		}
		response.Error(w, status, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"trades":       len(snap.Trades),
		"metrics":      snap.Metrics,
		"quality":      snap.Quality,
		"refreshed_at": snap.RefreshedAt,
	})
}

func (h *LedgerHandler) snapshot(w http.ResponseWriter) (*pipeline.Snapshot, bool) {
	snap, err := h.source.Snapshot()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrNoSnapshot) {
			status = http.StatusNotFound
		}
		response.Error(w, status, err)
		return nil, false
	}
	return snap, true
}
