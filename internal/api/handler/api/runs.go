// internal/api/handler/api/runs.go
package api

import (
	"errors"
	"net/http"

	"github.com/newthinker/tradeledger/internal/api/response"
	"github.com/newthinker/tradeledger/internal/backtest"
	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/runlog"
	"github.com/newthinker/tradeledger/internal/storage/archive"
)

// RunsHandler exposes trigger run history.
type RunsHandler struct {
	runs    *runlog.Log
	archive archive.Storage
}

// NewRunsHandler creates a new runs handler. archive may be nil.
func NewRunsHandler(runs *runlog.Log, archive archive.Storage) *RunsHandler {
	return &RunsHandler{runs: runs, archive: archive}
}

// List returns recorded runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.runs.List()
	response.JSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

// Get returns a single run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, run)
}

// Report returns the archived report of a run.
func (h *RunsHandler) Report(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if h.archive == nil || run.ArchiveKey == "" {
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, errors.New("run has no archived report")))
		return
	}

	report, err := backtest.LoadReport(r.Context(), h.archive, run.ArchiveKey)
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

// Reports lists the keys of every archived run report, including reports of
// runs that predate the in-memory history.
func (h *RunsHandler) Reports(w http.ResponseWriter, r *http.Request) {
	keys := []string{}
	if h.archive != nil {
		listed, err := archive.ListReports(r.Context(), h.archive)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, core.WrapError(core.ErrArchiveFailed, err))
			return
		}
		keys = append(keys, listed...)
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"reports": keys,
		"total":   len(keys),
	})
}

func (h *RunsHandler) lookup(w http.ResponseWriter, r *http.Request) (runlog.Run, bool) {
	run, err := h.runs.Get(r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrNotFound) {
			status = http.StatusNotFound
		}
		response.Error(w, status, err)
		return runlog.Run{}, false
	}
	return run, true
}
