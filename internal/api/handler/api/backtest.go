// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/tradeledger/internal/api/response"
	"github.com/newthinker/tradeledger/internal/backtest"
)

// SuccessMessage is returned by a completed trigger run.
const SuccessMessage = "Backtest completed successfully"

// Trigger runs one backtest over every stored signal.
type Trigger interface {
	Run(ctx context.Context) (*backtest.Outcome, error)
}

// TriggerResponse is the trigger body. Its field names are relied on by
// existing dashboards.
type TriggerResponse struct {
	Success         bool              `json:"success"`
	Message         string            `json:"message,omitempty"`
	Summary         *backtest.Summary `json:"summary,omitempty"`
	TradesProcessed int               `json:"tradesProcessed"`
	RunID           string            `json:"runId,omitempty"`
}

// TriggerFailure is the trigger body when a run fails.
type TriggerFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// BacktestHandler handles the backtest trigger.
type BacktestHandler struct {
	trigger Trigger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(trigger Trigger) *BacktestHandler {
	return &BacktestHandler{trigger: trigger}
}

// Run executes a backtest synchronously. No request body is read. The run
// itself logs its failure.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	out, err := h.trigger.Run(r.Context())
	if err != nil {
		response.Raw(w, http.StatusInternalServerError, TriggerFailure{Error: err.Error()})
		return
	}

	response.Raw(w, http.StatusOK, TriggerResponse{
		Success:         true,
		Message:         SuccessMessage,
		Summary:         &out.Summary,
		TradesProcessed: out.TradesProcessed,
		RunID:           out.RunID,
	})
}
