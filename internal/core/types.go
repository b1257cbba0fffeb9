package core

import "time"

// Record is a loosely-typed row as supplied by the record store. Keys are the
// contractual column names, including ones containing spaces or punctuation.
type Record map[string]any

// Side is the normalized direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TradeStatus is the lifecycle state of a normalized trade.
type TradeStatus string

const (
	StatusOpen    TradeStatus = "open"
	StatusClosed  TradeStatus = "closed"
	StatusPending TradeStatus = "pending"
)

// ExitReason classifies how a trade was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitUnknown    ExitReason = "unknown"
)

// TradeSignal is a recorded trading decision. Timestamps are kept as the raw
// strings supplied upstream; numeric fields have already been validated.
type TradeSignal struct {
	SignalID            string
	Timestamp           string
	Symbol              string
	Status              string
	Action              string
	Entry               float64
	StopLoss            float64
	TakeProfit          float64
	AIRationale         string
	ClosingPrice        float64
	ActivationTimestamp string
	Notes               string
	Leverage            float64 // 0 means unset
	Outcome             string
	ClosedAt            string
	ConfidenceScore     *float64
}

// BacktestResult is a recorded outcome for a previously taken signal.
type BacktestResult struct {
	SignalID     string  `json:"SignalID"`
	Symbol       string  `json:"Symbol"`
	Action       string  `json:"Action"`
	Entry        float64 `json:"Entry"`
	StopLoss     float64 `json:"StopLoss"`
	TakeProfit   float64 `json:"TakeProfit"`
	Leverage     float64 `json:"Leverage"`
	Outcome      string  `json:"Outcome"`
	ClosedAt     string  `json:"ClosedAt"`
	PnL          float64 `json:"P&L ($)"`
	RiskReward   float64 `json:"Risk/Reward"`
	EndingEquity float64 `json:"Ending Equity"`
}

// Configuration is a per-symbol settings row.
type Configuration struct {
	Symbol              string  `json:"symbol"`
	IsActive            bool    `json:"is_active"`
	RiskPerTradePercent float64 `json:"risk_per_trade_percent"`
	ATRMin              float64 `json:"atr_min"`
	ATRMax              float64 `json:"atr_max"`
	Notes               string  `json:"notes,omitempty"`
	Status              string  `json:"status"`
	CooldownUntil       string  `json:"cooldown_until,omitempty"`
}

// NormalizedTrade is the canonical view of a signal merged with its result.
type NormalizedTrade struct {
	ID               string      `json:"id"`
	Symbol           string      `json:"symbol"`
	Side             Side        `json:"side"`
	EntryTime        time.Time   `json:"entry_time"`
	ExitTime         *time.Time  `json:"exit_time,omitempty"`
	EntryPrice       float64     `json:"entry_price"`
	ExitPrice        *float64    `json:"exit_price,omitempty"`
	StopLoss         float64     `json:"stop_loss"`
	TakeProfit       float64     `json:"take_profit"`
	PnL              *float64    `json:"pnl,omitempty"`
	EquityAfterTrade *float64    `json:"equity_after_trade,omitempty"`
	TPMultiplier     *float64    `json:"tp_multiplier,omitempty"`
	ExitReason       ExitReason  `json:"exit_reason,omitempty"`
	Leverage         float64     `json:"leverage"`
	ConfidenceScore  *float64    `json:"confidence_score,omitempty"`
	AIRationale      string      `json:"ai_rationale,omitempty"`
	Status           TradeStatus `json:"status"`
}

// IsClosed reports whether the trade participates in performance statistics.
func (t NormalizedTrade) IsClosed() bool {
	return t.Status == StatusClosed && t.PnL != nil
}

// DataQualityMetrics summarises completeness and duplication of a ledger.
type DataQualityMetrics struct {
	TotalRecords       int            `json:"totalRecords"`
	ValidRecords       int            `json:"validRecords"`
	Duplicates         int            `json:"duplicates"`
	MissingValues      map[string]int `json:"missingValues"`
	DataIntegrityScore int            `json:"dataIntegrityScore"`
	LastUpdated        time.Time      `json:"lastUpdated"`
}

// DashboardMetrics holds aggregate performance statistics.
type DashboardMetrics struct {
	TotalTrades      int     `json:"totalTrades"`
	WinRate          float64 `json:"winRate"`
	TotalPnL         float64 `json:"totalPnL"`
	FinalEquity      float64 `json:"finalEquity"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	ProfitFactor     float64 `json:"profitFactor"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	AvgWin           float64 `json:"avgWin"`
	AvgLoss          float64 `json:"avgLoss"`
	LargestWin       float64 `json:"largestWin"`
	LargestLoss      float64 `json:"largestLoss"`
	AvgTradeDuration float64 `json:"avgTradeDuration"` // hours
	TotalReturn      float64 `json:"totalReturn"`
}
