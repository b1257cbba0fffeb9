package ingest

import (
	"github.com/newthinker/tradeledger/internal/core"
)

// Contractual column names shared by every record store implementation.
const (
	ColSignalID            = "SignalID"
	ColTimestamp           = "Timestamp"
	ColSymbol              = "Symbol"
	ColStatus              = "Status"
	ColAction              = "Action"
	ColEntry               = "Entry"
	ColStopLoss            = "StopLoss"
	ColTakeProfit          = "TakeProfit"
	ColAIRationale         = "AI_Rationale"
	ColClosingPrice        = "ClosingPrice"
	ColActivationTimestamp = "ActivationTimestamp"
	ColNotes               = "Notes"
	ColLeverage            = "Leverage"
	ColOutcome             = "Outcome"
	ColClosedAt            = "ClosedAt"
	ColConfidenceScore     = "ConfidenceScore"
	ColPnL                 = "P&L ($)"
	ColRiskReward          = "Risk/Reward"
	ColEndingEquity        = "Ending Equity"
)

// ResultColumns lists the backtest_results columns in insertion order.
var ResultColumns = []string{
	ColSignalID, ColSymbol, ColAction, ColEntry, ColStopLoss, ColTakeProfit,
	ColLeverage, ColOutcome, ColClosedAt, ColPnL, ColRiskReward, ColEndingEquity,
}

type signalField struct {
	keys []string
	set  func(s *core.TradeSignal, v any)
}

type resultField struct {
	keys []string
	set  func(r *core.BacktestResult, v any)
}

type configField struct {
	keys []string
	set  func(c *core.Configuration, v any)
}

// The first key of each entry is the contractual name; the rest are aliases
// written by older exporters and by the snake_case views.
var signalFields = []signalField{
	{[]string{ColSignalID, "signal_id"}, func(s *core.TradeSignal, v any) { s.SignalID = String(v) }},
	{[]string{ColTimestamp, "timestamp"}, func(s *core.TradeSignal, v any) { s.Timestamp = String(v) }},
	{[]string{ColSymbol, "symbol"}, func(s *core.TradeSignal, v any) { s.Symbol = String(v) }},
	{[]string{ColStatus, "status"}, func(s *core.TradeSignal, v any) { s.Status = String(v) }},
	{[]string{ColAction, "side"}, func(s *core.TradeSignal, v any) { s.Action = String(v) }},
	{[]string{ColEntry, "entry_price"}, func(s *core.TradeSignal, v any) { s.Entry = Number(v) }},
	{[]string{ColStopLoss, "stop_loss"}, func(s *core.TradeSignal, v any) { s.StopLoss = Number(v) }},
	{[]string{ColTakeProfit, "take_profit"}, func(s *core.TradeSignal, v any) { s.TakeProfit = Number(v) }},
	{[]string{ColAIRationale, "ai_rationale"}, func(s *core.TradeSignal, v any) { s.AIRationale = String(v) }},
	{[]string{ColClosingPrice, "exit_price"}, func(s *core.TradeSignal, v any) { s.ClosingPrice = Number(v) }},
	{[]string{ColActivationTimestamp, "activation_timestamp"}, func(s *core.TradeSignal, v any) { s.ActivationTimestamp = String(v) }},
	{[]string{ColNotes, "notes"}, func(s *core.TradeSignal, v any) { s.Notes = String(v) }},
	{[]string{ColLeverage, "leverage"}, func(s *core.TradeSignal, v any) { s.Leverage = Number(v) }},
	{[]string{ColOutcome, "outcome"}, func(s *core.TradeSignal, v any) { s.Outcome = String(v) }},
	{[]string{ColClosedAt, "exit_time"}, func(s *core.TradeSignal, v any) { s.ClosedAt = String(v) }},
	{[]string{ColConfidenceScore, "confidence_score"}, func(s *core.TradeSignal, v any) {
		score := Number(v)
		s.ConfidenceScore = &score
	}},
}

var resultFields = []resultField{
	{[]string{ColSignalID, "signal_id"}, func(r *core.BacktestResult, v any) { r.SignalID = String(v) }},
	{[]string{ColSymbol, "symbol"}, func(r *core.BacktestResult, v any) { r.Symbol = String(v) }},
	{[]string{ColAction, "side"}, func(r *core.BacktestResult, v any) { r.Action = String(v) }},
	{[]string{ColEntry, "entry_price"}, func(r *core.BacktestResult, v any) { r.Entry = Number(v) }},
	{[]string{ColStopLoss, "stop_loss"}, func(r *core.BacktestResult, v any) { r.StopLoss = Number(v) }},
	{[]string{ColTakeProfit, "take_profit"}, func(r *core.BacktestResult, v any) { r.TakeProfit = Number(v) }},
	{[]string{ColLeverage, "leverage"}, func(r *core.BacktestResult, v any) { r.Leverage = Number(v) }},
	{[]string{ColOutcome, "exit_reason"}, func(r *core.BacktestResult, v any) { r.Outcome = String(v) }},
	{[]string{ColClosedAt, "exit_time"}, func(r *core.BacktestResult, v any) { r.ClosedAt = String(v) }},
	{[]string{ColPnL, "pnl"}, func(r *core.BacktestResult, v any) { r.PnL = Number(v) }},
	{[]string{ColRiskReward, "tp_multiplier"}, func(r *core.BacktestResult, v any) { r.RiskReward = Number(v) }},
	{[]string{ColEndingEquity, "equity_after_trade"}, func(r *core.BacktestResult, v any) { r.EndingEquity = Number(v) }},
}

var configFields = []configField{
	{[]string{"symbol"}, func(c *core.Configuration, v any) { c.Symbol = String(v) }},
	{[]string{"is_active"}, func(c *core.Configuration, v any) { c.IsActive = Bool(v) }},
	{[]string{"risk_per_trade_percent"}, func(c *core.Configuration, v any) { c.RiskPerTradePercent = Number(v) }},
	{[]string{"atr_min"}, func(c *core.Configuration, v any) { c.ATRMin = Number(v) }},
	{[]string{"atr_max"}, func(c *core.Configuration, v any) { c.ATRMax = Number(v) }},
	{[]string{"notes"}, func(c *core.Configuration, v any) { c.Notes = String(v) }},
	{[]string{"status"}, func(c *core.Configuration, v any) { c.Status = String(v) }},
	{[]string{"cooldown_until"}, func(c *core.Configuration, v any) { c.CooldownUntil = String(v) }},
}

// lookup returns the value of the first key present with a non-nil value.
func lookup(rec core.Record, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Signal decodes one trade-signal record.
func Signal(rec core.Record) core.TradeSignal {
	var s core.TradeSignal
	for _, f := range signalFields {
		if v, ok := lookup(rec, f.keys); ok {
			f.set(&s, v)
		}
	}
	return s
}

// Signals decodes a batch of trade-signal records, preserving order.
func Signals(recs []core.Record) []core.TradeSignal {
	out := make([]core.TradeSignal, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Signal(rec))
	}
	return out
}

// Result decodes one backtest-result record.
func Result(rec core.Record) core.BacktestResult {
	var r core.BacktestResult
	for _, f := range resultFields {
		if v, ok := lookup(rec, f.keys); ok {
			f.set(&r, v)
		}
	}
	return r
}

// Results decodes a batch of backtest-result records, preserving order.
func Results(recs []core.Record) []core.BacktestResult {
	out := make([]core.BacktestResult, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Result(rec))
	}
	return out
}

// Configurations decodes configuration rows, keeping the first row seen for
// each symbol.
func Configurations(recs []core.Record) []core.Configuration {
	out := make([]core.Configuration, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		var c core.Configuration
		for _, f := range configFields {
			if v, ok := lookup(rec, f.keys); ok {
				f.set(&c, v)
			}
		}
		if _, dup := seen[c.Symbol]; dup {
			continue
		}
		seen[c.Symbol] = struct{}{}
		out = append(out, c)
	}
	return out
}

// EncodeResult renders a completed trade under the contractual column names.
func EncodeResult(r core.BacktestResult) core.Record {
	return core.Record{
		ColSignalID:     r.SignalID,
		ColSymbol:       r.Symbol,
		ColAction:       r.Action,
		ColEntry:        r.Entry,
		ColStopLoss:     r.StopLoss,
		ColTakeProfit:   r.TakeProfit,
		ColLeverage:     r.Leverage,
		ColOutcome:      r.Outcome,
		ColClosedAt:     r.ClosedAt,
		ColPnL:          r.PnL,
		ColRiskReward:   r.RiskReward,
		ColEndingEquity: r.EndingEquity,
	}
}

// EncodeResults renders a batch of completed trades.
func EncodeResults(results []core.BacktestResult) []core.Record {
	out := make([]core.Record, 0, len(results))
	for _, r := range results {
		out = append(out, EncodeResult(r))
	}
	return out
}
