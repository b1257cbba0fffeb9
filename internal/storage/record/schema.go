package record

import (
	"time"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/newthinker/tradeledger/internal/ingest"
)

// Kind is the storage type of a column in the SQL backends.
type Kind int

const (
	KindText Kind = iota
	KindFloat
	KindTime
	KindBool
)

// Column describes one persisted column.
type Column struct {
	Name string
	Kind Kind
}

// SignalColumns is the ai_trade_log schema, excluding the surrogate key.
var SignalColumns = []Column{
	{ingest.ColSignalID, KindText},
	{ingest.ColTimestamp, KindTime},
	{ingest.ColSymbol, KindText},
	{ingest.ColStatus, KindText},
	{ingest.ColAction, KindText},
	{ingest.ColEntry, KindFloat},
	{ingest.ColStopLoss, KindFloat},
	{ingest.ColTakeProfit, KindFloat},
	{ingest.ColAIRationale, KindText},
	{ingest.ColClosingPrice, KindFloat},
	{ingest.ColActivationTimestamp, KindTime},
	{ingest.ColNotes, KindText},
	{ingest.ColLeverage, KindFloat},
	{ingest.ColOutcome, KindText},
	{ingest.ColClosedAt, KindTime},
	{ingest.ColConfidenceScore, KindFloat},
}

// ResultColumns is the backtest_results schema in insertion order.
var ResultColumns = []Column{
	{ingest.ColSignalID, KindText},
	{ingest.ColSymbol, KindText},
	{ingest.ColAction, KindText},
	{ingest.ColEntry, KindFloat},
	{ingest.ColStopLoss, KindFloat},
	{ingest.ColTakeProfit, KindFloat},
	{ingest.ColLeverage, KindFloat},
	{ingest.ColOutcome, KindText},
	{ingest.ColClosedAt, KindTime},
	{ingest.ColPnL, KindFloat},
	{ingest.ColRiskReward, KindFloat},
	{ingest.ColEndingEquity, KindFloat},
}

// ConfigurationColumns is the configurations schema.
var ConfigurationColumns = []Column{
	{"symbol", KindText},
	{"is_active", KindBool},
	{"risk_per_trade_percent", KindFloat},
	{"atr_min", KindFloat},
	{"atr_max", KindFloat},
	{"notes", KindText},
	{"status", KindText},
	{"cooldown_until", KindTime},
}

// Columns returns the schema of a table.
func Columns(table string) ([]Column, error) {
	switch table {
	case TableSignals:
		return SignalColumns, nil
	case TableResults:
		return ResultColumns, nil
	case TableConfigurations:
		return ConfigurationColumns, nil
	}
	return nil, ErrUnknownTable
}

// Names returns the column names in order.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Value converts a raw record value into the Go type stored for the column.
// Missing values and unparseable timestamps become nil.
func (c Column) Value(v any) any {
	if v == nil {
		return nil
	}
	switch c.Kind {
	case KindFloat:
		return ingest.Number(v)
	case KindBool:
		return ingest.Bool(v)
	case KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
		if t, ok := core.ParseTimestamp(ingest.String(v)); ok {
			return t
		}
		return nil
	default:
		return ingest.String(v)
	}
}
