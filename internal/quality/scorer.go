// Package quality scores the completeness of a normalized ledger.
package quality

import (
	"math"
	"time"

	"github.com/newthinker/tradeledger/internal/core"
)

type requiredField struct {
	name    string
	missing func(t core.NormalizedTrade) bool
}

// requiredFields is the fixed set every ledger entry is checked against.
var requiredFields = []requiredField{
	{"id", func(t core.NormalizedTrade) bool { return t.ID == "" }},
	{"symbol", func(t core.NormalizedTrade) bool { return t.Symbol == "" }},
	{"side", func(t core.NormalizedTrade) bool { return t.Side == "" }},
	{"entry_time", func(t core.NormalizedTrade) bool { return t.EntryTime.IsZero() }},
	{"entry_price", func(t core.NormalizedTrade) bool { return math.IsNaN(t.EntryPrice) }},
	{"stop_loss", func(t core.NormalizedTrade) bool { return math.IsNaN(t.StopLoss) }},
	{"take_profit", func(t core.NormalizedTrade) bool { return math.IsNaN(t.TakeProfit) }},
}

// RequiredFields returns the names of the fields a valid record must carry.
func RequiredFields() []string {
	names := make([]string, len(requiredFields))
	for i, f := range requiredFields {
		names[i] = f.name
	}
	return names
}

// Score computes the quality report for a ledger. The ledger may come from
// any source, so duplicates are counted here independently of normalization.
//
// The integrity score is round((valid-duplicates)/total*100). It goes
// negative when duplicates outnumber valid records; callers must accept that.
func Score(trades []core.NormalizedTrade, now time.Time) core.DataQualityMetrics {
	m := core.DataQualityMetrics{
		TotalRecords:  len(trades),
		MissingValues: make(map[string]int, len(requiredFields)),
		LastUpdated:   now.UTC(),
	}
	for _, f := range requiredFields {
		m.MissingValues[f.name] = 0
	}

	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if _, dup := seen[t.ID]; dup {
			m.Duplicates++
		} else {
			seen[t.ID] = struct{}{}
		}
	}

	for _, t := range trades {
		valid := true
		for _, f := range requiredFields {
			if f.missing(t) {
				m.MissingValues[f.name]++
				valid = false
			}
		}
		if valid {
			m.ValidRecords++
		}
	}

	if m.TotalRecords > 0 {
		ratio := float64(m.ValidRecords-m.Duplicates) / float64(m.TotalRecords) * 100
		// Half-up rounding, so -2.5 becomes -2 rather than -3.
		m.DataIntegrityScore = int(math.Floor(ratio + 0.5))
	}

	return m
}
