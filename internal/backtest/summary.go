package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/newthinker/tradeledger/internal/core"
)

// Summary is the trigger response digest. WinRate and TotalPnL are
// fixed-point strings with one and two decimals.
type Summary struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       string  `json:"winRate"`
	TotalPnL      string  `json:"totalPnL"`
	FinalEquity   float64 `json:"finalEquity"`
}

// Summarize digests a completed-trade set. Trades with pnl <= 0 count as
// losing. FinalEquity is the last trade's ending equity, falling back to
// initialEquity when there are no trades or that value is zero.
func Summarize(trades []core.BacktestResult, initialEquity float64) Summary {
	s := Summary{
		TotalTrades: len(trades),
		FinalEquity: initialEquity,
	}

	var totalPnL float64
	for _, t := range trades {
		if t.PnL > 0 {
			s.WinningTrades++
		}
		totalPnL += t.PnL
	}
	s.LosingTrades = s.TotalTrades - s.WinningTrades

	var winRate float64
	if s.TotalTrades > 0 {
		winRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	s.WinRate = fixed(winRate, 1)
	s.TotalPnL = fixed(totalPnL, 2)

	if n := len(trades); n > 0 && trades[n-1].EndingEquity != 0 {
		s.FinalEquity = trades[n-1].EndingEquity
	}
	return s
}

// fixed rounds the shortest decimal form of v half away from zero, so 1.005
// renders as "1.01" even though its binary value is slightly below 1.005.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
