// Package performance derives dashboard statistics from a normalized ledger.
package performance

import (
	"math"
	"sort"

	"github.com/newthinker/tradeledger/internal/core"
)

const (
	// StartingEquity seeds the equity curve and total return.
	StartingEquity = 10000.0

	// NoLossProfitFactor is reported when there are wins but no losses.
	NoLossProfitFactor = 999.0

	// returnBase converts a trade's P&L into the simplified per-trade return
	// used by the Sharpe ratio.
	returnBase = 1000.0

	// tradingDays annualizes the per-trade Sharpe ratio.
	tradingDays = 252.0
)

// Empty returns the metrics reported for a ledger with no closed trades.
func Empty() core.DashboardMetrics {
	return core.DashboardMetrics{FinalEquity: StartingEquity}
}

// Compute calculates dashboard metrics over the closed trades in a ledger.
func Compute(trades []core.NormalizedTrade) core.DashboardMetrics {
	closed := ClosedTrades(trades)
	if len(closed) == 0 {
		return Empty()
	}

	var (
		winCount, lossCount     int
		totalPnL, wins, losses  float64
		largestWin, largestLoss float64
	)
	pnls := make([]float64, 0, len(closed))

	for _, t := range closed {
		pnl := *t.PnL
		pnls = append(pnls, pnl)
		totalPnL += pnl

		switch {
		case pnl > 0:
			if winCount == 0 || pnl > largestWin {
				largestWin = pnl
			}
			winCount++
			wins += pnl
		case pnl < 0:
			if lossCount == 0 || pnl < largestLoss {
				largestLoss = pnl
			}
			lossCount++
			losses += pnl
		}
	}

	grossLoss := math.Abs(losses)

	m := core.DashboardMetrics{
		TotalTrades:      len(closed),
		WinRate:          float64(winCount) / float64(len(closed)) * 100,
		TotalPnL:         totalPnL,
		ProfitFactor:     profitFactor(wins, grossLoss),
		SharpeRatio:      SharpeRatio(pnls),
		LargestWin:       largestWin,
		LargestLoss:      largestLoss,
		AvgTradeDuration: averageDurationHours(closed),
	}
	if winCount > 0 {
		m.AvgWin = wins / float64(winCount)
	}
	if lossCount > 0 {
		m.AvgLoss = grossLoss / float64(lossCount)
	}

	curve := EquityCurve(closed)
	m.MaxDrawdown = MaxDrawdown(curve)
	m.FinalEquity = curve[len(curve)-1]
	m.TotalReturn = (m.FinalEquity - StartingEquity) / StartingEquity * 100

	return m
}

// ClosedTrades filters a ledger down to trades with status closed and a pnl.
func ClosedTrades(trades []core.NormalizedTrade) []core.NormalizedTrade {
	var closed []core.NormalizedTrade
	for _, t := range trades {
		if t.IsClosed() {
			closed = append(closed, t)
		}
	}
	return closed
}

func profitFactor(wins, grossLoss float64) float64 {
	if grossLoss > 0 {
		return wins / grossLoss
	}
	if wins > 0 {
		return NoLossProfitFactor
	}
	return 0
}

// EquityCurve accumulates pnl over closed trades ordered by exit time.
// Trades without an exit time are left out. The first point is always the
// starting equity.
func EquityCurve(closed []core.NormalizedTrade) []float64 {
	var timed []core.NormalizedTrade
	for _, t := range closed {
		if t.ExitTime != nil && t.PnL != nil {
			timed = append(timed, t)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].ExitTime.Before(*timed[j].ExitTime)
	})

	curve := make([]float64, 0, len(timed)+1)
	equity := StartingEquity
	curve = append(curve, equity)
	for _, t := range timed {
		equity += *t.PnL
		curve = append(curve, equity)
	}
	return curve
}

// MaxDrawdown returns the largest peak-to-trough decline, in percent, seen in
// a single forward pass over an equity curve.
func MaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	var maxDD float64
	peak := curve[0]
	for _, equity := range curve {
		if equity > peak {
			peak = equity
			continue
		}
		if peak > 0 {
			if dd := (peak - equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio is a trade-indexed approximation: each trade's return is
// pnl/1000, the deviation is the population one, and the ratio is scaled by
// sqrt(252) regardless of how far apart trades are.
func SharpeRatio(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}

	returns := make([]float64, len(pnls))
	var sum float64
	for i, p := range pnls {
		returns[i] = p / returnBase
		sum += returns[i]
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))

	// Identical returns can leave a rounding residue in the deviation.
	if stdDev <= 1e-12*math.Max(1, math.Abs(mean)) {
		return 0
	}
	return mean / stdDev * math.Sqrt(tradingDays)
}

func averageDurationHours(trades []core.NormalizedTrade) float64 {
	var total float64
	var n int
	for _, t := range trades {
		if t.EntryTime.IsZero() || t.ExitTime == nil {
			continue
		}
		total += t.ExitTime.Sub(t.EntryTime).Hours()
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
