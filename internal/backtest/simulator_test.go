package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradeledger/internal/core"
)

var simNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSimulator(cfg Config) *Simulator {
	return NewSimulator(cfg, nil, func() time.Time { return simNow })
}

func singleSlot() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTrades = 1
	return cfg
}

func TestSimulator_LongScenario(t *testing.T) {
	// B cannot open while A holds the only slot, but its entry price is the
	// last one seen and closes A.
	signals := []core.TradeSignal{
		{SignalID: "A", Timestamp: "2024-01-01T00:00:00Z", Symbol: "BTC", Action: "long", Entry: 100, StopLoss: 95, TakeProfit: 110},
		{SignalID: "B", Timestamp: "2024-01-02T00:00:00Z", Symbol: "BTC", Action: "long", Entry: 110, StopLoss: 100},
	}

	res, err := newTestSimulator(singleSlot()).Run(context.Background(), signals)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, "A", tr.SignalID)
	assert.InDelta(t, 4.0, tr.PnL, 1e-9)
	assert.InDelta(t, 10004.0, tr.EndingEquity, 1e-9)
	assert.InDelta(t, 10004.0, res.FinalEquity, 1e-9)
	// risk = 40 * 5 / 100 = 2
	assert.InDelta(t, 2.0, tr.RiskReward, 1e-9)
	assert.Equal(t, OutcomeWin, tr.Outcome)
	assert.Equal(t, 1.0, tr.Leverage)
	assert.Equal(t, 110.0, tr.TakeProfit)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", tr.ClosedAt)
	assert.Equal(t, 1, res.Rejected[RejectCapacity])
}

func TestSimulator_ShortWithLeverage(t *testing.T) {
	signals := []core.TradeSignal{
		{SignalID: "S", Timestamp: "2024-01-01T00:00:00Z", Action: "Sell", Entry: 100, StopLoss: 105, Leverage: 3},
		{SignalID: "X", Timestamp: "2024-01-02T00:00:00Z", Action: "long", Entry: 90, StopLoss: 80},
	}

	res, err := newTestSimulator(singleSlot()).Run(context.Background(), signals)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	// size 40, priceChange 10, pnl = 0.1 * 40 * 3
	assert.InDelta(t, 12.0, res.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 6.0, res.Trades[0].RiskReward, 1e-9)
	assert.Equal(t, 3.0, res.Trades[0].Leverage)
}

func TestSimulator_ForceCloseAtLastEntry(t *testing.T) {
	signals := []core.TradeSignal{
		{SignalID: "A", Timestamp: "2024-01-01T00:00:00Z", Action: "long", Entry: 100, StopLoss: 90},
		{SignalID: "B", Timestamp: "2024-01-02T00:00:00Z", Action: "short", Entry: 50, StopLoss: 55},
		{SignalID: "C", Timestamp: "2024-01-03T00:00:00Z", Action: "long", Entry: 50, StopLoss: 40},
	}

	res, err := newTestSimulator(DefaultConfig()).Run(context.Background(), signals)
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)

	assert.Equal(t, []string{"A", "B", "C"}, []string{res.Trades[0].SignalID, res.Trades[1].SignalID, res.Trades[2].SignalID})

	// A: size 200/10 = 20, exit 50 -> pnl = -0.5 * 20 = -10
	assert.InDelta(t, -10.0, res.Trades[0].PnL, 1e-9)
	assert.Equal(t, OutcomeLoss, res.Trades[0].Outcome)
	assert.InDelta(t, 9990.0, res.Trades[0].EndingEquity, 1e-9)

	// B and C close at their own entry: zero pnl is a loss.
	assert.Equal(t, 0.0, res.Trades[1].PnL)
	assert.Equal(t, OutcomeLoss, res.Trades[1].Outcome)
	assert.InDelta(t, 9990.0, res.FinalEquity, 1e-9)
}

func TestSimulator_Rejections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTrades = 2

	signals := []core.TradeSignal{
		{SignalID: "A", Timestamp: "2024-01-01T00:00:00Z", Entry: 100, StopLoss: 95},
		{SignalID: "A", Timestamp: "2024-01-01T01:00:00Z", Entry: 101, StopLoss: 95},
		{SignalID: "zero", Timestamp: "2024-01-01T02:00:00Z", Entry: 0, StopLoss: 5},
		{SignalID: "flat", Timestamp: "2024-01-01T03:00:00Z", Entry: 100, StopLoss: 100},
		{SignalID: "B", Timestamp: "2024-01-01T04:00:00Z", Entry: 100, StopLoss: 90},
		{SignalID: "C", Timestamp: "2024-01-01T05:00:00Z", Entry: 100, StopLoss: 90},
	}

	res, err := newTestSimulator(cfg).Run(context.Background(), signals)
	require.NoError(t, err)

	assert.Len(t, res.Trades, 2)
	assert.Equal(t, 1, res.Rejected[RejectAlreadyOpen])
	assert.Equal(t, 2, res.Rejected[RejectUnsizable])
	assert.Equal(t, 1, res.Rejected[RejectCapacity])
	for _, tr := range res.Trades {
		assert.False(t, tr.PnL != tr.PnL, "pnl must not be NaN")
	}
}

func TestSimulator_Empty(t *testing.T) {
	res, err := newTestSimulator(DefaultConfig()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.NotNil(t, res.Trades)
	assert.Equal(t, 10000.0, res.FinalEquity)
}

func TestSimulator_SortsByParsedTimestamp(t *testing.T) {
	// As strings "…11:00:00Z" < "…12:00:00+02:00", but the latter is 10:00 UTC.
	signals := []core.TradeSignal{
		{SignalID: "late", Timestamp: "2024-01-01T11:00:00Z", Entry: 100, StopLoss: 90},
		{SignalID: "early", Timestamp: "2024-01-01T12:00:00+02:00", Entry: 100, StopLoss: 90},
	}

	res, err := newTestSimulator(singleSlot()).Run(context.Background(), signals)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "early", res.Trades[0].SignalID)
}

func TestSimulator_DoesNotMutateInput(t *testing.T) {
	signals := []core.TradeSignal{
		{SignalID: "b", Timestamp: "2024-01-02T00:00:00Z", Entry: 1, StopLoss: 2},
		{SignalID: "a", Timestamp: "2024-01-01T00:00:00Z", Entry: 1, StopLoss: 2},
	}

	_, err := newTestSimulator(DefaultConfig()).Run(context.Background(), signals)
	require.NoError(t, err)
	assert.Equal(t, "b", signals[0].SignalID)
}

func TestSimulator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSimulator(DefaultConfig()).Run(ctx, []core.TradeSignal{{SignalID: "a", Entry: 1, StopLoss: 2}})
	assert.ErrorIs(t, err, context.Canceled)
}
