package quality

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/tradeledger/internal/core"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func validTrade(id string) core.NormalizedTrade {
	return core.NormalizedTrade{
		ID:         id,
		Symbol:     "BTC",
		Side:       core.SideLong,
		EntryTime:  now,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
	}
}

func TestScore_Empty(t *testing.T) {
	m := Score(nil, now)

	assert.Equal(t, 0, m.TotalRecords)
	assert.Equal(t, 0, m.DataIntegrityScore)
	assert.Len(t, m.MissingValues, len(RequiredFields()))
	assert.Equal(t, now, m.LastUpdated)
}

func TestScore_AllValid(t *testing.T) {
	m := Score([]core.NormalizedTrade{validTrade("a"), validTrade("b")}, now)

	assert.Equal(t, 2, m.ValidRecords)
	assert.Equal(t, 0, m.Duplicates)
	assert.Equal(t, 100, m.DataIntegrityScore)
	for _, name := range RequiredFields() {
		assert.Zero(t, m.MissingValues[name], name)
	}
}

func TestScore_MissingFields(t *testing.T) {
	noSymbol := validTrade("b")
	noSymbol.Symbol = ""

	nanEntry := validTrade("c")
	nanEntry.EntryPrice = math.NaN()
	nanEntry.Side = ""

	noTime := validTrade("d")
	noTime.EntryTime = time.Time{}

	m := Score([]core.NormalizedTrade{validTrade("a"), noSymbol, nanEntry, noTime}, now)

	assert.Equal(t, 4, m.TotalRecords)
	assert.Equal(t, 1, m.ValidRecords)
	assert.Equal(t, 1, m.MissingValues["symbol"])
	assert.Equal(t, 1, m.MissingValues["entry_price"])
	assert.Equal(t, 1, m.MissingValues["side"])
	assert.Equal(t, 1, m.MissingValues["entry_time"])
	assert.Equal(t, 0, m.MissingValues["stop_loss"])
	assert.Equal(t, 25, m.DataIntegrityScore)
}

func TestScore_ZeroPriceIsPresent(t *testing.T) {
	tr := validTrade("a")
	tr.EntryPrice = 0
	tr.StopLoss = 0

	m := Score([]core.NormalizedTrade{tr}, now)
	assert.Equal(t, 1, m.ValidRecords)
}

func TestScore_Duplicates(t *testing.T) {
	m := Score([]core.NormalizedTrade{validTrade("a"), validTrade("a"), validTrade("b"), validTrade("a")}, now)

	// Duplicates stay valid records; they only reduce the score.
	assert.Equal(t, 4, m.ValidRecords)
	assert.Equal(t, 2, m.Duplicates)
	assert.Equal(t, 50, m.DataIntegrityScore)
}

func TestScore_NegativeScore(t *testing.T) {
	bad := validTrade("x")
	bad.Symbol = ""

	trades := []core.NormalizedTrade{bad, bad, bad, bad}
	m := Score(trades, now)

	assert.Equal(t, 0, m.ValidRecords)
	assert.Equal(t, 3, m.Duplicates)
	assert.Equal(t, -75, m.DataIntegrityScore)
}

func TestScore_Rounding(t *testing.T) {
	// 2 valid of 3 = 66.67 -> 67
	bad := validTrade("c")
	bad.ID = ""
	m := Score([]core.NormalizedTrade{validTrade("a"), validTrade("b"), bad}, now)
	assert.Equal(t, 67, m.DataIntegrityScore)
	assert.Equal(t, 1, m.MissingValues["id"])
}
