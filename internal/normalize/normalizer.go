// Package normalize merges raw trade signals and backtest results into one
// canonical ledger entry per trade identifier.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradeledger/internal/core"
)

// syntheticNamespace seeds name-based ids for results that carry no SignalID.
var syntheticNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("tradeledger/backtest-result"))

// Normalizer is a short-lived value; it holds nothing between calls except
// the clock used to fill in absent timestamps.
type Normalizer struct {
	now func() time.Time
}

// New creates a Normalizer. A nil clock means time.Now.
func New(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize builds the ledger. Signals are processed before results; when an
// identifier repeats, the first occurrence wins. It never fails: malformed
// input degrades to defaults.
func (n *Normalizer) Normalize(signals []core.TradeSignal, results []core.BacktestResult) []core.NormalizedTrade {
	trades := make([]core.NormalizedTrade, 0, len(signals)+len(results))
	index := make(map[string]int, len(signals)+len(results))

	track := func(t core.NormalizedTrade) {
		if _, ok := index[t.ID]; !ok {
			index[t.ID] = len(trades)
		}
		trades = append(trades, t)
	}

	for _, s := range signals {
		track(n.fromSignal(s))
	}

	for _, r := range results {
		if r.SignalID != "" {
			if i, ok := index[r.SignalID]; ok {
				applyResult(&trades[i], r)
				continue
			}
		}
		track(n.fromResult(r))
	}

	return Deduplicate(trades)
}

func (n *Normalizer) fromSignal(s core.TradeSignal) core.NormalizedTrade {
	t := core.NormalizedTrade{
		ID:              s.SignalID,
		Symbol:          core.CleanSymbol(s.Symbol),
		Side:            core.SideFromAction(s.Action),
		EntryTime:       n.timestamp(s.Timestamp),
		EntryPrice:      s.Entry,
		StopLoss:        s.StopLoss,
		TakeProfit:      s.TakeProfit,
		Leverage:        leverageOrDefault(s.Leverage),
		ConfidenceScore: s.ConfidenceScore,
		AIRationale:     s.AIRationale,
	}

	if s.ClosedAt != "" {
		exit := n.timestamp(s.ClosedAt)
		t.ExitTime = &exit
	}
	if s.ClosingPrice != 0 {
		price := s.ClosingPrice
		t.ExitPrice = &price
	}

	switch {
	case s.ClosedAt != "":
		t.Status = core.StatusClosed
	case s.Status == "active":
		t.Status = core.StatusOpen
	default:
		t.Status = core.StatusPending
	}

	return t
}

func (n *Normalizer) fromResult(r core.BacktestResult) core.NormalizedTrade {
	id := r.SignalID
	if id == "" {
		id = syntheticID(r)
	}

	side := core.SideFromAction(r.Action)
	t := core.NormalizedTrade{
		ID:         id,
		Symbol:     core.CleanSymbol(r.Symbol),
		Side:       side,
		EntryTime:  n.timestamp(r.ClosedAt),
		EntryPrice: r.Entry,
		StopLoss:   r.StopLoss,
		TakeProfit: r.TakeProfit,
		Leverage:   leverageOrDefault(r.Leverage),
	}

	if r.ClosedAt != "" {
		exit := n.timestamp(r.ClosedAt)
		t.ExitTime = &exit
	}
	exitPrice := DeriveExitPrice(r.Entry, r.PnL, side)
	t.ExitPrice = &exitPrice

	applyResult(&t, r)
	return t
}

// applyResult copies the authoritative outcome fields onto a trade.
func applyResult(t *core.NormalizedTrade, r core.BacktestResult) {
	pnl, equity, rr := r.PnL, r.EndingEquity, r.RiskReward
	t.PnL = &pnl
	t.EquityAfterTrade = &equity
	t.TPMultiplier = &rr
	t.ExitReason = ExitReason(r.Outcome)
	t.Status = core.StatusClosed
}

// timestamp parses a raw timestamp, falling back to the clock when the value
// is absent or unreadable.
func (n *Normalizer) timestamp(raw string) time.Time {
	if t, ok := core.ParseTimestamp(raw); ok {
		return t
	}
	return n.now().UTC()
}

// DeriveExitPrice reverses a P&L figure into an approximate exit price. It is
// an estimate only; results never carry their real exit price.
func DeriveExitPrice(entry, pnl float64, side core.Side) float64 {
	if entry == 0 {
		return 0
	}
	returnPct := pnl / (entry * 100)
	if side == core.SideShort {
		return entry * (1 - returnPct)
	}
	return entry * (1 + returnPct)
}

// ExitReason maps free-form outcome text onto an exit reason.
func ExitReason(outcome string) core.ExitReason {
	o := strings.ToLower(outcome)
	switch {
	case strings.Contains(o, "win") || strings.Contains(o, "profit"):
		return core.ExitTakeProfit
	case strings.Contains(o, "loss") || strings.Contains(o, "stop"):
		return core.ExitStopLoss
	default:
		return core.ExitUnknown
	}
}

// Deduplicate keeps the first trade seen for every identifier.
func Deduplicate(trades []core.NormalizedTrade) []core.NormalizedTrade {
	seen := make(map[string]struct{}, len(trades))
	out := make([]core.NormalizedTrade, 0, len(trades))
	for _, t := range trades {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func leverageOrDefault(l float64) float64 {
	if l == 0 {
		return 1
	}
	return l
}

func syntheticID(r core.BacktestResult) string {
	name := fmt.Sprintf("%s|%s|%s|%g|%g|%g|%s", r.Symbol, r.Action, r.ClosedAt, r.Entry, r.PnL, r.EndingEquity, r.Outcome)
	return "bt_" + uuid.NewSHA1(syntheticNamespace, []byte(name)).String()
}
