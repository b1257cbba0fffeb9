// Package backtest replays trade signals through a fixed-fractional risk
// model and writes the resulting trades back to the record store.
package backtest

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/core"
)

// closedAtLayout matches the millisecond ISO-8601 timestamps used upstream.
const closedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Labels used when closing trades and skipping signals.
const (
	ExitBacktestEnd = "backtest_end"

	OutcomeWin  = "Win"
	OutcomeLoss = "Loss"
)

// Rejection names why a signal was not opened.
type Rejection string

const (
	RejectAlreadyOpen   Rejection = "already_open"
	RejectAlreadyClosed Rejection = "already_closed"
	RejectCapacity      Rejection = "capacity"
	RejectUnsizable     Rejection = "unsizable"
)

// ActiveTrade is an open simulated position.
type ActiveTrade struct {
	SignalID        string
	Symbol          string
	Action          string
	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	PositionSize    float64
	EntryTime       time.Time
	Leverage        float64
	ConfidenceScore *float64
}

// Result is the output of one simulation run.
type Result struct {
	Trades      []core.BacktestResult
	FinalEquity float64
	Rejected    map[Rejection]int
}

// Simulator runs backtests. It holds no state between runs.
type Simulator struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewSimulator creates a simulator. A nil clock uses time.Now.
func NewSimulator(cfg Config, logger *zap.Logger, now func() time.Time) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Simulator{cfg: cfg, logger: logger, now: now}
}

// Run replays signals in timestamp order. Every position still open when the
// stream ends is closed at the entry price of the last signal processed;
// stop-loss and take-profit levels are never evaluated against prices in
// between.
func (s *Simulator) Run(ctx context.Context, signals []core.TradeSignal) (*Result, error) {
	sorted := sortByTimestamp(signals)
	st := newRunState(s.cfg, s.now)

	for _, sig := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if reason, ok := st.accept(sig); !ok {
			st.rejected[reason]++
			s.logger.Info("signal skipped",
				zap.String("signal_id", sig.SignalID),
				zap.String("symbol", sig.Symbol),
				zap.String("reason", string(reason)),
			)
			continue
		}
		s.logger.Debug("opened trade",
			zap.String("signal_id", sig.SignalID),
			zap.String("symbol", sig.Symbol),
		)
	}

	if len(sorted) > 0 {
		exit := sorted[len(sorted)-1].Entry
		for _, id := range st.openOrder() {
			t := st.close(id, exit)
			s.logger.Debug("closed trade",
				zap.String("signal_id", id),
				zap.String("reason", ExitBacktestEnd),
				zap.Float64("pnl", t.PnL),
				zap.Float64("equity", t.EndingEquity),
			)
		}
	}

	return &Result{
		Trades:      st.completed,
		FinalEquity: st.equity,
		Rejected:    st.rejected,
	}, nil
}

// sortByTimestamp returns a copy ordered by parsed timestamp. Unparseable
// timestamps sort first; ties keep input order.
func sortByTimestamp(signals []core.TradeSignal) []core.TradeSignal {
	type keyed struct {
		sig core.TradeSignal
		at  time.Time
	}
	ks := make([]keyed, len(signals))
	for i, sig := range signals {
		at, _ := core.ParseTimestamp(sig.Timestamp)
		ks[i] = keyed{sig: sig, at: at}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].at.Before(ks[j].at) })

	out := make([]core.TradeSignal, len(ks))
	for i, k := range ks {
		out[i] = k.sig
	}
	return out
}

// runState is owned by a single Run call.
type runState struct {
	cfg       Config
	now       func() time.Time
	equity    float64
	open      map[string]*ActiveTrade
	order     []string
	closed    map[string]struct{}
	completed []core.BacktestResult
	rejected  map[Rejection]int
}

func newRunState(cfg Config, now func() time.Time) *runState {
	return &runState{
		cfg:       cfg,
		now:       now,
		equity:    cfg.InitialEquity,
		open:      make(map[string]*ActiveTrade),
		closed:    make(map[string]struct{}),
		completed: []core.BacktestResult{},
		rejected:  make(map[Rejection]int),
	}
}

// accept opens a position for sig. Size is chosen so that a stop-out at the
// literal stop distance loses exactly RiskPerTrade percent of current equity;
// leverage does not reduce size.
func (st *runState) accept(sig core.TradeSignal) (Rejection, bool) {
	if _, ok := st.open[sig.SignalID]; ok {
		return RejectAlreadyOpen, false
	}
	if _, ok := st.closed[sig.SignalID]; ok {
		return RejectAlreadyClosed, false
	}
	if len(st.open) >= st.cfg.MaxConcurrentTrades {
		return RejectCapacity, false
	}

	riskAmount := st.equity * (st.cfg.RiskPerTrade / 100)
	stopDistance := math.Abs(sig.Entry - sig.StopLoss)
	if sig.Entry == 0 || stopDistance == 0 || riskAmount <= 0 {
		return RejectUnsizable, false
	}

	leverage := sig.Leverage
	if leverage == 0 {
		leverage = 1
	}
	entryTime, _ := core.ParseTimestamp(sig.Timestamp)

	st.open[sig.SignalID] = &ActiveTrade{
		SignalID:        sig.SignalID,
		Symbol:          sig.Symbol,
		Action:          sig.Action,
		EntryPrice:      sig.Entry,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		PositionSize:    riskAmount / stopDistance,
		EntryTime:       entryTime,
		Leverage:        leverage,
		ConfidenceScore: sig.ConfidenceScore,
	}
	st.order = append(st.order, sig.SignalID)
	return "", true
}

// openOrder returns the ids of open positions in the order they were opened.
func (st *runState) openOrder() []string {
	ids := make([]string, 0, len(st.open))
	for _, id := range st.order {
		if _, ok := st.open[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// close realises the position at exit and appends the completed trade.
func (st *runState) close(id string, exit float64) core.BacktestResult {
	t := st.open[id]

	priceChange := exit - t.EntryPrice
	if core.SideFromAction(t.Action) == core.SideShort {
		priceChange = t.EntryPrice - exit
	}
	pnl := (priceChange / t.EntryPrice) * t.PositionSize * t.Leverage
	st.equity += pnl

	risk := t.PositionSize * math.Abs(t.EntryPrice-t.StopLoss) / t.EntryPrice
	outcome := OutcomeLoss
	if pnl > 0 {
		outcome = OutcomeWin
	}

	result := core.BacktestResult{
		SignalID:     t.SignalID,
		Symbol:       t.Symbol,
		Action:       t.Action,
		Entry:        t.EntryPrice,
		StopLoss:     t.StopLoss,
		TakeProfit:   t.TakeProfit,
		Leverage:     t.Leverage,
		Outcome:      outcome,
		ClosedAt:     st.now().UTC().Format(closedAtLayout),
		PnL:          pnl,
		RiskReward:   math.Abs(pnl) / risk,
		EndingEquity: st.equity,
	}

	st.completed = append(st.completed, result)
	delete(st.open, id)
	st.closed[id] = struct{}{}
	return result
}
