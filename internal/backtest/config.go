package backtest

import (
	"fmt"

	"github.com/newthinker/tradeledger/internal/core"
)

// Config holds simulation parameters. It is fixed for the duration of a run.
type Config struct {
	InitialEquity       float64
	RiskPerTrade        float64 // percent of current equity risked per trade
	MaxConcurrentTrades int
	// TPMultipliers, VolumeSpikeThreshold and EMAFilter are carried for
	// multi-target exits and entry filters; position sizing does not read them.
	TPMultipliers        []float64
	VolumeSpikeThreshold float64
	EMAFilter            bool
}

// DefaultConfig returns the parameters used by the trigger.
func DefaultConfig() Config {
	return Config{
		InitialEquity:        10000,
		RiskPerTrade:         2.0,
		MaxConcurrentTrades:  5,
		TPMultipliers:        []float64{2.0, 2.5, 3.0},
		VolumeSpikeThreshold: 1.5,
		EMAFilter:            true,
	}
}

// Validate checks the parameters a run depends on.
func (c Config) Validate() error {
	if c.InitialEquity <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("initial equity must be positive, got %v", c.InitialEquity))
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 100 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("risk per trade must be in (0, 100], got %v", c.RiskPerTrade))
	}
	if c.MaxConcurrentTrades < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("max concurrent trades must be at least 1, got %d", c.MaxConcurrentTrades))
	}
	return nil
}
