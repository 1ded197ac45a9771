// Package strategies provides signal providers: a scripted replay used in
// tests and reproducible runs, a fast/slow EMA crossover, and a provider
// that never trades.
package strategies

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/tradeledger/market"
)

// SignalProvider produces a signal for symbol from the bar window ending at
// the current bar. Any error means "no signal this cycle".
type SignalProvider interface {
	Signal(ctx context.Context, symbol, timeframe string, window []market.Bar) (market.Signal, error)
}

// ProviderFunc adapts a function to SignalProvider.
type ProviderFunc func(ctx context.Context, symbol, timeframe string, window []market.Bar) (market.Signal, error)

func (f ProviderFunc) Signal(ctx context.Context, symbol, timeframe string, window []market.Bar) (market.Signal, error) {
	return f(ctx, symbol, timeframe, window)
}

// Hold never asks for a trade.
type Hold struct{}

func (Hold) Signal(_ context.Context, symbol, _ string, _ []market.Bar) (market.Signal, error) {
	return market.Signal{Symbol: symbol, Action: market.Hold, Source: "hold"}, nil
}

// Options configure the providers built by New.
type Options struct {
	Fast, Slow int     // ema-cross periods
	StopATR    float64 // stop distance in ATRs
	RewardRisk float64 // take-profit multiple of the stop distance
	MinADX     float64 // ema-cross trend filter, 0 disables
	ScriptPath string  // scripted: CSV of signals
}

type factory func(Options) (SignalProvider, error)

var registry = map[string]factory{
	"hold": func(Options) (SignalProvider, error) { return Hold{}, nil },
	"ema-cross": func(o Options) (SignalProvider, error) {
		return NewEMACross(EMACrossConfig{Fast: o.Fast, Slow: o.Slow, StopATR: o.StopATR, RewardRisk: o.RewardRisk, MinADX: o.MinADX})
	},
	"scripted": func(o Options) (SignalProvider, error) {
		if o.ScriptPath == "" {
			return nil, fmt.Errorf("scripted: script path is required")
		}
		return LoadScript(o.ScriptPath)
	},
}

var aliases = map[string]string{
	"none":     "hold",
	"noop":     "hold",
	"emacross": "ema-cross",
	"script":   "scripted",
}

// New builds the named provider.
func New(name string, o Options) (SignalProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[key]; ok {
		key = a
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return f(o)
}

// Names lists the registered providers.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
