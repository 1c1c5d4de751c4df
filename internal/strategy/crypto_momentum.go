package strategy

import (
	"fmt"

	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/indicators"
)

// CryptoMomentumParams names the tunable knobs for NewCryptoMomentumConfig
// (spec.md §4.4 "Configuration" parameter resolution).
var CryptoMomentumParams = map[string]ParamSpec{
	"fast_period": {Type: ParamInt, Default: 10, Min: floatPtr(2)},
	"slow_period": {Type: ParamInt, Default: 30, Min: floatPtr(3)},
	"rsi_period":  {Type: ParamInt, Default: 14, Min: floatPtr(2)},
	"rsi_floor":   {Type: ParamFloat, Default: 30.0},
	"rsi_ceiling": {Type: ParamFloat, Default: 70.0},
	"quantity":    {Type: ParamFloat, Default: 1.0, Min: floatPtr(0)},
}

func floatPtr(v float64) *float64 { return &v }

// NewCryptoMomentumConfig builds a Config for a single-symbol SMA-crossover
// strategy filtered by RSI, the direct descendant of the teacher's
// multi-indicator crypto_15m strategy: where that strategy blended RSI,
// momentum, volume, order-book, funding, and buy/sell-ratio scores into one
// composite signal, this version narrows to the two indicators the new
// engine's bar pipeline can actually evaluate (spec.md §4.3) — a fast/slow
// SMA crossover for direction, RSI for an overbought/oversold veto — and
// expresses them as add_indicator-registered Indicator values driving
// explicit MARKET order submissions instead of a scored Signal.
func NewCryptoMomentumConfig(name string, symbol string, barPeriod events.BarPeriod, indicatorCapacity int, overrides map[string]any) Config {
	var fastSMA, slowSMA, rsi indicators.Indicator
	crossState := make(map[string]bool)

	return Config{
		Name:              name,
		Symbols:           []string{symbol},
		BarPeriod:         barPeriod,
		ParamSchema:       CryptoMomentumParams,
		ParamOverrides:    overrides,
		IndicatorCapacity: indicatorCapacity,
		Hooks: Hooks{
			Setup: func(s *Strategy) {
				fastSMA = s.AddIndicator(indicators.NewSMA(
					s.ParamInt("fast_period"), indicators.FieldClose,
					1, indicators.PlotLine, indicators.ColorBlue, indicatorCapacity))
				slowSMA = s.AddIndicator(indicators.NewSMA(
					s.ParamInt("slow_period"), indicators.FieldClose,
					1, indicators.PlotLine, indicators.ColorOrange, indicatorCapacity))
				rsi = s.AddIndicator(indicators.NewRSI(
					s.ParamInt("rsi_period"), indicators.FieldClose,
					2, indicators.PlotLine, indicators.ColorPurple, indicatorCapacity))
			},
			OnBar: func(s *Strategy, bar events.BarProcessed) {
				onCryptoMomentumBar(s, bar, &fastSMA, &slowSMA, &rsi, crossState)
			},
		},
	}
}

func onCryptoMomentumBar(s *Strategy, bar events.BarProcessed, fastSMA, slowSMA, rsi *indicators.Indicator, crossState map[string]bool) {
	fast := (*fastSMA).Latest(bar.Symbol)
	slow := (*slowSMA).Latest(bar.Symbol)
	rsiVal := (*rsi).Latest(bar.Symbol)
	if isNaN(fast) || isNaN(slow) || isNaN(rsiVal) {
		return
	}

	wasAbove, seen := crossState[bar.Symbol]
	isAbove := fast > slow
	crossState[bar.Symbol] = isAbove
	if !seen {
		return
	}
	crossedUp := !wasAbove && isAbove
	crossedDown := wasAbove && !isAbove
	if !crossedUp && !crossedDown {
		return
	}

	qty := s.ParamFloat("quantity")
	pos := s.PositionFor(bar.Symbol)

	if crossedUp && rsiVal < s.ParamFloat("rsi_ceiling") && pos.Quantity <= 0 {
		s.SubmitOrder(events.OrderTypeMarket, events.SideBuy, qty+absFloat(pos.Quantity),
			nil, nil, "crossover_up", fmt.Sprintf("fast=%.4f slow=%.4f rsi=%.2f", fast, slow, rsiVal), bar.Symbol)
	} else if crossedDown && rsiVal > s.ParamFloat("rsi_floor") && pos.Quantity >= 0 {
		s.SubmitOrder(events.OrderTypeMarket, events.SideSell, qty+absFloat(pos.Quantity),
			nil, nil, "crossover_down", fmt.Sprintf("fast=%.4f slow=%.4f rsi=%.2f", fast, slow, rsiVal), bar.Symbol)
	}
}

func isNaN(v float64) bool { return v != v }

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
