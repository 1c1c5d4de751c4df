package indicators

import (
	"fmt"
	"math"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// RSI implements Wilder's smoothing (spec.md §4.3 "RSI semantics"): running
// average gain/loss updated each bar as (prev*(N-1)+delta)/N, starting from
// zero on the first update after a symbol's prior value is known. The very
// first bar observed for a symbol has no prior value and emits NaN.
type RSI struct {
	*Base
	period int
	field  BarField

	hasPrev map[string]bool
	prev    map[string]float64
	avgGain map[string]float64
	avgLoss map[string]float64
}

func NewRSI(period int, field BarField, plotAt int, plotAs PlotStyle, plotColor PlotColor, capacity int) *RSI {
	name := fmt.Sprintf("RSI_%d_%s", period, field)
	return &RSI{
		Base:    NewBase(name, plotAt, plotAs, plotColor, capacity),
		period:  period,
		field:   field,
		hasPrev: make(map[string]bool),
		prev:    make(map[string]float64),
		avgGain: make(map[string]float64),
		avgLoss: make(map[string]float64),
	}
}

func (r *RSI) Update(bar events.BarReceived) {
	v := FieldValue(bar, r.field)
	symbol := bar.Symbol

	if !r.hasPrev[symbol] {
		r.prev[symbol] = v
		r.hasPrev[symbol] = true
		r.record(symbol, math.NaN())
		return
	}

	change := v - r.prev[symbol]
	gain := math.Max(change, 0)
	loss := math.Max(-change, 0)

	n := float64(r.period)
	r.avgGain[symbol] = (r.avgGain[symbol]*(n-1) + gain) / n
	r.avgLoss[symbol] = (r.avgLoss[symbol]*(n-1) + loss) / n
	r.prev[symbol] = v

	var rsi float64
	if r.avgLoss[symbol] == 0 {
		rsi = 100
	} else {
		rs := r.avgGain[symbol] / r.avgLoss[symbol]
		rsi = 100 - 100/(1+rs)
	}
	r.record(symbol, rsi)
}
