package indicators

import (
	"fmt"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// BollingerUpper emits mean + k*population_stddev over a rolling window of
// period values (spec.md §4.3 "Bollinger semantics").
type BollingerUpper struct {
	*Base
	period int
	field  BarField
	k      float64
	window map[string][]float64
}

func NewBollingerUpper(period int, field BarField, k float64, plotAt int, plotAs PlotStyle, plotColor PlotColor, capacity int) *BollingerUpper {
	name := fmt.Sprintf("BOLLINGER_UPPER_%d_%s_%g", period, field, k)
	return &BollingerUpper{
		Base:   NewBase(name, plotAt, plotAs, plotColor, capacity),
		period: period,
		field:  field,
		k:      k,
		window: make(map[string][]float64),
	}
}

func (b *BollingerUpper) Update(bar events.BarReceived) {
	v := FieldValue(bar, b.field)
	w := pushWindow(b.window[bar.Symbol], v, b.period)
	b.window[bar.Symbol] = w
	m := mean(w)
	b.record(bar.Symbol, m+b.k*populationStdDev(w, m))
}

// BollingerLower emits mean - k*population_stddev over the same window.
type BollingerLower struct {
	*Base
	period int
	field  BarField
	k      float64
	window map[string][]float64
}

func NewBollingerLower(period int, field BarField, k float64, plotAt int, plotAs PlotStyle, plotColor PlotColor, capacity int) *BollingerLower {
	name := fmt.Sprintf("BOLLINGER_LOWER_%d_%s_%g", period, field, k)
	return &BollingerLower{
		Base:   NewBase(name, plotAt, plotAs, plotColor, capacity),
		period: period,
		field:  field,
		k:      k,
		window: make(map[string][]float64),
	}
}

func (b *BollingerLower) Update(bar events.BarReceived) {
	v := FieldValue(bar, b.field)
	w := pushWindow(b.window[bar.Symbol], v, b.period)
	b.window[bar.Symbol] = w
	m := mean(w)
	b.record(bar.Symbol, m-b.k*populationStdDev(w, m))
}
