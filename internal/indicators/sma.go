package indicators

import (
	"fmt"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// SMA is the arithmetic mean of the last period values of field. Before
// period values accumulate, it emits the running mean of what exists
// (spec.md §4.3 "SMA semantics").
type SMA struct {
	*Base
	period int
	field  BarField
	window map[string][]float64
}

func NewSMA(period int, field BarField, plotAt int, plotAs PlotStyle, plotColor PlotColor, capacity int) *SMA {
	name := fmt.Sprintf("SMA_%d_%s", period, field)
	return &SMA{
		Base:   NewBase(name, plotAt, plotAs, plotColor, capacity),
		period: period,
		field:  field,
		window: make(map[string][]float64),
	}
}

func (s *SMA) Update(bar events.BarReceived) {
	v := FieldValue(bar, s.field)
	w := pushWindow(s.window[bar.Symbol], v, s.period)
	s.window[bar.Symbol] = w
	s.record(bar.Symbol, mean(w))
}
