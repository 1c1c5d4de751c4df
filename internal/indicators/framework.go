// Package indicators implements the indicator framework (spec.md §4.3):
// per-symbol bounded history buffers fed by incoming bars, with a uniform
// single-scalar read contract and plotting metadata fixed at construction.
package indicators

import (
	"fmt"
	"math"
	"sync"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// PlotStyle is the line style a downstream renderer should use. It never
// affects computation.
type PlotStyle string

const (
	PlotLine        PlotStyle = "LINE"
	PlotHistogram   PlotStyle = "HISTOGRAM"
	PlotDots        PlotStyle = "DOTS"
	PlotDash1       PlotStyle = "DASH1"
	PlotDash2       PlotStyle = "DASH2"
	PlotDash3       PlotStyle = "DASH3"
	PlotBackground1 PlotStyle = "BACKGROUND1"
	PlotBackground2 PlotStyle = "BACKGROUND2"
)

func (s PlotStyle) letter() string {
	switch s {
	case PlotLine:
		return "L"
	case PlotHistogram:
		return "H"
	case PlotDots:
		return "D"
	case PlotDash1:
		return "1"
	case PlotDash2:
		return "2"
	case PlotDash3:
		return "3"
	case PlotBackground1:
		return "G"
	case PlotBackground2:
		return "K"
	default:
		return "?"
	}
}

// PlotColor is drawn from a fixed palette.
type PlotColor string

const (
	ColorRed     PlotColor = "RED"
	ColorGreen   PlotColor = "GREEN"
	ColorBlue    PlotColor = "BLUE"
	ColorYellow  PlotColor = "YELLOW"
	ColorOrange  PlotColor = "ORANGE"
	ColorPurple  PlotColor = "PURPLE"
	ColorCyan    PlotColor = "CYAN"
	ColorMagenta PlotColor = "MAGENTA"
	ColorWhite   PlotColor = "WHITE"
	ColorGray    PlotColor = "GRAY"
)

func (c PlotColor) letter() string {
	switch c {
	case ColorRed:
		return "R"
	case ColorGreen:
		return "G"
	case ColorBlue:
		return "B"
	case ColorYellow:
		return "Y"
	case ColorOrange:
		return "O"
	case ColorPurple:
		return "P"
	case ColorCyan:
		return "C"
	case ColorMagenta:
		return "M"
	case ColorWhite:
		return "W"
	case ColorGray:
		return "N"
	default:
		return "?"
	}
}

// ReservedPanel is the sentinel plot_at value identity OHLCV indicators
// carry; BarProcessed omits their encoded key entirely (spec.md §4.4 step 4).
const ReservedPanel = 99

// DefaultCapacity is used when a constructor receives capacity <= 0.
const DefaultCapacity = 2048

// BarField names one of the five scalar fields a bar carries.
type BarField string

const (
	FieldOpen   BarField = "OPEN"
	FieldHigh   BarField = "HIGH"
	FieldLow    BarField = "LOW"
	FieldClose  BarField = "CLOSE"
	FieldVolume BarField = "VOLUME"
)

// FieldValue reads the named field off a bar.
func FieldValue(bar events.BarReceived, f BarField) float64 {
	switch f {
	case FieldOpen:
		return bar.Open
	case FieldHigh:
		return bar.High
	case FieldLow:
		return bar.Low
	case FieldClose:
		return bar.Close
	case FieldVolume:
		return bar.Volume
	default:
		return math.NaN()
	}
}

// Indicator is the contract every concrete indicator satisfies (spec.md
// §4.3). Update/Latest/Get/Name/PlotAt/PlotAs/PlotColor mirror the spec's
// public contract directly; Key returns the encoded BarProcessed mapping key,
// or "" for indicators whose plot_at is ReservedPanel.
type Indicator interface {
	Update(bar events.BarReceived)
	Latest(symbol string) float64
	Get(symbol string, index int) float64
	Name() string
	PlotAt() int
	PlotAs() PlotStyle
	PlotColor() PlotColor
	Key() string
}

// Base implements the history-buffer half of the Indicator contract. Concrete
// indicators embed Base and implement their own Update, which computes a
// scalar using indicator-specific state held outside Base (never touched by
// Base's lock) and then calls record to append it under the history lock.
type Base struct {
	name      string
	plotAt    int
	plotAs    PlotStyle
	plotColor PlotColor
	capacity  int

	mu      sync.Mutex
	history map[string][]float64
}

// NewBase constructs the shared half of a concrete indicator.
func NewBase(name string, plotAt int, plotAs PlotStyle, plotColor PlotColor, capacity int) *Base {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Base{
		name:      name,
		plotAt:    plotAt,
		plotAs:    plotAs,
		plotColor: plotColor,
		capacity:  capacity,
		history:   make(map[string][]float64),
	}
}

// record appends value to symbol's bounded history. The only state this
// locks is the history buffer itself (spec.md §4.3 internal contract).
func (b *Base) record(symbol string, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := append(b.history[symbol], value)
	if len(h) > b.capacity {
		h = h[len(h)-b.capacity:]
	}
	b.history[symbol] = h
}

// Latest returns the most recently appended value, or NaN if empty.
func (b *Base) Latest(symbol string) float64 {
	return b.Get(symbol, -1)
}

// Get reads a negative-indexed value (-1 is latest). Out-of-range reads
// return NaN rather than raising.
func (b *Base) Get(symbol string, index int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index >= 0 {
		return math.NaN()
	}
	h := b.history[symbol]
	pos := len(h) + index
	if pos < 0 || pos >= len(h) {
		return math.NaN()
	}
	return h[pos]
}

func (b *Base) Name() string          { return b.name }
func (b *Base) PlotAt() int           { return b.plotAt }
func (b *Base) PlotAs() PlotStyle     { return b.plotAs }
func (b *Base) PlotColor() PlotColor  { return b.plotColor }

// Key encodes plot_at/plot_as/plot_color ahead of the indicator's name,
// e.g. "01LB_SMA_20_CLOSE". Identity indicators at ReservedPanel return "".
func (b *Base) Key() string {
	if b.plotAt == ReservedPanel {
		return ""
	}
	return fmt.Sprintf("%02d%s%s_%s", b.plotAt, b.plotAs.letter(), b.plotColor.letter(), b.name)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func populationStdDev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func pushWindow(window []float64, v float64, period int) []float64 {
	window = append(window, v)
	if len(window) > period {
		window = window[len(window)-period:]
	}
	return window
}
