package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

func bar(symbol string, close float64) events.BarReceived {
	return events.BarReceived{Symbol: symbol, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestGetBeyondPopulatedRangeReturnsNaN(t *testing.T) {
	ind := NewCloseIndicator(8)
	ind.Update(bar("AAA", 100))

	assert.True(t, math.IsNaN(ind.Get("AAA", -5)))
	assert.True(t, math.IsNaN(ind.Get("AAA", -2)))
	assert.False(t, math.IsNaN(ind.Get("AAA", -1)))
}

func TestLatestOnEmptySymbolReturnsNaN(t *testing.T) {
	ind := NewCloseIndicator(8)
	assert.True(t, math.IsNaN(ind.Latest("NOBARS")))
}

func TestIdentityOmitsKeyAtReservedPanel(t *testing.T) {
	ind := NewCloseIndicator(8)
	assert.Equal(t, "", ind.Key())
	assert.Equal(t, ReservedPanel, ind.PlotAt())
}

func TestSMAEmitsRunningMeanBeforeWindowFills(t *testing.T) {
	sma := NewSMA(3, FieldClose, 0, PlotLine, ColorBlue, 16)

	sma.Update(bar("AAA", 10))
	assert.Equal(t, 10.0, sma.Latest("AAA"))

	sma.Update(bar("AAA", 20))
	assert.Equal(t, 15.0, sma.Latest("AAA"))

	sma.Update(bar("AAA", 30))
	assert.Equal(t, 20.0, sma.Latest("AAA"))

	sma.Update(bar("AAA", 60))
	assert.Equal(t, float64(20+30+60)/3, sma.Latest("AAA"))
}

func TestSMAKeyEncodesPlotMetadata(t *testing.T) {
	sma := NewSMA(20, FieldClose, 1, PlotLine, ColorBlue, 16)
	assert.Equal(t, "01LB_SMA_20_CLOSE", sma.Key())
}

func TestRSIFirstBarIsNaN(t *testing.T) {
	rsi := NewRSI(14, FieldClose, 1, PlotLine, ColorPurple, 16)
	rsi.Update(bar("AAA", 100))
	assert.True(t, math.IsNaN(rsi.Latest("AAA")))
}

func TestRSIAllEqualInputsEmits100(t *testing.T) {
	rsi := NewRSI(5, FieldClose, 1, PlotLine, ColorPurple, 16)
	for i := 0; i < 10; i++ {
		rsi.Update(bar("AAA", 100))
	}
	assert.Equal(t, 100.0, rsi.Latest("AAA"))
}

func TestRSIAllGainsApproaches100(t *testing.T) {
	rsi := NewRSI(5, FieldClose, 1, PlotLine, ColorPurple, 32)
	price := 100.0
	for i := 0; i < 20; i++ {
		price += 1
		rsi.Update(bar("AAA", price))
	}
	require.False(t, math.IsNaN(rsi.Latest("AAA")))
	assert.InDelta(t, 100.0, rsi.Latest("AAA"), 0.01)
}

func TestRSIWilderRecurrenceMatchesSpecFormula(t *testing.T) {
	rsi := NewRSI(4, FieldClose, 1, PlotLine, ColorPurple, 16)
	prices := []float64{100, 102, 101, 104, 103}
	for _, p := range prices {
		rsi.Update(bar("AAA", p))
	}

	// bar1: NaN (no prior)
	// bar2: change=2 gain=2 loss=0 avgGain=(0*3+2)/4=0.5 avgLoss=0 -> rsi=100
	// bar3: change=-1 gain=0 loss=1 avgGain=(0.5*3+0)/4=0.375 avgLoss=(0*3+1)/4=0.25 -> rs=1.5 rsi=100-100/2.5=60
	// bar4: change=3 gain=3 loss=0 avgGain=(0.375*3+3)/4=1.03125 avgLoss=(0.25*3)/4=0.1875 -> rs=5.5 rsi=100-100/6.5
	// bar5: change=-1 gain=0 loss=1 avgGain=(1.03125*3)/4=0.7734375 avgLoss=(0.1875*3+1)/4=0.390625 -> rs=1.98... rsi=...
	expectedBar3 := 60.0
	assert.InDelta(t, expectedBar3, rsi.Get("AAA", -3), 0.001)
}

func TestBollingerUpperAndLowerBracketSMA(t *testing.T) {
	sma := NewSMA(4, FieldClose, 0, PlotLine, ColorBlue, 16)
	upper := NewBollingerUpper(4, FieldClose, 2, 0, PlotDash1, ColorGray, 16)
	lower := NewBollingerLower(4, FieldClose, 2, 0, PlotDash1, ColorGray, 16)

	prices := []float64{10, 12, 11, 15, 13, 14}
	for _, p := range prices {
		b := bar("AAA", p)
		sma.Update(b)
		upper.Update(b)
		lower.Update(b)
	}

	assert.Greater(t, upper.Latest("AAA"), sma.Latest("AAA"))
	assert.Less(t, lower.Latest("AAA"), sma.Latest("AAA"))
	assert.InDelta(t, sma.Latest("AAA")-lower.Latest("AAA"), upper.Latest("AAA")-sma.Latest("AAA"), 1e-9)
}

func TestRegistryConstructsKnownFamilies(t *testing.T) {
	ind, err := New("SMA", map[string]any{"period": 10, "field": "CLOSE"})
	require.NoError(t, err)
	assert.Equal(t, "SMA_10_CLOSE", ind.Name())
}

func TestRegistryRejectsUnknownFamily(t *testing.T) {
	_, err := New("NOT_A_REAL_INDICATOR", nil)
	assert.Error(t, err)
}

func TestIndicatorHistoryIsBoundedByCapacity(t *testing.T) {
	ind := NewCloseIndicator(3)
	for i := 1; i <= 10; i++ {
		ind.Update(bar("AAA", float64(i)))
	}
	assert.True(t, math.IsNaN(ind.Get("AAA", -4)))
	assert.Equal(t, 10.0, ind.Get("AAA", -1))
	assert.Equal(t, 8.0, ind.Get("AAA", -3))
}
