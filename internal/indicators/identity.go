package indicators

import "github.com/nilskujath/onesecondtrader/internal/events"

// Identity exposes a single bar field verbatim. All five OHLCV identity
// indicators are created at strategy construction (spec.md §4.4) and are
// always omitted from BarProcessed.indicators since their plot_at is
// ReservedPanel.
type Identity struct {
	*Base
	field BarField
}

func newIdentity(name string, field BarField, capacity int) *Identity {
	return &Identity{
		Base:  NewBase(name, ReservedPanel, PlotLine, ColorWhite, capacity),
		field: field,
	}
}

func (i *Identity) Update(bar events.BarReceived) {
	i.record(bar.Symbol, FieldValue(bar, i.field))
}

func NewOpenIndicator(capacity int) *Identity   { return newIdentity("OPEN", FieldOpen, capacity) }
func NewHighIndicator(capacity int) *Identity   { return newIdentity("HIGH", FieldHigh, capacity) }
func NewLowIndicator(capacity int) *Identity    { return newIdentity("LOW", FieldLow, capacity) }
func NewCloseIndicator(capacity int) *Identity  { return newIdentity("CLOSE", FieldClose, capacity) }
func NewVolumeIndicator(capacity int) *Identity { return newIdentity("VOLUME", FieldVolume, capacity) }
