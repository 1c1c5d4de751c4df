package indicators

import "fmt"

// Registry is an explicit, build-time-populated table of indicator
// families, keyed by canonical family name. This replaces the source's
// global registry-via-class-definition-hook with something a systems
// language can do without reflection (spec.md §9 design note): every
// entry below is added by an init() in this file, nothing is discovered
// by scanning a directory or package at runtime.
var registry = map[string]func(params map[string]any) (Indicator, error){}

func register(name string, ctor func(params map[string]any) (Indicator, error)) {
	registry[name] = ctor
}

func init() {
	register("OPEN", func(p map[string]any) (Indicator, error) {
		return NewOpenIndicator(capacityParam(p)), nil
	})
	register("HIGH", func(p map[string]any) (Indicator, error) {
		return NewHighIndicator(capacityParam(p)), nil
	})
	register("LOW", func(p map[string]any) (Indicator, error) {
		return NewLowIndicator(capacityParam(p)), nil
	})
	register("CLOSE", func(p map[string]any) (Indicator, error) {
		return NewCloseIndicator(capacityParam(p)), nil
	})
	register("VOLUME", func(p map[string]any) (Indicator, error) {
		return NewVolumeIndicator(capacityParam(p)), nil
	})
	register("SMA", func(p map[string]any) (Indicator, error) {
		period, err := intParam(p, "period", 20)
		if err != nil {
			return nil, err
		}
		field := fieldParam(p, "field", FieldClose)
		plotAt, err := intParam(p, "plot_at", 0)
		if err != nil {
			return nil, err
		}
		return NewSMA(period, field, plotAt, styleParam(p, PlotLine), colorParam(p, ColorBlue), capacityParam(p)), nil
	})
	register("RSI", func(p map[string]any) (Indicator, error) {
		period, err := intParam(p, "period", 14)
		if err != nil {
			return nil, err
		}
		field := fieldParam(p, "field", FieldClose)
		plotAt, err := intParam(p, "plot_at", 1)
		if err != nil {
			return nil, err
		}
		return NewRSI(period, field, plotAt, styleParam(p, PlotLine), colorParam(p, ColorPurple), capacityParam(p)), nil
	})
	register("BOLLINGER_UPPER", func(p map[string]any) (Indicator, error) {
		period, err := intParam(p, "period", 20)
		if err != nil {
			return nil, err
		}
		k, err := floatParam(p, "k", 2.0)
		if err != nil {
			return nil, err
		}
		field := fieldParam(p, "field", FieldClose)
		plotAt, err := intParam(p, "plot_at", 0)
		if err != nil {
			return nil, err
		}
		return NewBollingerUpper(period, field, k, plotAt, styleParam(p, PlotDash1), colorParam(p, ColorGray), capacityParam(p)), nil
	})
	register("BOLLINGER_LOWER", func(p map[string]any) (Indicator, error) {
		period, err := intParam(p, "period", 20)
		if err != nil {
			return nil, err
		}
		k, err := floatParam(p, "k", 2.0)
		if err != nil {
			return nil, err
		}
		field := fieldParam(p, "field", FieldClose)
		plotAt, err := intParam(p, "plot_at", 0)
		if err != nil {
			return nil, err
		}
		return NewBollingerLower(period, field, k, plotAt, styleParam(p, PlotDash1), colorParam(p, ColorGray), capacityParam(p)), nil
	})
}

// New constructs the named indicator family from params. Unknown names are
// an error; there is no directory scan or fallback (spec.md §9).
func New(name string, params map[string]any) (Indicator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("indicators: unknown indicator family %q", name)
	}
	return ctor(params)
}

func intParam(p map[string]any, key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("indicators: param %q must be an integer, got %T", key, v)
	}
}

func floatParam(p map[string]any, key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("indicators: param %q must be a number, got %T", key, v)
	}
}

func fieldParam(p map[string]any, key string, def BarField) BarField {
	v, ok := p[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return BarField(s)
	}
	return def
}

func styleParam(p map[string]any, def PlotStyle) PlotStyle {
	v, ok := p["plot_as"]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return PlotStyle(s)
	}
	return def
}

func colorParam(p map[string]any, def PlotColor) PlotColor {
	v, ok := p["plot_color"]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return PlotColor(s)
	}
	return def
}

func capacityParam(p map[string]any) int {
	v, ok := p["capacity"]
	if !ok {
		return DefaultCapacity
	}
	if n, ok := v.(int); ok {
		return n
	}
	return DefaultCapacity
}
