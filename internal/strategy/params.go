package strategy

import "fmt"

// ParamType names the kind of value a parameter holds. Exposed so an
// external dashboard can introspect a strategy's parameter schema as data
// rather than by runtime attribute discovery (spec.md §9 design note).
type ParamType string

const (
	ParamInt    ParamType = "INT"
	ParamFloat  ParamType = "FLOAT"
	ParamString ParamType = "STRING"
	ParamBool   ParamType = "BOOL"
	ParamChoice ParamType = "CHOICE"
)

// ParamSpec describes one configurable parameter: its default, optional
// bounds/step, and (for ParamChoice) the allowed values (spec.md §4.4
// "parameter schema").
type ParamSpec struct {
	Type    ParamType
	Default any
	Min     *float64
	Max     *float64
	Step    *float64
	Choices []any
}

// resolveParams merges overrides onto schema defaults, validating bounds and
// choice membership. Parameters absent from overrides take their default.
func resolveParams(schema map[string]ParamSpec, overrides map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(schema))
	for name, spec := range schema {
		v, overridden := overrides[name]
		if !overridden {
			v = spec.Default
		}
		if err := validateParam(name, spec, v); err != nil {
			return nil, err
		}
		resolved[name] = v
	}
	for name := range overrides {
		if _, known := schema[name]; !known {
			return nil, fmt.Errorf("strategy: unknown parameter %q", name)
		}
	}
	return resolved, nil
}

func validateParam(name string, spec ParamSpec, v any) error {
	if spec.Type == ParamChoice && len(spec.Choices) > 0 {
		for _, c := range spec.Choices {
			if c == v {
				return nil
			}
		}
		return fmt.Errorf("strategy: parameter %q value %v is not among choices %v", name, v, spec.Choices)
	}

	n, isNumeric := asFloat(v)
	if !isNumeric {
		return nil
	}
	if spec.Min != nil && n < *spec.Min {
		return fmt.Errorf("strategy: parameter %q value %v is below min %v", name, v, *spec.Min)
	}
	if spec.Max != nil && n > *spec.Max {
		return fmt.Errorf("strategy: parameter %q value %v is above max %v", name, v, *spec.Max)
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
