package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// ValidationError collects every missing/invalid field for one resolution
// attempt, rendered as a human-readable explanation.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "parameter validation failed: " + strings.Join(e.Reasons, "; ")
}

// Validate checks params against tpl's declared ParameterSpecs: every
// required parameter must be present, and every value must satisfy its
// type and ValidationRules. Returns nil only when every parameter is
// resolvable and valid; the template must not be executed otherwise.
func Validate(tpl gatewaytypes.Template, params map[string]any) error {
	var reasons []string

	for _, spec := range tpl.Parameters {
		v, present := params[spec.Name]
		if !present {
			if spec.Required {
				reasons = append(reasons, fmt.Sprintf("%q is required but was not found", spec.Name))
			}
			continue
		}
		if err := validateValue(spec, v); err != nil {
			reasons = append(reasons, fmt.Sprintf("%q: %v", spec.Name, err))
		}
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

func validateValue(spec gatewaytypes.ParameterSpec, v any) error {
	if err := validateType(spec.Type, v); err != nil {
		return err
	}
	if len(spec.AllowedValues) > 0 {
		s := fmt.Sprint(v)
		found := false
		for _, allowed := range spec.AllowedValues {
			if strings.EqualFold(allowed, s) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %v is not one of %v", v, spec.AllowedValues)
		}
	}
	if spec.ValidationRules != nil {
		return validateRules(*spec.ValidationRules, v)
	}
	return nil
}

func validateType(t gatewaytypes.ParameterType, v any) error {
	switch t {
	case gatewaytypes.ParamInteger:
		switch v.(type) {
		case int, int32, int64, float64: // JSON numbers decode as float64
			return nil
		case string:
			if _, err := strconv.Atoi(v.(string)); err == nil {
				return nil
			}
		}
		return fmt.Errorf("expected integer, got %T", v)
	case gatewaytypes.ParamNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return nil
		case string:
			if _, err := strconv.ParseFloat(v.(string), 64); err == nil {
				return nil
			}
		}
		return fmt.Errorf("expected number, got %T", v)
	case gatewaytypes.ParamBoolean:
		if _, ok := v.(bool); ok {
			return nil
		}
		return fmt.Errorf("expected boolean, got %T", v)
	case gatewaytypes.ParamString, gatewaytypes.ParamDate:
		if _, ok := v.(string); ok {
			return nil
		}
		// dates extracted as named-period day counts come through as int;
		// accept any scalar as a renderable string value.
		switch v.(type) {
		case int, int32, int64, float64:
			return nil
		}
		return fmt.Errorf("expected string, got %T", v)
	case gatewaytypes.ParamArray:
		switch v.(type) {
		case []any, []string:
			return nil
		}
		return fmt.Errorf("expected array, got %T", v)
	}
	return nil
}

func validateRules(rules gatewaytypes.ValidationRules, v any) error {
	if num, ok := asFloat(v); ok {
		if rules.Min != nil && num < *rules.Min {
			return fmt.Errorf("value %v is below minimum %v", v, *rules.Min)
		}
		if rules.Max != nil && num > *rules.Max {
			return fmt.Errorf("value %v is above maximum %v", v, *rules.Max)
		}
	}
	if s, ok := v.(string); ok {
		if rules.Length != nil && len(s) != *rules.Length {
			return fmt.Errorf("value %q has length %d, expected %d", s, len(s), *rules.Length)
		}
		if rules.Pattern != "" {
			re, err := regexp.Compile(rules.Pattern)
			if err != nil {
				return fmt.Errorf("invalid validation pattern %q: %w", rules.Pattern, err)
			}
			if !re.MatchString(s) {
				return fmt.Errorf("value %q does not match pattern %q", s, rules.Pattern)
			}
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
