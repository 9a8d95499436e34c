package normalizer

// validator.go range-checks normalized numeric fields.
//
// Only Errors gate persistence: a required field that is absent, empty or
// has no number. Warnings flag values for review: out-of-range numbers,
// optional fields whose text does not parse as a number, and a stated
// efficiency that disagrees with lumens/watts.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultEfficiencyTolerance is the allowed gap in lm/W between stated and computed efficiency.
const DefaultEfficiencyTolerance = 5.0

// Rule bounds one numeric field.
type Rule struct {
	Field    string
	Min      float64
	Max      float64
	Required bool
}

// DefaultRules covers the core numeric fields of a lighting product.
var DefaultRules = []Rule{
	{Field: "watts", Min: 1, Max: 2000, Required: true},
	{Field: "lumens", Min: 1, Max: 300000, Required: true},
	{Field: "efficiency", Min: 1, Max: 300},
	{Field: "cct", Min: 1000, Max: 10000},
	{Field: "cri", Min: 0, Max: 100},
	{Field: "lifespan", Min: 1000, Max: 500000},
	{Field: "warranty", Min: 0, Max: 30},
	{Field: "price", Min: 0, Max: 1000000},
}

// ValidationIssue is a single error or warning about a field.
type ValidationIssue struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationIssue) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult is the outcome of validating one product.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// Validator checks normalized values against a rule table.
type Validator struct {
	rules               []Rule
	efficiencyTolerance float64
}

func NewValidator(rules []Rule, efficiencyTolerance float64) *Validator {
	if rules == nil {
		rules = DefaultRules
	}
	return &Validator{
		rules:               append([]Rule(nil), rules...),
		efficiencyTolerance: efficiencyTolerance,
	}
}

// Validate checks fields, where each value is a number, numeric text, raw
// text or nil. A nil or empty value counts as missing.
func (v *Validator) Validate(fields map[string]any) ValidationResult {
	result := ValidationResult{Valid: true}
	parsed := make(map[string]float64, len(v.rules))

	for _, rule := range v.rules {
		raw, present := fields[rule.Field]
		if present && isEmpty(raw) {
			present = false
		}

		if !present {
			if rule.Required {
				result.Valid = false
				result.Errors = append(result.Errors, ValidationIssue{
					Field:   rule.Field,
					Message: "required field is missing",
				})
			}
			continue
		}

		n, ok := toFloat(raw)
		if !ok && rule.Required {
			// text with no number counts as missing
			result.Valid = false
			result.Errors = append(result.Errors, ValidationIssue{
				Field:   rule.Field,
				Value:   fmt.Sprint(raw),
				Message: "required field is missing: value is not numeric",
			})
			continue
		}
		if !ok {
			result.Warnings = append(result.Warnings, ValidationIssue{
				Field:   rule.Field,
				Value:   fmt.Sprint(raw),
				Message: "value is not numeric",
			})
			continue
		}
		parsed[rule.Field] = n

		if n < rule.Min || n > rule.Max {
			result.Warnings = append(result.Warnings, ValidationIssue{
				Field:   rule.Field,
				Value:   formatFloat(n),
				Message: fmt.Sprintf("outside expected range [%s, %s]", formatFloat(rule.Min), formatFloat(rule.Max)),
			})
		}
	}

	if issue, ok := v.checkEfficiency(parsed); ok {
		result.Warnings = append(result.Warnings, issue)
	}

	return result
}

func (v *Validator) checkEfficiency(parsed map[string]float64) (ValidationIssue, bool) {
	watts, hasWatts := parsed["watts"]
	lumens, hasLumens := parsed["lumens"]
	stated, hasStated := parsed["efficiency"]
	if !hasWatts || !hasLumens || !hasStated || watts <= 0 || lumens <= 0 {
		return ValidationIssue{}, false
	}

	calculated := Round(lumens/watts, 1)
	if math.Abs(stated-calculated) <= v.efficiencyTolerance {
		return ValidationIssue{}, false
	}
	return ValidationIssue{
		Field: "efficiency",
		Value: formatFloat(stated),
		Message: fmt.Sprintf("stated efficiency differs from lumens/watts (%s lm/W) by more than %s lm/W",
			formatFloat(calculated), formatFloat(v.efficiencyTolerance)),
	}, true
}

// Efficiency derives lm/W from lumens and watts, rounded to one decimal.
func Efficiency(lumens, watts float64) (float64, bool) {
	if lumens <= 0 || watts <= 0 {
		return 0, false
	}
	return Round(lumens/watts, 1), true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *float64:
		return t == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case *float64:
		return *t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
