package normalizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal places converted values keep.
const DefaultPrecision int32 = 2

var (
	numberPattern = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)`)
	unitPattern   = regexp.MustCompile(`^[A-Za-z°%µμ"'][A-Za-z°%µμ/²"'.]*`)
)

// Quantity is a parsed magnitude with the unit it is expressed in.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type conversionRule struct {
	source *regexp.Regexp
	target string
	factor float64
}

// conversionRules maps a source unit pattern to a canonical target unit.
// Factor-1 rules fold spelling variants onto the canonical unit.
var conversionRules = []conversionRule{
	{regexp.MustCompile(`(?i)^(w|watts?)$`), "W", 1},
	{regexp.MustCompile(`(?i)^kw$`), "W", 1000},
	{regexp.MustCompile(`(?i)^mw$`), "W", 0.001},

	{regexp.MustCompile(`(?i)^(lm|lumens?)$`), "lm", 1},
	{regexp.MustCompile(`(?i)^klm$`), "lm", 1000},
	{regexp.MustCompile(`(?i)^(lm/w|lpw|lumens?/watt)$`), "lm/W", 1},

	{regexp.MustCompile(`(?i)^(k|kelvin)$`), "K", 1},
	{regexp.MustCompile(`(?i)^(v|volts?|vac|vdc)$`), "V", 1},
	{regexp.MustCompile(`(?i)^(°|deg|degs|degrees?)$`), "deg", 1},

	{regexp.MustCompile(`(?i)^(h|hrs?|hours?)$`), "hours", 1},
	{regexp.MustCompile(`(?i)^(y|yrs?|years?)$`), "hours", 8760},
	{regexp.MustCompile(`(?i)^(mos?|months?)$`), "hours", 730},
	{regexp.MustCompile(`(?i)^days?$`), "hours", 24},

	{regexp.MustCompile(`(?i)^(y|yrs?|years?)$`), "years", 1},
	{regexp.MustCompile(`(?i)^(mos?|months?)$`), "years", 1.0 / 12},
	{regexp.MustCompile(`(?i)^(h|hrs?|hours?)$`), "years", 1.0 / 8760},

	{regexp.MustCompile(`(?i)^(kgs?|kilograms?)$`), "kg", 1},
	{regexp.MustCompile(`(?i)^(lbs?|pounds?)$`), "kg", 0.4536},
	{regexp.MustCompile(`(?i)^(g|grams?)$`), "kg", 0.001},
	{regexp.MustCompile(`(?i)^oz$`), "kg", 0.02835},

	{regexp.MustCompile(`(?i)^(mm|millimeters?|millimetres?)$`), "mm", 1},
	{regexp.MustCompile(`(?i)^(in|inch|inches|")$`), "mm", 25.4},
	{regexp.MustCompile(`(?i)^cm$`), "mm", 10},
	{regexp.MustCompile(`(?i)^(m|meters?|metres?)$`), "mm", 1000},
	{regexp.MustCompile(`(?i)^(ft|feet|foot|')$`), "mm", 304.8},
}

// Converter extracts and converts free-text measurements. Results are rounded
// to Precision decimal places.
type Converter struct {
	Precision int32
}

func NewConverter(precision int32) *Converter {
	return &Converter{Precision: precision}
}

var defaultConverter = NewConverter(DefaultPrecision)

// ExtractNumeric returns the first signed decimal number in text, ignoring
// thousands separators.
func ExtractNumeric(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	match := numberPattern.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractUnit returns the unit token that follows the first number in text,
// or "" for a bare number.
func ExtractUnit(text string) string {
	cleaned := strings.ReplaceAll(text, ",", "")
	loc := numberPattern.FindStringIndex(cleaned)
	if loc == nil {
		return ""
	}
	rest := strings.TrimLeft(cleaned[loc[1]:], " \t+~*-")
	unit := unitPattern.FindString(rest)
	return strings.TrimRight(unit, ".")
}

// ConvertUnit converts value between units using the rule table.
func ConvertUnit(value float64, sourceUnit, targetUnit string) (float64, bool) {
	return defaultConverter.ConvertUnit(value, sourceUnit, targetUnit)
}

// ParseAndConvert extracts a quantity from raw text and expresses it in targetUnit.
func ParseAndConvert(raw, targetUnit string) (Quantity, bool) {
	return defaultConverter.ParseAndConvert(raw, targetUnit)
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func (c *Converter) ConvertUnit(value float64, sourceUnit, targetUnit string) (float64, bool) {
	source := strings.TrimSpace(sourceUnit)
	target := strings.TrimSpace(targetUnit)

	if strings.EqualFold(source, target) {
		return Round(value, c.Precision), true
	}

	for _, rule := range conversionRules {
		if !strings.EqualFold(rule.target, target) {
			continue
		}
		if rule.source.MatchString(source) {
			converted := decimal.NewFromFloat(value).Mul(decimal.NewFromFloat(rule.factor))
			return converted.Round(c.Precision).InexactFloat64(), true
		}
	}
	return 0, false
}

// ParseAndConvert never rejects a number: a bare number is taken to be in
// targetUnit, and an unknown unit pair keeps the number in its source unit.
func (c *Converter) ParseAndConvert(raw, targetUnit string) (Quantity, bool) {
	value, ok := ExtractNumeric(raw)
	if !ok {
		return Quantity{}, false
	}

	unit := ExtractUnit(raw)
	if unit == "" {
		return Quantity{Value: Round(value, c.Precision), Unit: targetUnit}, true
	}

	if converted, ok := c.ConvertUnit(value, unit, targetUnit); ok {
		return Quantity{Value: converted, Unit: targetUnit}, true
	}
	return Quantity{Value: Round(value, c.Precision), Unit: unit}, true
}
