package geo

import (
	"slices"
	"strings"
)

const (
	CountryUSA    = "USA"
	CountryCanada = "Canada"

	CurrencyUSD = "USD"
	CurrencyCAD = "CAD"
)

// usStates maps US state full names to their abbreviations.
var usStates = map[string]string{
	"alabama":        "AL",
	"alaska":         "AK",
	"arizona":        "AZ",
	"arkansas":       "AR",
	"california":     "CA",
	"colorado":       "CO",
	"connecticut":    "CT",
	"delaware":       "DE",
	"florida":        "FL",
	"georgia":        "GA",
	"hawaii":         "HI",
	"idaho":          "ID",
	"illinois":       "IL",
	"indiana":        "IN",
	"iowa":           "IA",
	"kansas":         "KS",
	"kentucky":       "KY",
	"louisiana":      "LA",
	"maine":          "ME",
	"maryland":       "MD",
	"massachusetts":  "MA",
	"michigan":       "MI",
	"minnesota":      "MN",
	"mississippi":    "MS",
	"missouri":       "MO",
	"montana":        "MT",
	"nebraska":       "NE",
	"nevada":         "NV",
	"new hampshire":  "NH",
	"new jersey":     "NJ",
	"new mexico":     "NM",
	"new york":       "NY",
	"north carolina": "NC",
	"north dakota":   "ND",
	"ohio":           "OH",
	"oklahoma":       "OK",
	"oregon":         "OR",
	"pennsylvania":   "PA",
	"rhode island":   "RI",
	"south carolina": "SC",
	"south dakota":   "SD",
	"tennessee":      "TN",
	"texas":          "TX",
	"utah":           "UT",
	"vermont":        "VT",
	"virginia":       "VA",
	"washington":     "WA",
	"west virginia":  "WV",
	"wisconsin":      "WI",
	"wyoming":        "WY",
}

// canadianProvinces maps province and territory names to their abbreviations.
var canadianProvinces = map[string]string{
	"alberta":                   "AB",
	"british columbia":          "BC",
	"manitoba":                  "MB",
	"new brunswick":             "NB",
	"newfoundland and labrador": "NL",
	"nova scotia":               "NS",
	"northwest territories":     "NT",
	"nunavut":                   "NU",
	"ontario":                   "ON",
	"prince edward island":      "PE",
	"quebec":                    "QC",
	"saskatchewan":              "SK",
	"yukon":                     "YT",
}

var (
	usStateCodes          = sortedCodes(usStates)
	canadianProvinceCodes = sortedCodes(canadianProvinces)
)

// USStates returns the 50 state codes in alphabetical order.
func USStates() []string {
	return slices.Clone(usStateCodes)
}

// CanadianProvinces returns the 13 province and territory codes in alphabetical order.
func CanadianProvinces() []string {
	return slices.Clone(canadianProvinceCodes)
}

// NormalizeRegion converts a state or province name or code to its
// 2-letter code. Unrecognized input returns "".
func NormalizeRegion(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(strings.Join(strings.Fields(s), " "))

	if code, ok := usStates[lower]; ok {
		return code
	}
	if code, ok := canadianProvinces[lower]; ok {
		return code
	}

	upper := strings.ToUpper(s)
	if _, ok := slices.BinarySearch(usStateCodes, upper); ok {
		return upper
	}
	if _, ok := slices.BinarySearch(canadianProvinceCodes, upper); ok {
		return upper
	}
	return ""
}

// CountryForRegion returns the country a region code belongs to, or "".
func CountryForRegion(code string) string {
	if _, ok := slices.BinarySearch(usStateCodes, code); ok {
		return CountryUSA
	}
	if _, ok := slices.BinarySearch(canadianProvinceCodes, code); ok {
		return CountryCanada
	}
	return ""
}

// NormalizeCountry accepts common spellings of the two supported countries.
// The input is a country field, so "CA" means Canada here.
func NormalizeCountry(s string) string {
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "usa", "us", "u.s.", "u.s.a.", "united states", "united states of america", "america":
		return CountryUSA
	case "canada", "ca", "can":
		return CountryCanada
	}
	return ""
}

// CurrencyFor returns the currency prices are quoted in for a country.
func CurrencyFor(country string) string {
	if country == CountryCanada {
		return CurrencyCAD
	}
	return CurrencyUSD
}

func regionsFor(country string) []string {
	if country == CountryCanada {
		return canadianProvinceCodes
	}
	return usStateCodes
}

func sortedCodes(m map[string]string) []string {
	codes := make([]string, 0, len(m))
	for _, c := range m {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}
