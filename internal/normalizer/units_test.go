package normalizer

import "testing"

func TestExtractNumeric(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"4,500 lm", 4500, true},
		{"1,234,567", 1234567, true},
		{"-12.5 C", -12.5, true},
		{"approx. .5 kg", 0.5, true},
		{"100-277V", 100, true},
		{"CRI 90+", 90, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractNumeric(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractNumeric(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractUnit(t *testing.T) {
	tests := map[string]string{
		"4500 lm":        "lm",
		"2 years":        "years",
		"3000K":          "K",
		"120 lm/W":       "lm/W",
		"17 lbs.":        "lbs",
		"12\"":           "\"",
		"4500":           "",
		"80+ CRI":        "CRI",
		"5 year limited": "year",
		"10-year":        "year",
		"120-277V":       "",
		"no number":      "",
	}
	for in, want := range tests {
		if got := ExtractUnit(in); got != want {
			t.Errorf("ExtractUnit(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConvertUnit(t *testing.T) {
	tests := []struct {
		value    float64
		from, to string
		want     float64
		wantOK   bool
	}{
		{1.5, "kW", "W", 1500, true},
		{2, "years", "hours", 17520, true},
		{10, "lb", "kg", 4.54, true},
		{12, "in", "mm", 304.8, true},
		{60, "months", "years", 5, true},
		{50000, "hrs", "hours", 50000, true},
		{3.14159, "LM", "lm", 3.14, true},
		{5, "furlongs", "mm", 0, false},
		{5, "W", "kg", 0, false},
	}
	for _, tt := range tests {
		got, ok := ConvertUnit(tt.value, tt.from, tt.to)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ConvertUnit(%v, %q, %q) = %v, %v; want %v, %v",
				tt.value, tt.from, tt.to, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseAndConvert(t *testing.T) {
	tests := []struct {
		raw    string
		target string
		want   Quantity
		wantOK bool
	}{
		{"4,500 lm", "lm", Quantity{Value: 4500, Unit: "lm"}, true},
		{"2 years", "hours", Quantity{Value: 17520, Unit: "hours"}, true},
		{"10-year", "hours", Quantity{Value: 87600, Unit: "hours"}, true},
		{"5-year limited", "years", Quantity{Value: 5, Unit: "years"}, true},
		{"4500", "lm", Quantity{Value: 4500, Unit: "lm"}, true},
		{"0.15 kW", "W", Quantity{Value: 150, Unit: "W"}, true},
		{"35 widgets", "W", Quantity{Value: 35, Unit: "widgets"}, true},
		{"tbd", "W", Quantity{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseAndConvert(tt.raw, tt.target)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseAndConvert(%q, %q) = %+v, %v; want %+v, %v",
				tt.raw, tt.target, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestConverter_Precision(t *testing.T) {
	c := NewConverter(0)
	got, ok := c.ConvertUnit(10, "lb", "kg")
	if !ok || got != 5 {
		t.Fatalf("ConvertUnit with precision 0 = %v, %v; want 5, true", got, ok)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   float64
	}{
		{1.005, 2, 1.01},
		{2.345, 2, 2.35},
		{-2.345, 2, -2.35},
		{150, 2, 150},
		{120.04, 1, 120},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}
