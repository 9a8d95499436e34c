package normalizer

import (
	"strings"
	"testing"
)

func TestValidator_RequiredFieldGate(t *testing.T) {
	v := NewValidator(nil, DefaultEfficiencyTolerance)

	res := v.Validate(map[string]any{"lumens": 4500.0})
	if res.Valid {
		t.Fatal("record missing watts must be invalid")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if !strings.Contains(res.Errors[0].Error(), "watts") {
		t.Errorf("error %q does not mention watts", res.Errors[0].Error())
	}
}

func TestValidator_OutOfRangeIsWarning(t *testing.T) {
	v := NewValidator(nil, DefaultEfficiencyTolerance)

	res := v.Validate(map[string]any{"watts": 5000.0, "lumens": 4500.0})
	if !res.Valid {
		t.Fatalf("out-of-range value must not reject: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Field != "watts" {
		t.Fatalf("warnings = %v, want one for watts", res.Warnings)
	}
}

func TestValidator_Cases(t *testing.T) {
	v := NewValidator(nil, DefaultEfficiencyTolerance)

	tests := []struct {
		name         string
		fields       map[string]any
		wantValid    bool
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name:      "clean record",
			fields:    map[string]any{"watts": 40.0, "lumens": 4800.0, "efficiency": 120.0, "cct": 4000.0, "cri": 80.0},
			wantValid: true,
		},
		{
			name:      "missing optional fields are skipped",
			fields:    map[string]any{"watts": 40.0, "lumens": 4800.0, "cct": nil, "price": ""},
			wantValid: true,
		},
		{
			name:         "non-numeric value warns",
			fields:       map[string]any{"watts": 40.0, "lumens": 4800.0, "cri": "high"},
			wantValid:    true,
			wantWarnings: []string{"cri"},
		},
		{
			name:      "numeric text accepted",
			fields:    map[string]any{"watts": "40", "lumens": " 4800 "},
			wantValid: true,
		},
		{
			name:         "efficiency mismatch warns",
			fields:       map[string]any{"watts": 40.0, "lumens": 4800.0, "efficiency": 140.0},
			wantValid:    true,
			wantWarnings: []string{"efficiency"},
		},
		{
			name:      "efficiency within tolerance",
			fields:    map[string]any{"watts": 40.0, "lumens": 4800.0, "efficiency": 124.9},
			wantValid: true,
		},
		{
			name:       "non-numeric required field counts as missing",
			fields:     map[string]any{"watts": "about forty", "lumens": 4800.0},
			wantValid:  false,
			wantErrors: []string{"watts"},
		},
		{
			name:       "both required missing",
			fields:     map[string]any{},
			wantValid:  false,
			wantErrors: []string{"watts", "lumens"},
		},
		{
			name:         "out of range price",
			fields:       map[string]any{"watts": 40, "lumens": 4800, "price": -3.0},
			wantValid:    true,
			wantWarnings: []string{"price"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.fields)
			if res.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors %v)", res.Valid, tt.wantValid, res.Errors)
			}
			if tt.wantErrors != nil {
				if len(res.Errors) != len(tt.wantErrors) {
					t.Fatalf("errors = %v, want fields %v", res.Errors, tt.wantErrors)
				}
				for i, f := range tt.wantErrors {
					if res.Errors[i].Field != f {
						t.Errorf("error[%d].Field = %q, want %q", i, res.Errors[i].Field, f)
					}
				}
			}
			if len(res.Warnings) != len(tt.wantWarnings) {
				t.Fatalf("warnings = %v, want fields %v", res.Warnings, tt.wantWarnings)
			}
			for i, f := range tt.wantWarnings {
				if res.Warnings[i].Field != f {
					t.Errorf("warning[%d].Field = %q, want %q", i, res.Warnings[i].Field, f)
				}
			}
		})
	}
}

func TestValidator_ConfigurableTolerance(t *testing.T) {
	fields := map[string]any{"watts": 40.0, "lumens": 4800.0, "efficiency": 128.0}

	if res := NewValidator(nil, 5).Validate(fields); len(res.Warnings) != 1 {
		t.Errorf("tolerance 5: warnings = %v, want 1", res.Warnings)
	}
	if res := NewValidator(nil, 10).Validate(fields); len(res.Warnings) != 0 {
		t.Errorf("tolerance 10: warnings = %v, want none", res.Warnings)
	}
}

func TestEfficiency(t *testing.T) {
	if got, ok := Efficiency(4500, 37); !ok || got != 121.6 {
		t.Errorf("Efficiency(4500, 37) = %v, %v; want 121.6, true", got, ok)
	}
	if _, ok := Efficiency(4500, 0); ok {
		t.Error("Efficiency with zero watts must fail")
	}
}
