package normalizer

import (
	"testing"

	"lumenwatch/internal/model"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(mustMapper(t), NewConverter(DefaultPrecision))
}

func TestBuilder_Normalize(t *testing.T) {
	b := newTestBuilder(t)

	listing := model.RawListing{
		Brand:   " Acuity Brands ",
		Model:   "CPX 2x4",
		SKU:     "CPX-24-40L",
		Price:   "$1,150.00",
		UseType: "commercial",
		Specs: map[string]string{
			"Luminous Flux":     "4,500 lm",
			"Wattage":           "0.037 kW",
			"Color Temperature": "4000K",
			"CRI":               "80 Ra",
			"Rated Life":        "50,000 hrs",
			"Warranty":          "5 years",
			"IP Rating":         "ip 65",
			"Input Voltage":     "120-277V",
			"Dimmable":          "0-10V",
			"Mounting":          "Recessed",
		},
	}

	res := b.Normalize(listing)
	p := res.Product

	checks := []struct {
		name string
		got  *float64
		want float64
	}{
		{"lumens", p.Lumens, 4500},
		{"watts", p.Watts, 37},
		{"cct", p.CCT, 4000},
		{"cri", p.CRI, 80},
		{"lifespan", p.Lifespan, 50000},
		{"warranty", p.Warranty, 5},
		{"price", p.Price, 1150},
	}
	for _, c := range checks {
		if c.got == nil {
			t.Errorf("%s is nil", c.name)
			continue
		}
		if *c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, *c.got, c.want)
		}
	}

	if p.Brand != "Acuity Brands" || p.Model != "CPX 2x4" {
		t.Errorf("identity = %q/%q", p.Brand, p.Model)
	}
	if p.IPRating != "IP65" {
		t.Errorf("IPRating = %q, want IP65", p.IPRating)
	}
	if p.Voltage != "120-277V" || p.Dimming != "0-10V" {
		t.Errorf("voltage/dimming = %q/%q", p.Voltage, p.Dimming)
	}
	if p.Extra["raw_mounting"] != "Recessed" {
		t.Errorf("Extra = %v, want raw_mounting", p.Extra)
	}
	if p.Efficiency != nil {
		t.Errorf("efficiency should stay unset until derived, got %v", *p.Efficiency)
	}

	if res.Fields["watts"] != 37.0 || res.Fields["price"] != 1150.0 {
		t.Errorf("validation fields = %v", res.Fields)
	}

	if len(res.Unconverted) != 1 || res.Unconverted[0].StandardName != "cri" {
		t.Errorf("unconverted = %v, want only cri (Ra suffix)", res.Unconverted)
	}
}

func TestBuilder_UnparseableRequiredValueRejected(t *testing.T) {
	b := newTestBuilder(t)

	res := b.Normalize(model.RawListing{
		Brand: "X",
		Model: "Y",
		Price: "call for pricing",
		Specs: map[string]string{"Wattage": "varies", "Lumens": "5000"},
	})

	if res.Product.Watts != nil {
		t.Errorf("Watts = %v, want nil", *res.Product.Watts)
	}
	if res.Fields["watts"] != "varies" {
		t.Errorf("Fields[watts] = %v, want raw text", res.Fields["watts"])
	}
	if res.Fields["price"] != "call for pricing" {
		t.Errorf("Fields[price] = %v, want raw text", res.Fields["price"])
	}

	v := NewValidator(nil, DefaultEfficiencyTolerance)
	vr := v.Validate(res.Fields)
	if vr.Valid {
		t.Fatal("watts with no number must reject the listing")
	}
	if len(vr.Errors) != 1 || vr.Errors[0].Field != "watts" {
		t.Errorf("errors = %v, want only watts", vr.Errors)
	}
	if len(vr.Warnings) != 1 || vr.Warnings[0].Field != "price" {
		t.Errorf("warnings = %v, want only price", vr.Warnings)
	}
}

func TestBuilder_CanonicalBrandAndModel(t *testing.T) {
	b := newTestBuilder(t)

	res := b.Normalize(model.RawListing{
		Brand: "  Signify\tNorth  America ",
		Model: "Gen4  LED\n2x4",
		Specs: map[string]string{"Wattage": "40 W", "Luminous Flux": "4,800 lm"},
	})
	if res.Product.Brand != "Signify North America" {
		t.Errorf("brand = %q", res.Product.Brand)
	}
	if res.Product.Model != "Gen4 LED 2x4" {
		t.Errorf("model = %q", res.Product.Model)
	}
}

func TestDeriveEfficiency(t *testing.T) {
	lumens, watts := 4800.0, 40.0
	p := model.NormalizedProduct{Lumens: &lumens, Watts: &watts}

	if !DeriveEfficiency(&p) {
		t.Fatal("DeriveEfficiency returned false")
	}
	if *p.Efficiency != 120 {
		t.Errorf("Efficiency = %v, want 120", *p.Efficiency)
	}

	stated := 99.0
	p.Efficiency = &stated
	if DeriveEfficiency(&p) {
		t.Error("stated efficiency must not be overwritten")
	}
}
