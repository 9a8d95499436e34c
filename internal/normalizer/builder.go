package normalizer

import (
	"sort"
	"strings"

	"lumenwatch/internal/model"
)

// BuildResult is a merged product plus the inputs the validator needs.
type BuildResult struct {
	Product model.NormalizedProduct
	// Fields holds a parsed number, or the raw text when no number could be
	// extracted, for every numeric field that was present.
	Fields map[string]any
	// Unconverted lists fields whose unit could not be converted; their value
	// is kept in the source unit.
	Unconverted []model.MappedAttribute
}

// Builder merges mapped attributes into a NormalizedProduct.
type Builder struct {
	mapper    *Mapper
	converter *Converter
}

func NewBuilder(mapper *Mapper, converter *Converter) *Builder {
	return &Builder{mapper: mapper, converter: converter}
}

// Normalize maps a listing's spec bag and merges it.
func (b *Builder) Normalize(listing model.RawListing) BuildResult {
	return b.Build(listing, b.mapper.Map(listing.Specs))
}

// Build merges mapped attributes and the listing's identity and commercial fields.
func (b *Builder) Build(listing model.RawListing, mapped map[string]model.MappedAttribute) BuildResult {
	p := model.NormalizedProduct{
		Brand:        model.CleanName(listing.Brand),
		Model:        model.CleanName(listing.Model),
		Category:     strings.TrimSpace(listing.Category),
		SKU:          strings.TrimSpace(listing.SKU),
		ProductURL:   strings.TrimSpace(listing.ProductURL),
		SalesChannel: strings.TrimSpace(listing.SalesChannel),
		UseType:      strings.TrimSpace(listing.UseType),
	}
	res := BuildResult{Fields: make(map[string]any)}

	numeric := map[string]**float64{
		"lumens":     &p.Lumens,
		"watts":      &p.Watts,
		"efficiency": &p.Efficiency,
		"cct":        &p.CCT,
		"cri":        &p.CRI,
		"lifespan":   &p.Lifespan,
		"warranty":   &p.Warranty,
		"beam_angle": &p.BeamAngle,
		"weight":     &p.Weight,
	}

	for key, attr := range mapped {
		if IsRawKey(key) {
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[key] = attr.Value
			continue
		}

		if dst, ok := numeric[key]; ok {
			if attr.Value == "" {
				continue
			}
			q, ok := b.converter.ParseAndConvert(attr.Value, attr.Unit)
			if !ok {
				res.Fields[key] = attr.Value
				continue
			}
			if !strings.EqualFold(q.Unit, attr.Unit) {
				res.Unconverted = append(res.Unconverted, attr)
			}
			v := q.Value
			*dst = &v
			res.Fields[key] = v
			continue
		}

		switch key {
		case "ip_rating":
			p.IPRating = normalizeIPRating(attr.Value)
		case "voltage":
			p.Voltage = attr.Value
		case "dimming":
			p.Dimming = attr.Value
		}
	}

	if price := strings.TrimSpace(listing.Price); price != "" {
		if v, ok := ExtractNumeric(price); ok {
			v = Round(v, b.converter.Precision)
			p.Price = &v
			res.Fields["price"] = v
		} else {
			res.Fields["price"] = price
		}
	}

	sort.Slice(res.Unconverted, func(i, j int) bool {
		return res.Unconverted[i].StandardName < res.Unconverted[j].StandardName
	})
	res.Product = p
	return res
}

// DeriveEfficiency fills a missing efficiency from lumens and watts.
func DeriveEfficiency(p *model.NormalizedProduct) bool {
	if p.Efficiency != nil || p.Lumens == nil || p.Watts == nil {
		return false
	}
	eff, ok := Efficiency(*p.Lumens, *p.Watts)
	if !ok {
		return false
	}
	p.Efficiency = &eff
	return true
}

func normalizeIPRating(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
