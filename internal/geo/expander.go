// Package geo fans a product out into the regions its brand sells in.
package geo

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"lumenwatch/internal/model"
)

//go:embed brands.yaml
var defaultBrandsYAML []byte

var (
	ErrUnknownRegion = errors.New("unknown region code")
	ErrNoRegions     = errors.New("brand sells in no region")
)

// RegionList is either every region of a country (ALL) or an explicit list.
type RegionList struct {
	All   bool
	Codes []string
}

func (r *RegionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if !strings.EqualFold(strings.TrimSpace(node.Value), "ALL") {
			return fmt.Errorf("line %d: region list must be ALL or a sequence, got %q", node.Line, node.Value)
		}
		r.All = true
		return nil
	}
	return node.Decode(&r.Codes)
}

// BrandDistribution is one row of the brand table.
type BrandDistribution struct {
	Name              string     `yaml:"name"`
	HQCountry         string     `yaml:"hq_country"`
	SellsInUSA        bool       `yaml:"sells_in_usa"`
	USAStates         RegionList `yaml:"usa_states"`
	SellsInCanada     bool       `yaml:"sells_in_canada"`
	CanadianProvinces RegionList `yaml:"canadian_provinces"`
}

// fallbackDistribution applies to brands missing from the table.
var fallbackDistribution = BrandDistribution{
	Name:       "default",
	HQCountry:  CountryUSA,
	SellsInUSA: true,
	USAStates:  RegionList{All: true},
}

type Expander struct {
	brands map[string]BrandDistribution
}

var defaultExpander = sync.OnceValues(func() (*Expander, error) {
	return ParseBrands(defaultBrandsYAML)
})

// DefaultExpander returns the expander built from the embedded brand table.
func DefaultExpander() (*Expander, error) {
	return defaultExpander()
}

// LoadBrandsFile builds an expander from a YAML file in the brands.yaml format.
func LoadBrandsFile(path string) (*Expander, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brands file: %w", err)
	}
	return ParseBrands(data)
}

func ParseBrands(data []byte) (*Expander, error) {
	var doc struct {
		Brands []BrandDistribution `yaml:"brands"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode brands: %w", err)
	}
	return NewExpander(doc.Brands)
}

// NewExpander validates the table and indexes it by lower-cased brand name.
func NewExpander(brands []BrandDistribution) (*Expander, error) {
	e := &Expander{brands: make(map[string]BrandDistribution, len(brands))}
	for _, b := range brands {
		if err := validateBrand(b); err != nil {
			return nil, fmt.Errorf("brand %q: %w", b.Name, err)
		}
		e.brands[model.NameKey(b.Name)] = b
	}
	return e, nil
}

// Lookup returns the distribution for brand and whether it is configured.
func (e *Expander) Lookup(brand string) (BrandDistribution, bool) {
	b, ok := e.brands[model.NameKey(brand)]
	return b, ok
}

// Expand returns one variant per region the brand sells in, US states first.
// Unknown brands get every US state and no Canadian region.
func (e *Expander) Expand(brand string) []model.GeoVariant {
	b, ok := e.Lookup(brand)
	if !ok {
		b = fallbackDistribution
	}

	var out []model.GeoVariant
	if b.SellsInUSA {
		out = appendVariants(out, CountryUSA, b.USAStates)
	}
	if b.SellsInCanada {
		out = appendVariants(out, CountryCanada, b.CanadianProvinces)
	}
	return out
}

// ExpandWithHint narrows Expand using geo evidence from the listing itself.
// A recognized state or province yields exactly that region. A country alone
// yields the brand's regions in that country, or every region of the country
// when the brand has none configured there. Unrecognized hints are ignored.
func (e *Expander) ExpandWithHint(brand string, hint model.GeoHint) []model.GeoVariant {
	if hint.IsZero() {
		return e.Expand(brand)
	}

	country := NormalizeCountry(hint.Country)
	if region := NormalizeRegion(hint.StateProvince); region != "" {
		if rc := CountryForRegion(region); rc != "" {
			country = rc
		}
		return []model.GeoVariant{variant(region, country)}
	}
	if country == "" {
		return e.Expand(brand)
	}

	var out []model.GeoVariant
	for _, v := range e.Expand(brand) {
		if v.Country == country {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = appendVariants(nil, country, RegionList{All: true})
	}
	return out
}

func appendVariants(out []model.GeoVariant, country string, list RegionList) []model.GeoVariant {
	codes := list.Codes
	if list.All {
		codes = regionsFor(country)
	}
	for _, c := range codes {
		out = append(out, variant(strings.ToUpper(strings.TrimSpace(c)), country))
	}
	return out
}

func variant(region, country string) model.GeoVariant {
	return model.GeoVariant{
		StateProvince: region,
		Currency:      CurrencyFor(country),
		Country:       country,
	}
}

func validateBrand(b BrandDistribution) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("name is required")
	}
	if !b.SellsInUSA && !b.SellsInCanada {
		return ErrNoRegions
	}
	check := func(list RegionList, country string) error {
		for _, c := range list.Codes {
			if CountryForRegion(strings.ToUpper(strings.TrimSpace(c))) != country {
				return fmt.Errorf("%w: %q is not in %s", ErrUnknownRegion, c, country)
			}
		}
		return nil
	}
	if b.SellsInUSA {
		if !b.USAStates.All && len(b.USAStates.Codes) == 0 {
			return errors.New("sells_in_usa needs usa_states")
		}
		if err := check(b.USAStates, CountryUSA); err != nil {
			return err
		}
	}
	if b.SellsInCanada {
		if !b.CanadianProvinces.All && len(b.CanadianProvinces.Codes) == 0 {
			return errors.New("sells_in_canada needs canadian_provinces")
		}
		if err := check(b.CanadianProvinces, CountryCanada); err != nil {
			return err
		}
	}
	return nil
}
