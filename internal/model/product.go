package model

import "time"

// RawListing is one scraped manufacturer listing before any normalization.
// Specs holds the attribute bag exactly as it appeared on the page.
type RawListing struct {
	ID           string            `json:"id"`
	Brand        string            `json:"brand"`
	Model        string            `json:"model"`
	Category     string            `json:"category,omitempty"`
	SKU          string            `json:"sku,omitempty"`
	ProductURL   string            `json:"product_url,omitempty"`
	Price        string            `json:"price,omitempty"`
	SalesChannel string            `json:"sales_channel,omitempty"`
	UseType      string            `json:"use_type,omitempty"`
	Specs        map[string]string `json:"specs"`
	GeoHint      GeoHint           `json:"geo_hint,omitempty"`
	Source       string            `json:"source,omitempty"`
	ScrapedAt    time.Time         `json:"scraped_at,omitempty"`
}

// GeoHint is region evidence taken from the listing page itself.
type GeoHint struct {
	Country       string `json:"country,omitempty"`
	StateProvince string `json:"state_province,omitempty"`
}

func (h GeoHint) IsZero() bool {
	return h.Country == "" && h.StateProvince == ""
}

// MappedAttribute is a raw attribute resolved against the synonym table.
type MappedAttribute struct {
	StandardName string `json:"standard_name"`
	Value        string `json:"value"`
	Unit         string `json:"unit"`
	SourceField  string `json:"source_field"`
}

// NormalizedProduct is the canonical product record. Nil numeric fields are absent.
type NormalizedProduct struct {
	ID         string `json:"id,omitempty"`
	BrandID    string `json:"brand_id,omitempty"`
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Category   string `json:"category,omitempty"`
	SKU        string `json:"sku,omitempty"`
	ProductURL string `json:"product_url,omitempty"`

	Watts      *float64 `json:"watts,omitempty"`
	Lumens     *float64 `json:"lumens,omitempty"`
	CCT        *float64 `json:"cct,omitempty"`
	CRI        *float64 `json:"cri,omitempty"`
	Lifespan   *float64 `json:"lifespan,omitempty"`
	Warranty   *float64 `json:"warranty,omitempty"`
	Efficiency *float64 `json:"efficiency,omitempty"`
	BeamAngle  *float64 `json:"beam_angle,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
	IPRating   string   `json:"ip_rating,omitempty"`
	Voltage    string   `json:"voltage,omitempty"`
	Dimming    string   `json:"dimming,omitempty"`

	Price         *float64 `json:"price,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	StateProvince string   `json:"state_province,omitempty"`
	Country       string   `json:"country,omitempty"`
	SalesChannel  string   `json:"sales_channel,omitempty"`
	UseType       string   `json:"use_type,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// ProductRecord is a persisted per-region product row.
type ProductRecord struct {
	NormalizedProduct
	SpecHash      string    `json:"spec_hash"`
	LastScrapedAt time.Time `json:"last_scraped_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// SpecSnapshot is the canonical projection used for change detection.
// Values are string or float64; absent fields have no key.
type SpecSnapshot map[string]any

// ProductVersion is an immutable point in a product's spec history.
type ProductVersion struct {
	ID            string       `json:"id"`
	ProductID     string       `json:"product_id"`
	VersionNumber int          `json:"version_number"`
	Snapshot      SpecSnapshot `json:"snapshot"`
	SpecHash      string       `json:"spec_hash"`
	ChangeSummary string       `json:"change_summary"`
	CapturedAt    time.Time    `json:"captured_at"`
}

// ChangeLogEntry records one differing field between two snapshots.
// A nil OldValue or NewValue means the field was absent on that side.
type ChangeLogEntry struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	ProductVersionID string    `json:"product_version_id,omitempty"`
	FieldName        string    `json:"field_name"`
	OldValue         *string   `json:"old_value"`
	NewValue         *string   `json:"new_value"`
	DetectedAt       time.Time `json:"detected_at"`
}

// GeoVariant is the expansion key for one regional product row.
type GeoVariant struct {
	StateProvince string `json:"state_province"`
	Currency      string `json:"currency"`
	Country       string `json:"country"`
}
