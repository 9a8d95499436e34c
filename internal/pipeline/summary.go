package pipeline

import "time"

// BrandSummary counts one brand's run. Found counts listings; New, Changed
// and Unchanged count region rows; Errors counts rejected listings plus
// failed region rows.
type BrandSummary struct {
	Brand     string `json:"brand"`
	Found     int    `json:"found"`
	New       int    `json:"new"`
	Changed   int    `json:"changed"`
	Unchanged int    `json:"unchanged"`
	Warnings  int    `json:"warnings"`
	Errors    int    `json:"errors"`
	Skipped   int    `json:"skipped,omitempty"`
}

type RunSummary struct {
	Brands    []BrandSummary `json:"brands"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Totals sums every brand.
func (r RunSummary) Totals() BrandSummary {
	t := BrandSummary{Brand: "TOTAL"}
	for _, b := range r.Brands {
		t.Found += b.Found
		t.New += b.New
		t.Changed += b.Changed
		t.Unchanged += b.Unchanged
		t.Warnings += b.Warnings
		t.Errors += b.Errors
		t.Skipped += b.Skipped
	}
	return t
}

// Brand returns the summary for brand, if it ran.
func (r RunSummary) Brand(brand string) (BrandSummary, bool) {
	for _, b := range r.Brands {
		if b.Brand == brand {
			return b, true
		}
	}
	return BrandSummary{}, false
}
