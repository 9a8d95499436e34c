package crawler

import (
	"html"
	"regexp"
	"strings"
	"time"

	"lumenwatch/internal/model"
)

// SourceAPI tags listings read from catalog APIs.
const SourceAPI = "api"

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	breakPattern = regexp.MustCompile(`(?i)<br\s*/?>|</(p|li|div|tr)>`)
)

func stripHTML(s string) string {
	s = breakPattern.ReplaceAllString(s, "\n")
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

// parseSpecLines reads "Key: Value" lines. Lines without a colon, or with an
// empty side, are ignored.
func parseSpecLines(text string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k, v = cleanText(k), cleanText(v)
		if k == "" || v == "" {
			continue
		}
		if _, dup := out[k]; !dup {
			out[k] = v
		}
	}
	return out
}

// ToRawListing converts a catalog item. Structured specifications take
// precedence over lines found in the descriptions. Model falls back to the
// display name and the URL to baseURL joined with the item route.
func (item CatalogItem) ToRawListing(baseURL string) model.RawListing {
	l := model.RawListing{
		Brand:        cleanText(item.Brand),
		Model:        cleanText(item.Model),
		SKU:          cleanText(item.SKU),
		Category:     cleanText(item.Category),
		ProductURL:   strings.TrimSpace(item.URL),
		Price:        strings.TrimSpace(string(item.ListPrice)),
		SalesChannel: cleanText(item.SalesChannel),
		UseType:      cleanText(item.UseType),
		GeoHint:      ParseGeoRegion(item.Region),
		Source:       SourceAPI,
		Specs:        map[string]string{},
		ScrapedAt:    time.Now().UTC(),
	}
	if l.Model == "" {
		l.Model = cleanText(item.DisplayName)
	}
	if l.SKU == "" {
		l.SKU = strings.TrimSpace(item.ID)
	}
	if l.ProductURL == "" && item.Route != "" {
		l.ProductURL = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(item.Route, "/")
	}

	for k, v := range item.Specifications {
		addSpec(l.Specs, k, v)
	}
	for _, desc := range []string{item.LongDescription, item.Description} {
		for k, v := range parseSpecLines(stripHTML(desc)) {
			addSpec(l.Specs, k, v)
		}
	}
	return l
}
