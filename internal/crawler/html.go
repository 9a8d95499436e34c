package crawler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lumenwatch/internal/geo"
	"lumenwatch/internal/model"
)

// SourceHTML tags listings parsed from product pages.
const SourceHTML = "html"

var ErrNoModel = errors.New("crawler: listing has no model")

// ParseListingPage extracts one listing from a manufacturer product page.
// Identity comes from schema.org microdata or Open Graph product meta tags,
// with the first h1 as the model fallback. Specs are collected from
// two-column table rows, dt/dd pairs and "Key: Value" list items inside spec
// sections. The first occurrence of a key wins.
func ParseListingPage(html, pageURL string) (model.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.RawListing{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	l := model.RawListing{
		ProductURL: pageURL,
		Source:     SourceHTML,
		Specs:      map[string]string{},
		ScrapedAt:  time.Now().UTC(),
	}

	l.Model = first(doc, `[itemprop="model"]`, `meta[property="product:model"]`)
	if l.Model == "" {
		l.Model = cleanText(doc.Find("h1").First().Text())
	}
	l.Brand = first(doc, `meta[property="product:brand"]`, `[itemprop="brand"] [itemprop="name"]`, `[itemprop="brand"]`)
	l.SKU = first(doc, `[itemprop="sku"]`, `meta[property="product:retailer_item_id"]`)
	l.Price = first(doc, `[itemprop="price"]`, `meta[property="product:price:amount"]`)
	l.Category = first(doc, `meta[property="product:category"]`, `[itemprop="category"]`)
	l.SalesChannel = first(doc, `meta[name="sales-channel"]`)
	l.UseType = first(doc, `meta[name="use-type"]`)
	l.GeoHint = ParseGeoRegion(first(doc, `meta[name="geo.region"]`))
	if l.GeoHint.Country == "" {
		l.GeoHint.Country = geo.NormalizeCountry(first(doc, `meta[name="geo.country"]`))
	}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("th, td")
		if cells.Length() != 2 {
			return
		}
		addSpec(l.Specs, cells.Eq(0).Text(), cells.Eq(1).Text())
	})

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		var key string
		dl.Children().Each(func(_ int, s *goquery.Selection) {
			switch goquery.NodeName(s) {
			case "dt":
				key = s.Text()
			case "dd":
				if key != "" {
					addSpec(l.Specs, key, s.Text())
					key = ""
				}
			}
		})
	})

	doc.Find(`[class*="spec"] li`).Each(func(_ int, li *goquery.Selection) {
		for k, v := range parseSpecLines(li.Text()) {
			addSpec(l.Specs, k, v)
		}
	})

	if l.Model == "" {
		return l, fmt.Errorf("%s: %w", pageURL, ErrNoModel)
	}
	return l, nil
}

// ParseGeoRegion reads an ISO 3166-2 style region tag such as "US-CA" or
// "CA-ON". A bare country code yields a country-only hint. A region that
// does not belong to the tagged country is dropped.
func ParseGeoRegion(tag string) model.GeoHint {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return model.GeoHint{}
	}
	country, region, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")

	hint := model.GeoHint{Country: geo.NormalizeCountry(country)}
	if hint.Country == "" {
		return model.GeoHint{}
	}
	if code := geo.NormalizeRegion(region); code != "" && regionIn(code, hint.Country) {
		hint.StateProvince = code
	}
	return hint
}

func regionIn(code, country string) bool {
	list := geo.USStates()
	if country == geo.CountryCanada {
		list = geo.CanadianProvinces()
	}
	return slices.Contains(list, code)
}

// first returns the content attribute or text of the first selector that
// yields a non-empty value.
func first(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if v, ok := s.Attr("content"); ok {
			if v = cleanText(v); v != "" {
				return v
			}
		}
		if v := cleanText(s.Text()); v != "" {
			return v
		}
	}
	return ""
}

func addSpec(specs map[string]string, key, value string) {
	key = strings.TrimSuffix(cleanText(key), ":")
	key = strings.TrimSpace(key)
	value = cleanText(value)
	if key == "" || value == "" {
		return
	}
	if _, ok := specs[key]; !ok {
		specs[key] = value
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
