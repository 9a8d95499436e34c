package crawler

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"lumenwatch/internal/geo"
	"lumenwatch/internal/model"
)

// SourceSpreadsheet tags listings read from price-list workbooks.
const SourceSpreadsheet = "xlsx"

var (
	ErrEmptySheet    = errors.New("crawler: spreadsheet has no rows")
	ErrNoModelColumn = errors.New("crawler: spreadsheet has no model column")
)

// Header cells, lower-cased, that fill RawListing fields. Any other header
// becomes a spec key.
var columnAliases = map[string]string{
	"brand":          "brand",
	"manufacturer":   "brand",
	"model":          "model",
	"model number":   "model",
	"catalog number": "model",
	"product":        "model",
	"sku":            "sku",
	"part number":    "sku",
	"price":          "price",
	"list price":     "price",
	"msrp":           "price",
	"category":       "category",
	"url":            "url",
	"product url":    "url",
	"state":          "state",
	"province":       "state",
	"state/province": "state",
	"region":         "state",
	"country":        "country",
	"sales channel":  "sales_channel",
	"channel":        "sales_channel",
	"use type":       "use_type",
	"application":    "use_type",
}

// ParseSpreadsheetFile reads the first sheet of the workbook at path.
func ParseSpreadsheetFile(path, defaultBrand string) ([]model.RawListing, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return parseWorkbook(f, defaultBrand)
}

// ParseSpreadsheet reads the first sheet of a workbook. The first non-empty
// row is the header. Rows without a model are skipped. defaultBrand fills
// rows whose brand cell is empty or missing.
func ParseSpreadsheet(r io.Reader, defaultBrand string) ([]model.RawListing, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return parseWorkbook(f, defaultBrand)
}

func parseWorkbook(f *excelize.File, defaultBrand string) ([]model.RawListing, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	start := 0
	for start < len(rows) && isEmptyRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, ErrEmptySheet
	}

	header := rows[start]
	fields := make([]string, len(header))
	hasModel := false
	for i, h := range header {
		name := cleanText(h)
		if field, ok := columnAliases[strings.ToLower(name)]; ok {
			fields[i] = field
			hasModel = hasModel || field == "model"
			continue
		}
		fields[i] = name
	}
	if !hasModel {
		return nil, ErrNoModelColumn
	}

	now := time.Now().UTC()
	var out []model.RawListing
	for _, row := range rows[start+1:] {
		if isEmptyRow(row) {
			continue
		}
		l := model.RawListing{
			Brand:     cleanText(defaultBrand),
			Source:    SourceSpreadsheet,
			Specs:     map[string]string{},
			ScrapedAt: now,
		}
		var state, country string
		for i, cell := range row {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			v := cleanText(cell)
			if v == "" {
				continue
			}
			switch fields[i] {
			case "brand":
				l.Brand = v
			case "model":
				l.Model = v
			case "sku":
				l.SKU = v
			case "price":
				l.Price = v
			case "category":
				l.Category = v
			case "url":
				l.ProductURL = v
			case "state":
				state = v
			case "country":
				country = v
			case "sales_channel":
				l.SalesChannel = v
			case "use_type":
				l.UseType = v
			default:
				addSpec(l.Specs, fields[i], v)
			}
		}
		if l.Model == "" {
			continue
		}
		l.GeoHint = geoHint(country, state)
		out = append(out, l)
	}
	return out, nil
}

// geoHint builds a hint from separate country and state cells. A state
// without a country implies its country.
func geoHint(country, state string) model.GeoHint {
	h := model.GeoHint{
		Country:       geo.NormalizeCountry(country),
		StateProvince: geo.NormalizeRegion(state),
	}
	if h.StateProvince != "" && h.Country == "" {
		h.Country = geo.CountryForRegion(h.StateProvince)
	}
	if h.StateProvince != "" && !regionIn(h.StateProvince, h.Country) {
		h.StateProvince = ""
	}
	return h
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
