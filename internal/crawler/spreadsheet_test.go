package crawler

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"lumenwatch/internal/model"
)

func workbook(t *testing.T, rows [][]any) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	return f
}

func workbookBytes(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	buf, err := workbook(t, rows).WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestParseSpreadsheet(t *testing.T) {
	buf := workbookBytes(t, [][]any{
		{},
		{"Model Number", "SKU", "List Price", "Wattage", "Lumens", "State", "Country", "Brand"},
		{"WPLED26", "RAB-26", "$189.50", "26 W", "3,000 lm", "Ontario", "", ""},
		{"", "orphan", "10", "", "", "", "", ""},
		{},
		{"LDN6", "", "150", "15W", "", "TX", "USA", "Lithonia"},
		{"HID-1", "", "99", "", "", "CA", "Canada", ""},
	})

	listings, err := ParseSpreadsheet(buf, "RAB")
	if err != nil {
		t.Fatalf("ParseSpreadsheet: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("got %d listings, want 3: %+v", len(listings), listings)
	}

	first := listings[0]
	if first.Brand != "RAB" || first.Model != "WPLED26" || first.SKU != "RAB-26" || first.Price != "$189.50" {
		t.Errorf("first = %+v", first)
	}
	if first.Specs["Wattage"] != "26 W" || first.Specs["Lumens"] != "3,000 lm" || len(first.Specs) != 2 {
		t.Errorf("first.Specs = %v", first.Specs)
	}
	if first.GeoHint != (model.GeoHint{Country: "Canada", StateProvince: "ON"}) {
		t.Errorf("first.GeoHint = %+v", first.GeoHint)
	}
	if first.Source != SourceSpreadsheet {
		t.Errorf("Source = %q", first.Source)
	}

	second := listings[1]
	if second.Brand != "Lithonia" || second.Specs["Wattage"] != "15W" {
		t.Errorf("second = %+v", second)
	}
	if second.GeoHint != (model.GeoHint{Country: "USA", StateProvince: "TX"}) {
		t.Errorf("second.GeoHint = %+v", second.GeoHint)
	}

	// CA in a Canada row is not a province.
	if got := listings[2].GeoHint; got != (model.GeoHint{Country: "Canada"}) {
		t.Errorf("third.GeoHint = %+v", got)
	}
}

func TestParseSpreadsheetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	f := workbook(t, [][]any{
		{"Model", "Price"},
		{"CPX 2x4", 150},
	})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	listings, err := ParseSpreadsheetFile(path, "Acuity Brands")
	if err != nil {
		t.Fatalf("ParseSpreadsheetFile: %v", err)
	}
	if len(listings) != 1 || listings[0].Price != "150" || listings[0].Brand != "Acuity Brands" {
		t.Errorf("listings = %+v", listings)
	}
}

func TestParseSpreadsheet_Errors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
		want error
	}{
		{"empty", nil, ErrEmptySheet},
		{"no model column", [][]any{{"Price", "Wattage"}, {"10", "5W"}}, ErrNoModelColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpreadsheet(workbookBytes(t, tt.rows), "")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
