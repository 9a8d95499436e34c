package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadListings_JSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		brands  []string
		want    []string
	}{
		{
			name:    "array",
			content: ` [{"brand":"RAB","model":"A","specs":{"Wattage":"26W"}},{"brand":"Hubbell","model":"B","specs":{}}]`,
			want:    []string{"RAB/A", "Hubbell/B"},
		},
		{
			name:    "json lines",
			content: "{\"brand\":\"RAB\",\"model\":\"A\"}\n\n{\"model\":\"C\"}\n",
			want:    []string{"RAB/A", "Cooper/C"},
		},
		{
			name:    "brand filter",
			content: `[{"brand":"RAB","model":"A"},{"brand":"hubbell","model":"B"}]`,
			brands:  []string{"Hubbell"},
			want:    []string{"hubbell/B"},
		},
		{
			name:    "empty file",
			content: "  \n",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "listings.json", tt.content)
			listings, err := loadListings(path, "Cooper", tt.brands)
			if err != nil {
				t.Fatalf("loadListings: %v", err)
			}
			var got []string
			for _, l := range listings {
				got = append(got, l.Brand+"/"+l.Model)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadListings_BadJSON(t *testing.T) {
	path := writeFile(t, "bad.json", "{\"brand\":\"RAB\"}\n{oops")
	if _, err := loadListings(path, "", nil); err == nil || !strings.Contains(err.Error(), "listing 2") {
		t.Errorf("err = %v, want decode error on listing 2", err)
	}
}

func TestLoadListings_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Model", "Price", "Wattage"},
		{"WPLED26", "189.50", "26 W"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	listings, err := loadListings(path, "RAB", []string{"RAB"})
	if err != nil {
		t.Fatalf("loadListings: %v", err)
	}
	if len(listings) != 1 || listings[0].Brand != "RAB" || listings[0].Specs["Wattage"] != "26 W" {
		t.Errorf("listings = %+v", listings)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" RAB, ,Hubbell ,")
	if strings.Join(got, "|") != "RAB|Hubbell" {
		t.Errorf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Error("empty input should give nil")
	}
}
