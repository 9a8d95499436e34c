// Package report renders run summaries for terminals and logs.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"lumenwatch/internal/pipeline"
)

var header = []string{"Brand", "Found", "New", "Changed", "Unchanged", "Warnings", "Errors", "Skipped"}

// WriteSummary writes s as a markdown table with one row per brand and a
// TOTAL row. Columns are padded by display width so wide brand names line up.
func WriteSummary(w io.Writer, s pipeline.RunSummary) error {
	table := [][]string{header}
	for _, b := range s.Brands {
		table = append(table, row(b))
	}
	table = append(table, row(s.Totals()))

	widths := make([]int, len(header))
	for _, r := range table {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell), 3)
		}
	}

	var sb strings.Builder
	for i, r := range table {
		writeRow(&sb, r, widths)
		if i == 0 {
			sep := make([]string, len(widths))
			for j, wd := range widths {
				if j == 0 {
					sep[j] = strings.Repeat("-", wd)
				} else {
					sep[j] = strings.Repeat("-", wd-1) + ":"
				}
			}
			writeRow(&sb, sep, widths)
		}
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "\nStarted %s, took %s\n", s.StartedAt.Format(time.RFC3339), s.Duration.Round(time.Millisecond))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func row(b pipeline.BrandSummary) []string {
	return []string{
		b.Brand,
		strconv.Itoa(b.Found),
		strconv.Itoa(b.New),
		strconv.Itoa(b.Changed),
		strconv.Itoa(b.Unchanged),
		strconv.Itoa(b.Warnings),
		strconv.Itoa(b.Errors),
		strconv.Itoa(b.Skipped),
	}
}

// writeRow left-aligns the first column and right-aligns the counts.
func writeRow(sb *strings.Builder, cells []string, widths []int) {
	sb.WriteString("|")
	for i, cell := range cells {
		sb.WriteString(" ")
		if i == 0 {
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		} else {
			sb.WriteString(runewidth.FillLeft(cell, widths[i]))
		}
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}
