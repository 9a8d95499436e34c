package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lumenwatch/internal/crawler"
	"lumenwatch/internal/model"
)

// loadListings reads listings from a workbook (.xlsx) or from JSON, either a
// single array or one object per line. When brands is non-empty, listings of
// other brands are dropped.
func loadListings(path, defaultBrand string, brands []string) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		err      error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		listings, err = crawler.ParseSpreadsheetFile(path, defaultBrand)
	} else {
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		listings, err = decodeListings(f)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	for i := range listings {
		if listings[i].Brand == "" {
			listings[i].Brand = defaultBrand
		}
	}
	return filterBrands(listings, brands), nil
}

func decodeListings(r io.Reader) ([]model.RawListing, error) {
	br := bufio.NewReader(r)
	head, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if head == '[' {
		var list []model.RawListing
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode listing array: %w", err)
		}
		return list, nil
	}

	var list []model.RawListing
	for {
		var l model.RawListing
		err := dec.Decode(&l)
		if errors.Is(err, io.EOF) {
			return list, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode listing %d: %w", len(list)+1, err)
		}
		list = append(list, l)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if len(bytes.TrimSpace(b)) > 0 {
			return b[0], nil
		}
		if _, err := br.Discard(1); err != nil {
			return 0, err
		}
	}
}

func filterBrands(listings []model.RawListing, brands []string) []model.RawListing {
	if len(brands) == 0 {
		return listings
	}
	out := listings[:0]
	for _, l := range listings {
		for _, b := range brands {
			if strings.EqualFold(strings.TrimSpace(l.Brand), b) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
