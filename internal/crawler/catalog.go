package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// DefaultPageSize is the page size requested from catalog APIs.
const DefaultPageSize = 50

// CatalogPage is one page of a manufacturer catalog API response.
type CatalogPage struct {
	TotalResults int           `json:"totalResults"`
	Offset       int           `json:"offset"`
	Limit        int           `json:"limit"`
	Links        []CatalogLink `json:"links"`
	Items        []CatalogItem `json:"items"`
}

type CatalogLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// CatalogItem is a product as catalog APIs return it. Specifications is the
// structured attribute bag; Description and LongDescription may carry more
// "Key: Value" lines in HTML.
type CatalogItem struct {
	ID              string            `json:"id"`
	DisplayName     string            `json:"displayName"`
	Brand           string            `json:"brand"`
	Model           string            `json:"model"`
	SKU             string            `json:"sku"`
	Category        string            `json:"category"`
	Route           string            `json:"route"`
	URL             string            `json:"url"`
	ListPrice       PriceText         `json:"listPrice"`
	SalesChannel    string            `json:"salesChannel"`
	UseType         string            `json:"useType"`
	Region          string            `json:"region"`
	Description     string            `json:"description"`
	LongDescription string            `json:"longDescription"`
	Specifications  map[string]string `json:"specifications"`
}

// PriceText keeps a price exactly as sent, whether the API used a JSON
// number or a formatted string.
type PriceText string

func (p *PriceText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PriceText(s)
		return nil
	}
	*p = PriceText(b)
	return nil
}

// Catalog reads a manufacturer's JSON product API.
type Catalog struct {
	Client  *Client
	BaseURL string
	Logger  *slog.Logger
}

func NewCatalog(c *Client, baseURL string) *Catalog {
	return &Catalog{Client: c, BaseURL: strings.TrimRight(baseURL, "/")}
}

// FetchCategory walks every page of a category, following "next" links,
// and calls handler for each item. A handler error stops the walk.
func (c *Catalog) FetchCategory(ctx context.Context, categoryID string, handler func(CatalogItem) error) error {
	q := url.Values{}
	q.Set("categoryId", categoryID)
	q.Set("includeChildren", "true")
	q.Set("limit", fmt.Sprint(DefaultPageSize))
	return c.Walk(ctx, c.BaseURL+"/products?"+q.Encode(), handler)
}

// Walk fetches start and every page linked from it with rel "next".
func (c *Catalog) Walk(ctx context.Context, start string, handler func(CatalogItem) error) error {
	next := start
	seen := map[string]bool{}
	for next != "" {
		if seen[next] {
			return fmt.Errorf("pagination loop at %s", next)
		}
		seen[next] = true

		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := handler(item); err != nil {
				return err
			}
		}

		next, err = c.nextLink(next, page.Links)
		if err != nil {
			return err
		}
	}
	return nil
}

// FetchByIDs returns the items for ids in a single request.
func (c *Catalog) FetchByIDs(ctx context.Context, ids []string) ([]CatalogItem, error) {
	q := url.Values{}
	q.Set("productIds", strings.Join(ids, ","))
	q.Set("pageSize", fmt.Sprint(len(ids)))

	page, err := c.fetchPage(ctx, c.BaseURL+"/products?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// CrawlBatch fetches ids in batches of batchSize. A failed batch is logged
// and skipped so one bad ID does not lose the rest.
func (c *Catalog) CrawlBatch(ctx context.Context, ids []string, batchSize int, handler func(CatalogItem) error) error {
	if batchSize < 1 {
		batchSize = DefaultPageSize
	}
	for i := 0; i < len(ids); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(ids))

		items, err := c.FetchByIDs(ctx, ids[i:end])
		if err != nil {
			c.logger().Warn("catalog batch failed", "from", i, "to", end, "err", err)
			continue
		}
		for _, item := range items {
			if err := handler(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Catalog) fetchPage(ctx context.Context, pageURL string) (CatalogPage, error) {
	b, err := c.Client.get(ctx, pageURL, "application/json")
	if err != nil {
		return CatalogPage{}, err
	}
	var page CatalogPage
	if err := json.Unmarshal(b, &page); err != nil {
		return CatalogPage{}, fmt.Errorf("decode %s: %w", pageURL, err)
	}
	return page, nil
}

// nextLink resolves the "next" link against the current page URL.
func (c *Catalog) nextLink(current string, links []CatalogLink) (string, error) {
	for _, link := range links {
		if link.Rel != "next" {
			continue
		}
		href := strings.TrimSpace(link.Href)
		if href == "" {
			return "", nil
		}
		base, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("parse page url %s: %w", current, err)
		}
		ref, err := url.Parse(href)
		if err != nil {
			return "", fmt.Errorf("parse next link %s: %w", href, err)
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", nil
}

func (c *Catalog) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
