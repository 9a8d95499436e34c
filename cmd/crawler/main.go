package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lumenwatch/internal/config"
	"lumenwatch/internal/crawler"
	"lumenwatch/internal/db"
	"lumenwatch/internal/logging"
	"lumenwatch/internal/model"
	"lumenwatch/internal/repository"
)

// go run ./cmd/crawler -mode=html -url=https://example.com/p/cpx-2x4
// go run ./cmd/crawler -mode=api -url=https://example.com/ccstore/v1 -cat=troffers
// go run ./cmd/crawler -mode=api -url=https://example.com/ccstore/v1 -ids=kit1,kit2
// go run ./cmd/crawler -mode=xlsx -file=prices.xlsx -brand=RAB
func main() {
	mode := flag.String("mode", "html", "listing source: html, api or xlsx")
	pageURL := flag.String("url", "", "product page URL (html) or catalog API base URL (api)")
	cat := flag.String("cat", "", "catalog category ID (api)")
	idsArg := flag.String("ids", "", "comma-separated catalog product IDs (api)")
	file := flag.String("file", "", "price-list workbook (xlsx)")
	brand := flag.String("brand", "", "brand for listings that do not name one")
	dryRun := flag.Bool("dry-run", false, "print listings as JSON lines instead of staging them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat).With("component", "crawler", "mode", *mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := openSink(ctx, cfg, *dryRun)
	if err != nil {
		logger.Error("staging unavailable", "err", err)
		os.Exit(1)
	}
	defer closeSink()

	var saved, failed int
	save := func(l model.RawListing) error {
		if l.Brand == "" {
			l.Brand = *brand
		}
		if err := sink(ctx, l); err != nil {
			failed++
			logger.Error("save listing failed", "brand", l.Brand, "model", l.Model, "err", err)
			return nil
		}
		saved++
		return nil
	}

	client := crawler.NewClient()
	switch *mode {
	case "html":
		err = crawlPage(ctx, client, *pageURL, save)
	case "api":
		err = crawlCatalog(ctx, client, logger, *pageURL, *cat, *idsArg, save)
	case "xlsx":
		err = crawlWorkbook(*file, *brand, save)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Error("crawl failed", "err", err, "saved", saved, "failed", failed)
		os.Exit(1)
	}

	logger.Info("crawler finished", "saved", saved, "failed", failed)
}

// openSink returns where listings go: the raw staging table, or stdout as
// JSON lines for a dry run.
func openSink(ctx context.Context, cfg *config.Config, dryRun bool) (func(context.Context, model.RawListing) error, func(), error) {
	if dryRun {
		enc := json.NewEncoder(os.Stdout)
		return func(_ context.Context, l model.RawListing) error { return enc.Encode(l) }, func() {}, nil
	}
	if cfg.RawDatabaseURL == "" {
		return nil, nil, fmt.Errorf("RAW_DATABASE_URL or DATABASE_URL is required unless -dry-run is set")
	}

	conn, err := db.New(cfg.RawDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open staging database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, db.Schema()); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	repo := &repository.RawRepository{DB: conn}
	return repo.Save, func() { conn.Close() }, nil
}

func crawlPage(ctx context.Context, client *crawler.Client, pageURL string, save func(model.RawListing) error) error {
	if pageURL == "" {
		return fmt.Errorf("-url is required for html mode")
	}
	body, err := client.Fetch(ctx, pageURL)
	if err != nil {
		return err
	}
	l, err := crawler.ParseListingPage(body, pageURL)
	if err != nil {
		return err
	}
	return save(l)
}

func crawlCatalog(ctx context.Context, client *crawler.Client, logger *slog.Logger, baseURL, category, idsArg string, save func(model.RawListing) error) error {
	if baseURL == "" {
		return fmt.Errorf("-url is required for api mode")
	}
	catalog := crawler.NewCatalog(client, baseURL)
	catalog.Logger = logger

	handler := func(item crawler.CatalogItem) error {
		return save(item.ToRawListing(baseURL))
	}

	if idsArg != "" {
		var ids []string
		for _, id := range strings.Split(idsArg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return catalog.CrawlBatch(ctx, ids, 10, handler)
	}
	if category == "" {
		return fmt.Errorf("api mode needs -cat or -ids")
	}
	return catalog.FetchCategory(ctx, category, handler)
}

func crawlWorkbook(path, brand string, save func(model.RawListing) error) error {
	if path == "" {
		return fmt.Errorf("-file is required for xlsx mode")
	}
	listings, err := crawler.ParseSpreadsheetFile(path, brand)
	if err != nil {
		return err
	}
	for _, l := range listings {
		if err := save(l); err != nil {
			return err
		}
	}
	return nil
}
