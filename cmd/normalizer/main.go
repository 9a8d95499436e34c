package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"lumenwatch/internal/changelog"
	"lumenwatch/internal/config"
	"lumenwatch/internal/db"
	"lumenwatch/internal/detector"
	"lumenwatch/internal/geo"
	"lumenwatch/internal/lock"
	"lumenwatch/internal/logging"
	"lumenwatch/internal/model"
	"lumenwatch/internal/normalizer"
	"lumenwatch/internal/observability"
	"lumenwatch/internal/pipeline"
	"lumenwatch/internal/report"
	"lumenwatch/internal/repository"
)

// go run ./cmd/normalizer
// go run ./cmd/normalizer -brand="RAB,Hubbell"
// go run ./cmd/normalizer -input=listings.jsonl -dry-run
func main() {
	brandArg := flag.String("brand", "", "comma-separated brands to process (default: all)")
	input := flag.String("input", "", "read listings from a JSON, JSON lines or XLSX file instead of the staging table")
	dryRun := flag.Bool("dry-run", false, "use an in-memory product store and leave staged listings pending")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.StoreBackend = config.BackendMemory
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, splitList(*brandArg), *input, *dryRun); err != nil {
		logger.Error("normalizer failed to start", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, brands []string, input string, dryRun bool) error {
	metrics := observability.NewMetrics()
	if cfg.MetricsPort != "0" {
		metrics.Start(ctx, cfg.MetricsPort)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	feed, closeFeed, err := openFeed(cfg)
	if err != nil {
		return err
	}
	defer closeFeed()

	var expander *geo.Expander
	if cfg.GeoBrandsFile != "" {
		if expander, err = geo.LoadBrandsFile(cfg.GeoBrandsFile); err != nil {
			return err
		}
	}

	mapper, err := normalizer.DefaultMapper()
	if err != nil {
		return err
	}

	opts := []detector.Option{
		detector.WithObserver(metrics),
		detector.WithVersionRetries(cfg.VersionRetries),
		detector.WithLogger(logger.With("component", "detector")),
	}
	if feed.Len() > 0 {
		opts = append(opts, detector.WithChangeFeed(feed))
	}
	det := detector.New(store, detector.NewHasher(cfg.RoundingPrecision), opts...)

	var (
		listings []model.RawListing
		raw      *repository.RawRepository
	)
	if input != "" {
		defaultBrand := ""
		if len(brands) == 1 {
			defaultBrand = brands[0]
		}
		if listings, err = loadListings(input, defaultBrand, brands); err != nil {
			return err
		}
	} else {
		if cfg.RawDatabaseURL == "" {
			return fmt.Errorf("RAW_DATABASE_URL or DATABASE_URL is required without -input")
		}
		conn, err := db.New(cfg.RawDatabaseURL)
		if err != nil {
			return fmt.Errorf("open staging database: %w", err)
		}
		defer conn.Close()
		raw = &repository.RawRepository{DB: conn}
		if listings, err = raw.ListPending(ctx, brands); err != nil {
			return err
		}
	}
	logger.Info("listings loaded", "count", len(listings), "source", sourceName(input), "store", cfg.StoreBackend)

	deps := pipeline.Deps{
		Store:     store,
		Detector:  det,
		Builder:   normalizer.NewBuilder(mapper, normalizer.NewConverter(cfg.RoundingPrecision)),
		Validator: normalizer.NewValidator(nil, cfg.EfficiencyTolerance),
		Expander:  expander,
		Locker:    locker,
		Metrics:   metrics,
		Logger:    logger,
		Workers:   cfg.WorkerCount,
	}
	if raw != nil && !dryRun {
		deps.OnListing = func(ctx context.Context, l model.RawListing, outcome pipeline.ListingOutcome) {
			if outcome == pipeline.OutcomeFailed {
				return // retried next run
			}
			if err := raw.MarkAsProcessed(ctx, l.ID); err != nil {
				logger.Error("mark processed failed", "listing_id", l.ID, "err", err)
			}
		}
	}

	p, err := pipeline.New(deps)
	if err != nil {
		return err
	}

	summary := p.Run(ctx, listings)
	if err := report.WriteSummary(os.Stdout, summary); err != nil {
		logger.Warn("write report failed", "err", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (pipeline.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPebble:
		s, err := repository.NewPebbleStore(cfg.PebbleDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.BackendMemory:
		return repository.NewMemoryStore(), func() {}, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, int32(cfg.WorkerCount+4))
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return &repository.ProductRepository{DB: pool}, pool.Close, nil
	}
}

// openLocker uses Redis leases when REDIS_URL is set so several normalizer
// processes can share a store; otherwise an in-process keyed mutex.
func openLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewKeyedMutex(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l := lock.NewRedisLocker(client, cfg.LockTTL)
	l.Logger = logger.With("component", "lock")
	return l, nil
}

func openFeed(cfg *config.Config) (*changelog.MultiWriter, func(), error) {
	var (
		writers []changelog.Writer
		closers []func() error
	)
	if cfg.KafkaBrokers != "" {
		k := changelog.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		writers = append(writers, k)
		closers = append(closers, k.Close)
	}
	if cfg.ChangeFeedFile != "" {
		f, err := changelog.NewFileWriter(cfg.ChangeFeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("change feed file: %w", err)
		}
		writers = append(writers, f)
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return changelog.NewMultiWriter(writers...), closeAll, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sourceName(input string) string {
	if input == "" {
		return "staging"
	}
	return input
}
