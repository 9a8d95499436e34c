// Package pipeline drives a normalization run: every listing goes through
// mapping, conversion, validation, change detection and regional fan-out.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumenwatch/internal/detector"
	"lumenwatch/internal/geo"
	"lumenwatch/internal/lock"
	"lumenwatch/internal/model"
	"lumenwatch/internal/normalizer"
	"lumenwatch/internal/observability"
)

// Store is the product persistence a run needs.
type Store interface {
	detector.Store
	FindExistingProduct(ctx context.Context, brand, modelName, stateProvince string) (*model.ProductRecord, error)
	InsertProduct(ctx context.Context, p model.ProductRecord) error
	UpdateProduct(ctx context.Context, p model.ProductRecord) error
}

// ListingOutcome is how one listing finished.
type ListingOutcome string

const (
	// OutcomeOK means every region row was written or found unchanged.
	OutcomeOK ListingOutcome = "ok"
	// OutcomeInvalid means validation rejected the listing; nothing was written.
	OutcomeInvalid ListingOutcome = "invalid"
	// OutcomeFailed means at least one region row hit a storage error.
	OutcomeFailed ListingOutcome = "failed"
)

// Deps wires a Pipeline. Only Store and Detector are required.
type Deps struct {
	Store     Store
	Detector  *detector.Detector
	Builder   *normalizer.Builder
	Validator *normalizer.Validator
	Expander  *geo.Expander
	Locker    lock.Locker
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	// Workers is how many brands run at once. Values below 1 mean 1.
	Workers int

	// OnListing is called once per listing after it finishes.
	OnListing func(ctx context.Context, l model.RawListing, outcome ListingOutcome)
}

type Pipeline struct {
	store     Store
	detector  *detector.Detector
	builder   *normalizer.Builder
	validator *normalizer.Validator
	expander  *geo.Expander
	locker    lock.Locker
	metrics   *observability.Metrics
	logger    *slog.Logger
	workers   int
	onListing func(ctx context.Context, l model.RawListing, outcome ListingOutcome)

	now   func() time.Time
	newID func() string
}

var (
	errNoStore    = errors.New("pipeline: store is required")
	errNoDetector = errors.New("pipeline: detector is required")
)

// brandNamespace seeds deterministic brand IDs.
var brandNamespace = uuid.MustParse("3d9f6a57-5c1e-4f0b-9a8e-2f4b7c1d6e90")

func New(d Deps) (*Pipeline, error) {
	if d.Store == nil {
		return nil, errNoStore
	}
	if d.Detector == nil {
		return nil, errNoDetector
	}

	p := &Pipeline{
		store:     d.Store,
		detector:  d.Detector,
		builder:   d.Builder,
		validator: d.Validator,
		expander:  d.Expander,
		locker:    d.Locker,
		metrics:   d.Metrics,
		logger:    d.Logger,
		workers:   max(d.Workers, 1),
		onListing: d.OnListing,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}

	if p.builder == nil {
		m, err := normalizer.DefaultMapper()
		if err != nil {
			return nil, err
		}
		p.builder = normalizer.NewBuilder(m, normalizer.NewConverter(normalizer.DefaultPrecision))
	}
	if p.validator == nil {
		p.validator = normalizer.NewValidator(nil, normalizer.DefaultEfficiencyTolerance)
	}
	if p.expander == nil {
		e, err := geo.DefaultExpander()
		if err != nil {
			return nil, err
		}
		p.expander = e
	}
	if p.locker == nil {
		p.locker = lock.NewKeyedMutex()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Run processes listings grouped by brand. Brands are spread over the worker
// pool; listings of one brand run one after another. A failing listing never
// stops the run. When ctx is cancelled, remaining listings are skipped.
func (p *Pipeline) Run(ctx context.Context, listings []model.RawListing) RunSummary {
	start := p.now()
	groups := groupByBrand(listings)
	summaries := make([]BrandSummary, len(groups))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < min(p.workers, max(len(groups), 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				summaries[idx] = p.runBrand(ctx, groups[idx])
			}
		}()
	}

	for i := range groups {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return RunSummary{Brands: summaries, StartedAt: start, Duration: p.now().Sub(start)}
}

type brandGroup struct {
	brand    string
	listings []model.RawListing
}

// groupByBrand keeps the order in which brands first appear.
func groupByBrand(listings []model.RawListing) []brandGroup {
	var groups []brandGroup
	index := make(map[string]int)
	for _, l := range listings {
		brand := model.CleanName(l.Brand)
		key := model.NameKey(brand)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, brandGroup{brand: brand})
		}
		groups[i].listings = append(groups[i].listings, l)
	}
	return groups
}

func (p *Pipeline) runBrand(ctx context.Context, g brandGroup) BrandSummary {
	log := p.logger.With("brand", g.brand)
	sum := BrandSummary{Brand: g.brand, Found: len(g.listings)}
	log.Info("brand started", "listings", len(g.listings))

	for i, l := range g.listings {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", "skipped", len(g.listings)-i, "err", err)
			sum.Skipped += len(g.listings) - i
			break
		}
		outcome := p.processListing(ctx, log, l, &sum)
		if p.onListing != nil {
			p.onListing(ctx, l, outcome)
		}
	}

	log.Info("brand finished",
		"found", sum.Found,
		"new", sum.New,
		"changed", sum.Changed,
		"unchanged", sum.Unchanged,
		"warnings", sum.Warnings,
		"errors", sum.Errors,
	)
	return sum
}
