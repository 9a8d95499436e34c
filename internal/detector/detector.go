package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lumenwatch/internal/changelog"
	"lumenwatch/internal/model"
)

// DefaultVersionRetries bounds how often a version insert is retried after a
// number collision.
const DefaultVersionRetries = 3

// Store is the persistence the detector needs.
type Store interface {
	FindLatestVersionNumber(ctx context.Context, productID string) (int, error)
	InsertVersion(ctx context.Context, v model.ProductVersion) (string, error)
	InsertChangeLogEntries(ctx context.Context, productID, versionID string, entries []model.ChangeLogEntry) error
	UpdateProductHashAndTimestamp(ctx context.Context, productID, specHash string, at time.Time) error
}

// Observer receives storage failure and conflict notifications.
type Observer interface {
	StorageFailure(op string)
	VersionConflict()
}

type nopObserver struct{}

func (nopObserver) StorageFailure(string) {}
func (nopObserver) VersionConflict()      {}

// Result reports what Detect did.
type Result struct {
	IsNew         bool
	IsChanged     bool
	SpecHash      string
	VersionID     string
	VersionNumber int
	Summary       string
	Changes       []model.ChangeLogEntry
}

type Detector struct {
	store    Store
	hasher   *Hasher
	feed     changelog.Writer
	observer Observer
	logger   *slog.Logger
	retries  int
	now      func() time.Time
	newID    func() string
}

type Option func(*Detector)

// WithChangeFeed publishes an event for every recorded version.
func WithChangeFeed(w changelog.Writer) Option {
	return func(d *Detector) { d.feed = w }
}

func WithObserver(o Observer) Option {
	return func(d *Detector) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithVersionRetries(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.retries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

func New(store Store, hasher *Hasher, opts ...Option) *Detector {
	if hasher == nil {
		hasher = NewHasher(DefaultPrecision)
	}
	d := &Detector{
		store:    store,
		hasher:   hasher,
		observer: nopObserver{},
		logger:   slog.Default(),
		retries:  DefaultVersionRetries,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Hasher returns the hasher used for snapshots.
func (d *Detector) Hasher() *Hasher {
	return d.hasher
}

// Detect compares incoming against the stored record. A nil prior records
// incoming as a new product. Equal hashes short-circuit without touching the
// store.
//
// An error is returned only when no version was recorded, or when the
// version was recorded but the product hash could not be updated. Change
// log and change feed failures are logged and do not fail the call.
func (d *Detector) Detect(ctx context.Context, prior *model.ProductRecord, incoming model.NormalizedProduct) (Result, error) {
	next := d.hasher.BuildSpecSnapshot(incoming)
	hash := d.hasher.Hash(next)

	if prior == nil {
		return d.RecordInitial(ctx, incoming)
	}
	if prior.SpecHash == "" {
		// row inserted but its first version never landed
		incoming.ID = prior.ID
		return d.RecordInitial(ctx, incoming)
	}
	if prior.SpecHash == hash {
		return Result{SpecHash: hash}, nil
	}

	old := d.hasher.BuildSpecSnapshot(prior.NormalizedProduct)
	changes := Diff(old, next)
	summary := Summary(changes)
	if summary == "" {
		// stored hash predates the current canonical form
		summary = "spec hash changed"
	}

	return d.record(ctx, versionRequest{
		productID: prior.ID,
		product:   incoming,
		snapshot:  next,
		hash:      hash,
		summary:   summary,
		changes:   changes,
	})
}

// RecordInitial writes version 1 for a product that was just inserted.
func (d *Detector) RecordInitial(ctx context.Context, p model.NormalizedProduct) (Result, error) {
	snap := d.hasher.BuildSpecSnapshot(p)
	res, err := d.record(ctx, versionRequest{
		productID: p.ID,
		product:   p,
		snapshot:  snap,
		hash:      d.hasher.Hash(snap),
		summary:   InitialSummary,
		initial:   true,
	})
	res.IsNew = err == nil
	return res, err
}

type versionRequest struct {
	productID string
	product   model.NormalizedProduct
	snapshot  model.SpecSnapshot
	hash      string
	summary   string
	changes   []FieldChange
	initial   bool
}

func (d *Detector) record(ctx context.Context, req versionRequest) (Result, error) {
	log := d.logger.With("product_id", req.productID, "brand", req.product.Brand, "model", req.product.Model)
	now := d.now()

	var (
		versionID string
		number    int
	)
	for attempt := 0; ; attempt++ {
		latest, err := d.store.FindLatestVersionNumber(ctx, req.productID)
		if err != nil {
			d.observer.StorageFailure("find_latest_version")
			log.Error("find latest version failed", "err", err)
			return Result{SpecHash: req.hash}, fmt.Errorf("find latest version: %w", err)
		}
		number = latest + 1

		versionID, err = d.store.InsertVersion(ctx, model.ProductVersion{
			ID:            d.newID(),
			ProductID:     req.productID,
			VersionNumber: number,
			Snapshot:      req.snapshot,
			SpecHash:      req.hash,
			ChangeSummary: req.summary,
			CapturedAt:    now,
		})
		if err == nil {
			break
		}
		if errors.Is(err, model.ErrVersionConflict) && attempt < d.retries {
			d.observer.VersionConflict()
			log.Warn("version number taken, retrying", "version", number, "attempt", attempt+1)
			continue
		}
		d.observer.StorageFailure("insert_version")
		log.Error("insert version failed", "version", number, "err", err)
		return Result{SpecHash: req.hash}, fmt.Errorf("insert version %d: %w", number, err)
	}

	res := Result{
		IsChanged:     true,
		SpecHash:      req.hash,
		VersionID:     versionID,
		VersionNumber: number,
		Summary:       req.summary,
	}

	if !req.initial && len(req.changes) > 0 {
		res.Changes = make([]model.ChangeLogEntry, 0, len(req.changes))
		for _, c := range req.changes {
			res.Changes = append(res.Changes, model.ChangeLogEntry{
				ID:               d.newID(),
				ProductID:        req.productID,
				ProductVersionID: versionID,
				FieldName:        c.Field,
				OldValue:         c.Old,
				NewValue:         c.New,
				DetectedAt:       now,
			})
		}
		if err := d.store.InsertChangeLogEntries(ctx, req.productID, versionID, res.Changes); err != nil {
			d.observer.StorageFailure("insert_change_log")
			log.Error("insert change log failed; version kept", "version", number, "err", err)
		}
	}

	if err := d.store.UpdateProductHashAndTimestamp(ctx, req.productID, req.hash, now); err != nil {
		d.observer.StorageFailure("update_product_hash")
		log.Error("update product hash failed", "version", number, "err", err)
		return res, fmt.Errorf("update product hash: %w", err)
	}

	if d.feed != nil {
		ev := changelog.Event{
			ProductID:     req.productID,
			VersionID:     versionID,
			VersionNumber: number,
			Brand:         req.product.Brand,
			Model:         req.product.Model,
			StateProvince: req.product.StateProvince,
			SpecHash:      req.hash,
			Summary:       req.summary,
			Changes:       res.Changes,
			CapturedAt:    now,
		}
		if err := d.feed.Append(ctx, ev); err != nil {
			d.observer.StorageFailure("publish_change")
			log.Warn("publish change event failed", "version", number, "err", err)
		}
	}

	log.Debug("version recorded", "version", number, "summary", req.summary)
	return res, nil
}
