package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"lumenwatch/internal/lock"
	"lumenwatch/internal/model"
	"lumenwatch/internal/normalizer"
	"lumenwatch/internal/repository"
)

type regionOutcome string

const (
	regionNew       regionOutcome = "new"
	regionChanged   regionOutcome = "changed"
	regionUnchanged regionOutcome = "unchanged"
	regionError     regionOutcome = "error"
)

func (p *Pipeline) processListing(ctx context.Context, log *slog.Logger, l model.RawListing, sum *BrandSummary) ListingOutcome {
	start := p.now()
	log = log.With("model", strings.TrimSpace(l.Model), "listing_id", l.ID)

	res := p.builder.Normalize(l)
	for _, u := range res.Unconverted {
		log.Debug("unit not converted", "field", u.StandardName, "value", u.Value, "unit", u.Unit)
	}

	vr := p.validator.Validate(res.Fields)
	for _, w := range vr.Warnings {
		log.Warn("validation warning", "field", w.Field, "value", w.Value, "msg", w.Message)
		p.metrics.ValidationWarning(w.Field)
	}
	sum.Warnings += len(vr.Warnings)

	if res.Product.Brand == "" || res.Product.Model == "" {
		vr.Valid = false
		vr.Errors = append(vr.Errors, normalizer.ValidationIssue{Field: "model", Message: "brand and model are required"})
	}
	if !vr.Valid {
		msgs := make([]string, 0, len(vr.Errors))
		for _, e := range vr.Errors {
			msgs = append(msgs, e.Error())
		}
		log.Warn("listing rejected", "errors", strings.Join(msgs, "; "))
		sum.Errors++
		p.metrics.ListingProcessed(sum.Brand, string(OutcomeInvalid), p.now().Sub(start))
		return OutcomeInvalid
	}

	product := res.Product
	normalizer.DeriveEfficiency(&product)
	product.BrandID = uuid.NewSHA1(brandNamespace, []byte(strings.ToLower(product.Brand))).String()

	outcome := OutcomeOK
	for _, v := range p.expander.ExpandWithHint(product.Brand, l.GeoHint) {
		regional := product
		regional.StateProvince = v.StateProvince
		regional.Country = v.Country
		regional.Currency = v.Currency

		ro, err := p.processRegion(ctx, regional)
		switch ro {
		case regionNew:
			sum.New++
		case regionChanged:
			sum.Changed++
		case regionUnchanged:
			sum.Unchanged++
		}
		if err != nil {
			sum.Errors++
			outcome = OutcomeFailed
			log.Error("region failed", "state_province", v.StateProvince, "err", err)
			p.metrics.RegionOutcome(sum.Brand, string(regionError))
		}
		if ro != regionError {
			p.metrics.RegionOutcome(sum.Brand, string(ro))
		}
	}

	p.metrics.ListingProcessed(sum.Brand, string(outcome), p.now().Sub(start))
	return outcome
}

// processRegion writes one per-region row under the product's lock so the
// read of the prior hash and the version insert cannot interleave with
// another writer of the same row.
func (p *Pipeline) processRegion(ctx context.Context, np model.NormalizedProduct) (regionOutcome, error) {
	unlock, err := p.locker.Lock(ctx, lock.ProductKey(np.Brand, np.Model, np.StateProvince))
	if err != nil {
		return regionError, fmt.Errorf("lock: %w", err)
	}
	defer unlock()

	prior, err := p.store.FindExistingProduct(ctx, np.Brand, np.Model, np.StateProvince)
	if err != nil {
		p.metrics.StorageFailure("find_product")
		return regionError, err
	}

	if prior == nil {
		inserted, err := p.insert(ctx, np)
		if err == nil {
			return inserted, nil
		}
		if !errors.Is(err, repository.ErrProductExists) {
			return regionError, err
		}
		// another process inserted it between our read and write
		if prior, err = p.store.FindExistingProduct(ctx, np.Brand, np.Model, np.StateProvince); err != nil || prior == nil {
			p.metrics.StorageFailure("find_product")
			return regionError, fmt.Errorf("reload after conflict: %w", errors.Join(err, repository.ErrProductExists))
		}
	}

	np.ID = prior.ID
	np.BrandID = prior.BrandID
	res, err := p.detector.Detect(ctx, prior, np)
	if err != nil {
		if res.IsChanged {
			return regionChanged, err
		}
		return regionError, err
	}
	if res.IsNew {
		return regionNew, nil
	}
	if !res.IsChanged {
		return regionUnchanged, nil
	}

	if err := p.store.UpdateProduct(ctx, model.ProductRecord{NormalizedProduct: np, LastScrapedAt: p.now()}); err != nil {
		p.metrics.StorageFailure("update_product")
		return regionChanged, fmt.Errorf("refresh product fields: %w", err)
	}
	return regionChanged, nil
}

func (p *Pipeline) insert(ctx context.Context, np model.NormalizedProduct) (regionOutcome, error) {
	now := p.now()
	np.ID = p.newID()

	// SpecHash stays empty until the first version lands.
	rec := model.ProductRecord{NormalizedProduct: np, LastScrapedAt: now, CreatedAt: now}
	if err := p.store.InsertProduct(ctx, rec); err != nil {
		if !errors.Is(err, repository.ErrProductExists) {
			p.metrics.StorageFailure("insert_product")
		}
		return regionError, err
	}

	if _, err := p.detector.RecordInitial(ctx, np); err != nil {
		return regionError, err
	}
	return regionNew, nil
}
