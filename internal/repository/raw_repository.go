package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lumenwatch/internal/model"
)

// RawRepository stages scraped listings until the normalizer picks them up.
type RawRepository struct {
	DB *sql.DB
}

// Save upserts a listing keyed by (source, brand, model, sku) and marks it pending.
func (r *RawRepository) Save(ctx context.Context, l model.RawListing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = time.Now().UTC()
	}
	specs, err := json.Marshal(l.Specs)
	if err != nil {
		return fmt.Errorf("marshal specs: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO raw_listings
		(id, source, brand, model, category, sku, product_url, price_text, sales_channel, use_type,
		 specs, geo_country, geo_state, scraped_at, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'S')
		ON CONFLICT (source, brand, model, sku) DO UPDATE
		SET category = EXCLUDED.category,
		    product_url = EXCLUDED.product_url,
		    price_text = EXCLUDED.price_text,
		    sales_channel = EXCLUDED.sales_channel,
		    use_type = EXCLUDED.use_type,
		    specs = EXCLUDED.specs,
		    geo_country = EXCLUDED.geo_country,
		    geo_state = EXCLUDED.geo_state,
		    scraped_at = EXCLUDED.scraped_at,
		    sync_status = 'S'
	`, l.ID, l.Source, l.Brand, l.Model, l.Category, l.SKU, l.ProductURL, l.Price, l.SalesChannel, l.UseType,
		specs, l.GeoHint.Country, l.GeoHint.StateProvince, l.ScrapedAt)
	if err != nil {
		return fmt.Errorf("save raw listing %s/%s: %w", l.Brand, l.Model, err)
	}
	return nil
}

// ListPending returns listings not yet processed, optionally limited to brands.
func (r *RawRepository) ListPending(ctx context.Context, brands []string) ([]model.RawListing, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, source, brand, model, category, sku, product_url, price_text, sales_channel, use_type,
		       specs, geo_country, geo_state, scraped_at
		FROM raw_listings
		WHERE sync_status = $1
		  AND (cardinality($2::text[]) = 0 OR brand = ANY($2::text[]))
		ORDER BY brand, scraped_at, id
	`, syncPending, pq.Array(brands))
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var list []model.RawListing
	for rows.Next() {
		var (
			l     model.RawListing
			specs []byte
		)
		if err := rows.Scan(&l.ID, &l.Source, &l.Brand, &l.Model, &l.Category, &l.SKU, &l.ProductURL,
			&l.Price, &l.SalesChannel, &l.UseType, &specs, &l.GeoHint.Country, &l.GeoHint.StateProvince,
			&l.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan raw listing: %w", err)
		}
		if err := json.Unmarshal(specs, &l.Specs); err != nil {
			return nil, fmt.Errorf("decode specs for %s: %w", l.ID, err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func (r *RawRepository) MarkAsProcessed(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE raw_listings
		SET sync_status = $1
		WHERE id = $2
	`, syncProcessed, id)
	if err != nil {
		return fmt.Errorf("mark %s processed: %w", id, err)
	}
	return nil
}
