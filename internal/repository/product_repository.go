package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumenwatch/internal/model"
)

const uniqueViolation = "23505"

// ProductRepository stores products, versions and change logs in Postgres.
type ProductRepository struct {
	DB *pgxpool.Pool
}

const productColumns = `id, brand_id, brand, model, category, sku, product_url,
	watts, lumens, cct, cri, lifespan, warranty, efficiency, beam_angle, weight,
	ip_rating, voltage, dimming, price, currency, state_province, country, sales_channel, use_type,
	extra, spec_hash, last_scraped_at, created_at`

func (r *ProductRepository) FindExistingProduct(ctx context.Context, brand, modelName, stateProvince string) (*model.ProductRecord, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE lower(brand) = lower($1) AND lower(model) = lower($2) AND state_province = $3
	`, brand, modelName, stateProvince)

	var (
		p     model.ProductRecord
		extra map[string]string
	)
	err := row.Scan(&p.ID, &p.BrandID, &p.Brand, &p.Model, &p.Category, &p.SKU, &p.ProductURL,
		&p.Watts, &p.Lumens, &p.CCT, &p.CRI, &p.Lifespan, &p.Warranty, &p.Efficiency, &p.BeamAngle, &p.Weight,
		&p.IPRating, &p.Voltage, &p.Dimming, &p.Price, &p.Currency, &p.StateProvince, &p.Country,
		&p.SalesChannel, &p.UseType, &extra, &p.SpecHash, &p.LastScrapedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s/%s/%s: %w", brand, modelName, stateProvince, err)
	}
	if len(extra) > 0 {
		p.Extra = extra
	}
	return &p, nil
}

func (r *ProductRepository) InsertProduct(ctx context.Context, p model.ProductRecord) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`, p.ID, p.BrandID, p.Brand, p.Model, p.Category, p.SKU, p.ProductURL,
		p.Watts, p.Lumens, p.CCT, p.CRI, p.Lifespan, p.Warranty, p.Efficiency, p.BeamAngle, p.Weight,
		p.IPRating, p.Voltage, p.Dimming, p.Price, p.Currency, p.StateProvince, p.Country,
		p.SalesChannel, p.UseType, extraOrEmpty(p.Extra), p.SpecHash, p.LastScrapedAt, p.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert product %s/%s/%s: %w", p.Brand, p.Model, p.StateProvince, ErrProductExists)
	}
	if err != nil {
		return fmt.Errorf("insert product %s/%s/%s: %w", p.Brand, p.Model, p.StateProvince, err)
	}
	return nil
}

// UpdateProduct refreshes the descriptive and spec columns. spec_hash and
// created_at are left alone.
func (r *ProductRepository) UpdateProduct(ctx context.Context, p model.ProductRecord) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE products
		SET category = $2, sku = $3, product_url = $4,
		    watts = $5, lumens = $6, cct = $7, cri = $8, lifespan = $9, warranty = $10,
		    efficiency = $11, beam_angle = $12, weight = $13,
		    ip_rating = $14, voltage = $15, dimming = $16,
		    price = $17, currency = $18, country = $19, sales_channel = $20, use_type = $21,
		    extra = $22, last_scraped_at = $23
		WHERE id = $1
	`, p.ID, p.Category, p.SKU, p.ProductURL,
		p.Watts, p.Lumens, p.CCT, p.CRI, p.Lifespan, p.Warranty,
		p.Efficiency, p.BeamAngle, p.Weight,
		p.IPRating, p.Voltage, p.Dimming,
		p.Price, p.Currency, p.Country, p.SalesChannel, p.UseType,
		extraOrEmpty(p.Extra), p.LastScrapedAt)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update product %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (r *ProductRepository) FindLatestVersionNumber(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(MAX(version_number), 0)
		FROM product_versions
		WHERE product_id = $1
	`, productID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("latest version for %s: %w", productID, err)
	}
	return n, nil
}

// InsertVersion relies on the (product_id, version_number) unique constraint;
// a duplicate number surfaces as ErrVersionConflict.
func (r *ProductRepository) InsertVersion(ctx context.Context, v model.ProductVersion) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx, `
		INSERT INTO product_versions
		(id, product_id, version_number, snapshot, spec_hash, change_summary, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, v.ID, v.ProductID, v.VersionNumber, v.Snapshot, v.SpecHash, v.ChangeSummary, v.CapturedAt).Scan(&id)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("insert version %d for %s: %w", v.VersionNumber, v.ProductID, ErrVersionConflict)
	}
	if err != nil {
		return "", fmt.Errorf("insert version %d for %s: %w", v.VersionNumber, v.ProductID, err)
	}
	return id, nil
}

// InsertChangeLogEntries bulk-loads entries with COPY.
func (r *ProductRepository) InsertChangeLogEntries(ctx context.Context, productID, versionID string, entries []model.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return fmt.Errorf("product id %q: %w", productID, err)
	}
	var vid any
	if versionID != "" {
		v, err := uuid.Parse(versionID)
		if err != nil {
			return fmt.Errorf("version id %q: %w", versionID, err)
		}
		vid = v
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return fmt.Errorf("change log id %q: %w", e.ID, err)
		}
		rows = append(rows, []any{id, pid, vid, e.FieldName, e.OldValue, e.NewValue, e.DetectedAt})
	}

	_, err = r.DB.CopyFrom(ctx,
		pgx.Identifier{"product_change_log"},
		[]string{"id", "product_id", "product_version_id", "field_name", "old_value", "new_value", "detected_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert %d change log entries for %s: %w", len(entries), productID, err)
	}
	return nil
}

func (r *ProductRepository) UpdateProductHashAndTimestamp(ctx context.Context, productID, specHash string, at time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE products
		SET spec_hash = $2, last_scraped_at = $3
		WHERE id = $1
	`, productID, specHash, at)
	if err != nil {
		return fmt.Errorf("update hash for %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update hash for %s: %w", productID, ErrNotFound)
	}
	return nil
}

// ListVersions returns a product's versions in ascending order.
func (r *ProductRepository) ListVersions(ctx context.Context, productID string) ([]model.ProductVersion, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, version_number, snapshot, spec_hash, change_summary, captured_at
		FROM product_versions
		WHERE product_id = $1
		ORDER BY version_number
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []model.ProductVersion
	for rows.Next() {
		var v model.ProductVersion
		if err := rows.Scan(&v.ID, &v.ProductID, &v.VersionNumber, &v.Snapshot, &v.SpecHash, &v.ChangeSummary, &v.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListChangeLog returns a product's change log entries, oldest first.
func (r *ProductRepository) ListChangeLog(ctx context.Context, productID string) ([]model.ChangeLogEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, COALESCE(product_version_id::text, ''), field_name, old_value, new_value, detected_at
		FROM product_change_log
		WHERE product_id = $1
		ORDER BY detected_at, field_name
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list change log for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []model.ChangeLogEntry
	for rows.Next() {
		var e model.ChangeLogEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ProductVersionID, &e.FieldName, &e.OldValue, &e.NewValue, &e.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan change log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func extraOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
