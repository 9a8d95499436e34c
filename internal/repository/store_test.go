package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"lumenwatch/internal/model"
)

type productStore interface {
	FindLatestVersionNumber(ctx context.Context, productID string) (int, error)
	InsertVersion(ctx context.Context, v model.ProductVersion) (string, error)
	InsertChangeLogEntries(ctx context.Context, productID, versionID string, entries []model.ChangeLogEntry) error
	UpdateProductHashAndTimestamp(ctx context.Context, productID, specHash string, at time.Time) error
	FindExistingProduct(ctx context.Context, brand, modelName, stateProvince string) (*model.ProductRecord, error)
	InsertProduct(ctx context.Context, p model.ProductRecord) error
	UpdateProduct(ctx context.Context, p model.ProductRecord) error
	ListVersions(ctx context.Context, productID string) ([]model.ProductVersion, error)
	ListChangeLog(ctx context.Context, productID string) ([]model.ChangeLogEntry, error)
}

func ptr(f float64) *float64 { return &f }
func str(s string) *string   { return &s }

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleProduct(state string) model.ProductRecord {
	return model.ProductRecord{
		NormalizedProduct: model.NormalizedProduct{
			ID:            uuid.NewString(),
			BrandID:       uuid.NewString(),
			Brand:         "Acuity Brands",
			Model:         "CPX",
			StateProvince: state,
			Country:       "USA",
			Currency:      "USD",
			Watts:         ptr(40),
			Lumens:        ptr(4800),
			Price:         ptr(150),
			Extra:         map[string]string{"raw_mounting": "Recessed"},
		},
		SpecHash:      "h1",
		LastScrapedAt: t0,
		CreatedAt:     t0,
	}
}

func version(productID string, n int) model.ProductVersion {
	return model.ProductVersion{
		ID:            uuid.NewString(),
		ProductID:     productID,
		VersionNumber: n,
		Snapshot:      model.SpecSnapshot{"watts": 40.0, "price": 150.0},
		SpecHash:      "h1",
		ChangeSummary: "Initial version",
		CapturedAt:    t0,
	}
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) productStore) {
	ctx := context.Background()

	t.Run("find missing returns nil", func(t *testing.T) {
		s := newStore(t)
		p, err := s.FindExistingProduct(ctx, "Nope", "X", "CA")
		if err != nil || p != nil {
			t.Fatalf("got %v, %v; want nil, nil", p, err)
		}
	})

	t.Run("insert and find", func(t *testing.T) {
		s := newStore(t)
		p := sampleProduct("CA")
		if err := s.InsertProduct(ctx, p); err != nil {
			t.Fatalf("InsertProduct: %v", err)
		}
		got, err := s.FindExistingProduct(ctx, "Acuity Brands", "CPX", "CA")
		if err != nil || got == nil {
			t.Fatalf("FindExistingProduct: %v, %v", got, err)
		}
		if got.ID != p.ID || *got.Price != 150 || got.Extra["raw_mounting"] != "Recessed" {
			t.Errorf("got %+v", got)
		}
		if other, _ := s.FindExistingProduct(ctx, "Acuity Brands", "CPX", "NY"); other != nil {
			t.Error("region must be part of identity")
		}
	})

	t.Run("duplicate product", func(t *testing.T) {
		s := newStore(t)
		if err := s.InsertProduct(ctx, sampleProduct("CA")); err != nil {
			t.Fatal(err)
		}
		err := s.InsertProduct(ctx, sampleProduct("CA"))
		if !errors.Is(err, ErrProductExists) {
			t.Fatalf("err = %v, want ErrProductExists", err)
		}
	})

	t.Run("brand and model match case-insensitively", func(t *testing.T) {
		s := newStore(t)
		p := sampleProduct("CA")
		if err := s.InsertProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
		got, err := s.FindExistingProduct(ctx, "acuity  brands", "cpx", "CA")
		if err != nil || got == nil || got.ID != p.ID {
			t.Fatalf("FindExistingProduct = %v, %v; want %s", got, err, p.ID)
		}
		if got.Brand != "Acuity Brands" {
			t.Errorf("brand = %q, want stored spelling", got.Brand)
		}
		dup := sampleProduct("CA")
		dup.Brand, dup.Model = "ACUITY BRANDS", "cpx"
		if err := s.InsertProduct(ctx, dup); !errors.Is(err, ErrProductExists) {
			t.Fatalf("err = %v, want ErrProductExists", err)
		}
	})

	t.Run("version numbering and conflict", func(t *testing.T) {
		s := newStore(t)
		p := sampleProduct("CA")
		if err := s.InsertProduct(ctx, p); err != nil {
			t.Fatal(err)
		}

		if n, err := s.FindLatestVersionNumber(ctx, p.ID); err != nil || n != 0 {
			t.Fatalf("latest = %d, %v; want 0", n, err)
		}
		for i := 1; i <= 3; i++ {
			if _, err := s.InsertVersion(ctx, version(p.ID, i)); err != nil {
				t.Fatalf("InsertVersion %d: %v", i, err)
			}
		}
		if n, _ := s.FindLatestVersionNumber(ctx, p.ID); n != 3 {
			t.Fatalf("latest = %d, want 3", n)
		}

		_, err := s.InsertVersion(ctx, version(p.ID, 2))
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("err = %v, want ErrVersionConflict", err)
		}

		vs, err := s.ListVersions(ctx, p.ID)
		if err != nil || len(vs) != 3 || vs[2].VersionNumber != 3 {
			t.Fatalf("ListVersions = %+v, %v", vs, err)
		}
		if vs[0].Snapshot["price"] != 150.0 {
			t.Errorf("snapshot = %v", vs[0].Snapshot)
		}
	})

	t.Run("change log and hash update", func(t *testing.T) {
		s := newStore(t)
		p := sampleProduct("CA")
		if err := s.InsertProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
		vid, err := s.InsertVersion(ctx, version(p.ID, 1))
		if err != nil {
			t.Fatal(err)
		}

		entries := []model.ChangeLogEntry{
			{ID: uuid.NewString(), ProductID: p.ID, ProductVersionID: vid, FieldName: "cri", OldValue: str("80"), DetectedAt: t0},
			{ID: uuid.NewString(), ProductID: p.ID, ProductVersionID: vid, FieldName: "price", OldValue: str("150"), NewValue: str("165"), DetectedAt: t0},
		}
		if err := s.InsertChangeLogEntries(ctx, p.ID, vid, entries); err != nil {
			t.Fatalf("InsertChangeLogEntries: %v", err)
		}
		got, err := s.ListChangeLog(ctx, p.ID)
		if err != nil || len(got) != 2 {
			t.Fatalf("ListChangeLog = %+v, %v", got, err)
		}
		for _, e := range got {
			if e.FieldName == "cri" && e.NewValue != nil {
				t.Errorf("absent new value should stay nil, got %q", *e.NewValue)
			}
		}

		later := t0.Add(time.Hour)
		if err := s.UpdateProductHashAndTimestamp(ctx, p.ID, "h2", later); err != nil {
			t.Fatalf("UpdateProductHashAndTimestamp: %v", err)
		}
		cur, _ := s.FindExistingProduct(ctx, p.Brand, p.Model, p.StateProvince)
		if cur.SpecHash != "h2" || !cur.LastScrapedAt.Equal(later) {
			t.Errorf("after update: hash=%s at=%v", cur.SpecHash, cur.LastScrapedAt)
		}
	})

	t.Run("update product keeps hash", func(t *testing.T) {
		s := newStore(t)
		p := sampleProduct("CA")
		if err := s.InsertProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
		p.Price = ptr(165)
		p.SpecHash = "ignored"
		if err := s.UpdateProduct(ctx, p); err != nil {
			t.Fatalf("UpdateProduct: %v", err)
		}
		cur, _ := s.FindExistingProduct(ctx, p.Brand, p.Model, p.StateProvince)
		if *cur.Price != 165 || cur.SpecHash != "h1" {
			t.Errorf("after update: price=%v hash=%s", *cur.Price, cur.SpecHash)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		s := newStore(t)
		id := uuid.NewString()
		if err := s.UpdateProductHashAndTimestamp(ctx, id, "h", t0); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateProductHashAndTimestamp err = %v, want ErrNotFound", err)
		}
		if _, err := s.InsertVersion(ctx, version(id, 1)); !errors.Is(err, ErrNotFound) {
			t.Errorf("InsertVersion err = %v, want ErrNotFound", err)
		}
		p := sampleProduct("CA")
		if err := s.UpdateProduct(ctx, p); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateProduct err = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent inserts of one number", func(t *testing.T) {
		s := newStore(t)
		p := sampleProduct("CA")
		if err := s.InsertProduct(ctx, p); err != nil {
			t.Fatal(err)
		}

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok, taken int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.InsertVersion(ctx, version(p.ID, 1))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrVersionConflict):
					taken++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if ok != 1 || taken != writers-1 {
			t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok, taken, writers-1)
		}
	})
}
