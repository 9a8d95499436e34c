package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"lumenwatch/internal/model"
)

// Key layout:
//
//	p/<id>                       product record
//	k/<brand>\x00<model>\x00<st> product id
//	v/<product id>/<%010d num>   version
//	c/<product id>/<%020d ns>/<id> change log entry
const (
	prefixProduct   = "p/"
	prefixKey       = "k/"
	prefixVersion   = "v/"
	prefixChangeLog = "c/"
)

// PebbleStore is an embedded product store for offline runs.
type PebbleStore struct {
	db *pebble.DB
	// serializes read-check-write sequences; pebble has no conditional put
	mu sync.Mutex
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) FindExistingProduct(_ context.Context, brand, modelName, stateProvince string) (*model.ProductRecord, error) {
	id, err := s.getString(prefixKey + productKey(brand, modelName, stateProvince))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s/%s/%s: %w", brand, modelName, stateProvince, err)
	}
	var p model.ProductRecord
	if err := s.getJSON(prefixProduct+id, &p); err != nil {
		return nil, fmt.Errorf("load product %s: %w", id, err)
	}
	return &p, nil
}

func (s *PebbleStore) InsertProduct(_ context.Context, p model.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := prefixKey + productKey(p.Brand, p.Model, p.StateProvince)
	if ok, err := s.exists(key); err != nil {
		return fmt.Errorf("insert product: %w", err)
	} else if ok {
		return fmt.Errorf("insert product %s/%s/%s: %w", p.Brand, p.Model, p.StateProvince, ErrProductExists)
	}

	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte(prefixProduct+p.ID), val, nil)
	_ = b.Set([]byte(key), []byte(p.ID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *PebbleStore) UpdateProduct(_ context.Context, p model.ProductRecord) error {
	return s.modifyProduct(p.ID, func(cur *model.ProductRecord) {
		next := p
		next.Brand, next.Model, next.StateProvince, next.BrandID = cur.Brand, cur.Model, cur.StateProvince, cur.BrandID
		next.SpecHash = cur.SpecHash
		next.CreatedAt = cur.CreatedAt
		*cur = next
	})
}

func (s *PebbleStore) UpdateProductHashAndTimestamp(_ context.Context, productID, specHash string, at time.Time) error {
	return s.modifyProduct(productID, func(cur *model.ProductRecord) {
		cur.SpecHash = specHash
		cur.LastScrapedAt = at
	})
}

func (s *PebbleStore) FindLatestVersionNumber(_ context.Context, productID string) (int, error) {
	prefix := prefixVersion + productID + "/"
	it, err := s.db.NewIter(prefixBounds(prefix))
	if err != nil {
		return 0, fmt.Errorf("latest version for %s: %w", productID, err)
	}
	defer it.Close()

	if !it.Last() {
		return 0, it.Error()
	}
	var v model.ProductVersion
	if err := json.Unmarshal(it.Value(), &v); err != nil {
		return 0, fmt.Errorf("decode version: %w", err)
	}
	return v.VersionNumber, nil
}

func (s *PebbleStore) InsertVersion(_ context.Context, v model.ProductVersion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.exists(prefixProduct + v.ProductID); err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	} else if !ok {
		return "", fmt.Errorf("insert version for %s: %w", v.ProductID, ErrNotFound)
	}

	key := versionKey(v.ProductID, v.VersionNumber)
	if ok, err := s.exists(key); err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	} else if ok {
		return "", fmt.Errorf("insert version %d for %s: %w", v.VersionNumber, v.ProductID, ErrVersionConflict)
	}

	val, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal version: %w", err)
	}
	if err := s.db.Set([]byte(key), val, pebble.Sync); err != nil {
		return "", fmt.Errorf("insert version %d for %s: %w", v.VersionNumber, v.ProductID, err)
	}
	return v.ID, nil
}

func (s *PebbleStore) InsertChangeLogEntries(_ context.Context, productID, _ string, entries []model.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, e := range entries {
		val, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal change log: %w", err)
		}
		key := fmt.Sprintf("%s%s/%020d/%s", prefixChangeLog, productID, e.DetectedAt.UnixNano(), e.ID)
		_ = b.Set([]byte(key), val, nil)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("insert %d change log entries for %s: %w", len(entries), productID, err)
	}
	return nil
}

func (s *PebbleStore) ListVersions(_ context.Context, productID string) ([]model.ProductVersion, error) {
	var out []model.ProductVersion
	err := s.scan(prefixVersion+productID+"/", func(val []byte) error {
		var v model.ProductVersion
		if err := json.Unmarshal(val, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func (s *PebbleStore) ListChangeLog(_ context.Context, productID string) ([]model.ChangeLogEntry, error) {
	var out []model.ChangeLogEntry
	err := s.scan(prefixChangeLog+productID+"/", func(val []byte) error {
		var e model.ChangeLogEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (s *PebbleStore) modifyProduct(id string, fn func(*model.ProductRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p model.ProductRecord
	err := s.getJSON(prefixProduct+id, &p)
	if errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load product %s: %w", id, err)
	}
	fn(&p)
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if err := s.db.Set([]byte(prefixProduct+id), val, pebble.Sync); err != nil {
		return fmt.Errorf("store product %s: %w", id, err)
	}
	return nil
}

func (s *PebbleStore) scan(prefix string, fn func(val []byte) error) error {
	it, err := s.db.NewIter(prefixBounds(prefix))
	if err != nil {
		return fmt.Errorf("iterate %s: %w", prefix, err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := fn(it.Value()); err != nil {
			return fmt.Errorf("decode %s: %w", it.Key(), err)
		}
	}
	return it.Error()
}

func (s *PebbleStore) getString(key string) (string, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

func (s *PebbleStore) getJSON(key string, dst any) error {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(v, dst)
}

func (s *PebbleStore) exists(key string) (bool, error) {
	_, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func versionKey(productID string, n int) string {
	return fmt.Sprintf("%s%s/%010d", prefixVersion, productID, n)
}

func prefixBounds(prefix string) *pebble.IterOptions {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper}
}
