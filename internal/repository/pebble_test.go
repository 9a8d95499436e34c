package repository

import (
	"context"
	"testing"
)

func TestPebbleStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) productStore {
		s, err := NewPebbleStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewPebbleStore: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPebbleStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	p := sampleProduct("CA")
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 12; i++ {
		if _, err := s.InsertVersion(ctx, version(p.ID, i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.FindExistingProduct(ctx, p.Brand, p.Model, p.StateProvince)
	if err != nil || got == nil || got.ID != p.ID {
		t.Fatalf("after reopen: %v, %v", got, err)
	}
	// zero-padded keys keep 12 after 9
	if n, err := s.FindLatestVersionNumber(ctx, p.ID); err != nil || n != 12 {
		t.Fatalf("latest = %d, %v; want 12", n, err)
	}
}
