package guestcart

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront/internal/cart"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewLocalKV(), "s1", testLogger())

	items := []cart.Item{
		{ProductID: "a", Name: "Mug", UnitPrice: 1200, Quantity: 2, ImageURL: "/img/mug.png"},
		{ProductID: "b", Name: "Hat", UnitPrice: 2500, Quantity: 1},
	}
	total, err := store.Save(ctx, items)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4900 {
		t.Errorf("Save total = %d, want 4900", total)
	}

	loaded := store.Load(ctx)
	if len(loaded) != 2 {
		t.Fatalf("loaded %d items, want 2", len(loaded))
	}
	if loaded[0] != items[0] || loaded[1] != items[1] {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	store := NewStore(NewLocalKV(), "s1", testLogger())
	if items := store.Load(context.Background()); len(items) != 0 {
		t.Errorf("expected empty cart, got %+v", items)
	}
}

func TestLoadCorruptPayloadFailsOpen(t *testing.T) {
	ctx := context.Background()
	kv := NewLocalKV()
	if err := kv.Set(ctx, KeyPrefix+"s1", "{not json"); err != nil {
		t.Fatal(err)
	}

	store := NewStore(kv, "s1", testLogger())
	if items := store.Load(ctx); len(items) != 0 {
		t.Errorf("corrupt payload should load as empty, got %+v", items)
	}
}

// brokenKV fails every read, standing in for unavailable storage.
type brokenKV struct{}

func (brokenKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("storage unavailable")
}
func (brokenKV) Set(ctx context.Context, key, value string) error { return nil }
func (brokenKV) Del(ctx context.Context, key string) error        { return nil }

func TestLoadStorageErrorFailsOpen(t *testing.T) {
	store := NewStore(brokenKV{}, "s1", testLogger())
	if items := store.Load(context.Background()); len(items) != 0 {
		t.Errorf("storage error should load as empty, got %+v", items)
	}
}

func TestLoadAssignsPlaceholderProductID(t *testing.T) {
	ctx := context.Background()
	kv := NewLocalKV()
	payload := `[{"name":"Mystery","unitPrice":500,"quantity":1},{"productId":"b","quantity":2}]`
	if err := kv.Set(ctx, KeyPrefix+"s1", payload); err != nil {
		t.Fatal(err)
	}

	store := NewStore(kv, "s1", testLogger())
	items := store.Load(ctx)
	if len(items) != 2 {
		t.Fatalf("loaded %d items, want 2", len(items))
	}
	if items[0].ProductID == "" {
		t.Error("missing product id was not assigned a placeholder")
	}
	if items[1].ProductID != "b" {
		t.Errorf("existing product id rewritten: %q", items[1].ProductID)
	}
}

func TestClearRemovesKey(t *testing.T) {
	ctx := context.Background()
	kv := NewLocalKV()
	store := NewStore(kv, "s1", testLogger())

	if _, err := store.Save(ctx, []cart.Item{{ProductID: "a", Quantity: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := kv.Get(ctx, KeyPrefix+"s1"); err != ErrNotFound {
		t.Errorf("expected key to be absent, got err = %v", err)
	}
	if items := store.Load(ctx); len(items) != 0 {
		t.Errorf("expected empty cart after clear, got %+v", items)
	}
}

func TestRecordAbandonedAppends(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewLocalKV(), "s1", testLogger())

	if err := store.RecordAbandoned(ctx, []cart.Item{{ProductID: "a", Quantity: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordAbandoned(ctx, []cart.Item{{ProductID: "b", Quantity: 2}}); err != nil {
		t.Fatal(err)
	}

	got := store.Abandoned(ctx)
	if len(got) != 2 {
		t.Fatalf("abandoned log has %d lines, want 2", len(got))
	}
	if got[0].ProductID != "a" || got[1].ProductID != "b" {
		t.Errorf("unexpected abandoned lines: %+v", got)
	}
}

func TestStoresAreIsolatedPerSession(t *testing.T) {
	ctx := context.Background()
	kv := NewLocalKV()
	s1 := NewStore(kv, "s1", testLogger())
	s2 := NewStore(kv, "s2", testLogger())

	if _, err := s1.Save(ctx, []cart.Item{{ProductID: "a", Quantity: 1}}); err != nil {
		t.Fatal(err)
	}
	if items := s2.Load(ctx); len(items) != 0 {
		t.Errorf("sessions share state: %+v", items)
	}
}
