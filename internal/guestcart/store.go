package guestcart

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/internal/cart"
)

// KeyPrefix is prepended to the session id to form the one storage key a
// Store owns. The abandoned-lines log lives next to it under AbandonedSuffix.
const (
	KeyPrefix       = "guestcart:"
	AbandonedSuffix = ":abandoned"
)

// Store persists one anonymous cart under one fixed key. Reads fail open:
// missing keys, unreachable storage and corrupt payloads all load as an
// empty cart, never as an error.
type Store struct {
	kv  KV
	key string
	log *logrus.Entry
}

// NewStore binds a store to the session's storage key.
func NewStore(kv KV, sessionID string, log *logrus.Entry) *Store {
	return &Store{kv: kv, key: KeyPrefix + sessionID, log: log}
}

// Load reads the persisted item list. Items missing a product id are given
// a generated placeholder id so they stay addressable; this guards against
// partially-written or foreign data under the same key.
func (s *Store) Load(ctx context.Context) []cart.Item {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if err != ErrNotFound {
			s.log.WithError(err).Warn("guest store: read failed, treating cart as empty")
		}
		return nil
	}
	var items []cart.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.WithError(err).Warn("guest store: corrupt payload, treating cart as empty")
		return nil
	}
	for i := range items {
		if items[i].ProductID == "" {
			items[i].ProductID = uuid.NewString()
		}
	}
	return items
}

// Save overwrites the stored list wholesale and returns the derived total.
func (s *Store) Save(ctx context.Context, items []cart.Item) (int64, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return 0, err
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return 0, err
	}
	return cart.Subtotal(items), nil
}

// Clear removes the storage key entirely.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Del(ctx, s.key)
}

// RecordAbandoned appends lines that could not be migrated into the server
// cart to a recoverable log next to the main key, so a failed migration
// does not silently discard them.
func (s *Store) RecordAbandoned(ctx context.Context, items []cart.Item) error {
	key := s.key + AbandonedSuffix
	var existing []cart.Item
	if raw, err := s.kv.Get(ctx, key); err == nil {
		// A corrupt log is dropped rather than blocking the migration.
		_ = json.Unmarshal([]byte(raw), &existing)
	}
	raw, err := json.Marshal(append(existing, items...))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(raw))
}

// Abandoned returns the recoverable log of lines lost during migration.
func (s *Store) Abandoned(ctx context.Context) []cart.Item {
	raw, err := s.kv.Get(ctx, s.key+AbandonedSuffix)
	if err != nil {
		return nil
	}
	var items []cart.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
