// Package guestcart persists the anonymous visitor's cart. It is the Go
// rendition of the browser-local storage the storefront used before: one
// fixed key per session holding a serialized item list.
package guestcart

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by KV.Get when the key has never been written.
var ErrNotFound = errors.New("guestcart: key not found")

// KV is the minimal key-value surface the store needs. Implemented by
// RedisKV for deployments and LocalKV for single-process use and tests.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

// LocalKV keeps values in process memory. Contents do not survive a
// restart, which matches the durability of a cleared browser session.
type LocalKV struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewLocalKV creates an empty in-memory store.
func NewLocalKV() *LocalKV {
	return &LocalKV{m: make(map[string]string)}
}

func (l *LocalKV) Get(ctx context.Context, key string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (l *LocalKV) Set(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[key] = value
	return nil
}

func (l *LocalKV) Del(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, key)
	return nil
}
