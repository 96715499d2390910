package cart

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

// fakeStore is an in-memory GuestStore with injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	items     []Item
	abandoned []Item
	cleared   bool

	saveErr   error
	recordErr error
	clearErr  error
}

func (f *fakeStore) Load(ctx context.Context) []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Item(nil), f.items...)
}

func (f *fakeStore) Save(ctx context.Context, items []Item) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.items = append([]Item(nil), items...)
	return Subtotal(items), nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.items = nil
	f.cleared = true
	return nil
}

func (f *fakeStore) RecordAbandoned(ctx context.Context, items []Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.abandoned = append(f.abandoned, items...)
	return nil
}

type addCall struct {
	productID string
	quantity  int32
}

// fakeGateway models the cart service: additive add semantics, absolute
// set-quantity, and per-product failure injection. It also tracks whether
// two calls ever overlapped, to verify mutation sequencing.
type fakeGateway struct {
	mu       sync.Mutex
	items    []Item
	addCalls []addCall
	setCalls []addCall

	failAdd  map[string]error
	fetchErr error
	setErr   error

	inFlight   int
	overlapped bool
}

func (f *fakeGateway) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlapped = true
	}
	f.mu.Unlock()
}

func (f *fakeGateway) exit() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeGateway) FetchCart(ctx context.Context) (RemoteCart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return RemoteCart{}, f.fetchErr
	}
	return RemoteCart{ID: "srv-1", Items: append([]Item(nil), f.items...)}, nil
}

func (f *fakeGateway) AddItem(ctx context.Context, productID string, quantity int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failAdd[productID]; err != nil {
		return err
	}
	f.addCalls = append(f.addCalls, addCall{productID, quantity})
	for i := range f.items {
		if f.items[i].ProductID == productID {
			f.items[i].Quantity += quantity
			return nil
		}
	}
	f.items = append(f.items, Item{ProductID: productID, Quantity: quantity})
	return nil
}

func (f *fakeGateway) SetQuantity(ctx context.Context, productID string, quantity int32) error {
	f.enter()
	defer f.exit()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls = append(f.setCalls, addCall{productID, quantity})
	for i := range f.items {
		if f.items[i].ProductID == productID {
			f.items[i].Quantity = quantity
		}
	}
	return nil
}

func (f *fakeGateway) RemoveItem(ctx context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items[:0]
	for _, it := range f.items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	f.items = out
	return nil
}

var errTransport = errors.New("connection reset")
