package cart

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Identity describes who owns a cart session. It is supplied explicitly at
// construction; the engine never consults ambient session state.
type Identity struct {
	SessionID string
	Token     string
}

// Authenticated reports whether an auth token is present.
func (id Identity) Authenticated() bool {
	return id.Token != ""
}

// State is what the container publishes to the presentation layer. Items
// and Total always describe the last coherent view: a failed operation
// keeps the previous list and sets Error instead of rolling anything back.
type State struct {
	Items   []Item `json:"items"`
	Total   int64  `json:"total"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Service is the single source of truth for one cart session. Every
// effectful operation runs through a per-cart sequencer, so callers always
// observe a coherent loading -> success | failure cycle and overlapping
// mutations cannot race each other's read-modify-write.
type Service struct {
	log    *logrus.Entry
	tracer trace.Tracer
	id     Identity
	mode   OwnerMode
	regime regime
	seq    *sequencer

	mu sync.RWMutex
	st State
}

// NewService builds the container for one session. The identity decides the
// active regime: anonymous sessions mutate the guest store, authenticated
// sessions write through the gateway and treat server state as canonical.
func NewService(log *logrus.Entry, id Identity, store GuestStore, gw Gateway) *Service {
	s := &Service{
		log:    log.WithField("session_id", id.SessionID),
		tracer: otel.Tracer("cart"),
		id:     id,
		seq:    newSequencer(),
	}
	if id.Authenticated() {
		s.mode = OwnerAuthenticated
		s.regime = &authRegime{
			gw:        gw,
			migration: &migration{log: s.log, store: store, gw: gw},
		}
	} else {
		s.mode = OwnerGuest
		s.regime = guestRegime{store: store}
	}
	return s
}

// OwnerMode reports which regime is active for this session.
func (s *Service) OwnerMode() OwnerMode {
	return s.mode
}

// State returns a snapshot of the published cart state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.st
	st.Items = append([]Item(nil), s.st.Items...)
	return st
}

// Cart returns the cart entity for the published state. Guest carts carry
// the sentinel id; authenticated carts carry the server-assigned id once
// known.
func (s *Service) Cart() Cart {
	st := s.State()
	return Cart{OwnerMode: s.mode, ID: s.regime.cartID(), Items: st.Items}
}

// FetchCart publishes the authoritative cart. For authenticated sessions
// this first completes any pending guest-cart migration and then overwrites
// the published view with server state.
func (s *Service) FetchCart(ctx context.Context) (State, error) {
	return s.run(ctx, "FetchCart", "fetch cart", nil, func(ctx context.Context) ([]Item, error) {
		return s.regime.fetch(ctx)
	})
}

// AddItem merges a product into the cart. A zero quantity means one. The
// quantity floor is the caller's responsibility; see UpdateItem.
func (s *Service) AddItem(ctx context.Context, it Item) (State, error) {
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	attrs := []attribute.KeyValue{
		attribute.String("app.product_id", it.ProductID),
		attribute.Int64("app.quantity", int64(it.Quantity)),
	}
	return s.run(ctx, "AddItem", "add item", attrs, func(ctx context.Context) ([]Item, error) {
		return s.regime.add(ctx, it)
	})
}

// UpdateItem sets the absolute quantity of one line. The container does not
// enforce the quantity floor; callers must reject quantities below one (a
// zero or negative quantity line would violate the cart's invariants).
func (s *Service) UpdateItem(ctx context.Context, productID string, quantity int32) (State, error) {
	attrs := []attribute.KeyValue{
		attribute.String("app.product_id", productID),
		attribute.Int64("app.quantity", int64(quantity)),
	}
	return s.run(ctx, "UpdateItem", "update item", attrs, func(ctx context.Context) ([]Item, error) {
		return s.regime.setQuantity(ctx, productID, quantity)
	})
}

// RemoveItem drops one line. Removing an absent product is a no-op.
func (s *Service) RemoveItem(ctx context.Context, productID string) (State, error) {
	attrs := []attribute.KeyValue{attribute.String("app.product_id", productID)}
	return s.run(ctx, "RemoveItem", "remove item", attrs, func(ctx context.Context) ([]Item, error) {
		return s.regime.remove(ctx, productID)
	})
}

// EmptyCart clears the cart. Anonymous sessions clear the guest store;
// authenticated sessions clear only the published view.
func (s *Service) EmptyCart(ctx context.Context) (State, error) {
	return s.run(ctx, "EmptyCart", "empty cart", nil, func(ctx context.Context) ([]Item, error) {
		return s.regime.empty(ctx)
	})
}

func (s *Service) run(ctx context.Context, op, label string, attrs []attribute.KeyValue, fn func(context.Context) ([]Item, error)) (State, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(append(attrs, attribute.String("app.session_id", s.id.SessionID))...)

	err := s.seq.do(ctx, func(ctx context.Context) error {
		s.setLoading()
		items, err := fn(ctx)
		if err != nil {
			s.setError(label)
			s.log.WithError(err).Warnf("cart: %s failed", label)
			return err
		}
		s.publish(items)
		return nil
	})
	return s.State(), err
}

func (s *Service) setLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Loading = true
	s.st.Error = ""
}

// setError keeps the previously published items; the display stays stale
// but consistent until the user retries.
func (s *Service) setError(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Loading = false
	s.st.Error = "failed to " + label
}

func (s *Service) publish(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Items = items
	s.st.Total = Subtotal(items)
	s.st.Loading = false
	s.st.Error = ""
}
