package cart

import (
	"context"
	"sync"
)

// GuestStore is the persistence surface for anonymous carts. Implemented by
// guestcart.Store; defined here so the engine owns its own contract.
type GuestStore interface {
	Load(ctx context.Context) []Item
	Save(ctx context.Context, items []Item) (int64, error)
	Clear(ctx context.Context) error
	RecordAbandoned(ctx context.Context, items []Item) error
}

// RemoteCart is the server's view of an authenticated cart.
type RemoteCart struct {
	ID    string
	Items []Item
}

// Gateway is the remote cart service surface. Implemented by
// gateway.Client. Mutations are additive/absolute per the server's
// semantics; the engine always refetches after writing.
type Gateway interface {
	FetchCart(ctx context.Context) (RemoteCart, error)
	AddItem(ctx context.Context, productID string, quantity int32) error
	SetQuantity(ctx context.Context, productID string, quantity int32) error
	RemoveItem(ctx context.Context, productID string) error
}

// regime is the store that is currently authoritative for a cart. Exactly
// one regime is active per session: the guest store before login, the
// server cart after.
type regime interface {
	fetch(ctx context.Context) ([]Item, error)
	add(ctx context.Context, it Item) ([]Item, error)
	setQuantity(ctx context.Context, productID string, quantity int32) ([]Item, error)
	remove(ctx context.Context, productID string) ([]Item, error)
	empty(ctx context.Context) ([]Item, error)
	cartID() string
}

// guestRegime mutates the locally persisted item list synchronously and
// writes it back wholesale.
type guestRegime struct {
	store GuestStore
}

func (g guestRegime) fetch(ctx context.Context) ([]Item, error) {
	return g.store.Load(ctx), nil
}

func (g guestRegime) add(ctx context.Context, it Item) ([]Item, error) {
	items := addLine(g.store.Load(ctx), it)
	if _, err := g.store.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g guestRegime) setQuantity(ctx context.Context, productID string, quantity int32) ([]Item, error) {
	items := setLineQuantity(g.store.Load(ctx), productID, quantity)
	if _, err := g.store.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g guestRegime) remove(ctx context.Context, productID string) ([]Item, error) {
	items := removeLine(g.store.Load(ctx), productID)
	if _, err := g.store.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g guestRegime) empty(ctx context.Context) ([]Item, error) {
	if err := g.store.Clear(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g guestRegime) cartID() string {
	return GuestCartID
}

// authRegime writes through the gateway and re-reads canonical server state
// after every mutation; writes are not optimistic. Its first fetch runs the
// pending guest-cart migration.
type authRegime struct {
	gw        Gateway
	migration *migration

	mu sync.Mutex
	id string
}

func (a *authRegime) fetch(ctx context.Context) ([]Item, error) {
	a.migration.run(ctx)
	remote, err := a.gw.FetchCart(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.id = remote.ID
	a.mu.Unlock()
	return remote.Items, nil
}

func (a *authRegime) add(ctx context.Context, it Item) ([]Item, error) {
	if err := a.gw.AddItem(ctx, it.ProductID, it.Quantity); err != nil {
		return nil, err
	}
	return a.fetch(ctx)
}

func (a *authRegime) setQuantity(ctx context.Context, productID string, quantity int32) ([]Item, error) {
	if err := a.gw.SetQuantity(ctx, productID, quantity); err != nil {
		return nil, err
	}
	return a.fetch(ctx)
}

func (a *authRegime) remove(ctx context.Context, productID string) ([]Item, error) {
	if err := a.gw.RemoveItem(ctx, productID); err != nil {
		return nil, err
	}
	return a.fetch(ctx)
}

// empty clears only the published view. The server cart is left untouched;
// order placement empties it on the server side.
func (a *authRegime) empty(ctx context.Context) ([]Item, error) {
	return nil, nil
}

// cartID is the server-assigned identifier, empty until the first
// successful fetch.
func (a *authRegime) cartID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}
