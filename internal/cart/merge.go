package cart

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// migration moves the guest cart into the server cart. It runs at most once
// per authenticated session, on the first fetch that observes the session.
//
// The move is a best-effort saga, not a transaction: every guest line is
// pushed through an independent add call, the calls fan out concurrently,
// and one line failing does not abort the others. Lines that fail to sync
// are recorded in the guest store's abandoned log before the main key is
// cleared, so they remain recoverable. The server's additive quantity
// semantics resolve products present in both carts; no client-side
// reconciliation is attempted.
type migration struct {
	log   *logrus.Entry
	store GuestStore
	gw    Gateway
	once  sync.Once
}

func (m *migration) run(ctx context.Context) {
	m.once.Do(func() { m.migrate(ctx) })
}

func (m *migration) migrate(ctx context.Context) {
	items := m.store.Load(ctx)
	if len(items) == 0 {
		return
	}

	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.gw.AddItem(ctx, items[i].ProductID, items[i].Quantity)
		}(i)
	}
	wg.Wait()

	var abandoned []Item
	for i, err := range errs {
		if err == nil {
			continue
		}
		m.log.WithError(err).WithFields(logrus.Fields{
			"product_id": items[i].ProductID,
			"quantity":   items[i].Quantity,
		}).Warn("cart migration: line not synced, recording as abandoned")
		abandoned = append(abandoned, items[i])
	}

	if len(abandoned) > 0 {
		if err := m.store.RecordAbandoned(ctx, abandoned); err != nil {
			// Neither synced nor recorded: keep the guest key so the lines
			// survive for a later session.
			m.log.WithError(err).Error("cart migration: could not record abandoned lines, guest cart kept")
			return
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		m.log.WithError(err).Warn("cart migration: failed to clear guest store")
		return
	}
	m.log.WithFields(logrus.Fields{
		"migrated":  len(items) - len(abandoned),
		"abandoned": len(abandoned),
	}).Info("cart migration complete")
}
