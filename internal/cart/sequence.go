package cart

import "context"

// sequencer admits one cart operation at a time, so two overlapping
// mutations cannot interleave their read-modify-write cycles against the
// same cart. Waiters are not ordered among themselves; only mutual
// exclusion is guaranteed.
type sequencer struct {
	slot chan struct{}
}

func newSequencer() *sequencer {
	return &sequencer{slot: make(chan struct{}, 1)}
}

func (s *sequencer) do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slot }()
	return fn(ctx)
}
