package mission

import (
	"context"
	"errors"
	"fmt"
)

// Order numbers within a scope (a mission's slot groups, or a slot
// group's slots) form a dense zero-based sequence: exactly {0 .. n-1},
// no duplicates, no gaps. The three operations below preserve that
// invariant by shifting a single contiguous block per mutation. They
// validate their inputs against the current scope size before touching
// anything; implementations of OrderScope are expected to run each
// operation inside one transaction so a failure leaves the scope
// unchanged.

var (
	// ErrOrderOutOfRange rejects an afterIndex or target order outside the
	// scope's valid range before any mutation happens.
	ErrOrderOutOfRange = errors.New("mission: order number out of range")
	// ErrOrderNotDense reports a scope whose order numbers already violate
	// the dense-sequence invariant.
	ErrOrderNotDense = errors.New("mission: order numbers are not dense")
)

// OrderScope is the data-access abstraction the renumbering algorithm
// runs against. A scope instance is bound to one parent (mission or slot
// group) and, for persistent implementations, to one open transaction.
type OrderScope interface {
	// Len returns the number of items currently in the scope.
	Len(ctx context.Context) (int, error)
	// Shift adds delta to the order number of every item with an order in
	// [lo, hi]. An empty range (lo > hi) is a no-op.
	Shift(ctx context.Context, lo, hi, delta int) error
	// Place assigns the order number of the single identified item.
	Place(ctx context.Context, itemUID string, order int) error
}

// InsertAfter opens the position following afterIndex and returns the
// order number the new item must be stored with. afterIndex -1 inserts at
// the front; len-1 appends. Anything outside [-1, len-1] fails before any
// shift.
func InsertAfter(ctx context.Context, scope OrderScope, afterIndex int) (int, error) {
	n, err := scope.Len(ctx)
	if err != nil {
		return 0, err
	}
	if afterIndex < -1 || afterIndex > n-1 {
		return 0, fmt.Errorf("%w: insert after %d in scope of %d", ErrOrderOutOfRange, afterIndex, n)
	}
	newOrder := afterIndex + 1
	if err := scope.Shift(ctx, newOrder, n-1, +1); err != nil {
		return 0, err
	}
	return newOrder, nil
}

// Append returns the order number for a new item placed at the end of
// the scope. No shift is needed; the position after the last item is
// free by the density invariant.
func Append(ctx context.Context, scope OrderScope) (int, error) {
	return scope.Len(ctx)
}

// Move relocates the item currently at oldOrder to newOrder, shifting the
// contiguous block between the two positions by one. Equal positions are
// a no-op.
func Move(ctx context.Context, scope OrderScope, itemUID string, oldOrder, newOrder int) error {
	n, err := scope.Len(ctx)
	if err != nil {
		return err
	}
	if oldOrder < 0 || oldOrder > n-1 || newOrder < 0 || newOrder > n-1 {
		return fmt.Errorf("%w: move %d -> %d in scope of %d", ErrOrderOutOfRange, oldOrder, newOrder, n)
	}
	if oldOrder == newOrder {
		return nil
	}
	if newOrder > oldOrder {
		if err := scope.Shift(ctx, oldOrder+1, newOrder, -1); err != nil {
			return err
		}
	} else {
		if err := scope.Shift(ctx, newOrder, oldOrder-1, +1); err != nil {
			return err
		}
	}
	return scope.Place(ctx, itemUID, newOrder)
}

// CloseGap restores density after the item at deletedOrder was removed:
// every remaining item above it moves down by one. It is called with the
// scope already excluding the deleted item.
func CloseGap(ctx context.Context, scope OrderScope, deletedOrder int) error {
	n, err := scope.Len(ctx)
	if err != nil {
		return err
	}
	if deletedOrder < 0 || deletedOrder > n {
		return fmt.Errorf("%w: close gap at %d in scope of %d", ErrOrderOutOfRange, deletedOrder, n)
	}
	return scope.Shift(ctx, deletedOrder+1, n, -1)
}

// SliceScope adapts an in-memory slice of orderable items (slot groups or
// slots already fetched from storage) to OrderScope. It verifies the
// dense-sequence invariant lazily on first use.
type SliceScope[T Orderable] struct {
	Items []T

	// AllowGap marks the scope as freshly missing one item (post delete);
	// density is then checked with a single hole allowed.
	AllowGap bool

	checked bool
}

// Orderable is implemented by *SlotGroup and *Slot.
type Orderable interface {
	ItemUID() string
	Order() int
	SetOrder(int)
}

func (s *SliceScope[T]) ensureDense() error {
	if s.checked {
		return nil
	}
	seen := make(map[int]struct{}, len(s.Items))
	limit := len(s.Items)
	if s.AllowGap {
		limit++
	}
	for _, item := range s.Items {
		order := item.Order()
		if order < 0 || order >= limit {
			return fmt.Errorf("%w: order %d outside [0, %d)", ErrOrderNotDense, order, limit)
		}
		if _, dup := seen[order]; dup {
			return fmt.Errorf("%w: duplicate order %d", ErrOrderNotDense, order)
		}
		seen[order] = struct{}{}
	}
	s.checked = true
	return nil
}

// Len implements OrderScope.
func (s *SliceScope[T]) Len(ctx context.Context) (int, error) {
	if err := s.ensureDense(); err != nil {
		return 0, err
	}
	return len(s.Items), nil
}

// Shift implements OrderScope.
func (s *SliceScope[T]) Shift(ctx context.Context, lo, hi, delta int) error {
	if err := s.ensureDense(); err != nil {
		return err
	}
	if lo > hi {
		return nil
	}
	for _, item := range s.Items {
		if order := item.Order(); order >= lo && order <= hi {
			item.SetOrder(order + delta)
		}
	}
	return nil
}

// Place implements OrderScope.
func (s *SliceScope[T]) Place(ctx context.Context, itemUID string, order int) error {
	for _, item := range s.Items {
		if item.ItemUID() == itemUID {
			item.SetOrder(order)
			return nil
		}
	}
	return fmt.Errorf("mission: no item %s in scope", itemUID)
}
