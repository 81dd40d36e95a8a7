// Package cart is the per-shopper cart: an ordered list of product lines
// persisted under "cart_<identity>".
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/crystalbeauty/internal/bus"
	"github.com/utafrali/crystalbeauty/internal/storage"
	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/logger"
)

const keyPrefix = "cart_"

// LineItem is one product in the cart. Quantity is always positive.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"qty"`
}

// Identifier resolves the current shopper.
type Identifier interface {
	Current(ctx context.Context) (string, bool)
}

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_cart_operations_total",
	Help: "Cart store calls by operation and result.",
}, []string{"operation", "result"})

// Store implements the cart operations. Every mutation rewrites the whole
// persisted list under a per-key lock and then publishes bus.CartUpdated.
type Store struct {
	storage  storage.Storage
	identity Identifier
	bus      bus.Publisher
	locks    *storage.KeyedMutex
	logger   *slog.Logger
}

// NewStore creates a cart store.
func NewStore(st storage.Storage, id Identifier, pub bus.Publisher, logger *slog.Logger) *Store {
	return &Store{
		storage:  st,
		identity: id,
		bus:      pub,
		locks:    storage.NewKeyedMutex(),
		logger:   logger,
	}
}

// Key returns the storage key of identity's cart.
func Key(identity string) string {
	return keyPrefix + identity
}

// Load returns the current shopper's lines in insertion order. Without an
// identity the cart is empty.
func (s *Store) Load(ctx context.Context) ([]LineItem, error) {
	id, ok := s.identity.Current(ctx)
	if !ok {
		return []LineItem{}, nil
	}
	items, err := s.read(ctx, id)
	if err != nil {
		operationsTotal.WithLabelValues("load", "error").Inc()
		return nil, err
	}
	return items, nil
}

// Count returns the total number of units in the cart.
func (s *Store) Count(ctx context.Context) (int, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n, nil
}

// Add merges qty into productID's line. A new product is appended; an
// existing line gets existing+qty, and a result of zero or less removes the
// line, so a negative qty works as a decrement. It returns false when there
// is no shopper to act for.
func (s *Store) Add(ctx context.Context, productID string, qty int) (bool, error) {
	if productID == "" {
		return false, apperrors.InvalidInput("product id is required")
	}
	if qty == 0 {
		return false, apperrors.InvalidInput("quantity must not be zero")
	}

	identified, _, err := s.mutate(ctx, "add", func(items []LineItem) ([]LineItem, bool) {
		for i := range items {
			if items[i].ProductID != productID {
				continue
			}
			items[i].Quantity += qty
			if items[i].Quantity <= 0 {
				items = append(items[:i], items[i+1:]...)
			}
			return items, true
		}
		if qty < 0 {
			return items, false
		}
		return append(items, LineItem{ProductID: productID, Quantity: qty}), true
	})
	return identified, err
}

// UpdateQuantity sets productID's quantity to qty. Unlike Add it never
// deletes: qty below 1 is rejected, and so is a product not in the cart. Both
// return false and leave the cart untouched.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) (bool, error) {
	if qty < 1 || productID == "" {
		operationsTotal.WithLabelValues("update_quantity", "rejected").Inc()
		return false, nil
	}

	_, changed, err := s.mutate(ctx, "update_quantity", func(items []LineItem) ([]LineItem, bool) {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = qty
				return items, true
			}
		}
		return items, false
	})
	return changed, err
}

// Remove deletes productID's line. Removing an absent product succeeds
// without publishing.
func (s *Store) Remove(ctx context.Context, productID string) (bool, error) {
	identified, _, err := s.mutate(ctx, "remove", func(items []LineItem) ([]LineItem, bool) {
		for i := range items {
			if items[i].ProductID == productID {
				return append(items[:i], items[i+1:]...), true
			}
		}
		return items, false
	})
	return identified, err
}

// Clear deletes the current shopper's cart.
func (s *Store) Clear(ctx context.Context) (bool, error) {
	id, ok := s.identity.Current(ctx)
	if !ok {
		operationsTotal.WithLabelValues("clear", "no_identity").Inc()
		return false, nil
	}

	key := Key(id)
	unlock := s.locks.Lock(key)
	err := s.storage.Remove(ctx, key)
	unlock()
	if err != nil {
		operationsTotal.WithLabelValues("clear", "error").Inc()
		return false, fmt.Errorf("clear cart: %w", err)
	}

	operationsTotal.WithLabelValues("clear", "ok").Inc()
	logger.WithContext(ctx, s.logger).DebugContext(ctx, "cart cleared")
	s.bus.Publish(ctx, bus.CartUpdated)
	return true, nil
}

// Deduct subtracts ordered quantities from the matching lines and drops lines
// that reach zero. Lines added after the order was taken are left alone.
func (s *Store) Deduct(ctx context.Context, ordered []LineItem) (bool, error) {
	identified, _, err := s.mutate(ctx, "deduct", func(items []LineItem) ([]LineItem, bool) {
		taken := make(map[string]int, len(ordered))
		for _, it := range ordered {
			taken[it.ProductID] += it.Quantity
		}

		kept := items[:0]
		changed := false
		for _, it := range items {
			if n, ok := taken[it.ProductID]; ok && n > 0 {
				it.Quantity -= n
				changed = true
			}
			if it.Quantity > 0 {
				kept = append(kept, it)
			}
		}
		return kept, changed
	})
	return identified, err
}

// mutate runs fn over the persisted lines under the key lock and writes the
// result back when fn reports a change. identified is false when there is no
// shopper. The notification goes out after the lock is released so
// subscribers may call back into the store.
func (s *Store) mutate(ctx context.Context, op string, fn func([]LineItem) ([]LineItem, bool)) (identified, changed bool, err error) {
	id, ok := s.identity.Current(ctx)
	if !ok {
		operationsTotal.WithLabelValues(op, "no_identity").Inc()
		return false, false, nil
	}

	changed, err = s.apply(ctx, id, fn)
	if err != nil {
		operationsTotal.WithLabelValues(op, "error").Inc()
		return false, false, fmt.Errorf("%s cart item: %w", op, err)
	}
	if !changed {
		operationsTotal.WithLabelValues(op, "unchanged").Inc()
		return true, false, nil
	}

	operationsTotal.WithLabelValues(op, "ok").Inc()
	logger.WithContext(ctx, s.logger).DebugContext(ctx, "cart updated", slog.String("operation", op))
	s.bus.Publish(ctx, bus.CartUpdated)
	return true, true, nil
}

func (s *Store) apply(ctx context.Context, id string, fn func([]LineItem) ([]LineItem, bool)) (bool, error) {
	key := Key(id)
	unlock := s.locks.Lock(key)
	defer unlock()

	items, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}

	items, changed := fn(items)
	if !changed {
		return false, nil
	}
	return true, s.write(ctx, key, items)
}

func (s *Store) read(ctx context.Context, id string) ([]LineItem, error) {
	raw, found, err := s.storage.Get(ctx, Key(id))
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if !found || raw == "" {
		return []LineItem{}, nil
	}

	var stored []LineItem
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		// The next successful write replaces the unreadable value.
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "discarding unreadable cart",
			slog.String("error", err.Error()),
		)
		return []LineItem{}, nil
	}
	return normalize(stored), nil
}

func (s *Store) write(ctx context.Context, key string, items []LineItem) error {
	if len(items) == 0 {
		if err := s.storage.Remove(ctx, key); err != nil {
			return fmt.Errorf("write cart: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.storage.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}

// normalize enforces the cart invariants on data read back from storage:
// one line per product and positive quantities. Duplicates merge into the
// first occurrence.
func normalize(in []LineItem) []LineItem {
	out := make([]LineItem, 0, len(in))
	index := make(map[string]int, len(in))
	for _, it := range in {
		if it.ProductID == "" {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}

	kept := out[:0]
	for _, it := range out {
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	return kept
}
