// Package wishlist is the per-shopper wishlist: a set of product ids
// persisted under "wishlist_<identity>" and mirrored, best effort, to the
// backend.
package wishlist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/internal/bus"
	"github.com/utafrali/crystalbeauty/internal/storage"
	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/logger"
)

const (
	keyPrefix = "wishlist_"

	// PlaceholderName labels products the catalog could not describe.
	PlaceholderName = "Product"

	defaultSyncTimeout = 5 * time.Second
)

// Identifier resolves the current shopper.
type Identifier interface {
	Current(ctx context.Context) (string, bool)
}

// Mirror is the backend's copy of the wishlist.
type Mirror interface {
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
}

// Catalog resolves product ids to records.
type Catalog interface {
	ListProducts(ctx context.Context, params backend.ListParams) ([]backend.Product, error)
}

var (
	syncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_wishlist_sync_failures_total",
		Help: "Wishlist mirror calls that failed, by operation.",
	}, []string{"operation"})

	catalogFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_wishlist_catalog_fallback_total",
		Help: "Wishlist product lookups answered with placeholders because the catalog failed.",
	})

	unresolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_wishlist_unresolved_products_total",
		Help: "Wishlist ids the catalog listing did not contain.",
	})
)

// Store implements the wishlist operations. The local set is authoritative:
// mirror failures are logged and counted but never change it or the result.
type Store struct {
	storage     storage.Storage
	identity    Identifier
	bus         bus.Publisher
	mirror      Mirror
	catalog     Catalog
	locks       *storage.KeyedMutex
	logger      *slog.Logger
	syncTimeout time.Duration
	inflight    sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithSyncTimeout bounds each mirror call.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}

// NewStore creates a wishlist store.
func NewStore(st storage.Storage, id Identifier, pub bus.Publisher, mirror Mirror, catalog Catalog, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		storage:     st,
		identity:    id,
		bus:         pub,
		mirror:      mirror,
		catalog:     catalog,
		locks:       storage.NewKeyedMutex(),
		logger:      logger,
		syncTimeout: defaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key of identity's wishlist.
func Key(identity string) string {
	return keyPrefix + identity
}

// Load returns the current shopper's product ids in the order they were
// added. Without an identity the wishlist is empty.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	id, ok := s.identity.Current(ctx)
	if !ok {
		return []string{}, nil
	}
	return s.read(ctx, id)
}

// IsMember reports whether productID is on the wishlist.
func (s *Store) IsMember(ctx context.Context, productID string) (bool, error) {
	ids, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, productID), nil
}

// Count returns the wishlist size.
func (s *Store) Count(ctx context.Context) (int, error) {
	ids, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Add puts productID on the wishlist and mirrors the change to the backend
// in the background. Adding a member again leaves the set unchanged but
// still mirrors and notifies. It returns false when there is no shopper.
func (s *Store) Add(ctx context.Context, productID string) (bool, error) {
	return s.update(ctx, "add", productID, func(ids []string) []string {
		if slices.Contains(ids, productID) {
			return ids
		}
		return append(ids, productID)
	}, s.mirror.AddToWishlist)
}

// Remove takes productID off the wishlist and mirrors the change. Removing a
// non-member is not an error.
func (s *Store) Remove(ctx context.Context, productID string) (bool, error) {
	return s.update(ctx, "remove", productID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(id string) bool { return id == productID })
	}, s.mirror.RemoveFromWishlist)
}

// Wait blocks until every mirror call started so far has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// WithProductDetails resolves the wishlist against the catalog, keeping
// wishlist order. Ids the catalog does not list are left out. If the catalog
// cannot be reached every id comes back as a placeholder record so the
// caller always has something to render; the error is reserved for local
// storage failures.
func (s *Store) WithProductDetails(ctx context.Context) ([]backend.Product, error) {
	ids, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []backend.Product{}, nil
	}

	products, err := s.catalog.ListProducts(ctx, backend.ListParams{})
	if err != nil {
		catalogFallbackTotal.Inc()
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "catalog unavailable, using wishlist placeholders",
			slog.Int("count", len(ids)),
			slog.String("error", err.Error()),
		)
		return placeholders(ids), nil
	}

	byID := make(map[string]backend.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]backend.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	if missing := len(ids) - len(out); missing > 0 {
		// Either delisted products or a catalog listing that stopped short.
		unresolvedTotal.Add(float64(missing))
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "wishlist ids missing from catalog",
			slog.Int("missing", missing),
			slog.Int("catalog_size", len(products)),
		)
	}
	return out, nil
}

func placeholders(ids []string) []backend.Product {
	out := make([]backend.Product, len(ids))
	for i, id := range ids {
		out[i] = backend.Product{ID: id, Name: PlaceholderName}
	}
	return out
}

func (s *Store) update(ctx context.Context, op, productID string, fn func([]string) []string, remote func(context.Context, string) error) (bool, error) {
	if productID == "" {
		return false, apperrors.InvalidInput("product id is required")
	}

	id, ok := s.identity.Current(ctx)
	if !ok {
		return false, nil
	}

	if err := s.apply(ctx, id, fn); err != nil {
		return false, fmt.Errorf("%s wishlist item: %w", op, err)
	}

	s.syncRemote(ctx, op, productID, remote)

	logger.WithContext(ctx, s.logger).DebugContext(ctx, "wishlist updated",
		slog.String("operation", op),
		slog.String("product_id", productID),
	)
	s.bus.Publish(ctx, bus.WishlistUpdated)
	return true, nil
}

// syncRemote runs a mirror call in the background. It is the only place a
// mirror failure is observed: logged, counted and dropped. The call keeps
// ctx's values (the bearer token among them) but not its cancellation.
func (s *Store) syncRemote(ctx context.Context, op, productID string, call func(context.Context, string) error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()

		if err := call(callCtx, productID); err != nil {
			syncFailuresTotal.WithLabelValues(op).Inc()
			logger.WithContext(callCtx, s.logger).WarnContext(callCtx, "wishlist mirror failed",
				slog.String("operation", op),
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (s *Store) apply(ctx context.Context, id string, fn func([]string) []string) error {
	key := Key(id)
	unlock := s.locks.Lock(key)
	defer unlock()

	ids, err := s.read(ctx, id)
	if err != nil {
		return err
	}
	return s.write(ctx, key, fn(ids))
}

func (s *Store) read(ctx context.Context, id string) ([]string, error) {
	raw, found, err := s.storage.Get(ctx, Key(id))
	if err != nil {
		return nil, fmt.Errorf("read wishlist: %w", err)
	}
	if !found || raw == "" {
		return []string{}, nil
	}

	var stored []string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "discarding unreadable wishlist",
			slog.String("error", err.Error()),
		)
		return []string{}, nil
	}

	// Drop blanks and duplicates left by older writers.
	out := make([]string, 0, len(stored))
	for _, pid := range stored {
		if pid != "" && !slices.Contains(out, pid) {
			out = append(out, pid)
		}
	}
	return out, nil
}

func (s *Store) write(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		if err := s.storage.Remove(ctx, key); err != nil {
			return fmt.Errorf("write wishlist: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal wishlist: %w", err)
	}
	if err := s.storage.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write wishlist: %w", err)
	}
	return nil
}
