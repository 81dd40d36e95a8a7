// Package bus is the in-process change-notification bus. Stores publish a
// payload-free topic after every mutation; subscribers re-read the store they
// care about.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Topic names a kind of change.
type Topic string

const (
	CartUpdated     Topic = "cartUpdated"
	WishlistUpdated Topic = "wishlistUpdated"
	OrdersUpdated   Topic = "ordersUpdated"
)

// Topics lists every topic in use.
var Topics = []Topic{CartUpdated, WishlistUpdated, OrdersUpdated}

// Handler reacts to a notification. ctx is the publisher's context, so a
// handler can resolve the identity the change was made for.
type Handler func(ctx context.Context, topic Topic)

// Publisher is the side of the bus the stores depend on.
type Publisher interface {
	Publish(ctx context.Context, topic Topic)
}

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_bus_published_total",
		Help: "Notifications published, by topic.",
	}, []string{"topic"})

	handlerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_bus_handler_panics_total",
		Help: "Subscriber handlers that panicked, by topic.",
	}, []string{"topic"})
)

type subscription struct {
	handler Handler
	active  atomic.Bool
}

// Bus fans notifications out to subscribers. The zero value is not usable;
// create one with New and share it.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic][]*subscription
	logger *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[Topic][]*subscription),
		logger: logger,
	}
}

// Subscribe registers h for topic and returns a function that removes it.
// The returned function may be called any number of times.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	sub := &subscription{handler: h}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, sub) })
	}
}

func (b *Bus) remove(topic Topic, sub *subscription) {
	sub.active.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s == sub {
			// Copy so snapshots taken by in-flight publishes stay intact.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, topic)
			} else {
				b.subs[topic] = next
			}
			return
		}
	}
}

// Publish calls every handler subscribed to topic when Publish starts, in
// registration order, on the calling goroutine. Handlers subscribed during the
// publish are not called; handlers unsubscribed during it are skipped. A
// panicking handler is logged and the rest still run.
func (b *Bus) Publish(ctx context.Context, topic Topic) {
	b.mu.Lock()
	snapshot := b.subs[topic]
	b.mu.Unlock()

	publishedTotal.WithLabelValues(string(topic)).Inc()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		b.deliver(ctx, topic, sub.handler)
	}
}

func (b *Bus) deliver(ctx context.Context, topic Topic, h Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			handlerPanicsTotal.WithLabelValues(string(topic)).Inc()
			b.logger.ErrorContext(ctx, "bus handler panicked",
				slog.String("topic", string(topic)),
				slog.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	h(ctx, topic)
}

// Subscribers returns how many handlers are registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
