// Package event forwards change notifications from the in-process bus to
// Kafka so other services can follow a shopper's cart, wishlist and orders.
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/crystalbeauty/internal/bus"
	"github.com/utafrali/crystalbeauty/pkg/kafka"
	"github.com/utafrali/crystalbeauty/pkg/logger"
)

const (
	// Source is stamped on every event the storefront emits.
	Source = "storefront"

	aggregateType  = "shopper"
	publishTimeout = 5 * time.Second
)

// Publisher writes an event envelope to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Identifier resolves the shopper a notification was published for.
type Identifier interface {
	Current(ctx context.Context) (string, bool)
}

// Changed is the payload of every relayed event.
type Changed struct {
	Identity string `json:"identity"`
	Topic    string `json:"topic"`
}

type route struct {
	topic     string
	eventType string
}

var routes = map[bus.Topic]route{
	bus.CartUpdated:     {topic: kafka.Topic("cart", "updated"), eventType: "cart.updated"},
	bus.WishlistUpdated: {topic: kafka.Topic("wishlist", "updated"), eventType: "wishlist.updated"},
	bus.OrdersUpdated:   {topic: kafka.Topic("orders", "updated"), eventType: "orders.updated"},
}

// Relay subscribes to the bus and republishes each notification as a Kafka
// event keyed by identity. Publishing happens off the caller's goroutine so a
// slow broker never holds up a store mutation.
type Relay struct {
	publisher Publisher
	identity  Identifier
	logger    *slog.Logger
	timeout   time.Duration
	inflight  sync.WaitGroup
}

// NewRelay creates a relay.
func NewRelay(publisher Publisher, identity Identifier, logger *slog.Logger) *Relay {
	return &Relay{
		publisher: publisher,
		identity:  identity,
		logger:    logger,
		timeout:   publishTimeout,
	}
}

// Attach subscribes the relay to every bus topic and returns a function that
// detaches it again.
func (r *Relay) Attach(b *bus.Bus) (detach func()) {
	unsubs := make([]func(), 0, len(bus.Topics))
	for _, topic := range bus.Topics {
		unsubs = append(unsubs, b.Subscribe(topic, r.handle))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Wait blocks until every in-flight publish has finished.
func (r *Relay) Wait() {
	r.inflight.Wait()
}

func (r *Relay) handle(ctx context.Context, topic bus.Topic) {
	rt, ok := routes[topic]
	if !ok {
		return
	}
	id, ok := r.identity.Current(ctx)
	if !ok {
		// Logout notifications carry no identity.
		return
	}

	evt, err := kafka.NewEvent(rt.eventType, id, aggregateType, Source, Changed{Identity: id, Topic: string(topic)})
	if err != nil {
		logger.WithContext(ctx, r.logger).ErrorContext(ctx, "failed to build event",
			slog.String("topic", string(topic)),
			slog.String("error", err.Error()),
		)
		return
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer cancel()
		if err := r.publisher.Publish(pubCtx, rt.topic, evt); err != nil {
			logger.WithContext(pubCtx, r.logger).WarnContext(pubCtx, "failed to relay change event",
				slog.String("topic", rt.topic),
				slog.String("identity", id),
				slog.String("error", err.Error()),
			)
		}
	}()
}
