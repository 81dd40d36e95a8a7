package http

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utafrali/crystalbeauty/internal/bus"
	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/httputil"
	"github.com/utafrali/crystalbeauty/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Identifier resolves the current shopper.
type Identifier interface {
	Current(ctx context.Context) (string, bool)
}

// Subscriber is the listening side of the change bus.
type Subscriber interface {
	Subscribe(topic bus.Topic, h bus.Handler) (unsubscribe func())
}

// Counter reports a badge count.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// eventMessage is pushed to the client on connect and after every change
// that belongs to the connected shopper.
type eventMessage struct {
	Topic         string `json:"topic"`
	CartCount     int    `json:"cart_count"`
	WishlistCount int    `json:"wishlist_count"`
}

// EventsHandler streams badge updates over websockets and serves the badge
// counts as plain JSON.
type EventsHandler struct {
	upgrader websocket.Upgrader
	bus      Subscriber
	identity Identifier
	cart     Counter
	wishlist Counter
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]context.CancelFunc
}

// NewEventsHandler creates an events handler. An empty allowedOrigins list or
// one containing "*" accepts any origin.
func NewEventsHandler(sub Subscriber, id Identifier, cart, wishlist Counter, allowedOrigins []string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		bus:      sub,
		identity: id,
		cart:     cart,
		wishlist: wishlist,
		logger:   logger,
		clients:  make(map[*websocket.Conn]context.CancelFunc),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// GetBadges handles GET /api/v1/badges
func (h *EventsHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	msg, err := h.snapshot(r.Context(), "")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, badgesResponse{CartCount: msg.CartCount, WishlistCount: msg.WishlistCount})
}

// Stream handles GET /api/v1/events. The connection only hears about changes
// made for the identity it connected as.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity.Current(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.LoginRequired(), h.logger)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		logger.WithContext(r.Context(), h.logger).WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The connection outlives the request, but keeps its values so the stores
	// still resolve the same shopper.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))

	h.mu.Lock()
	h.clients[conn] = cancel
	h.mu.Unlock()

	changes := make(chan bus.Topic, sendBuffer)
	unsubs := make([]func(), 0, len(bus.Topics))
	for _, topic := range bus.Topics {
		unsubs = append(unsubs, h.bus.Subscribe(topic, func(pctx context.Context, t bus.Topic) {
			if owner, ok := h.identity.Current(pctx); !ok || owner != id {
				return
			}
			select {
			case changes <- t:
			default:
				// A slow client still catches up with the next change.
			}
		}))
	}

	h.logger.InfoContext(ctx, "websocket client connected", slog.String("identity", id))

	go h.writePump(ctx, conn, changes)
	go h.readPump(ctx, conn, func() {
		for _, unsub := range unsubs {
			unsub()
		}
	})
}

func (h *EventsHandler) readPump(ctx context.Context, conn *websocket.Conn, unsubscribe func()) {
	defer func() {
		unsubscribe()
		h.removeClient(ctx, conn)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.DebugContext(ctx, "websocket read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *EventsHandler) writePump(ctx context.Context, conn *websocket.Conn, changes <-chan bus.Topic) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		// Unblocks readPump, which then unsubscribes and drops the client.
		_ = conn.Close()
	}()

	if err := h.push(ctx, conn, "snapshot"); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
			return
		case topic := <-changes:
			if err := h.push(ctx, conn, topic); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) push(ctx context.Context, conn *websocket.Conn, topic bus.Topic) error {
	msg, err := h.snapshot(ctx, topic)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read badge counts", slog.String("error", err.Error()))
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (h *EventsHandler) snapshot(ctx context.Context, topic bus.Topic) (eventMessage, error) {
	cartCount, err := h.cart.Count(ctx)
	if err != nil {
		return eventMessage{}, err
	}
	wishlistCount, err := h.wishlist.Count(ctx)
	if err != nil {
		return eventMessage{}, err
	}
	return eventMessage{Topic: string(topic), CartCount: cartCount, WishlistCount: wishlistCount}, nil
}

func (h *EventsHandler) removeClient(ctx context.Context, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cancel, ok := h.clients[conn]; ok {
		cancel()
		delete(h.clients, conn)
		h.logger.InfoContext(ctx, "websocket client disconnected")
	}
}

// Connections reports how many websocket clients are attached.
func (h *EventsHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll asks every connected client to go away. The write pumps send the
// close frame; the read pumps release the connections.
func (h *EventsHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.clients {
		cancel()
	}
}
