package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/crystalbeauty/pkg/health"
	"github.com/utafrali/crystalbeauty/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig carries everything the storefront router mounts.
type RouterConfig struct {
	Cart     CartStore
	Wishlist WishlistStore
	Checkout CheckoutService
	Catalog  Catalog
	Session  SessionService
	Identity Identifier
	Events   *EventsHandler
	Health   *health.Handler
	Logger   *slog.Logger

	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, "/health", "/metrics"))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.BearerToken())

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cfg.Cart, cfg.Identity, logger)
	wishlistHandler := NewWishlistHandler(cfg.Wishlist, logger)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, logger)
	catalogHandler := NewCatalogHandler(cfg.Catalog, logger)
	sessionHandler := NewSessionHandler(cfg.Session, logger)
	limit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, middleware.ByTokenOrIP, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NoStore())

		// The websocket stream must not sit behind Timeout or Compress.
		r.With(TokenFromQuery, middleware.RequestLogger(logger, cfg.Identity.Current)).
			Get("/events", cfg.Events.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(cfg.RequestTimeout))
			r.Use(middleware.RequestLogger(logger, cfg.Identity.Current))
			r.Use(ContentTypeJSON)

			r.Get("/badges", cfg.Events.GetBadges)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", catalogHandler.ListProducts)
				r.Get("/search", catalogHandler.SearchProducts)
				r.Get("/{productId}", catalogHandler.GetProduct)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.With(limit).Delete("/", cartHandler.ClearCart)
				r.With(limit).Post("/items", cartHandler.AddItem)
				r.With(limit).Put("/items/{productId}", cartHandler.UpdateItemQuantity)
				r.With(limit).Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.GetWishlist)
				r.Get("/products", wishlistHandler.GetProducts)
				r.Get("/items/{productId}", wishlistHandler.GetItem)
				r.With(limit).Put("/items/{productId}", wishlistHandler.AddItem)
				r.With(limit).Delete("/items/{productId}", wishlistHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Use(limit)
				r.Get("/quote", checkoutHandler.QuoteCart)
				r.Post("/quote", checkoutHandler.QuoteItems)
				r.Post("/orders", checkoutHandler.PlaceOrder)
				r.Post("/buy-now", checkoutHandler.BuyNow)
			})

			r.Get("/orders", checkoutHandler.ListOrders)

			r.Route("/session", func(r chi.Router) {
				r.Use(limit)
				r.Post("/login", sessionHandler.Login)
				r.Post("/register", sessionHandler.Register)
				r.Post("/google", sessionHandler.GoogleLogin)
				r.Delete("/", sessionHandler.Logout)
			})
		})
	})

	return r
}
