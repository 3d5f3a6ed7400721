package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/api/middleware"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/auth"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/chat"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/config"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/handlers"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/store"
)

// NewRouter creates and configures the HTTP router.
// redisStore may be nil in development; rate limiting and the recent-cache
// endpoint degrade gracefully without it.
func NewRouter(cfg *config.Config, logger zerolog.Logger, verifier *auth.Verifier, msgStore store.MessageStore, redisStore *store.RedisStore, chatServer *chat.Server) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (needs Redis)
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist: cfg.RateLimitWhitelist,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - the SPA and native clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create handler and auth middleware
	h := handlers.NewHandler(msgStore, redisStore, chatServer.Registry())
	authmw := middleware.NewAuthMiddleware(verifier)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// The websocket endpoint authenticates inside the handshake so refusals
	// can carry protocol close codes instead of HTTP statuses.
	r.Get("/ws/chat/{roomID}", chatServer.ServeWS)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Post("/chat/room/create", h.CreateRoom)
		r.Get("/chat/rooms", h.ListRooms)
		r.Get("/chat/room/{roomID}/messages", h.GetMessages)
		r.Post("/chat/room/{roomID}/message", h.SendMessage)
		r.Get("/chat/room/{roomID}/recent", h.RecentMessages)
	})

	return r
}
