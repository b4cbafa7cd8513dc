package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/feastly-app/api/internal/config"
	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
	"github.com/feastly-app/api/internal/handler"
	mw "github.com/feastly-app/api/internal/middleware"
	"github.com/feastly-app/api/internal/payment"
	"github.com/feastly-app/api/internal/service"
	"github.com/feastly-app/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Customer routes require authentication; /admin routes additionally
// require the ADMIN role.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, gateway payment.Gateway, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Shared order service: the notify fan-out and the payment callback
	// need the same instance the HTTP handlers use.
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, queries, newOrderStore, gateway, hub, logger)

	// Payment provider callback (public, server-to-server)
	paymentHandler := handler.NewPaymentHandler(orderService)
	paymentHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Cart
		cartService := service.NewCartService(queries)
		cartHandler := handler.NewCartHandler(cartService)
		r.Route("/cart", cartHandler.RegisterRoutes)

		// Customer orders
		orderHandler := handler.NewOrderHandler(orderService, queries)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Address book
		addressHandler := handler.NewAddressHandler(queries)
		r.Route("/addresses", addressHandler.RegisterRoutes)

		// Merchant routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			adminOrderHandler := handler.NewAdminOrderHandler(orderService, queries)
			r.Route("/admin/orders", adminOrderHandler.RegisterRoutes)

			reportHandler := handler.NewReportHandler(queries)
			r.Route("/admin/reports", reportHandler.RegisterRoutes)
		})
	})

	logger.Info("router initialized")
	return r
}
