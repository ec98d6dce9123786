package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taskhub/taskhub-api/internal/app"
	"github.com/taskhub/taskhub-api/internal/domain/admin"
	"github.com/taskhub/taskhub-api/internal/domain/booking"
	"github.com/taskhub/taskhub-api/internal/domain/deposit"
	"github.com/taskhub/taskhub-api/internal/domain/escrow"
	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/middleware"
	"github.com/taskhub/taskhub-api/internal/pkg/ratelimit"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
)

const requestTimeout = 30 * time.Second

func newRouter(a *app.App) http.Handler {
	cfg := a.Config

	settingsHandler := settings.NewHandler(a.Settings)
	walletHandler := wallet.NewHandler(a.Wallet)
	escrowHandler := escrow.NewHandler(a.Escrow)
	depositHandler := deposit.NewHandler(a.Deposits, cfg.SepayWebhookKeyHash)
	bookingHandler := booking.NewHandler(a.Bookings)
	adminHandler := admin.NewHandler(a.Admin)
	realtimeHandler := realtime.NewHandler(a.Hub, a.JWT, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(a.JWT)
	profileMiddleware := middleware.LoadProfile(a.CachedUsers)
	moneyLimit := middleware.RateLimit(ratelimit.New(a.Redis, ratelimit.Options{
		Prefix:      "ratelimit:money",
		MaxAttempts: cfg.RateLimitAttempts,
		Window:      cfg.RateLimitWindow,
		Lockout:     cfg.RateLimitLockout,
	}), middleware.ByUser)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins, cfg.CORSMaxAge))

	// sockets are long lived, keep them out of the request timeout
	r.Mount("/ws", realtimeHandler.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Route("/wallet", func(r chi.Router) {
			settingsHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.IPGuard(cfg.WebhookRPS, cfg.WebhookBurst))
				r.Mount("/webhook", depositHandler.WebhookRoutes())
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware, profileMiddleware)
				walletHandler.RegisterRoutes(r, moneyLimit)
				escrowHandler.RegisterRoutes(r, moneyLimit)
				depositHandler.RegisterRoutes(r, moneyLimit)
			})
		})

		r.Route("/booking", func(r chi.Router) {
			r.Use(authMiddleware, profileMiddleware)
			r.Mount("/", bookingHandler.Routes())
		})

		// admin roles are read uncached so a revoked admin loses access at once
		r.Mount("/admin", adminHandler.Routes(authMiddleware, middleware.LoadProfile(a.Users),
			settingsHandler,
			walletHandler,
			escrowHandler,
		))

		r.Route("/cron", func(r chi.Router) {
			r.Use(middleware.CronAuth(cfg.CronSecret))
			r.Post("/release-escrows", escrowHandler.ReleaseDue)
			r.Post("/expire-deposits", depositHandler.ExpireStale)
		})
	})

	return r
}
