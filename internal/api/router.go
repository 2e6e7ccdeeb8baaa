package api

import (
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/api/handler"
	"github.com/ayo6706/retail-ledger/internal/api/middleware"
	"github.com/ayo6706/retail-ledger/internal/api/spec"
	"github.com/ayo6706/retail-ledger/internal/config"
	"github.com/ayo6706/retail-ledger/internal/idempotency"
	"github.com/ayo6706/retail-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services are the engine components the HTTP layer drives.
type Services struct {
	Auth      *service.AuthService
	Accounts  *service.AccountService
	Transfers *service.TransferService
	Reports   *service.ReportService
	OTP       handler.OTPIssuer
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	svc       Services
	idemStore *idempotency.Store
	health    map[string]handler.Pinger
}

// NewRouter wires handlers to services. health names the dependencies the
// readiness probe pings; nil entries are skipped.
func NewRouter(cfg *config.Config, logger *zap.Logger, svc Services, idemStore *idempotency.Store, health map[string]handler.Pinger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger, svc: svc, idemStore: idemStore, health: health}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID", "X-Idempotent-Replay", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authHandler := handler.NewAuthHandler(api.svc.Auth, api.cfg.JWTTTL)
	accountHandler := handler.NewAccountHandler(api.svc.Accounts, api.svc.Transfers)
	transferHandler := handler.NewTransferHandler(api.svc.Transfers)
	paymentHandler := handler.NewPaymentHandler(api.svc.Transfers)
	transactionHandler := handler.NewTransactionHandler(api.svc.Reports)
	helperHandler := handler.NewHelperHandler(api.svc.OTP, api.svc.Transfers)
	adminHandler := handler.NewAdminHandler(api.svc.Auth)
	healthHandler := handler.NewHealthHandler(api.health)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware)
			r.Use(middleware.LoadActor(api.svc.Auth))
			r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))
			idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

			r.Get("/accounts", accountHandler.List)
			r.With(idem).Post("/accounts", accountHandler.Open)
			r.With(idem).Delete("/accounts/{id}", accountHandler.Close)
			r.With(idem).Post("/accounts/{id}/topup", accountHandler.TopUp)
			r.With(idem).Post("/accounts/{id}/primary", accountHandler.SetPrimary)

			r.Route("/transfers", func(r chi.Router) {
				r.With(idem).Post("/", transferHandler.Internal)
				r.With(idem).Post("/by-account", transferHandler.ByAccount)
				r.With(idem).Post("/external-by-account", transferHandler.ExternalByAccount)
				r.Get("/by-account/check", transferHandler.CheckAccount)
				r.Get("/by-phone/check", transferHandler.CheckPhone)
				r.With(idem).Post("/by-phone", transferHandler.ByPhone)
				r.With(idem).Post("/exchange", transferHandler.Exchange)
				r.Get("/daily-usage", transferHandler.DailyUsage)
				r.Get("/rates", transferHandler.Rates)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/mobile/operators", paymentHandler.Operators)
				r.With(idem).Post("/mobile", paymentHandler.Mobile)
				r.Get("/vendor/providers", paymentHandler.Providers)
				r.With(idem).Post("/vendor", paymentHandler.Vendor)
			})

			r.Get("/transactions", transactionHandler.List)
			r.Get("/transactions/summary", transactionHandler.Summary)
			r.Get("/transactions/{id}", transactionHandler.Get)

			r.Get("/helper/otp/preview", helperHandler.PreviewOTP)
			r.With(idem).Post("/helper/accounts/{id}/increase", helperHandler.Increase)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/admin/users/{id}/block", adminHandler.Block)
				r.Post("/admin/users/{id}/unblock", adminHandler.Unblock)
				r.Get("/admin/users/{id}/banks", adminHandler.Banks)
				r.Put("/admin/users/{id}/banks", adminHandler.SetBanks)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondError(w, r, http.StatusNotFound, "route/not-found", "Route not found")
	})
	return r
}

func (api *Router) corsOrigins() []string {
	if len(api.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return api.cfg.CORSOrigins
}
