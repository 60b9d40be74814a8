package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kitcourier/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	Health       HealthChecker
	Metrics      http.Handler
	Sessions     SessionLister
	Entitlements EntitlementReader
}

// NewRouter はステータスAPIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → RateLimit(/api のみ)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", NewHealthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	sessionHandler := NewSessionHandler(deps.Sessions)
	entitlementHandler := NewEntitlementHandler(deps.Entitlements)

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/sessions", sessionHandler.List)
		r.Get("/sessions/{username}", sessionHandler.Get)
		r.Get("/entitlements/{username}", entitlementHandler.Get)
	})

	return r
}
