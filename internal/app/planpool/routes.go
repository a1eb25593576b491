// Package planpool предоставляет маршруты и жизненный цикл HTTP-сервиса пула токенов.
package planpool

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/health"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/invitation/inviteaccept"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/invitation/invitecreate"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/invitation/invitelist"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/invitation/inviterevoke"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/member/memberlist"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/member/memberremove"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/member/usagehistory"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/plan/balance"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/plan/plancancel"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/plan/plancreate"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/plan/planinfo"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/token/purchase"
	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/token/spend"
	"github.com/magabrotheeeer/plan-pool/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-pool/internal/lib/jwt"
	paymentservice "github.com/magabrotheeeer/plan-pool/internal/services/payment"
	planservice "github.com/magabrotheeeer/plan-pool/internal/services/plan"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, planService *planservice.Service, paymentService *paymentservice.PaymentService, jwtMaker jwt.Maker, webhookSecret string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/plan", plancreate.New(logger, planService).ServeHTTP)
			r.Delete("/plan", plancancel.New(logger, planService).ServeHTTP)
			r.Get("/plan", planinfo.New(logger, planService).ServeHTTP)
			r.Get("/plan/balance", balance.New(logger, planService).ServeHTTP)
			r.Post("/plan/invitations", invitecreate.New(logger, planService).ServeHTTP)
			r.Delete("/plan/invitations/{id}", inviterevoke.New(logger, planService).ServeHTTP)
			r.Post("/invitations/accept", inviteaccept.New(logger, planService).ServeHTTP)
			r.Get("/invitations/pending", invitelist.New(logger, planService).ServeHTTP)
			r.Get("/plan/members", memberlist.New(logger, planService).ServeHTTP)
			r.Delete("/plan/members/{userUID}", memberremove.New(logger, planService).ServeHTTP)
			r.Get("/plan/usage", usagehistory.New(logger, planService).ServeHTTP)
			r.Post("/plan/tokens/spend", spend.New(logger, planService).ServeHTTP)
			r.Post("/plan/tokens/purchase", purchase.New(logger, planService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentService, webhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
