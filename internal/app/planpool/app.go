package planpool

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/plan-pool/internal/cache"
	"github.com/magabrotheeeer/plan-pool/internal/config"
	"github.com/magabrotheeeer/plan-pool/internal/lib/jwt"
	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/metrics"
	"github.com/magabrotheeeer/plan-pool/internal/migrations"
	"github.com/magabrotheeeer/plan-pool/internal/paymentprovider"
	paymentservice "github.com/magabrotheeeer/plan-pool/internal/services/payment"
	planservice "github.com/magabrotheeeer/plan-pool/internal/services/plan"
	"github.com/magabrotheeeer/plan-pool/internal/storage/repository"

	"github.com/streadway/amqp"
)

// App связывает зависимости HTTP-сервиса пула токенов.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	rabbitmq *amqp.Connection
}

// New собирает приложение: хранилище с миграциями, Redis, RabbitMQ,
// платёжный провайдер, сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	channel, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPlanEventQueues())
	if err != nil {
		return nil, err
	}
	publisher := &rabbitmq.ChannelPublisher{Channel: channel}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	providerClient := paymentprovider.NewClient(cfg.Payment.ShopID, cfg.Payment.SecretKey)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)

	// Сервисы плана и платежей ссылаются друг на друга: план создаёт
	// платежи, вебхук платежей зачисляет токены. Зачисление подключается
	// через замыкание, чтобы собрать оба сервиса без мутации полей.
	var planService *planservice.Service
	crediter := paymentservice.TokenCrediterFunc(func(ctx context.Context, poolID, paymentID string, amount int) (int, error) {
		return planService.CreditPurchasedTokens(ctx, poolID, paymentID, amount)
	})
	paymentService := paymentservice.New(providerClient, crediter, cfg.Payment.ReturnURL, logger)
	planService = planservice.New(db, cacheRedis, publisher, paymentService, collector, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, planService, paymentService, jwtMaker, cfg.Payment.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		cache:    cacheRedis,
		rabbitmq: conn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		a.rabbitmq.Close()
		return err
	}
}
