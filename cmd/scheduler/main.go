package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/plan-pool/internal/config"
	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/metrics"
	"github.com/magabrotheeeer/plan-pool/internal/services/scheduler"
	"github.com/magabrotheeeer/plan-pool/internal/storage/repository"
)

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil // готово
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting scheduler", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("succes to connect to RabbitMQ:", slog.String("URL", cfg.RabbitMQURL))
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPlanEventQueues())
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("success to setup RabbitMQ channel")
	defer func() {
		_ = ch.Close()
	}()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.DB.Close()
	}()
	if err = waitForDB(db); err != nil {
		logger.Error("Database is not ready:", sl.Err(err))
		os.Exit(1)
	}

	publisher := &rabbitmq.ChannelPublisher{Channel: ch}
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	schedulerService := scheduler.NewSchedulerService(db, publisher, collector, logger)

	go schedulerService.RunPeriodResets(ctx, cfg.Scheduler.ResetInterval)
	go schedulerService.RunInvitationExpiry(ctx, cfg.Scheduler.ExpireInterval)

	<-ctx.Done()
	logger.Info("scheduler stopped gracefully")
}
