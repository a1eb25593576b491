// Package scheduler содержит фоновые задачи пулов: сброс месячных
// периодов и пометку просроченных приглашений.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// PoolRepository определяет методы хранилища, используемые планировщиком.
type PoolRepository interface {
	FindPoolsDue(ctx context.Context, now time.Time) ([]*models.TokenPool, error)
	ResetPeriod(ctx context.Context, poolID string, now time.Time) (bool, error)
	MarkExpiredInvitations(ctx context.Context, now time.Time) (int, error)
}

// Metrics учитывает метрики фоновых задач.
type Metrics interface {
	RecordPeriodReset()
}

// PeriodResetEvent событие сброса периода для внешних коллабораторов.
type PeriodResetEvent struct {
	PoolID     string    `json:"pool_id"`
	OwnerUID   string    `json:"owner_uid"`
	NewBalance int       `json:"new_balance"`
	ResetAt    time.Time `json:"reset_at"`
}

// SchedulerService периодически сбрасывает периоды пулов и помечает
// просроченные приглашения.
type SchedulerService struct {
	repo      PoolRepository
	publisher rabbitmq.Publisher
	metrics   Metrics
	log       *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo PoolRepository, publisher rabbitmq.Publisher, metrics Metrics, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
	}
}

// RunPeriodResets запускает цикл сброса периодов с заданным интервалом.
// Завершается при отмене контекста.
func (s *SchedulerService) RunPeriodResets(ctx context.Context, interval time.Duration) {
	s.runPeriodResets(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPeriodResets(ctx)
		}
	}
}

func (s *SchedulerService) runPeriodResets(ctx context.Context) {
	s.log.Info("starting service to reset expired pool periods")
	now := time.Now()
	pools, err := s.repo.FindPoolsDue(ctx, now)
	if err != nil {
		s.log.Error("failed to find pools due for reset", sl.Err(err))
		return
	}
	if len(pools) == 0 {
		s.log.Info("no pools due for reset")
		return
	}
	s.log.Info("found pools due for reset", "count", len(pools))
	for _, pool := range pools {
		// Сброс идемпотентен: если другой инстанс успел раньше,
		// ResetPeriod вернёт false и пул пропускается.
		done, err := s.repo.ResetPeriod(ctx, pool.ID, now)
		if err != nil {
			s.log.Error("failed to reset pool period", sl.Err(err),
				slog.String("pool_id", pool.ID))
			continue
		}
		if !done {
			continue
		}
		s.metrics.RecordPeriodReset()

		balance := pool.BaseLimit
		if pool.PurchaseCarryover {
			balance += pool.PurchasedTokens
		}
		event := PeriodResetEvent{
			PoolID:     pool.ID,
			OwnerUID:   pool.OwnerUserUID,
			NewBalance: balance,
			ResetAt:    now,
		}
		if err := s.publisher.Publish(rabbitmq.RoutingPeriodReset, event); err != nil {
			s.log.Error("failed to publish period reset event", sl.Err(err),
				slog.String("pool_id", pool.ID))
		}
	}
}

// RunInvitationExpiry запускает цикл пометки просроченных приглашений
// с заданным интервалом. Завершается при отмене контекста.
func (s *SchedulerService) RunInvitationExpiry(ctx context.Context, interval time.Duration) {
	s.runInvitationExpiry(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runInvitationExpiry(ctx)
		}
	}
}

func (s *SchedulerService) runInvitationExpiry(ctx context.Context) {
	s.log.Info("starting service to mark expired invitations")
	count, err := s.repo.MarkExpiredInvitations(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to mark expired invitations", sl.Err(err))
		return
	}
	if count == 0 {
		s.log.Info("no expired invitations found")
		return
	}
	s.log.Info("marked expired invitations", "count", count)
}
