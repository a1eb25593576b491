package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindPoolsDue(ctx context.Context, now time.Time) ([]*models.TokenPool, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TokenPool), args.Error(1)
}
func (m *RepoMock) ResetPeriod(ctx context.Context, poolID string, now time.Time) (bool, error) {
	args := m.Called(ctx, poolID, now)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) MarkExpiredInvitations(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

type MetricsMock struct{ mock.Mock }

func (m *MetricsMock) RecordPeriodReset() { m.Called() }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func duePool(id string) *models.TokenPool {
	return &models.TokenPool{
		ID:           id,
		OwnerUserUID: "uid-" + id,
		PlanType:     models.PlanStandard,
		BaseLimit:    50000,
		Status:       models.PoolActive,
	}
}

func TestRunPeriodResets(t *testing.T) {
	t.Run("resets due pools and publishes events", func(t *testing.T) {
		repo := new(RepoMock)
		publisher := new(PublisherMock)
		metrics := new(MetricsMock)
		svc := NewSchedulerService(repo, publisher, metrics, newNoopLogger())

		repo.On("FindPoolsDue", mock.Anything, mock.Anything).
			Return([]*models.TokenPool{duePool("pool-1"), duePool("pool-2")}, nil).Once()
		repo.On("ResetPeriod", mock.Anything, "pool-1", mock.Anything).Return(true, nil).Once()
		repo.On("ResetPeriod", mock.Anything, "pool-2", mock.Anything).Return(true, nil).Once()
		metrics.On("RecordPeriodReset").Return().Twice()
		publisher.On("Publish", rabbitmq.RoutingPeriodReset, mock.MatchedBy(func(e PeriodResetEvent) bool {
			return e.NewBalance == 50000
		})).Return(nil).Twice()

		svc.runPeriodResets(context.Background())

		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
		metrics.AssertExpectations(t)
	})

	t.Run("pool already reset by another instance is skipped", func(t *testing.T) {
		repo := new(RepoMock)
		publisher := new(PublisherMock)
		metrics := new(MetricsMock)
		svc := NewSchedulerService(repo, publisher, metrics, newNoopLogger())

		repo.On("FindPoolsDue", mock.Anything, mock.Anything).
			Return([]*models.TokenPool{duePool("pool-1")}, nil).Once()
		repo.On("ResetPeriod", mock.Anything, "pool-1", mock.Anything).Return(false, nil).Once()

		svc.runPeriodResets(context.Background())

		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		metrics.AssertNotCalled(t, "RecordPeriodReset")
	})

	t.Run("reset failure does not stop other pools", func(t *testing.T) {
		repo := new(RepoMock)
		publisher := new(PublisherMock)
		metrics := new(MetricsMock)
		svc := NewSchedulerService(repo, publisher, metrics, newNoopLogger())

		repo.On("FindPoolsDue", mock.Anything, mock.Anything).
			Return([]*models.TokenPool{duePool("pool-1"), duePool("pool-2")}, nil).Once()
		repo.On("ResetPeriod", mock.Anything, "pool-1", mock.Anything).
			Return(false, errors.New("deadlock detected")).Once()
		repo.On("ResetPeriod", mock.Anything, "pool-2", mock.Anything).Return(true, nil).Once()
		metrics.On("RecordPeriodReset").Return().Once()
		publisher.On("Publish", rabbitmq.RoutingPeriodReset, mock.Anything).Return(nil).Once()

		svc.runPeriodResets(context.Background())

		repo.AssertExpectations(t)
	})

	t.Run("carryover pools keep purchased tokens in event balance", func(t *testing.T) {
		repo := new(RepoMock)
		publisher := new(PublisherMock)
		metrics := new(MetricsMock)
		svc := NewSchedulerService(repo, publisher, metrics, newNoopLogger())

		pool := duePool("pool-1")
		pool.PurchaseCarryover = true
		pool.PurchasedTokens = 10000
		repo.On("FindPoolsDue", mock.Anything, mock.Anything).
			Return([]*models.TokenPool{pool}, nil).Once()
		repo.On("ResetPeriod", mock.Anything, "pool-1", mock.Anything).Return(true, nil).Once()
		metrics.On("RecordPeriodReset").Return().Once()
		publisher.On("Publish", rabbitmq.RoutingPeriodReset, mock.MatchedBy(func(e PeriodResetEvent) bool {
			return e.NewBalance == 60000
		})).Return(nil).Once()

		svc.runPeriodResets(context.Background())

		publisher.AssertExpectations(t)
	})
}

func TestRunInvitationExpiry(t *testing.T) {
	repo := new(RepoMock)
	svc := NewSchedulerService(repo, new(PublisherMock), new(MetricsMock), newNoopLogger())

	repo.On("MarkExpiredInvitations", mock.Anything, mock.Anything).Return(3, nil).Once()

	svc.runInvitationExpiry(context.Background())

	repo.AssertExpectations(t)
}
