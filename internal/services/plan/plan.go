// Package plan содержит бизнес-логику общего пула токенов: жизненный
// цикл приглашений и участников, списание и покупку токенов, журнал
// аудита. Проверки ролей сосредоточены здесь, а не в хранилище, чтобы
// политика авторизации читалась в одном месте.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/plan-pool/internal/lib/period"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/storage/repository"
)

// summaryCacheTTL время жизни кешированной сводки пула. Короткое:
// баланс меняется каждым списанием, кеш лишь гасит всплески чтений.
const summaryCacheTTL = 30 * time.Second

// PoolRepository определяет методы хранилища, используемые сервисом плана.
type PoolRepository interface {
	CreatePool(ctx context.Context, pool models.TokenPool, primary models.Membership) error
	GetPool(ctx context.Context, poolID string) (*models.TokenPool, error)
	GetPoolByMember(ctx context.Context, userUID string) (*models.TokenPool, *models.Membership, error)
	CancelPool(ctx context.Context, poolID string) error
	DeductTokens(ctx context.Context, poolID, userUID string, amount int, usageType string) (int, error)
	CreditPurchase(ctx context.Context, poolID, paymentID string, amount int) (int, error)
	CheckCapacity(ctx context.Context, poolID string, now time.Time) (*models.CapacityInfo, error)
	GetMembership(ctx context.Context, poolID, userUID string) (*models.Membership, error)
	ListMembers(ctx context.Context, poolID string) ([]*models.MemberInfo, error)
	RemoveMember(ctx context.Context, poolID, targetUserUID string) error
	ListUsageEvents(ctx context.Context, poolID, userUID string, limit, offset int) ([]*models.UsageEvent, error)
	CreateInvitation(ctx context.Context, inv models.Invitation, now time.Time) error
	GetInvitation(ctx context.Context, invitationID string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, invToken string, member models.Membership, now time.Time) (*models.Membership, error)
	RevokeInvitation(ctx context.Context, invitationID string) error
	ListPendingByEmail(ctx context.Context, email string, now time.Time) ([]*models.PendingInvitationInfo, error)
	CountPendingInvitations(ctx context.Context, poolID string, now time.Time) (int, error)
	GetPlanLimits(ctx context.Context, planType string) (*models.PlanTypeLimits, error)
	InsertAuditEntry(ctx context.Context, entry models.AuditLogEntry) (int, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Publisher публикует события плана для внешних коллабораторов.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// PaymentCreator создаёт платёж за пакет токенов у внешнего провайдера.
type PaymentCreator interface {
	CreateTokenPayment(poolID string, amount int, paymentToken string) (*models.PurchaseResult, error)
}

// Metrics учитывает метрики операций над пулом.
type Metrics interface {
	RecordTokensSpent(usageType string, amount int)
	RecordDeductRejected()
	RecordInvitationCreated()
	RecordMemberActivated()
	RecordPurchaseCredited()
}

// Service реализует бизнес-логику общего пула токенов.
type Service struct {
	repo      PoolRepository
	cache     Cache
	publisher Publisher
	payments  PaymentCreator
	metrics   Metrics
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo PoolRepository, cache Cache, publisher Publisher, payments PaymentCreator, metrics Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		payments:  payments,
		metrics:   metrics,
		log:       log,
	}
}

func summaryCacheKey(poolID string) string {
	return "pool_summary:" + poolID
}

// translate приводит ошибки хранилища к таксономии сервиса.
func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, repository.ErrCapacityReached):
		return ErrCapacity
	case errors.Is(err, repository.ErrInviteExpired):
		return ErrExpired
	case errors.Is(err, repository.ErrInviteNotPending):
		return ErrAlreadyAccepted
	default:
		return err
	}
}

// audit пишет запись аудита синхронно с операцией: отказ журнала — отказ
// операции, обойти запись вызывающий код не может.
func (s *Service) audit(ctx context.Context, accessorUID, action, targetType, targetID, summary string, actx models.AuditContext) error {
	_, err := s.repo.InsertAuditEntry(ctx, models.AuditLogEntry{
		AccessorUserUID: accessorUID,
		ActionType:      action,
		TargetType:      targetType,
		TargetID:        targetID,
		AccessorIP:      actx.IP,
		AccessorUA:      actx.UserAgent,
		ResultSummary:   summary,
	})
	if err != nil {
		return fmt.Errorf("audit log write failed: %w", err)
	}
	return nil
}

// CreatePlan создаёт пул токенов для пользователя, делая его владельцем
// (primary). Владелец подтверждает возраст и условия при покупке плана.
func (s *Service) CreatePlan(ctx context.Context, userUID, username, planType string) (*models.TokenPool, error) {
	if _, _, err := s.repo.GetPoolByMember(ctx, userUID); err == nil {
		return nil, ErrAlreadyHasPlan
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	limits, err := s.repo.GetPlanLimits(ctx, planType)
	if err != nil {
		return nil, translate(err)
	}

	window := period.New(time.Now())
	pool := models.TokenPool{
		ID:                uuid.New().String(),
		OwnerUserUID:      userUID,
		PlanType:          planType,
		BaseLimit:         limits.MonthlyTokenLimit,
		PurchasedTokens:   0,
		CurrentBalance:    limits.MonthlyTokenLimit,
		PurchaseCarryover: limits.PurchaseCarryover,
		PeriodStart:       window.Start,
		PeriodEnd:         window.End,
		Status:            models.PoolActive,
	}
	primary := models.Membership{
		ID:            uuid.New().String(),
		UserUID:       userUID,
		Username:      username,
		AgeVerified:   true,
		TermsAccepted: true,
	}

	if err := s.repo.CreatePool(ctx, pool, primary); err != nil {
		return nil, err
	}
	s.log.Info("plan created",
		slog.String("pool_id", pool.ID),
		slog.String("plan_type", planType),
		slog.String("owner", userUID))
	return &pool, nil
}

// CancelPlan архивирует пул. Доступно только владельцу.
func (s *Service) CancelPlan(ctx context.Context, userUID string, actx models.AuditContext) error {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return translate(err)
	}
	if member.Role != models.RolePrimary {
		return ErrAuthorization
	}

	if err := s.repo.CancelPool(ctx, pool.ID); err != nil {
		return translate(err)
	}
	if err := s.cache.Invalidate(summaryCacheKey(pool.ID)); err != nil {
		s.log.Warn("failed to invalidate pool summary cache", slog.String("pool_id", pool.ID))
	}
	return s.audit(ctx, userUID, models.AuditCancelPlan, models.AuditTargetPool, pool.ID, "plan cancelled", actx)
}

// GetPlanInfo возвращает сводку плана пользователя. Отсутствие плана —
// не ошибка, а пустое состояние.
func (s *Service) GetPlanInfo(ctx context.Context, userUID string) (*models.PlanInfo, error) {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.PlanInfo{HasPlan: false}, nil
	}
	if err != nil {
		return nil, err
	}

	capacity, err := s.repo.CheckCapacity(ctx, pool.ID, time.Now())
	if err != nil {
		return nil, translate(err)
	}
	pending, err := s.repo.CountPendingInvitations(ctx, pool.ID, time.Now())
	if err != nil {
		return nil, err
	}

	return &models.PlanInfo{
		HasPlan:            true,
		PlanType:           pool.PlanType,
		Role:               member.Role,
		Balance:            pool.CurrentBalance,
		MonthlyLimit:       pool.BaseLimit,
		MaxUsers:           capacity.MaxUsers,
		MemberCount:        capacity.CurrentCount - pending,
		PendingInvitations: pending,
	}, nil
}

// GetBalance возвращает сводку баланса пула пользователя.
func (s *Service) GetBalance(ctx context.Context, userUID string) (*models.PoolSummary, error) {
	pool, _, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return nil, translate(err)
	}

	var cached models.PoolSummary
	found, err := s.cache.Get(summaryCacheKey(pool.ID), &cached)
	if err != nil {
		s.log.Warn("failed to read pool summary cache", slog.String("pool_id", pool.ID))
	}
	if found {
		return &cached, nil
	}

	summary := models.PoolSummary{
		Available: pool.CurrentBalance,
		Used:      pool.BaseLimit + pool.PurchasedTokens - pool.CurrentBalance,
		Purchased: pool.PurchasedTokens,
		Limit:     pool.BaseLimit,
		PeriodEnd: pool.PeriodEnd,
	}
	if err := s.cache.Set(summaryCacheKey(pool.ID), summary, summaryCacheTTL); err != nil {
		s.log.Warn("failed to cache pool summary", slog.String("pool_id", pool.ID))
	}
	return &summary, nil
}
