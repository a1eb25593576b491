package plan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// lowBalanceThresholdPct порог публикации события о низком балансе,
// в процентах от базового лимита.
const lowBalanceThresholdPct = 10

// SpendTokens атомарно списывает токены с пула вызывающего и относит
// расход на его участие. При нехватке баланса ничего не меняется и
// причина возвращается вызывающему для пользовательского сообщения.
func (s *Service) SpendTokens(ctx context.Context, userUID string, req models.DummySpend) (*models.SpendResult, error) {
	pool, _, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return nil, translate(err)
	}

	newBalance, err := s.repo.DeductTokens(ctx, pool.ID, userUID, req.Amount, req.UsageType)
	if err != nil {
		translated := translate(err)
		if errors.Is(translated, ErrInsufficientBalance) {
			s.metrics.RecordDeductRejected()
		}
		return nil, translated
	}

	s.metrics.RecordTokensSpent(req.UsageType, req.Amount)
	if err := s.cache.Invalidate(summaryCacheKey(pool.ID)); err != nil {
		s.log.Warn("failed to invalidate pool summary cache", slog.String("pool_id", pool.ID))
	}

	if newBalance*100 < pool.BaseLimit*lowBalanceThresholdPct {
		event := map[string]any{
			"pool_id":     pool.ID,
			"owner_uid":   pool.OwnerUserUID,
			"new_balance": newBalance,
			"base_limit":  pool.BaseLimit,
		}
		if err := s.publisher.Publish(rabbitmq.RoutingLowBalance, event); err != nil {
			s.log.Error("failed to publish low balance event", sl.Err(err),
				slog.String("pool_id", pool.ID))
		}
	}

	return &models.SpendResult{NewBalance: newBalance}, nil
}

// PurchaseTokens инициирует покупку пакета токенов. Доступно только
// владельцу плана и только если тип плана разрешает докупку. Баланс
// здесь не меняется: зачисление произойдёт, когда провайдер подтвердит
// платёж вебхуком.
func (s *Service) PurchaseTokens(ctx context.Context, userUID string, req models.DummyPurchase, actx models.AuditContext) (*models.PurchaseResult, error) {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return nil, translate(err)
	}
	if member.Role != models.RolePrimary {
		return nil, ErrAuthorization
	}

	limits, err := s.repo.GetPlanLimits(ctx, pool.PlanType)
	if err != nil {
		return nil, translate(err)
	}
	if !limits.AllowsPurchase {
		return nil, ErrPurchaseNotAllowed
	}

	result, err := s.payments.CreateTokenPayment(pool.ID, req.Amount, req.PaymentToken)
	if err != nil {
		return nil, err
	}

	if err := s.audit(ctx, userUID, models.AuditPurchaseTokens, models.AuditTargetPool,
		pool.ID, "token purchase initiated: "+result.PaymentID, actx); err != nil {
		return nil, err
	}
	s.log.Info("token purchase initiated",
		slog.String("pool_id", pool.ID),
		slog.String("payment_id", result.PaymentID),
		slog.Int("amount", req.Amount))
	return result, nil
}

// CreditPurchasedTokens зачисляет оплаченный пакет токенов. Вызывается
// обработчиком вебхука после подтверждения платежа. Повторное
// уведомление о том же платеже зачисления не удваивает.
func (s *Service) CreditPurchasedTokens(ctx context.Context, poolID, paymentID string, amount int) (int, error) {
	newBalance, err := s.repo.CreditPurchase(ctx, poolID, paymentID, amount)
	if err != nil {
		return 0, translate(err)
	}

	s.metrics.RecordPurchaseCredited()
	if err := s.cache.Invalidate(summaryCacheKey(poolID)); err != nil {
		s.log.Warn("failed to invalidate pool summary cache", slog.String("pool_id", poolID))
	}

	s.log.Info("purchased tokens credited",
		slog.String("pool_id", poolID),
		slog.String("payment_id", paymentID),
		slog.Int("amount", amount),
		slog.Int("new_balance", newBalance))
	return newBalance, nil
}
