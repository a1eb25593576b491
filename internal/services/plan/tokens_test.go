package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/storage/repository"
)

func TestService_SpendTokens(t *testing.T) {
	req := models.DummySpend{Amount: 500, UsageType: "chat"}

	t.Run("success deducts and invalidates cache", func(t *testing.T) {
		svc, repo, cache, _, _, metrics := newTestService()
		repo.On("GetPoolByMember", mock.Anything, "uid-member").
			Return(testPool(40000), testMember("uid-member", models.RoleAssociated), nil).Once()
		repo.On("DeductTokens", mock.Anything, "pool-1", "uid-member", 500, "chat").
			Return(39500, nil).Once()
		metrics.On("RecordTokensSpent", "chat", 500).Return().Once()
		cache.On("Invalidate", "pool_summary:pool-1").Return(nil).Once()

		result, err := svc.SpendTokens(context.Background(), "uid-member", req)
		require.NoError(t, err)
		assert.Equal(t, 39500, result.NewBalance)
		repo.AssertExpectations(t)
		metrics.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("insufficient balance is counted and surfaced", func(t *testing.T) {
		svc, repo, _, publisher, _, metrics := newTestService()
		repo.On("GetPoolByMember", mock.Anything, "uid-member").
			Return(testPool(100), testMember("uid-member", models.RoleAssociated), nil).Once()
		repo.On("DeductTokens", mock.Anything, "pool-1", "uid-member", 500, "chat").
			Return(0, repository.ErrInsufficientBalance).Once()
		metrics.On("RecordDeductRejected").Return().Once()

		_, err := svc.SpendTokens(context.Background(), "uid-member", req)
		require.ErrorIs(t, err, ErrInsufficientBalance)
		metrics.AssertExpectations(t)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("low balance publishes event", func(t *testing.T) {
		svc, repo, cache, publisher, _, metrics := newTestService()
		// base limit 50000, порог 10% = 5000
		repo.On("GetPoolByMember", mock.Anything, "uid-member").
			Return(testPool(5000), testMember("uid-member", models.RoleAssociated), nil).Once()
		repo.On("DeductTokens", mock.Anything, "pool-1", "uid-member", 500, "chat").
			Return(4500, nil).Once()
		metrics.On("RecordTokensSpent", "chat", 500).Return().Once()
		cache.On("Invalidate", "pool_summary:pool-1").Return(nil).Once()
		publisher.On("Publish", rabbitmq.RoutingLowBalance, mock.Anything).Return(nil).Once()

		_, err := svc.SpendTokens(context.Background(), "uid-member", req)
		require.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("no plan", func(t *testing.T) {
		svc, repo, _, _, _, _ := newTestService()
		repo.On("GetPoolByMember", mock.Anything, "uid-nobody").
			Return(nil, nil, repository.ErrNotFound).Once()

		_, err := svc.SpendTokens(context.Background(), "uid-nobody", req)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_PurchaseTokens(t *testing.T) {
	req := models.DummyPurchase{Amount: 10000, PaymentToken: "pt-abc"}

	t.Run("success initiates payment and audits", func(t *testing.T) {
		svc, repo, _, _, payments, _ := newTestService()
		repo.On("GetPoolByMember", mock.Anything, "uid-owner").
			Return(testPool(100), testMember("uid-owner", models.RolePrimary), nil).Once()
		repo.On("GetPlanLimits", mock.Anything, models.PlanStandard).
			Return(&models.PlanTypeLimits{PlanType: models.PlanStandard, AllowsPurchase: true}, nil).Once()
		payments.On("CreateTokenPayment", "pool-1", 10000, "pt-abc").
			Return(&models.PurchaseResult{PaymentID: "pay-1", Status: "pending", Tokens: 10000}, nil).Once()
		repo.On("InsertAuditEntry", mock.Anything, mock.MatchedBy(func(e models.AuditLogEntry) bool {
			return e.ActionType == models.AuditPurchaseTokens
		})).Return(1, nil).Once()

		result, err := svc.PurchaseTokens(context.Background(), "uid-owner", req, testActx)
		require.NoError(t, err)
		assert.Equal(t, "pay-1", result.PaymentID)
		payments.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("only primary can purchase", func(t *testing.T) {
		svc, repo, _, _, payments, _ := newTestService()
		repo.On("GetPoolByMember", mock.Anything, "uid-admin").
			Return(testPool(100), testMember("uid-admin", models.RoleAdmin), nil).Once()

		_, err := svc.PurchaseTokens(context.Background(), "uid-admin", req, testActx)
		require.ErrorIs(t, err, ErrAuthorization)
		payments.AssertNotCalled(t, "CreateTokenPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("plan type forbids purchase", func(t *testing.T) {
		svc, repo, _, _, payments, _ := newTestService()
		pool := testPool(100)
		pool.PlanType = models.PlanVisitor
		repo.On("GetPoolByMember", mock.Anything, "uid-owner").
			Return(pool, testMember("uid-owner", models.RolePrimary), nil).Once()
		repo.On("GetPlanLimits", mock.Anything, models.PlanVisitor).
			Return(&models.PlanTypeLimits{PlanType: models.PlanVisitor, AllowsPurchase: false}, nil).Once()

		_, err := svc.PurchaseTokens(context.Background(), "uid-owner", req, testActx)
		require.ErrorIs(t, err, ErrPurchaseNotAllowed)
		payments.AssertNotCalled(t, "CreateTokenPayment", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_CreditPurchasedTokens(t *testing.T) {
	t.Run("success credits and invalidates cache", func(t *testing.T) {
		svc, repo, cache, _, _, metrics := newTestService()
		repo.On("CreditPurchase", mock.Anything, "pool-1", "pay-1", 10000).
			Return(50100, nil).Once()
		metrics.On("RecordPurchaseCredited").Return().Once()
		cache.On("Invalidate", "pool_summary:pool-1").Return(nil).Once()

		newBalance, err := svc.CreditPurchasedTokens(context.Background(), "pool-1", "pay-1", 10000)
		require.NoError(t, err)
		assert.Equal(t, 50100, newBalance)
		repo.AssertExpectations(t)
		metrics.AssertExpectations(t)
	})

	t.Run("duplicate payment is passed through", func(t *testing.T) {
		svc, repo, _, _, _, metrics := newTestService()
		repo.On("CreditPurchase", mock.Anything, "pool-1", "pay-1", 10000).
			Return(0, repository.ErrDuplicatePurchase).Once()

		_, err := svc.CreditPurchasedTokens(context.Background(), "pool-1", "pay-1", 10000)
		require.ErrorIs(t, err, repository.ErrDuplicatePurchase)
		metrics.AssertNotCalled(t, "RecordPurchaseCredited")
	})
}
