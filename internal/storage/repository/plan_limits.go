package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// GetPlanLimits возвращает справочные лимиты для типа плана.
func (s *Storage) GetPlanLimits(ctx context.Context, planType string) (*models.PlanTypeLimits, error) {
	const op = "storage.GetPlanLimits"

	query := `SELECT plan_type, max_users, monthly_token_limit, allows_purchase,
	              purchase_carryover, default_community_ids
	          FROM plan_type_limits WHERE plan_type = $1`
	row := s.DB.QueryRowContext(ctx, query, planType)

	var result models.PlanTypeLimits
	if err := row.Scan(&result.PlanType, &result.MaxUsers, &result.MonthlyTokenLimit,
		&result.AllowsPurchase, &result.PurchaseCarryover,
		pq.Array(&result.DefaultCommunityIDs)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}
