package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/plan-pool/internal/lib/period"
	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// CreatePool вставляет новый пул вместе с участием primary в одной
// транзакции: пул без владельца существовать не может.
func (s *Storage) CreatePool(ctx context.Context, pool models.TokenPool, primary models.Membership) error {
	const op = "storage.CreatePool"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO token_pools (id, owner_user_uid, plan_type, base_limit, purchased_tokens,
	              current_balance, purchase_carryover, period_start, period_end, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.ExecContext(ctx, query,
		pool.ID, pool.OwnerUserUID, pool.PlanType, pool.BaseLimit, pool.PurchasedTokens,
		pool.CurrentBalance, pool.PurchaseCarryover, pool.PeriodStart, pool.PeriodEnd, pool.Status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query = `INSERT INTO memberships (id, pool_id, user_uid, username, role, status,
	             age_verified, terms_accepted)
	         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(ctx, query,
		primary.ID, pool.ID, primary.UserUID, primary.Username, models.RolePrimary,
		models.MemberActive, primary.AgeVerified, primary.TermsAccepted)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPool возвращает пул по его ID.
func (s *Storage) GetPool(ctx context.Context, poolID string) (*models.TokenPool, error) {
	const op = "storage.GetPool"

	query := `SELECT id, owner_user_uid, plan_type, base_limit, purchased_tokens, current_balance,
	              purchase_carryover, period_start, period_end, status, created_at
	          FROM token_pools WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, poolID)

	var result models.TokenPool
	if err := row.Scan(&result.ID, &result.OwnerUserUID, &result.PlanType, &result.BaseLimit,
		&result.PurchasedTokens, &result.CurrentBalance, &result.PurchaseCarryover,
		&result.PeriodStart, &result.PeriodEnd, &result.Status, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// GetPoolByMember возвращает активный пул пользователя вместе с его
// участием. Пользователь состоит не более чем в одном активном пуле.
func (s *Storage) GetPoolByMember(ctx context.Context, userUID string) (*models.TokenPool, *models.Membership, error) {
	const op = "storage.GetPoolByMember"

	query := `SELECT p.id, p.owner_user_uid, p.plan_type, p.base_limit, p.purchased_tokens,
	              p.current_balance, p.purchase_carryover, p.period_start, p.period_end, p.status, p.created_at,
	              m.id, m.user_uid, m.username, m.role, m.status, m.age_verified, m.terms_accepted,
	              m.tokens_used_this_period, m.created_at
	          FROM memberships m
	          JOIN token_pools p ON p.id = m.pool_id
	          WHERE m.user_uid = $1 AND m.status = 'active' AND p.status = 'active'`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	var pool models.TokenPool
	var member models.Membership
	err := row.Scan(&pool.ID, &pool.OwnerUserUID, &pool.PlanType, &pool.BaseLimit, &pool.PurchasedTokens,
		&pool.CurrentBalance, &pool.PurchaseCarryover, &pool.PeriodStart, &pool.PeriodEnd, &pool.Status, &pool.CreatedAt,
		&member.ID, &member.UserUID, &member.Username, &member.Role, &member.Status, &member.AgeVerified,
		&member.TermsAccepted, &member.TokensUsedThisPeriod, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	member.PoolID = pool.ID
	return &pool, &member, nil
}

// DeductTokens атомарно списывает amount токенов с баланса пула.
// Списание выполняется одним условным UPDATE: два конкурентных вызова
// при низком балансе не могут оба пройти и увести баланс в минус.
// В той же транзакции увеличивается счётчик расхода участника и
// добавляется запись в usage_events.
func (s *Storage) DeductTokens(ctx context.Context, poolID, userUID string, amount int, usageType string) (int, error) {
	const op = "storage.DeductTokens"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var newBalance int
	query := `UPDATE token_pools
	          SET current_balance = current_balance - $2
	          WHERE id = $1 AND status = 'active' AND current_balance >= $2
	          RETURNING current_balance`
	err = tx.QueryRowContext(ctx, query, poolID, amount).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		// Либо пула нет, либо не хватает баланса — различаем отдельным чтением.
		var exists bool
		checkErr := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM token_pools WHERE id = $1 AND status = 'active')`,
			poolID).Scan(&exists)
		if checkErr != nil {
			return 0, fmt.Errorf("%s: %w", op, checkErr)
		}
		if !exists {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, ErrInsufficientBalance)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query = `UPDATE memberships
	         SET tokens_used_this_period = tokens_used_this_period + $3
	         WHERE pool_id = $1 AND user_uid = $2 AND status = 'active'`
	result, err := tx.ExecContext(ctx, query, poolID, userUID, amount)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("%s: membership: %w", op, ErrNotFound)
	}

	query = `INSERT INTO usage_events (pool_id, user_uid, tokens, usage_type)
	         VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, poolID, userUID, amount, usageType); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newBalance, nil
}

// CreditPurchase зачисляет купленные токены. Идемпотентность обеспечивает
// уникальный payment_id: повторный вебхук того же платежа получает
// ErrDuplicatePurchase и баланс не меняет.
func (s *Storage) CreditPurchase(ctx context.Context, poolID, paymentID string, amount int) (int, error) {
	const op = "storage.CreditPurchase"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO token_purchases (pool_id, payment_id, amount)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (payment_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, query, poolID, paymentID, amount)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrDuplicatePurchase)
	}

	var newBalance int
	query = `UPDATE token_pools
	         SET purchased_tokens = purchased_tokens + $2,
	             current_balance = current_balance + $2
	         WHERE id = $1 AND status = 'active'
	         RETURNING current_balance`
	err = tx.QueryRowContext(ctx, query, poolID, amount).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newBalance, nil
}

// ResetPeriod переводит пул в новый расчётный период: баланс
// возвращается к базовому лимиту (плюс купленные токены, если тариф
// разрешает перенос), счётчики расхода участников обнуляются.
// Идемпотентность: строка пула блокируется, и если period_end ещё не
// наступил, сброс не выполняется — повторный вызов в том же периоде
// не удваивает баланс.
func (s *Storage) ResetPeriod(ctx context.Context, poolID string, now time.Time) (bool, error) {
	const op = "storage.ResetPeriod"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var periodStart, periodEnd time.Time
	var baseLimit, purchased int
	var carryover bool
	query := `SELECT period_start, period_end, base_limit, purchased_tokens, purchase_carryover
	          FROM token_pools
	          WHERE id = $1 AND status = 'active'
	          FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, poolID).Scan(&periodStart, &periodEnd, &baseLimit, &purchased, &carryover)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if periodEnd.After(now) {
		return false, nil
	}

	window := period.Advance(period.Window{Start: periodStart, End: periodEnd}, now)

	newPurchased := 0
	newBalance := baseLimit
	if carryover {
		newPurchased = purchased
		newBalance += purchased
	}

	query = `UPDATE token_pools
	         SET current_balance = $2, purchased_tokens = $3, period_start = $4, period_end = $5
	         WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, poolID, newBalance, newPurchased, window.Start, window.End); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	query = `UPDATE memberships SET tokens_used_this_period = 0 WHERE pool_id = $1`
	if _, err := tx.ExecContext(ctx, query, poolID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// FindPoolsDue возвращает активные пулы, чей расчётный период истёк.
func (s *Storage) FindPoolsDue(ctx context.Context, now time.Time) ([]*models.TokenPool, error) {
	const op = "storage.FindPoolsDue"

	query := `SELECT id, owner_user_uid, plan_type, base_limit, purchased_tokens, current_balance,
	              purchase_carryover, period_start, period_end, status, created_at
	          FROM token_pools
	          WHERE status = 'active' AND period_end <= $1
	          ORDER BY period_end`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.TokenPool
	for rows.Next() {
		var item models.TokenPool
		if err := rows.Scan(&item.ID, &item.OwnerUserUID, &item.PlanType, &item.BaseLimit,
			&item.PurchasedTokens, &item.CurrentBalance, &item.PurchaseCarryover,
			&item.PeriodStart, &item.PeriodEnd, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CancelPool архивирует пул: статус expired, все участия переводятся
// в removed. Физически ничего не удаляется — история нужна аудиту.
func (s *Storage) CancelPool(ctx context.Context, poolID string) error {
	const op = "storage.CancelPool"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE token_pools SET status = 'expired' WHERE id = $1 AND status <> 'expired'`, poolID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE memberships SET status = 'removed' WHERE pool_id = $1 AND status <> 'removed'`, poolID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE invitations SET status = 'revoked' WHERE pool_id = $1 AND status = 'pending'`, poolID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
