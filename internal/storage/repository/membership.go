package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// capacityCount считает занятые места плана внутри транзакции:
// активные и ожидающие участия плюс неистёкшие pending-приглашения.
// Ожидающие приглашения занимают место, чтобы закрыть гонку
// перепригласительства. Вызывающая сторона обязана предварительно
// заблокировать строку пула (FOR UPDATE).
func capacityCount(ctx context.Context, tx *sql.Tx, poolID string, now time.Time) (int, error) {
	var members, invites int
	err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM memberships
		 WHERE pool_id = $1 AND status IN ('pending', 'active')`, poolID).Scan(&members)
	if err != nil {
		return 0, err
	}
	err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM invitations
		 WHERE pool_id = $1 AND status = 'pending' AND expires_at > $2`, poolID, now).Scan(&invites)
	if err != nil {
		return 0, err
	}
	return members + invites, nil
}

// CheckCapacity возвращает занятость плана без блокировок — для выдачи
// пользователю. Решение о допуске принимается заново внутри
// транзакций создания и принятия приглашения.
func (s *Storage) CheckCapacity(ctx context.Context, poolID string, now time.Time) (*models.CapacityInfo, error) {
	const op = "storage.CheckCapacity"

	var current, maxUsers int
	query := `SELECT
	              (SELECT count(*) FROM memberships
	               WHERE pool_id = $1 AND status IN ('pending', 'active'))
	            + (SELECT count(*) FROM invitations
	               WHERE pool_id = $1 AND status = 'pending' AND expires_at > $2),
	              l.max_users
	          FROM token_pools p
	          JOIN plan_type_limits l ON l.plan_type = p.plan_type
	          WHERE p.id = $1`
	err := s.DB.QueryRowContext(ctx, query, poolID, now).Scan(&current, &maxUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.CapacityInfo{
		AtCapacity:   current >= maxUsers,
		CurrentCount: current,
		MaxUsers:     maxUsers,
	}, nil
}

// GetMembership возвращает неудалённое участие пользователя в пуле.
func (s *Storage) GetMembership(ctx context.Context, poolID, userUID string) (*models.Membership, error) {
	const op = "storage.GetMembership"

	query := `SELECT id, pool_id, user_uid, username, role, status, age_verified, terms_accepted,
	              tokens_used_this_period, created_at
	          FROM memberships
	          WHERE pool_id = $1 AND user_uid = $2 AND status <> 'removed'`
	row := s.DB.QueryRowContext(ctx, query, poolID, userUID)

	var result models.Membership
	if err := row.Scan(&result.ID, &result.PoolID, &result.UserUID, &result.Username, &result.Role,
		&result.Status, &result.AgeVerified, &result.TermsAccepted,
		&result.TokensUsedThisPeriod, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// ListMembers возвращает всех участников пула, включая удалённых:
// история участия сохраняется для аудита.
func (s *Storage) ListMembers(ctx context.Context, poolID string) ([]*models.MemberInfo, error) {
	const op = "storage.ListMembers"

	query := `SELECT user_uid, username, role, status, tokens_used_this_period,
	              age_verified, terms_accepted
	          FROM memberships
	          WHERE pool_id = $1
	          ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.MemberInfo
	for rows.Next() {
		var item models.MemberInfo
		if err := rows.Scan(&item.UserUID, &item.Username, &item.Role, &item.Status,
			&item.TokensUsed, &item.AgeVerified, &item.TermsAccepted); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// RemoveMember мягко удаляет участие: статус removed, строка остаётся.
// Защита primary выполняется на уровне бизнес-логики, но условие
// role <> 'primary' продублировано и здесь, чтобы структурное правило
// нельзя было обойти другим вызывающим кодом.
func (s *Storage) RemoveMember(ctx context.Context, poolID, targetUserUID string) error {
	const op = "storage.RemoveMember"

	query := `UPDATE memberships
	          SET status = 'removed'
	          WHERE pool_id = $1 AND user_uid = $2 AND status <> 'removed' AND role <> 'primary'`
	result, err := s.DB.ExecContext(ctx, query, poolID, targetUserUID)
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
	return nil
}

// ListUsageEvents возвращает историю списаний пула с пагинацией.
// Если userUID непустой, история ограничивается этим участником.
func (s *Storage) ListUsageEvents(ctx context.Context, poolID, userUID string, limit, offset int) ([]*models.UsageEvent, error) {
	const op = "storage.ListUsageEvents"

	query := `SELECT id, pool_id, user_uid, tokens, usage_type, created_at
	          FROM usage_events
	          WHERE pool_id = $1 AND ($2 = '' OR user_uid::text = $2)
	          ORDER BY created_at DESC
	          LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, poolID, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.UsageEvent
	for rows.Next() {
		var item models.UsageEvent
		if err := rows.Scan(&item.ID, &item.PoolID, &item.UserUID, &item.Tokens,
			&item.UsageType, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
