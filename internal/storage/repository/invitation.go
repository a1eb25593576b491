package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// CreateInvitation вставляет приглашение, предварительно проверив
// вместимость плана под блокировкой строки пула. Проверка и вставка
// выполняются в одной транзакции: два конкурентных приглашения на
// последнее место не могут пройти оба.
func (s *Storage) CreateInvitation(ctx context.Context, inv models.Invitation, now time.Time) error {
	const op = "storage.CreateInvitation"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxUsers int
	query := `SELECT l.max_users
	          FROM token_pools p
	          JOIN plan_type_limits l ON l.plan_type = p.plan_type
	          WHERE p.id = $1 AND p.status = 'active'
	          FOR UPDATE OF p`
	err = tx.QueryRowContext(ctx, query, inv.PoolID).Scan(&maxUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	occupied, err := capacityCount(ctx, tx, inv.PoolID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if occupied >= maxUsers {
		return fmt.Errorf("%s: %w", op, ErrCapacityReached)
	}

	query = `INSERT INTO invitations (id, pool_id, invited_email, invitation_token, status,
	             expires_at, age_attestation_by, age_attestation_text, age_attestation_at)
	         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, query,
		inv.ID, inv.PoolID, inv.InvitedEmail, inv.InvitationToken, models.InviteStatusPending,
		inv.ExpiresAt, inv.AgeAttestationBy, inv.AgeAttestationText, inv.AgeAttestationAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetInvitation возвращает приглашение по ID.
func (s *Storage) GetInvitation(ctx context.Context, invitationID string) (*models.Invitation, error) {
	const op = "storage.GetInvitation"

	query := `SELECT id, pool_id, invited_email, invitation_token, status, expires_at,
	              age_attestation_by, age_attestation_text, age_attestation_at, created_at
	          FROM invitations WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, invitationID)

	var result models.Invitation
	if err := row.Scan(&result.ID, &result.PoolID, &result.InvitedEmail, &result.InvitationToken,
		&result.Status, &result.ExpiresAt, &result.AgeAttestationBy, &result.AgeAttestationText,
		&result.AgeAttestationAt, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// AcceptInvitation разрешает приглашение по токену и активирует участие
// в одной транзакции: строка приглашения блокируется, поэтому перейти в
// accepted оно может не более одного раза; строка пула блокируется, и
// вместимость перепроверяется на момент активации — два конкурентных
// принятия на последнее место не могут пройти оба. Откат любой части
// откатывает всё.
func (s *Storage) AcceptInvitation(ctx context.Context, invToken string, member models.Membership, now time.Time) (*models.Membership, error) {
	const op = "storage.AcceptInvitation"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var inv models.Invitation
	query := `SELECT id, pool_id, invited_email, status, expires_at
	          FROM invitations
	          WHERE invitation_token = $1
	          FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, invToken).Scan(
		&inv.ID, &inv.PoolID, &inv.InvitedEmail, &inv.Status, &inv.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if inv.Status != models.InviteStatusPending {
		return nil, fmt.Errorf("%s: %w", op, ErrInviteNotPending)
	}
	if !now.Before(inv.ExpiresAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrInviteExpired)
	}

	var maxUsers int
	query = `SELECT l.max_users
	         FROM token_pools p
	         JOIN plan_type_limits l ON l.plan_type = p.plan_type
	         WHERE p.id = $1 AND p.status = 'active'
	         FOR UPDATE OF p`
	err = tx.QueryRowContext(ctx, query, inv.PoolID).Scan(&maxUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	occupied, err := capacityCount(ctx, tx, inv.PoolID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// Само приглашение занимает одно место, поэтому порог — строго больше.
	if occupied > maxUsers {
		return nil, fmt.Errorf("%s: %w", op, ErrCapacityReached)
	}

	query = `UPDATE invitations SET status = 'accepted' WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, inv.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	member.PoolID = inv.PoolID
	member.Role = models.RoleAssociated
	member.Status = models.MemberActive
	query = `INSERT INTO memberships (id, pool_id, user_uid, username, role, status,
	             age_verified, terms_accepted)
	         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(ctx, query,
		member.ID, member.PoolID, member.UserUID, member.Username, member.Role,
		member.Status, member.AgeVerified, member.TermsAccepted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &member, nil
}

// RevokeInvitation отзывает приглашение. Разрешён только переход
// pending -> revoked.
func (s *Storage) RevokeInvitation(ctx context.Context, invitationID string) error {
	const op = "storage.RevokeInvitation"

	query := `UPDATE invitations SET status = 'revoked' WHERE id = $1 AND status = 'pending'`
	result, err := s.DB.ExecContext(ctx, query, invitationID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkErr := s.DB.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM invitations WHERE id = $1)`, invitationID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("%s: %w", op, checkErr)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, ErrInviteNotPending)
	}
	return nil
}

// ListPendingByEmail возвращает действующие приглашения на указанный
// email. Истечение оценивается лениво: pending-приглашения с прошедшим
// expires_at в выдачу не попадают, даже если фоновая задача ещё не
// успела пометить их expired.
func (s *Storage) ListPendingByEmail(ctx context.Context, email string, now time.Time) ([]*models.PendingInvitationInfo, error) {
	const op = "storage.ListPendingByEmail"

	query := `SELECT i.id, m.username, p.plan_type, i.expires_at
	          FROM invitations i
	          JOIN token_pools p ON p.id = i.pool_id
	          JOIN memberships m ON m.pool_id = p.id AND m.role = 'primary'
	          WHERE i.invited_email = $1 AND i.status = 'pending' AND i.expires_at > $2
	          ORDER BY i.created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, email, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.PendingInvitationInfo
	for rows.Next() {
		var item models.PendingInvitationInfo
		if err := rows.Scan(&item.InvitationID, &item.InviterName, &item.PlanType, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkExpiredInvitations помечает истёкшие pending-приглашения статусом
// expired. Для корректности не требуется — чтения и так оценивают
// истечение лениво — но выдача отчётов становится чище.
func (s *Storage) MarkExpiredInvitations(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.MarkExpiredInvitations"

	query := `UPDATE invitations SET status = 'expired'
	          WHERE status = 'pending' AND expires_at <= $1`
	result, err := s.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CountPendingInvitations считает действующие приглашения пула.
func (s *Storage) CountPendingInvitations(ctx context.Context, poolID string, now time.Time) (int, error) {
	const op = "storage.CountPendingInvitations"

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM invitations
		 WHERE pool_id = $1 AND status = 'pending' AND expires_at > $2`, poolID, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
