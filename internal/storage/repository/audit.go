package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// InsertAuditEntry добавляет запись в журнал аудита. Таблица
// append-only: записи никогда не обновляются и не удаляются.
func (s *Storage) InsertAuditEntry(ctx context.Context, entry models.AuditLogEntry) (int, error) {
	const op = "storage.InsertAuditEntry"

	query := `INSERT INTO audit_log (accessor_user_uid, action_type, target_type, target_id,
	              accessor_ip, accessor_user_agent, result_summary)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		entry.AccessorUserUID, entry.ActionType, entry.TargetType, entry.TargetID,
		entry.AccessorIP, entry.AccessorUA, entry.ResultSummary).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListAuditEntries возвращает записи аудита по целевой сущности —
// для отчётов соответствия.
func (s *Storage) ListAuditEntries(ctx context.Context, targetType, targetID string, limit, offset int) ([]*models.AuditLogEntry, error) {
	const op = "storage.ListAuditEntries"

	query := `SELECT id, accessor_user_uid, action_type, target_type, target_id,
	              accessor_ip, accessor_user_agent, result_summary, created_at
	          FROM audit_log
	          WHERE target_type = $1 AND target_id = $2
	          ORDER BY created_at DESC
	          LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, targetType, targetID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.AuditLogEntry
	for rows.Next() {
		var item models.AuditLogEntry
		if err := rows.Scan(&item.ID, &item.AccessorUserUID, &item.ActionType, &item.TargetType,
			&item.TargetID, &item.AccessorIP, &item.AccessorUA, &item.ResultSummary, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
