package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// ListMembers возвращает участников пула вызывающего. Роль associated
// видеть список не может. Каждый успешный вызов оставляет ровно одну
// запись в журнале аудита.
func (s *Service) ListMembers(ctx context.Context, userUID string, actx models.AuditContext) ([]*models.MemberInfo, error) {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return nil, translate(err)
	}
	if member.Role != models.RolePrimary && member.Role != models.RoleAdmin {
		return nil, ErrAuthorization
	}

	members, err := s.repo.ListMembers(ctx, pool.ID)
	if err != nil {
		return nil, err
	}

	if err := s.audit(ctx, userUID, models.AuditListMembers, models.AuditTargetPool,
		pool.ID, fmt.Sprintf("listed %d members", len(members)), actx); err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMember мягко удаляет участника пула. Доступно primary и admin;
// владельца плана удалить этим путём нельзя — это структурное правило,
// а не вопрос прав.
func (s *Service) RemoveMember(ctx context.Context, userUID, targetUserUID string, actx models.AuditContext) error {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return translate(err)
	}
	if member.Role != models.RolePrimary && member.Role != models.RoleAdmin {
		return ErrAuthorization
	}

	target, err := s.repo.GetMembership(ctx, pool.ID, targetUserUID)
	if err != nil {
		return translate(err)
	}
	if target.Role == models.RolePrimary {
		return ErrInvariant
	}

	if err := s.repo.RemoveMember(ctx, pool.ID, targetUserUID); err != nil {
		return translate(err)
	}

	if err := s.audit(ctx, userUID, models.AuditRemoveMember, models.AuditTargetMembership,
		target.ID, "member removed", actx); err != nil {
		return err
	}
	s.log.Info("member removed",
		slog.String("pool_id", pool.ID),
		slog.String("target", targetUserUID))
	return nil
}

// ListUsageHistory возвращает историю списаний пула. Primary и admin
// видят все события, associated — только свои.
func (s *Service) ListUsageHistory(ctx context.Context, userUID string, limit, offset int, actx models.AuditContext) ([]*models.UsageEvent, error) {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return nil, translate(err)
	}

	scopeUID := ""
	if member.Role != models.RolePrimary && member.Role != models.RoleAdmin {
		scopeUID = userUID
	}

	events, err := s.repo.ListUsageEvents(ctx, pool.ID, scopeUID, limit, offset)
	if err != nil {
		return nil, err
	}

	if err := s.audit(ctx, userUID, models.AuditListUsage, models.AuditTargetPool,
		pool.ID, fmt.Sprintf("listed %d usage events", len(events)), actx); err != nil {
		return nil, err
	}
	return events, nil
}
