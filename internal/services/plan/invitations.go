package plan

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/plan-pool/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/lib/token"
	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// InvitationCreatedEvent событие для коллаборатора доставки уведомлений:
// он отправляет приглашённому письмо со ссылкой, содержащей токен.
type InvitationCreatedEvent struct {
	InvitationID    string    `json:"invitation_id"`
	InvitedEmail    string    `json:"invited_email"`
	InviterName     string    `json:"inviter_name"`
	PlanType        string    `json:"plan_type"`
	InvitationToken string    `json:"invitation_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// CreateInvitation создаёт приглашение присоединиться к пулу вызывающего.
// Пригласить может только primary или admin, и только утвердительно
// подтвердив, что приглашённому не меньше 13 лет. Вместимость плана
// проверяется в транзакции вставки.
func (s *Service) CreateInvitation(ctx context.Context, userUID string, req models.DummyInvitation, actx models.AuditContext) (*models.InvitationResult, error) {
	pool, member, err := s.repo.GetPoolByMember(ctx, userUID)
	if err != nil {
		return nil, translate(err)
	}
	if member.Role != models.RolePrimary && member.Role != models.RoleAdmin {
		return nil, ErrAuthorization
	}
	if !req.AgeAttestation {
		return nil, ErrCompliance
	}

	invToken, err := token.Generate()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inv := models.Invitation{
		ID:                 uuid.New().String(),
		PoolID:             pool.ID,
		InvitedEmail:       req.Email,
		InvitationToken:    invToken,
		Status:             models.InviteStatusPending,
		ExpiresAt:          now.Add(models.InvitationTTL),
		AgeAttestationBy:   userUID,
		AgeAttestationText: models.AgeAttestationText,
		AgeAttestationAt:   now,
	}

	if err := s.repo.CreateInvitation(ctx, inv, now); err != nil {
		return nil, translate(err)
	}

	if err := s.audit(ctx, userUID, models.AuditCreateInvitation, models.AuditTargetInvitation,
		inv.ID, "invitation created for "+req.Email, actx); err != nil {
		return nil, err
	}
	s.metrics.RecordInvitationCreated()

	event := InvitationCreatedEvent{
		InvitationID:    inv.ID,
		InvitedEmail:    inv.InvitedEmail,
		InviterName:     member.Username,
		PlanType:        pool.PlanType,
		InvitationToken: invToken,
		ExpiresAt:       inv.ExpiresAt,
	}
	if err := s.publisher.Publish(rabbitmq.RoutingInvitationCreated, event); err != nil {
		// Доставку письма можно повторить, само приглашение уже создано.
		s.log.Error("failed to publish invitation event", sl.Err(err),
			slog.String("invitation_id", inv.ID))
	}

	s.log.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("pool_id", pool.ID))
	return &models.InvitationResult{
		InvitationID:    inv.ID,
		InvitationToken: invToken,
		ExpiresAt:       inv.ExpiresAt,
	}, nil
}

// AcceptInvitation принимает приглашение по токену. Приглашённый обязан
// принять условия и подтвердить возраст — без этого участие не может
// стать активным. Переход приглашения в accepted и активация участия
// происходят в одной транзакции хранилища.
func (s *Service) AcceptInvitation(ctx context.Context, userUID, username string, req models.DummyAccept, actx models.AuditContext) (*models.AcceptResult, error) {
	if !req.AcceptTerms || !req.AgeVerified {
		return nil, ErrCompliance
	}

	member := models.Membership{
		ID:            uuid.New().String(),
		UserUID:       userUID,
		Username:      username,
		AgeVerified:   req.AgeVerified,
		TermsAccepted: req.AcceptTerms,
	}

	created, err := s.repo.AcceptInvitation(ctx, req.Token, member, time.Now())
	if err != nil {
		return nil, translate(err)
	}

	if err := s.audit(ctx, userUID, models.AuditAcceptInvitation, models.AuditTargetMembership,
		created.ID, "invitation accepted", actx); err != nil {
		return nil, err
	}
	s.metrics.RecordMemberActivated()
	if err := s.cache.Invalidate(summaryCacheKey(created.PoolID)); err != nil {
		s.log.Warn("failed to invalidate pool summary cache", slog.String("pool_id", created.PoolID))
	}

	s.log.Info("membership activated",
		slog.String("membership_id", created.ID),
		slog.String("pool_id", created.PoolID))
	return &models.AcceptResult{
		MembershipID: created.ID,
		Role:         created.Role,
		Status:       created.Status,
	}, nil
}

// RevokeInvitation отзывает pending-приглашение. Доступно primary и
// admin того пула, которому приглашение принадлежит.
func (s *Service) RevokeInvitation(ctx context.Context, userUID, invitationID string, actx models.AuditContext) error {
	inv, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return translate(err)
	}

	member, err := s.repo.GetMembership(ctx, inv.PoolID, userUID)
	if err != nil {
		return ErrAuthorization
	}
	if member.Role != models.RolePrimary && member.Role != models.RoleAdmin {
		return ErrAuthorization
	}

	if err := s.repo.RevokeInvitation(ctx, invitationID); err != nil {
		return translate(err)
	}
	return s.audit(ctx, userUID, models.AuditRevokeInvitation, models.AuditTargetInvitation,
		invitationID, "invitation revoked", actx)
}

// ListMyInvitations возвращает действующие приглашения на email
// вызывающего.
func (s *Service) ListMyInvitations(ctx context.Context, email string) ([]*models.PendingInvitationInfo, error) {
	return s.repo.ListPendingByEmail(ctx, email, time.Now())
}
