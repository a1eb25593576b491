// Package inviterevoke реализует HTTP-обработчик отзыва приглашения.
package inviterevoke

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-pool/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-pool/internal/http/response"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/services/plan"
)

// Handler управляет HTTP-запросами на отзыв приглашений.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики пула токенов
}

// Service описывает интерфейс бизнес-логики отзыва приглашения.
type Service interface {
	RevokeInvitation(ctx context.Context, userUID, invitationID string, actx models.AuditContext) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отозвать приглашение
// @Description Отзывает ожидающее приглашение пула. Доступно владельцу и администраторам.
// @Tags Invitations
// @Produce  json
// @Param id path string true "ID приглашения"
// @Success 200 {object} response.Response "Приглашение отозвано"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Приглашение не найдено"
// @Failure 409 {object} response.ErrorResponse "Приглашение уже разрешено"
// @Failure 410 {object} response.ErrorResponse "Срок действия приглашения истек"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /plan/invitations/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invitation.revoke"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	invitationID := chi.URLParam(r, "id")
	if invitationID == "" {
		log.Error("invitation id missing in path")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invitation id is required"))
		return
	}

	actx := models.AuditContext{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	if err := h.service.RevokeInvitation(r.Context(), userUID, invitationID, actx); err != nil {
		switch {
		case errors.Is(err, plan.ErrAuthorization):
			log.Error("caller lacks required role", sl.Err(err))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("insufficient role to revoke invitations"))
		case errors.Is(err, plan.ErrAlreadyAccepted):
			log.Error("invitation is not pending", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("invitation has already been resolved"))
		case errors.Is(err, plan.ErrExpired):
			log.Error("invitation expired", sl.Err(err))
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error("invitation has expired"))
		case errors.Is(err, plan.ErrNotFound):
			log.Error("invitation not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("invitation not found"))
		default:
			log.Error("failed to revoke invitation", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not revoke invitation"))
		}
		return
	}

	log.Info("invitation revoked", slog.String("invitation_id", invitationID))
	render.JSON(w, r, response.OKWithData(map[string]any{"revoked": true}))
}
