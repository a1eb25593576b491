// Package invitelist реализует HTTP-обработчик списка приглашений,
// ожидающих текущего пользователя.
package invitelist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-pool/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-pool/internal/http/response"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
)

// Handler управляет HTTP-запросами на получение списка приглашений.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики пула токенов
}

// Service описывает интерфейс бизнес-логики списка приглашений.
type Service interface {
	ListMyInvitations(ctx context.Context, email string) ([]*models.PendingInvitationInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить мои приглашения
// @Description Возвращает действующие приглашения на email текущего пользователя.
// @Tags Invitations
// @Produce  json
// @Success 200 {object} response.Response "Список приглашений"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /invitations/pending [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invitation.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, ok := r.Context().Value(middlewarectx.Email).(string)
	if !ok || email == "" {
		log.Error("email not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	invitations, err := h.service.ListMyInvitations(r.Context(), email)
	if err != nil {
		log.Error("failed to list invitations", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list invitations"))
		return
	}

	render.JSON(w, r, response.OKWithData(invitations))
}
