// Package memberremove реализует HTTP-обработчик удаления участника пула.
//
// Удаление мягкое: участие переводится в статус removed. Владельца плана
// удалить нельзя.
package memberremove

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

// Handler управляет HTTP-запросами на удаление участника.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики пула токенов
}

// Service описывает интерфейс бизнес-логики удаления участника.
type Service interface {
	RemoveMember(ctx context.Context, userUID, targetUserUID string, actx models.AuditContext) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Удалить участника
// @Description Удаляет участника из пула текущего пользователя. Доступно владельцу и администраторам; владельца удалить нельзя.
// @Tags Members
// @Produce  json
// @Param userUID path string true "UID удаляемого участника"
// @Success 200 {object} response.Response "Участник удален"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Failure 409 {object} response.ErrorResponse "Владельца плана удалить нельзя"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /plan/members/{userUID} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.remove"
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

	targetUID := chi.URLParam(r, "userUID")
	if targetUID == "" {
		log.Error("target user uid missing in path")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("target user uid is required"))
		return
	}

	actx := models.AuditContext{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	if err := h.service.RemoveMember(r.Context(), userUID, targetUID, actx); err != nil {
		switch {
		case errors.Is(err, plan.ErrAuthorization):
			log.Error("caller lacks required role", sl.Err(err))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("insufficient role to remove members"))
		case errors.Is(err, plan.ErrInvariant):
			log.Error("attempt to remove the plan owner", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("the plan owner cannot be removed"))
		case errors.Is(err, plan.ErrNotFound):
			log.Error("member not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("member not found"))
		default:
			log.Error("failed to remove member", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not remove member"))
		}
		return
	}

	log.Info("member removed", slog.String("target", targetUID))
	render.JSON(w, r, response.OKWithData(map[string]any{"removed": true}))
}
