// Package memberlist реализует HTTP-обработчик списка участников пула.
//
// Список доступен владельцу и администраторам; каждый успешный просмотр
// фиксируется в журнале аудита.
package memberlist

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-pool/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-pool/internal/http/response"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/services/plan"
)

// Handler управляет HTTP-запросами на получение списка участников.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики пула токенов
}

// Service описывает интерфейс бизнес-логики списка участников.
type Service interface {
	ListMembers(ctx context.Context, userUID string, actx models.AuditContext) ([]*models.MemberInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить список участников
// @Description Возвращает участников пула текущего пользователя. Доступно владельцу и администраторам.
// @Tags Members
// @Produce  json
// @Success 200 {object} response.Response "Список участников"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /plan/members [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.list"
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

	actx := models.AuditContext{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	members, err := h.service.ListMembers(r.Context(), userUID, actx)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrAuthorization):
			log.Error("caller lacks required role", sl.Err(err))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("insufficient role to list members"))
		case errors.Is(err, plan.ErrNotFound):
			log.Error("plan not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
		default:
			log.Error("failed to list members", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not list members"))
		}
		return
	}

	log.Info("members listed", slog.Int("count", len(members)))
	render.JSON(w, r, response.OKWithData(members))
}
