// Package usagehistory реализует HTTP-обработчик истории списаний пула.
//
// Владелец и администраторы видят все события, остальные участники —
// только свои.
package usagehistory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-pool/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-pool/internal/http/response"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/services/plan"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler управляет HTTP-запросами на получение истории списаний.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики пула токенов
}

// Service описывает интерфейс бизнес-логики истории списаний.
type Service interface {
	ListUsageHistory(ctx context.Context, userUID string, limit, offset int, actx models.AuditContext) ([]*models.UsageEvent, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить историю списаний
// @Description Возвращает события списания токенов пула. Участник с ролью associated видит только свои события.
// @Tags Members
// @Produce  json
// @Param limit query int false "Максимум событий в ответе" default(50)
// @Param offset query int false "Смещение выборки" default(0)
// @Success 200 {object} response.Response "События списания"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /plan/usage [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.usagehistory"
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

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxLimit {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid limit"))
			return
		}
		limit = n
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid offset"))
			return
		}
		offset = n
	}

	actx := models.AuditContext{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	events, err := h.service.ListUsageHistory(r.Context(), userUID, limit, offset, actx)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			log.Error("plan not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
			return
		}
		log.Error("failed to list usage history", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list usage history"))
		return
	}

	render.JSON(w, r, response.OKWithData(events))
}
