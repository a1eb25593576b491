// Package inviteaccept реализует HTTP-обработчик принятия приглашения.
//
// Приглашённый обязан принять условия использования и подтвердить возраст,
// иначе участие не активируется.
package inviteaccept

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/plan-pool/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-pool/internal/http/response"
	"github.com/magabrotheeeer/plan-pool/internal/lib/sl"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/services/plan"
)

// Handler управляет HTTP-запросами на принятие приглашений.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики пула токенов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики принятия приглашения.
type Service interface {
	AcceptInvitation(ctx context.Context, userUID, username string, req models.DummyAccept, actx models.AuditContext) (*models.AcceptResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Принять приглашение
// @Description Активирует участие текущего пользователя в пуле по токену приглашения. Требует принятия условий и подтверждения возраста.
// @Tags Invitations
// @Accept  json
// @Produce  json
// @Param request body models.DummyAccept true "Токен приглашения и подтверждения"
// @Success 200 {object} response.Response "Активированное участие"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Приглашение не найдено"
// @Failure 409 {object} response.ErrorResponse "Приглашение уже разрешено или план заполнен"
// @Failure 410 {object} response.ErrorResponse "Срок действия приглашения истек"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или нет подтверждений"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /invitations/accept [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invitation.accept"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyAccept
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	username, _ := r.Context().Value(middlewarectx.User).(string)

	actx := models.AuditContext{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	result, err := h.service.AcceptInvitation(r.Context(), userUID, username, req, actx)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrCompliance):
			log.Error("terms or age confirmation missing", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("terms acceptance and age verification are required"))
		case errors.Is(err, plan.ErrExpired):
			log.Error("invitation expired", sl.Err(err))
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error("invitation has expired"))
		case errors.Is(err, plan.ErrAlreadyAccepted):
			log.Error("invitation is not pending", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("invitation has already been resolved"))
		case errors.Is(err, plan.ErrCapacity):
			log.Error("plan is at capacity", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("plan is at member capacity"))
		case errors.Is(err, plan.ErrNotFound):
			log.Error("invitation not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("invitation not found"))
		default:
			log.Error("failed to accept invitation", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not accept invitation"))
		}
		return
	}

	log.Info("invitation accepted", slog.String("membership_id", result.MembershipID))
	render.JSON(w, r, response.OKWithData(result))
}
