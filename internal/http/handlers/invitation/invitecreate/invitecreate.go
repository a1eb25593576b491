// Package invitecreate реализует HTTP-обработчик создания приглашения в пул.
//
// Handler принимает JSON-запрос с email приглашённого и подтверждением
// возраста, валидирует их и вызывает бизнес-логику создания приглашения.
// Токен приглашения возвращается в ответе один раз.
package invitecreate

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

// Handler управляет HTTP-запросами на создание приглашений.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики пула токенов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания приглашения.
type Service interface {
	CreateInvitation(ctx context.Context, userUID string, req models.DummyInvitation, actx models.AuditContext) (*models.InvitationResult, error)
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
// @Summary Создать приглашение
// @Description Создает приглашение присоединиться к пулу текущего пользователя. Требует подтверждения, что приглашённому не меньше 13 лет.
// @Tags Invitations
// @Accept  json
// @Produce  json
// @Param request body models.DummyInvitation true "Email приглашённого и подтверждение возраста"
// @Success 200 {object} response.Response "Созданное приглашение"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 409 {object} response.ErrorResponse "План заполнен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или нет подтверждения возраста"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /plan/invitations [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invitation.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyInvitation
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

	actx := models.AuditContext{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	result, err := h.service.CreateInvitation(r.Context(), userUID, req, actx)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrAuthorization):
			log.Error("caller lacks required role", sl.Err(err))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("insufficient role to invite members"))
		case errors.Is(err, plan.ErrCompliance):
			log.Error("age attestation missing", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("age attestation is required"))
		case errors.Is(err, plan.ErrCapacity):
			log.Error("plan is at capacity", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("plan is at member capacity"))
		case errors.Is(err, plan.ErrNotFound):
			log.Error("plan not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
		default:
			log.Error("failed to create invitation", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create invitation"))
		}
		return
	}

	log.Info("invitation created", slog.String("invitation_id", result.InvitationID))
	render.JSON(w, r, response.OKWithData(result))
}
