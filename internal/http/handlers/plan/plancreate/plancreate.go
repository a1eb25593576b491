// Package plancreate реализует HTTP-обработчик для приобретения плана.
//
// Handler принимает JSON-запрос с типом плана, валидирует его, извлекает
// пользователя из контекста, вызывает бизнес-логику создания пула токенов
// и возвращает созданный пул в JSON-формате.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package plancreate

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

// Handler управляет HTTP-запросами на приобретение плана.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики пула токенов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания плана.
type Service interface {
	CreatePlan(ctx context.Context, userUID, username, planType string) (*models.TokenPool, error)
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
// @Summary Приобрести план
// @Description Создает пул токенов выбранного типа и делает текущего пользователя его владельцем.
// @Tags Plan
// @Accept  json
// @Produce  json
// @Param request body models.DummyCreatePlan true "Тип приобретаемого плана"
// @Success 200 {object} response.Response "Созданный пул токенов"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть активный план"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании плана"
// @Security BearerAuth
// @Router /plan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCreatePlan
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

	pool, err := h.service.CreatePlan(r.Context(), userUID, username, req.PlanType)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrAlreadyHasPlan):
			log.Error("user already has a plan", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("user already has an active plan"))
		case errors.Is(err, plan.ErrNotFound):
			log.Error("unknown plan type", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown plan type"))
		default:
			log.Error("failed to create plan", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create plan"))
		}
		return
	}

	log.Info("plan created", slog.String("pool_id", pool.ID))
	render.JSON(w, r, response.OKWithData(pool))
}
