package signup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"todo_service/internal/auth"
	resp "todo_service/internal/lib/api/response"
	"todo_service/internal/lib/logger/sl"
	"todo_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Pass     string `json:"password" validate:"required,min=8,max=40"`
}

type UserSignuper interface {
	Signup(ctx context.Context, username, email, pass string) (models.User, models.TokenPair, error)
}

// New godoc
// @Summary      Регистрация пользователя
// @Description  Создает активного пользователя и сразу возвращает пару токенов.
// @Description  Refresh токен сохраняется как единственный действующий для пользователя.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        user  body  Request  true  "Данные пользователя"
// @Success      201  {object}  response.Tokens
// @Failure      400  {object}  response.Response  "Ошибка валидации"
// @Failure      409  {object}  response.Response  "Имя пользователя или email заняты"
// @Failure      500  {object}  response.Response
// @Router       /users/signup [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService UserSignuper,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signup.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, pair, err := authService.Signup(ctx, req.Username, req.Email, req.Pass)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("Username or email has been used. Please use another one."))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User registered", slog.String("uuid", user.UUID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.TokensOK(pair.AccessToken, pair.RefreshToken))
	}
}
