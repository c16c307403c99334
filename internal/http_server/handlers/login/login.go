package login

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
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required"`
}

// * FormRequest тело OAuth2 password flow: username содержит email
type FormRequest struct {
	Username string `validate:"required,email"`
	Pass     string `validate:"required"`
}

type UserLoginer interface {
	Login(ctx context.Context, email, pass string) (models.TokenPair, error)
}

// New godoc
// @Summary      Вход по JSON
// @Description  Проверяет email и пароль, возвращает пару токенов.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body  Request  true  "Email и пароль"
// @Success      200  {object}  response.Tokens
// @Failure      400  {object}  response.Response  "Ошибка валидации или пользователь неактивен"
// @Failure      401  {object}  response.Response  "Неверный email или пароль"
// @Router       /auth/auth_token [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService UserLoginer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

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

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		login(w, r, log, authService, req.Email, req.Pass, http.StatusUnauthorized)
	}
}

// NewForm godoc
// @Summary      Вход по OAuth2 форме
// @Description  OAuth2 password flow: поле username содержит email пользователя.
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true  "Email"
// @Param        password  formData  string  true  "Пароль"
// @Success      200  {object}  response.Tokens
// @Failure      400  {object}  response.Response  "Неверный email или пароль, либо пользователь неактивен"
// @Router       /auth/login/access_token [post]
func NewForm(
	log *slog.Logger,
	validate *validator.Validate,
	authService UserLoginer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.NewForm"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := r.ParseForm(); err != nil {
			log.Error("Failed to parse form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		req := FormRequest{
			Username: r.PostForm.Get("username"),
			Pass:     r.PostForm.Get("password"),
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		login(w, r, log, authService, req.Username, req.Pass, http.StatusBadRequest)
	}
}

func login(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
	authService UserLoginer,
	email, pass string,
	badCredentialsStatus int,
) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pair, err := authService.Login(ctx, email, pass)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			render.Status(r, badCredentialsStatus)
			render.JSON(w, r, resp.Error("Incorrect email or password"))

			return
		}
		if errors.Is(err, auth.ErrInactiveUser) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Inactive user"))

			return
		}

		log.Error("failed to login user", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))

		return
	}

	log.Info("User logged in successfully")

	render.JSON(w, r, resp.TokensOK(pair.AccessToken, pair.RefreshToken))
}
