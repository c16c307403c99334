package password

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"todo_service/internal/auth"
	resp "todo_service/internal/lib/api/response"
	"todo_service/internal/lib/logger/sl"
	authmw "todo_service/internal/middleware/auth"
	"todo_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=40"`
}

type PasswordChanger interface {
	ChangePassword(ctx context.Context, user models.User, current, next string) error
}

// New godoc
// @Summary      Смена пароля
// @Description  После смены пароля сохраненный refresh токен сбрасывается.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  Request  true  "Текущий и новый пароль"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response  "Неверный текущий пароль или пароль не изменился"
// @Failure      401  {object}  response.Response
// @Router       /auth/change_password [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService PasswordChanger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.password.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := authmw.UserFromContext(r.Context())
		if !ok {
			authmw.Unauthorized(w, r)

			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		err := authService.ChangePassword(ctx, user, req.CurrentPassword, req.NewPassword)
		if err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Incorrect password"))

				return
			}
			if errors.Is(err, auth.ErrPasswordUnchanged) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("New password cannot be the same as the current one"))

				return
			}

			log.Error("failed to change password", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Password changed")

		render.JSON(w, r, resp.OK())
	}
}
