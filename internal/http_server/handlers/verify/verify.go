package verify

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

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	UUID            string `json:"uuid"`
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, accessToken string) (string, error)
}

// New godoc
// @Summary      Проверка access токена
// @Description  Используется фронтендом для проверки сессии.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response
// @Failure      400  {object}  response.Response  "Пользователь неактивен"
// @Failure      401  {object}  response.Response
// @Router       /auth/verify_token [post]
func New(
	log *slog.Logger,
	authService TokenVerifier,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := authmw.BearerToken(r)
		if !ok {
			log.Warn("missing access token")

			authmw.Unauthorized(w, r)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		userUUID, err := authService.VerifyToken(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUnauthorized):
				log.Warn("invalid access token")

				authmw.Unauthorized(w, r)
			case errors.Is(err, auth.ErrInactiveUser):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Inactive user"))
			default:
				log.Error("failed to verify token", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			IsAuthenticated: true,
			UUID:            userUUID,
		})
	}
}
