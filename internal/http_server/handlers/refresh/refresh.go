package refresh

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
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// New godoc
// @Summary      Обновление токенов
// @Description  Принимает refresh токен в заголовке Authorization: Bearer.
// @Description  Действителен только последний выданный refresh токен пользователя;
// @Description  после обмена он заменяется новым.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Tokens
// @Failure      400  {object}  response.Response  "Пользователь неактивен"
// @Failure      401  {object}  response.Response  "Невалидный, истекший или отозванный refresh токен"
// @Router       /auth/refresh_token [get]
func New(
	log *slog.Logger,
	authService TokenRefresher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := authmw.BearerToken(r)
		if !ok {
			authmw.Unauthorized(w, r)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := authService.Refresh(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				authmw.Unauthorized(w, r)

				return
			}
			if errors.Is(err, auth.ErrInactiveUser) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Inactive user"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Tokens refreshed successfully")

		render.JSON(w, r, resp.TokensOK(pair.AccessToken, pair.RefreshToken))
	}
}
