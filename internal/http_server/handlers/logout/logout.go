package logout

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

type UserLogouter interface {
	Logout(ctx context.Context, accessToken string) error
}

// New godoc
// @Summary      Выход из системы
// @Description  ## Описание
// @Description  Завершает сессию пользователя по access токену из заголовка Authorization.
// @Description
// @Description  ### Процесс выхода:
// @Description  1. Проверка access токена
// @Description  2. Очистка сохраненного refresh токена пользователя
// @Description  3. Добавление jti access токена в denylist (Redis) до истечения его TTL
// @Description
// @Description  ### Особенности:
// @Description  - После logout ни один ранее выданный refresh токен не принимается
// @Description  - Без Redis access токен остается валидным до истечения TTL
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response  "Успешный выход из системы"
// @Failure      401  {object}  response.Response  "Невалидный или истекший access токен"
// @Failure      500  {object}  response.Response  "Внутренняя ошибка сервера"
// @Router       /auth/logout [post]
func New(
	log *slog.Logger,
	authService UserLogouter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

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

		if err := authService.Logout(ctx, token); err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				authmw.Unauthorized(w, r)

				return
			}

			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("user logged out successfully")

		render.JSON(w, r, resp.OK())
	}
}
