package me

import (
	"net/http"

	authmw "todo_service/internal/middleware/auth"

	"github.com/go-chi/render"
)

// New godoc
// @Summary      Текущий пользователь
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.UserFromContext(r.Context())
		if !ok {
			authmw.Unauthorized(w, r)
			return
		}

		render.JSON(w, r, user)
	}
}
