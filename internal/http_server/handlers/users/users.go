package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"todo_service/internal/lib/api/page"
	resp "todo_service/internal/lib/api/response"
	"todo_service/internal/lib/importer"
	"todo_service/internal/lib/logger/sl"
	authmw "todo_service/internal/middleware/auth"
	"todo_service/internal/models"
	"todo_service/internal/users"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const maxUploadSize = 10 << 20

type UserService interface {
	List(ctx context.Context, skip, limit int) ([]models.User, error)
	Get(ctx context.Context, actor models.User, userUUID string) (models.User, error)
	Update(ctx context.Context, actor models.User, userUUID string, in users.UpdateInput) (models.User, error)
	Delete(ctx context.Context, actor models.User, userUUID string) error
	Import(ctx context.Context, filename string, r io.Reader) ([]users.Failure, error)
}

type UpdateRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=1,max=255"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Password    *string `json:"password" validate:"omitempty,min=8,max=40"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

type MessageResponse struct {
	resp.Response
	Message     string          `json:"message"`
	FailedUsers []users.Failure `json:"failed_users,omitempty"`
}

// List godoc
// @Summary      Список пользователей
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query  int  false  "Смещение"
// @Param        limit  query  int  false  "Размер страницы (по умолчанию 100)"
// @Success      200  {array}   models.User
// @Failure      403  {object}  response.Response
// @Router       /users/all_user [get]
func List(log *slog.Logger, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.List"

		log := requestLog(log, r, op)

		skip, limit, err := page.FromRequest(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(err.Error()))

			return
		}

		list, err := svc.List(r.Context(), skip, limit)
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, list)
	}
}

// Get godoc
// @Summary      Пользователь по uuid
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        user_uuid  path  string  true  "UUID пользователя"
// @Success      200  {object}  models.User
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /users/{user_uuid} [get]
func Get(log *slog.Logger, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Get"

		log := requestLog(log, r, op)

		actor, _ := authmw.UserFromContext(r.Context())

		user, err := svc.Get(r.Context(), actor, chi.URLParam(r, "user_uuid"))
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, user)
	}
}

// Update godoc
// @Summary      Частичное обновление пользователя
// @Description  is_active и is_superuser может менять только суперпользователь.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        user_uuid  path  string         true  "UUID пользователя"
// @Param        user       body  UpdateRequest  true  "Изменяемые поля"
// @Success      200  {object}  models.User
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /users/edit_user/{user_uuid} [patch]
func Update(log *slog.Logger, validate *validator.Validate, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Update"

		log := requestLog(log, r, op)

		var req UpdateRequest

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

		actor, _ := authmw.UserFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := svc.Update(ctx, actor, chi.URLParam(r, "user_uuid"), users.UpdateInput{
			Username:    req.Username,
			Email:       req.Email,
			Password:    req.Password,
			IsActive:    req.IsActive,
			IsSuperuser: req.IsSuperuser,
		})
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, user)
	}
}

// Delete godoc
// @Summary      Удаление пользователя
// @Description  Все задачи пользователя удаляются каскадно.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        user_uuid  path  string  true  "UUID пользователя"
// @Success      200  {object}  MessageResponse
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /users/delete_user/{user_uuid} [delete]
func Delete(log *slog.Logger, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Delete"

		log := requestLog(log, r, op)

		actor, _ := authmw.UserFromContext(r.Context())

		if err := svc.Delete(r.Context(), actor, chi.URLParam(r, "user_uuid")); err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, MessageResponse{
			Response: resp.OK(),
			Message:  "User was deleted.",
		})
	}
}

// Upload godoc
// @Summary      Массовый импорт пользователей
// @Description  CSV или XLSX с колонками username, email, password, is_active, is_superuser.
// @Description  Существующие пользователи (по username или email) обновляются, остальные создаются.
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Файл с пользователями"
// @Success      200  {object}  MessageResponse
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /users/upload_users [post]
func Upload(log *slog.Logger, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Upload"

		log := requestLog(log, r, op)

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			log.Error("Failed to read uploaded file", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("file is required"))

			return
		}
		defer file.Close()

		failures, err := svc.Import(r.Context(), header.Filename, file)
		if err != nil {
			if msg, ok := importError(err); ok {
				log.Warn("rejected upload", sl.Err(err))

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(msg))

				return
			}

			writeError(w, r, log, err)

			return
		}

		if len(failures) > 0 {
			render.JSON(w, r, MessageResponse{
				Response:    resp.OK(),
				Message:     "Some users failed to register. Please check each item.",
				FailedUsers: failures,
			})

			return
		}

		render.JSON(w, r, MessageResponse{
			Response: resp.OK(),
			Message:  "Users registered successfully.",
		})
	}
}

func importError(err error) (string, bool) {
	for _, target := range []error{
		importer.ErrInvalidFormat,
		importer.ErrMissingColumn,
		importer.ErrEmptyFile,
		importer.ErrMalformedFile,
	} {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}

	return "", false
}

func requestLog(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("User not found."))
	case errors.Is(err, users.ErrUserExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("Username or email has been used. Please use another one."))
	case errors.Is(err, users.ErrForbidden):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, resp.Error("The user doesn't have enough privileges"))
	default:
		log.Error("request failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}
