package todos

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"todo_service/internal/lib/api/page"
	resp "todo_service/internal/lib/api/response"
	"todo_service/internal/lib/logger/sl"
	authmw "todo_service/internal/middleware/auth"
	"todo_service/internal/models"
	"todo_service/internal/todos"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type TodoService interface {
	Create(ctx context.Context, actor models.User, in todos.CreateInput) (models.Todo, error)
	List(ctx context.Context, actor models.User, skip, limit int) ([]models.Todo, error)
	ListByAuthor(ctx context.Context, actor models.User, authorUUID string, skip, limit int) ([]models.Todo, error)
	Get(ctx context.Context, actor models.User, id string) (models.Todo, error)
	Update(ctx context.Context, actor models.User, id string, in todos.UpdateInput) (models.Todo, error)
	Delete(ctx context.Context, actor models.User, id string) (models.Todo, error)
}

type CreateRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	LimitDate   LimitDate `json:"limit_date"`
	AuthorUUID  string    `json:"author_uuid" validate:"omitempty,uuid"`
}

type UpdateRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description"`
	Completed   *bool     `json:"completed"`
	LimitDate   LimitDate `json:"limit_date"`
}

// Create godoc
// @Summary      Создание задачи
// @Description  Без author_uuid автором становится текущий пользователь.
// @Description  Создать задачу для другого автора может только суперпользователь.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        todo  body  CreateRequest  true  "Задача"
// @Success      201  {object}  models.Todo
// @Failure      400  {object}  response.Response  "Ошибка валидации или автор не существует"
// @Failure      403  {object}  response.Response
// @Router       /todos [post]
func Create(log *slog.Logger, validate *validator.Validate, svc TodoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.todos.Create"

		log := requestLog(log, r, op)

		var req CreateRequest

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

		todo, err := svc.Create(ctx, actor, todos.CreateInput{
			Title:       req.Title,
			Description: req.Description,
			Completed:   req.Completed,
			LimitDate:   req.LimitDate.Time,
			AuthorUUID:  req.AuthorUUID,
		})
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, todo)
	}
}

// List godoc
// @Summary      Список задач
// @Description  Суперпользователь видит все задачи, остальные только свои.
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query  int  false  "Смещение"
// @Param        limit  query  int  false  "Размер страницы (по умолчанию 100)"
// @Success      200  {array}  models.Todo
// @Router       /todos [get]
func List(log *slog.Logger, svc TodoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.todos.List"

		log := requestLog(log, r, op)

		skip, limit, err := page.FromRequest(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(err.Error()))

			return
		}

		actor, _ := authmw.UserFromContext(r.Context())

		list, err := svc.List(r.Context(), actor, skip, limit)
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, list)
	}
}

// ListByAuthor godoc
// @Summary      Задачи автора
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        author_uuid  path   string  true   "UUID автора"
// @Param        skip         query  int     false  "Смещение"
// @Param        limit        query  int     false  "Размер страницы"
// @Success      200  {array}   models.Todo
// @Failure      403  {object}  response.Response
// @Router       /todos/{author_uuid} [get]
func ListByAuthor(log *slog.Logger, svc TodoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.todos.ListByAuthor"

		log := requestLog(log, r, op)

		skip, limit, err := page.FromRequest(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(err.Error()))

			return
		}

		actor, _ := authmw.UserFromContext(r.Context())

		list, err := svc.ListByAuthor(r.Context(), actor, chi.URLParam(r, "author_uuid"), skip, limit)
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, list)
	}
}

// Get godoc
// @Summary      Задача по id
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        todo_id  path  string  true  "UUID задачи"
// @Success      200  {object}  models.Todo
// @Failure      400  {object}  response.Response  "Некорректный UUID"
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /todo/{todo_id} [get]
func Get(log *slog.Logger, svc TodoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.todos.Get"

		log := requestLog(log, r, op)

		actor, _ := authmw.UserFromContext(r.Context())

		todo, err := svc.Get(r.Context(), actor, chi.URLParam(r, "todo_id"))
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, todo)
	}
}

// Update godoc
// @Summary      Частичное обновление задачи
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        todo_id  path  string         true  "UUID задачи"
// @Param        todo     body  UpdateRequest  true  "Изменяемые поля"
// @Success      200  {object}  models.Todo
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /todos/edit/{todo_id} [put]
func Update(log *slog.Logger, validate *validator.Validate, svc TodoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.todos.Update"

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

		todo, err := svc.Update(ctx, actor, chi.URLParam(r, "todo_id"), todos.UpdateInput{
			Title:       req.Title,
			Description: req.Description,
			Completed:   req.Completed,
			LimitDate:   req.LimitDate.Time,
		})
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, todo)
	}
}

// Delete godoc
// @Summary      Удаление задачи
// @Description  Возвращает удаленную задачу.
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        todo_id  path  string  true  "UUID задачи"
// @Success      200  {object}  models.Todo
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /todos/delete/{todo_id} [delete]
func Delete(log *slog.Logger, svc TodoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.todos.Delete"

		log := requestLog(log, r, op)

		actor, _ := authmw.UserFromContext(r.Context())

		todo, err := svc.Delete(r.Context(), actor, chi.URLParam(r, "todo_id"))
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, todo)
	}
}

func requestLog(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, todos.ErrInvalidID):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("Invalid UUID format."))
	case errors.Is(err, todos.ErrAuthorNotFound):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("Author not found."))
	case errors.Is(err, todos.ErrTodoNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("Todo not found"))
	case errors.Is(err, todos.ErrForbidden):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, resp.Error("The user doesn't have enough privileges"))
	default:
		log.Error("request failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}
