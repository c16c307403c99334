package todos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"todo_service/internal/lib/logger/sl"
	"todo_service/internal/models"
	"todo_service/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrTodoNotFound   = errors.New("todo not found")
	ErrAuthorNotFound = errors.New("author not found")
	ErrInvalidID      = errors.New("invalid UUID format")
	ErrForbidden      = errors.New("the user doesn't have enough privileges")
)

type Storage interface {
	SaveTodo(ctx context.Context, t models.Todo) (models.Todo, error)
	Todo(ctx context.Context, id string) (models.Todo, error)
	Todos(ctx context.Context, skip, limit int) ([]models.Todo, error)
	TodosByAuthor(ctx context.Context, authorUUID string, skip, limit int) ([]models.Todo, error)
	UpdateTodo(ctx context.Context, t models.Todo) (models.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

type CreateInput struct {
	Title       string
	Description *string
	Completed   bool
	LimitDate   *time.Time
	AuthorUUID  string
}

// * UpdateInput частичное обновление: nil поля не меняются
type UpdateInput struct {
	Title       *string
	Description *string
	Completed   *bool
	LimitDate   *time.Time
}

type Service struct {
	log     *slog.Logger
	storage Storage
}

func New(log *slog.Logger, storage Storage) *Service {
	return &Service{
		log:     log,
		storage: storage,
	}
}

// * Create создает задачу; без author_uuid автором становится текущий пользователь
func (s *Service) Create(ctx context.Context, actor models.User, in CreateInput) (models.Todo, error) {
	const op = "todos.Create"

	log := s.log.With(slog.String("op", op))

	author := in.AuthorUUID
	if author == "" {
		author = actor.UUID
	}

	authorID, err := uuid.Parse(author)
	if err != nil {
		return models.Todo{}, ErrInvalidID
	}
	author = authorID.String()

	if !actor.CanAccess(author) {
		return models.Todo{}, ErrForbidden
	}

	saved, err := s.storage.SaveTodo(ctx, models.Todo{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		LimitDate:   in.LimitDate,
		AuthorUUID:  author,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAuthorNotFound) {
			return models.Todo{}, ErrAuthorNotFound
		}

		log.Error("failed to save todo", sl.Err(err))
		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("todo created", slog.String("id", saved.ID), slog.String("author", author))

	todo, err := s.storage.Todo(ctx, saved.ID)
	if err != nil {
		return models.Todo{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return todo, nil
}

// * List возвращает все задачи для суперпользователя и свои для остальных
func (s *Service) List(ctx context.Context, actor models.User, skip, limit int) ([]models.Todo, error) {
	const op = "todos.List"

	var (
		list []models.Todo
		err  error
	)

	if actor.IsSuperuser {
		list, err = s.storage.Todos(ctx, skip, limit)
	} else {
		list, err = s.storage.TodosByAuthor(ctx, actor.UUID, skip, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Service) ListByAuthor(ctx context.Context, actor models.User, authorUUID string, skip, limit int) ([]models.Todo, error) {
	const op = "todos.ListByAuthor"

	authorID, err := uuid.Parse(authorUUID)
	if err != nil {
		return nil, ErrInvalidID
	}
	authorUUID = authorID.String()

	if !actor.CanAccess(authorUUID) {
		return nil, ErrForbidden
	}

	list, err := s.storage.TodosByAuthor(ctx, authorUUID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Service) Get(ctx context.Context, actor models.User, id string) (models.Todo, error) {
	const op = "todos.Get"

	if _, err := uuid.Parse(id); err != nil {
		return models.Todo{}, ErrInvalidID
	}

	todo, err := s.storage.Todo(ctx, id)
	if err != nil {
		return models.Todo{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	if !actor.CanAccess(todo.AuthorUUID) {
		return models.Todo{}, ErrForbidden
	}

	return todo, nil
}

func (s *Service) Update(ctx context.Context, actor models.User, id string, in UpdateInput) (models.Todo, error) {
	const op = "todos.Update"

	log := s.log.With(slog.String("op", op), slog.String("id", id))

	todo, err := s.Get(ctx, actor, id)
	if err != nil {
		return models.Todo{}, err
	}

	if in.Title != nil {
		todo.Title = *in.Title
	}
	if in.Description != nil {
		todo.Description = in.Description
	}
	if in.Completed != nil {
		todo.Completed = *in.Completed
	}
	if in.LimitDate != nil {
		todo.LimitDate = in.LimitDate
	}

	updated, err := s.storage.UpdateTodo(ctx, todo)
	if err != nil {
		if !errors.Is(err, storage.ErrTodoNotFound) {
			log.Error("failed to update todo", sl.Err(err))
		}
		return models.Todo{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	log.Info("todo updated")

	return updated, nil
}

// * Delete удаляет задачу и возвращает ее последнее состояние
func (s *Service) Delete(ctx context.Context, actor models.User, id string) (models.Todo, error) {
	const op = "todos.Delete"

	todo, err := s.Get(ctx, actor, id)
	if err != nil {
		return models.Todo{}, err
	}

	if err := s.storage.DeleteTodo(ctx, id); err != nil {
		return models.Todo{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	s.log.Info("todo deleted", slog.String("op", op), slog.String("id", id))

	return todo, nil
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrTodoNotFound):
		return ErrTodoNotFound
	case errors.Is(err, storage.ErrAuthorNotFound):
		return ErrAuthorNotFound
	default:
		return err
	}
}
