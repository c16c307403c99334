package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"todo_service/internal/lib/importer"
	"todo_service/internal/lib/logger/sl"
	"todo_service/internal/lib/password"
	"todo_service/internal/models"
	"todo_service/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email has been used")
	ErrForbidden    = errors.New("the user doesn't have enough privileges")
)

type Storage interface {
	Users(ctx context.Context, skip, limit int) ([]models.User, error)
	UserByID(ctx context.Context, userUUID string) (models.User, error)
	UserByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	SaveUser(ctx context.Context, u models.User) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) (models.User, error)
	DeleteUser(ctx context.Context, userUUID string) error
}

type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// * UpdateInput частичное обновление: nil поля не меняются
type UpdateInput struct {
	Username    *string
	Email       *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
}

type Failure struct {
	Username string `json:"username"`
	Error    string `json:"error"`
}

type Service struct {
	log      *slog.Logger
	storage  Storage
	events   Publisher
	validate *validator.Validate
	nowFunc  func() time.Time
}

func New(log *slog.Logger, storage Storage, events Publisher) *Service {
	return &Service{
		log:      log,
		storage:  storage,
		events:   events,
		validate: validator.New(),
		nowFunc:  time.Now,
	}
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	const op = "users.List"

	list, err := s.storage.Users(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Service) Get(ctx context.Context, actor models.User, userUUID string) (models.User, error) {
	const op = "users.Get"

	userUUID, err := canonicalID(userUUID)
	if err != nil {
		return models.User{}, err
	}

	if !actor.CanAccess(userUUID) {
		return models.User{}, ErrForbidden
	}

	u, err := s.storage.UserByID(ctx, userUUID)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return u, nil
}

// * Update применяет частичное обновление; флаги меняет только суперпользователь
func (s *Service) Update(ctx context.Context, actor models.User, userUUID string, in UpdateInput) (models.User, error) {
	const op = "users.Update"

	userUUID, err := canonicalID(userUUID)
	if err != nil {
		return models.User{}, err
	}

	log := s.log.With(slog.String("op", op), slog.String("uuid", userUUID))

	if !actor.CanAccess(userUUID) {
		return models.User{}, ErrForbidden
	}

	if !actor.IsSuperuser && (in.IsActive != nil || in.IsSuperuser != nil) {
		return models.User{}, ErrForbidden
	}

	u, err := s.storage.UserByID(ctx, userUUID)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.IsSuperuser != nil {
		u.IsSuperuser = *in.IsSuperuser
	}
	if in.Password != nil {
		u.PassHash, err = password.Hash(*in.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	u, err = s.storage.UpdateUser(ctx, u)
	if err != nil {
		if !errors.Is(err, storage.ErrUserExists) && !errors.Is(err, storage.ErrUserNotFound) {
			log.Error("failed to update user", sl.Err(err))
		}
		return models.User{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	log.Info("user updated")

	return u, nil
}

// * Delete удаляет пользователя вместе со всеми его задачами
func (s *Service) Delete(ctx context.Context, actor models.User, userUUID string) error {
	const op = "users.Delete"

	userUUID, err := canonicalID(userUUID)
	if err != nil {
		return err
	}

	log := s.log.With(slog.String("op", op), slog.String("uuid", userUUID))

	if !actor.CanAccess(userUUID) {
		return ErrForbidden
	}

	if err := s.storage.DeleteUser(ctx, userUUID); err != nil {
		return fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	s.publish(ctx, log, models.Event{Type: models.EventUserDeleted, UserUUID: userUUID})

	log.Info("user deleted")

	return nil
}

// * Import создает или обновляет пользователей из CSV/XLSX.
// Ошибка в строке не прерывает импорт, она попадает в список failures.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) ([]Failure, error) {
	const op = "users.Import"

	log := s.log.With(slog.String("op", op), slog.String("file", filename))

	rows, err := importer.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	failures := make([]Failure, 0)
	imported := 0

	for _, row := range rows {
		if err := s.importRow(ctx, row); err != nil {
			log.Warn("failed to import row", slog.Int("line", row.Line), sl.Err(err))

			failures = append(failures, Failure{Username: row.Username, Error: err.Error()})
			continue
		}

		imported++
	}

	if imported > 0 {
		s.publish(ctx, log, models.Event{Type: models.EventUsersImported, Count: imported})
	}

	log.Info("users imported", slog.Int("imported", imported), slog.Int("failed", len(failures)))

	return failures, nil
}

func (s *Service) importRow(ctx context.Context, row importer.Row) error {
	if row.Username == "" || row.Email == "" || row.Password == "" {
		return errors.New("username, email, password are required fields")
	}

	if err := s.validate.Var(row.Email, "email"); err != nil {
		return errors.New("invalid email")
	}

	passHash, err := password.Hash(row.Password)
	if err != nil {
		return err
	}

	existing, err := s.storage.UserByUsernameOrEmail(ctx, row.Username, row.Email)
	switch {
	case err == nil:
		existing.Username = row.Username
		existing.Email = row.Email
		existing.PassHash = passHash
		if row.IsActive != nil {
			existing.IsActive = *row.IsActive
		}
		if row.IsSuperuser != nil {
			existing.IsSuperuser = *row.IsSuperuser
		}

		_, err = s.storage.UpdateUser(ctx, existing)
	case errors.Is(err, storage.ErrUserNotFound):
		u := models.User{
			UUID:     uuid.NewString(),
			Username: row.Username,
			Email:    row.Email,
			PassHash: passHash,
			IsActive: true,
		}
		if row.IsActive != nil {
			u.IsActive = *row.IsActive
		}
		if row.IsSuperuser != nil {
			u.IsSuperuser = *row.IsSuperuser
		}

		_, err = s.storage.SaveUser(ctx, u)
	}

	return mapStorageErr(err)
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, event models.Event) {
	if s.events == nil {
		return
	}

	event.OccurredAt = s.nowFunc().UTC()

	if err := s.events.Publish(ctx, event); err != nil {
		log.Error("failed to publish event", slog.String("type", event.Type), sl.Err(err))
	}
}

// * canonicalID приводит uuid из пути к нижнему регистру; некорректный uuid не может принадлежать пользователю
func canonicalID(userUUID string) (string, error) {
	id, err := uuid.Parse(userUUID)
	if err != nil {
		return "", ErrUserNotFound
	}

	return id.String(), nil
}

func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, storage.ErrUserExists):
		return ErrUserExists
	default:
		return err
	}
}
