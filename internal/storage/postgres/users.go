package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"todo_service/internal/models"
	"todo_service/internal/storage"
)

const userColumns = `uuid, username, email, hashed_password, is_active, is_superuser,
		refresh_token_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u        models.User
		passHash string
	)

	err := row.Scan(
		&u.UUID,
		&u.Username,
		&u.Email,
		&passHash,
		&u.IsActive,
		&u.IsSuperuser,
		&u.RefreshTokenHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	u.PassHash = []byte(passHash)

	return u, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (uuid, username, email, hashed_password, is_active, is_superuser, refresh_token_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at;
	`

	err := r.db.QueryRowContext(ctx, query,
		u.UUID, u.Username, u.Email, string(u.PassHash), u.IsActive, u.IsSuperuser, u.RefreshTokenHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, userUUID string) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1;`

	return r.queryUser(ctx, op, query, userUUID)
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	return r.queryUser(ctx, op, query, email)
}

// * UserByUsernameOrEmail ищет пользователя, совпадающего по имени или почте
func (r *PostgresRepo) UserByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	const op = "storage.postgres.UserByUsernameOrEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $2 LIMIT 1;`

	return r.queryUser(ctx, op, query, username, email)
}

func (r *PostgresRepo) queryUser(ctx context.Context, op, query string, args ...any) (models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) Users(ctx context.Context, skip, limit int) ([]models.User, error) {
	const op = "storage.postgres.Users"

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, uuid OFFSET $1 LIMIT $2;`

	rows, err := r.db.QueryContext(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]models.User, 0)

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// * UpdateUser сохраняет профиль; смена хеша пароля сбрасывает refresh токен
func (r *PostgresRepo) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.postgres.UpdateUser"

	query := `
		UPDATE users
		SET username = $1, email = $2, hashed_password = $3, is_active = $4, is_superuser = $5,
			refresh_token_hash = CASE WHEN hashed_password = $3 THEN refresh_token_hash ELSE '' END,
			updated_at = NOW()
		WHERE uuid = $6
		RETURNING refresh_token_hash, updated_at;
	`

	err := r.db.QueryRowContext(ctx, query,
		u.Username, u.Email, string(u.PassHash), u.IsActive, u.IsSuperuser, u.UUID,
	).Scan(&u.RefreshTokenHash, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		if pgErrorCode(err) == codeUniqueViolation {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// * UpdatePassword меняет хеш пароля и сбрасывает сохраненный refresh токен
func (r *PostgresRepo) UpdatePassword(ctx context.Context, userUUID string, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	query := `
		UPDATE users
		SET hashed_password = $1, refresh_token_hash = '', updated_at = NOW()
		WHERE uuid = $2;
	`

	return r.execAffecting(ctx, op, storage.ErrUserNotFound, query, string(passHash), userUUID)
}

// * SetRefreshTokenHash заменяет единственный слот refresh токена пользователя
func (r *PostgresRepo) SetRefreshTokenHash(ctx context.Context, userUUID, tokenHash string) error {
	const op = "storage.postgres.SetRefreshTokenHash"

	query := `UPDATE users SET refresh_token_hash = $1 WHERE uuid = $2;`

	return r.execAffecting(ctx, op, storage.ErrUserNotFound, query, tokenHash, userUUID)
}

// * DeleteUser удаляет пользователя; задачи удаляются каскадно
func (r *PostgresRepo) DeleteUser(ctx context.Context, userUUID string) error {
	const op = "storage.postgres.DeleteUser"

	query := `DELETE FROM users WHERE uuid = $1;`

	return r.execAffecting(ctx, op, storage.ErrUserNotFound, query, userUUID)
}

func (r *PostgresRepo) execAffecting(ctx context.Context, op string, notFound error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return notFound
	}

	return nil
}
