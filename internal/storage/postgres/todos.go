package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"todo_service/internal/models"
	"todo_service/internal/storage"
)

const todoSelect = `
		SELECT t.id, t.title, t.description, t.completed, t.limit_date, t.author_uuid,
			t.created_at, t.updated_at, u.username
		FROM todos t
		JOIN users u ON u.uuid = t.author_uuid`

func scanTodo(row rowScanner) (models.Todo, error) {
	var (
		t           models.Todo
		description sql.NullString
		limitDate   sql.NullTime
		username    string
	)

	err := row.Scan(
		&t.ID,
		&t.Title,
		&description,
		&t.Completed,
		&limitDate,
		&t.AuthorUUID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&username,
	)
	if err != nil {
		return models.Todo{}, err
	}

	if description.Valid {
		t.Description = &description.String
	}
	if limitDate.Valid {
		t.LimitDate = &limitDate.Time
	}

	t.Author = &models.Author{UUID: t.AuthorUUID, Username: username}

	return t, nil
}

func (r *PostgresRepo) SaveTodo(ctx context.Context, t models.Todo) (models.Todo, error) {
	const op = "storage.postgres.SaveTodo"

	query := `
		INSERT INTO todos (id, title, description, completed, limit_date, author_uuid)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at;
	`

	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.Title, t.Description, t.Completed, t.LimitDate, t.AuthorUUID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return models.Todo{}, storage.ErrAuthorNotFound
		}

		return models.Todo{}, fmt.Errorf("%s: failed to save todo: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) Todo(ctx context.Context, id string) (models.Todo, error) {
	const op = "storage.postgres.Todo"

	t, err := scanTodo(r.db.QueryRowContext(ctx, todoSelect+` WHERE t.id = $1;`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Todo{}, storage.ErrTodoNotFound
		}

		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) Todos(ctx context.Context, skip, limit int) ([]models.Todo, error) {
	const op = "storage.postgres.Todos"

	query := todoSelect + ` ORDER BY t.created_at, t.id OFFSET $1 LIMIT $2;`

	return r.queryTodos(ctx, op, query, skip, limit)
}

func (r *PostgresRepo) TodosByAuthor(ctx context.Context, authorUUID string, skip, limit int) ([]models.Todo, error) {
	const op = "storage.postgres.TodosByAuthor"

	query := todoSelect + ` WHERE t.author_uuid = $1 ORDER BY t.created_at, t.id OFFSET $2 LIMIT $3;`

	return r.queryTodos(ctx, op, query, authorUUID, skip, limit)
}

func (r *PostgresRepo) queryTodos(ctx context.Context, op, query string, args ...any) ([]models.Todo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	todos := make([]models.Todo, 0)

	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return todos, nil
}

func (r *PostgresRepo) UpdateTodo(ctx context.Context, t models.Todo) (models.Todo, error) {
	const op = "storage.postgres.UpdateTodo"

	query := `
		UPDATE todos
		SET title = $1, description = $2, completed = $3, limit_date = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at;
	`

	err := r.db.QueryRowContext(ctx, query,
		t.Title, t.Description, t.Completed, t.LimitDate, t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Todo{}, storage.ErrTodoNotFound
		}

		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) DeleteTodo(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteTodo"

	query := `DELETE FROM todos WHERE id = $1;`

	return r.execAffecting(ctx, op, storage.ErrTodoNotFound, query, id)
}
