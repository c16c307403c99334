package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo_service/internal/models"
	"todo_service/internal/storage"
	"todo_service/internal/storage/postgres"
)

const (
	userUUID = "5b1c1f3e-6a43-4c1d-9d55-8f0f1b2c3d4e"
	todoID   = "a3f1c2d4-0b1e-4f7a-8c9d-112233445566"
	dbError  = "db error"
)

type testDependencies struct {
	repo    *postgres.PostgresRepo
	mock    sqlmock.Sqlmock
	cleanup func()
}

func setupTest(t *testing.T) *testDependencies {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Error mocking DB")

	return &testDependencies{
		repo: postgres.NewWithDB(db),
		mock: mock,
		cleanup: func() {
			assert.NoError(t, mock.ExpectationsWereMet(), "Expectations were not met")
			db.Close()
		},
	}
}

func userRows(mock sqlmock.Sqlmock, u models.User) *sqlmock.Rows {
	return mock.NewRows([]string{
		"uuid", "username", "email", "hashed_password", "is_active", "is_superuser",
		"refresh_token_hash", "created_at", "updated_at",
	}).AddRow(
		u.UUID, u.Username, u.Email, string(u.PassHash), u.IsActive, u.IsSuperuser,
		u.RefreshTokenHash, u.CreatedAt, u.UpdatedAt,
	)
}

func todoRows(mock sqlmock.Sqlmock) *sqlmock.Rows {
	return mock.NewRows([]string{
		"id", "title", "description", "completed", "limit_date", "author_uuid",
		"created_at", "updated_at", "username",
	})
}

func testUser() models.User {
	now := time.Now()

	return models.User{
		UUID:        userUUID,
		Username:    "alice",
		Email:       "alice@example.com",
		PassHash:    []byte("$2a$10$fakehash"),
		IsActive:    true,
		IsSuperuser: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSaveUser(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		mockSetup     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "Success",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WithArgs(userUUID, "alice", "alice@example.com", "$2a$10$fakehash", true, false, "").
					WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
			},
		},
		{
			name: "Duplicate username or email",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			expectedError: storage.ErrUserExists,
		},
		{
			name: "Database error",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WillReturnError(errors.New(dbError))
			},
			expectedError: errors.New(dbError),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			td := setupTest(t)
			defer td.cleanup()

			tc.mockSetup(td.mock)

			u, err := td.repo.SaveUser(context.Background(), testUser())

			if tc.expectedError != nil {
				assert.ErrorContains(t, err, tc.expectedError.Error())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, userUUID, u.UUID)
			assert.False(t, u.CreatedAt.IsZero())
		})
	}
}

func TestUserByID(t *testing.T) {
	t.Parallel()

	t.Run("Found", func(t *testing.T) {
		t.Parallel()

		td := setupTest(t)
		defer td.cleanup()

		want := testUser()
		want.RefreshTokenHash = "abc"

		td.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE uuid = $1")).
			WithArgs(userUUID).
			WillReturnRows(userRows(td.mock, want))

		got, err := td.repo.UserByID(context.Background(), userUUID)
		require.NoError(t, err)
		assert.Equal(t, want.Username, got.Username)
		assert.Equal(t, want.PassHash, got.PassHash)
		assert.Equal(t, "abc", got.RefreshTokenHash)
	})

	t.Run("Not found", func(t *testing.T) {
		t.Parallel()

		td := setupTest(t)
		defer td.cleanup()

		td.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE uuid = $1")).
			WithArgs(userUUID).
			WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

		_, err := td.repo.UserByID(context.Background(), userUUID)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func TestUserByUsernameOrEmailNotFound(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1 OR email = $2")).
		WithArgs("bob", "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, err := td.repo.UserByUsernameOrEmail(context.Background(), "bob", "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUsers(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at, uuid OFFSET $1 LIMIT $2")).
		WithArgs(0, 100).
		WillReturnRows(userRows(td.mock, testUser()))

	users, err := td.repo.Users(context.Background(), 0, 100)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		mockSetup     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "Success",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
					WillReturnRows(sqlmock.NewRows([]string{"refresh_token_hash", "updated_at"}).AddRow("digest", time.Now()))
			},
		},
		{
			name: "Not found",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
					WillReturnRows(sqlmock.NewRows([]string{"refresh_token_hash", "updated_at"}))
			},
			expectedError: storage.ErrUserNotFound,
		},
		{
			name: "Duplicate email",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
					WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			expectedError: storage.ErrUserExists,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			td := setupTest(t)
			defer td.cleanup()

			tc.mockSetup(td.mock)

			_, err := td.repo.UpdateUser(context.Background(), testUser())
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateUserResetsRefreshSlotOnNewPassword(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	u := testUser()
	u.RefreshTokenHash = "stale-digest"

	td.mock.ExpectQuery(regexp.QuoteMeta(
		"refresh_token_hash = CASE WHEN hashed_password = $3 THEN refresh_token_hash ELSE '' END",
	)).
		WithArgs(u.Username, u.Email, string(u.PassHash), u.IsActive, u.IsSuperuser, u.UUID).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token_hash", "updated_at"}).AddRow("", time.Now()))

	updated, err := td.repo.UpdateUser(context.Background(), u)
	require.NoError(t, err)
	assert.Empty(t, updated.RefreshTokenHash)
}

func TestSetRefreshTokenHash(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token_hash = $1 WHERE uuid = $2")).
		WithArgs("digest", userUUID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	td.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token_hash = $1 WHERE uuid = $2")).
		WithArgs("digest", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, td.repo.SetRefreshTokenHash(context.Background(), userUUID, "digest"))
	assert.ErrorIs(t, td.repo.SetRefreshTokenHash(context.Background(), "missing", "digest"), storage.ErrUserNotFound)
}

func TestUpdatePasswordClearsRefreshSlot(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectExec(regexp.QuoteMeta("SET hashed_password = $1, refresh_token_hash = ''")).
		WithArgs("newhash", userUUID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, td.repo.UpdatePassword(context.Background(), userUUID, []byte("newhash")))
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE uuid = $1")).
		WithArgs(userUUID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	td.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE uuid = $1")).
		WithArgs(userUUID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, td.repo.DeleteUser(context.Background(), userUUID))
	assert.ErrorIs(t, td.repo.DeleteUser(context.Background(), userUUID), storage.ErrUserNotFound)
}

func TestSaveTodo(t *testing.T) {
	t.Parallel()

	description := "buy milk"

	testCases := []struct {
		name          string
		mockSetup     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "Success",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO todos")).
					WithArgs(todoID, "groceries", "buy milk", false, sqlmock.AnyArg(), userUUID).
					WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
			},
		},
		{
			name: "Unknown author",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO todos")).
					WillReturnError(&pgconn.PgError{Code: "23503"})
			},
			expectedError: storage.ErrAuthorNotFound,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			td := setupTest(t)
			defer td.cleanup()

			tc.mockSetup(td.mock)

			todo, err := td.repo.SaveTodo(context.Background(), models.Todo{
				ID:          todoID,
				Title:       "groceries",
				Description: &description,
				AuthorUUID:  userUUID,
			})
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, todoID, todo.ID)
		})
	}
}

func TestTodo(t *testing.T) {
	t.Parallel()

	t.Run("Nullable columns", func(t *testing.T) {
		t.Parallel()

		td := setupTest(t)
		defer td.cleanup()

		td.mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
			WithArgs(todoID).
			WillReturnRows(todoRows(td.mock).AddRow(
				todoID, "groceries", nil, true, nil, userUUID, time.Now(), time.Now(), "alice",
			))

		todo, err := td.repo.Todo(context.Background(), todoID)
		require.NoError(t, err)
		assert.Nil(t, todo.Description)
		assert.Nil(t, todo.LimitDate)
		assert.True(t, todo.Completed)
		require.NotNil(t, todo.Author)
		assert.Equal(t, "alice", todo.Author.Username)
	})

	t.Run("Not found", func(t *testing.T) {
		t.Parallel()

		td := setupTest(t)
		defer td.cleanup()

		td.mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
			WithArgs(todoID).
			WillReturnRows(todoRows(td.mock))

		_, err := td.repo.Todo(context.Background(), todoID)
		assert.ErrorIs(t, err, storage.ErrTodoNotFound)
	})
}

func TestTodosByAuthor(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	due := time.Now().Add(24 * time.Hour)

	td.mock.ExpectQuery(regexp.QuoteMeta("WHERE t.author_uuid = $1")).
		WithArgs(userUUID, 10, 5).
		WillReturnRows(todoRows(td.mock).
			AddRow(todoID, "first", "details", false, due, userUUID, time.Now(), time.Now(), "alice").
			AddRow("b3f1c2d4-0b1e-4f7a-8c9d-112233445566", "second", nil, false, nil, userUUID, time.Now(), time.Now(), "alice"))

	todos, err := td.repo.TodosByAuthor(context.Background(), userUUID, 10, 5)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	require.NotNil(t, todos[0].Description)
	assert.Equal(t, "details", *todos[0].Description)
	require.NotNil(t, todos[0].LimitDate)
	assert.Nil(t, todos[1].LimitDate)
}

func TestDeleteTodoNotFound(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos WHERE id = $1")).
		WithArgs(todoID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, td.repo.DeleteTodo(context.Background(), todoID), storage.ErrTodoNotFound)
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	td := setupTest(t)
	defer td.cleanup()

	td.mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))
	td.mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS todos")).WillReturnResult(sqlmock.NewResult(0, 0))
	td.mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_todos_author_uuid")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, td.repo.Migrate(context.Background()))
}
