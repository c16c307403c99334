package storage

import "errors"

var (
	ErrUserExists     = errors.New("user already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrTodoNotFound   = errors.New("todo not found")
	ErrAuthorNotFound = errors.New("author not found")
)
