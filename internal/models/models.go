package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access_token"
	TokenTypeRefresh = "refresh_token"
)

type User struct {
	UUID             string    `json:"uuid"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	PassHash         []byte    `json:"-"`
	IsActive         bool      `json:"is_active"`
	IsSuperuser      bool      `json:"is_superuser"`
	RefreshTokenHash string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// * Author краткое представление автора задачи
type Author struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}

type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	LimitDate   *time.Time `json:"limit_date"`
	AuthorUUID  string     `json:"author_uuid"`
	Author      *Author    `json:"author,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// * Event доменное событие, публикуемое в брокер
type Event struct {
	Type       string    `json:"type"`
	UserUUID   string    `json:"user_uuid,omitempty"`
	Email      string    `json:"email,omitempty"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventUserRegistered = "user.registered"
	EventUserDeleted    = "user.deleted"
	EventUsersImported  = "users.imported"
)

// * CanAccess проверяет, может ли пользователь работать с ресурсами владельца
func (u User) CanAccess(ownerUUID string) bool {
	if u.IsSuperuser {
		return true
	}

	self, err := uuid.Parse(u.UUID)
	if err != nil {
		return false
	}

	owner, err := uuid.Parse(ownerUUID)
	if err != nil {
		return false
	}

	return self == owner
}
