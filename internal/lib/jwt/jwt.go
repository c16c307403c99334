package jwt

import (
	"errors"
	"fmt"
	"time"

	"todo_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidTokenType = errors.New("invalid token type")
)

type Claims struct {
	TokenType string `json:"token_type"`
	UUID      string `json:"uuid"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func New(secret, algorithm string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	const op = "jwt.New"

	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%s: unsupported signing method %q", op, algorithm)
	}

	return &Manager{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// * WithClock подменяет источник времени (для тестов)
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now

	return &cp
}

// * NewPair выпускает пару access + refresh токенов для пользователя
func (m *Manager) NewPair(userUUID string) (models.TokenPair, error) {
	const op = "jwt.NewPair"

	access, err := m.newToken(userUUID, models.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := m.newToken(userUUID, models.TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// * Parse проверяет подпись, срок действия и тип токена
func (m *Manager) Parse(tokenStr, expectedType string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != expectedType {
		return nil, ErrInvalidTokenType
	}

	if claims.UUID == "" {
		return nil, fmt.Errorf("%w: missing uuid claim", ErrInvalidToken)
	}

	return claims, nil
}

func (m *Manager) newToken(userUUID, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()

	claims := Claims{
		TokenType: tokenType,
		UUID:      userUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
}
