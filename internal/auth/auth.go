package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"todo_service/internal/lib/jwt"
	"todo_service/internal/lib/logger/sl"
	"todo_service/internal/lib/password"
	"todo_service/internal/models"
	"todo_service/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactiveUser       = errors.New("inactive user")
	ErrUnauthorized       = errors.New("could not validate credentials")
	ErrUserExists         = errors.New("username or email has been used")
	ErrPasswordMismatch   = errors.New("incorrect current password")
	ErrPasswordUnchanged  = errors.New("new password must differ from the current one")
)

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	tokens      TokenManager
	denylist    Denylist
	events      Publisher
	now         func() time.Time
}

type UserSaver interface {
	SaveUser(ctx context.Context, u models.User) (models.User, error)
	SetRefreshTokenHash(ctx context.Context, userUUID, tokenHash string) error
	UpdatePassword(ctx context.Context, userUUID string, passHash []byte) error
}

type UserProvider interface {
	UserByID(ctx context.Context, userUUID string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

type TokenManager interface {
	NewPair(userUUID string) (models.TokenPair, error)
	Parse(token, expectedType string) (*jwt.Claims, error)
}

// * Denylist хранит отозванные access токены; может быть nil
type Denylist interface {
	RevokeAccessToken(ctx context.Context, jti string, ttl time.Duration) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// * Publisher публикует доменные события; может быть nil
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	tokens TokenManager,
	denylist Denylist,
	events Publisher,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		tokens:      tokens,
		denylist:    denylist,
		events:      events,
		now:         time.Now,
	}
}

// * Signup регистрирует пользователя и сразу выдает пару токенов
func (a *Auth) Signup(
	ctx context.Context,
	username, email, pass string,
) (models.User, models.TokenPair, error) {
	const op = "auth.Signup"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("registering new user")

	passHash, err := password.Hash(pass)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrSaver.SaveUser(ctx, models.User{
		UUID:     uuid.NewString(),
		Username: username,
		Email:    email,
		PassHash: passHash,
		IsActive: true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := a.issue(ctx, user.UUID)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	a.publish(ctx, log, models.Event{
		Type:     models.EventUserRegistered,
		UserUUID: user.UUID,
		Email:    user.Email,
	})

	log.Info("user registered", slog.String("uuid", user.UUID))

	return user, pair, nil
}

// * Login проверяет учетные данные и возвращает пару токенов
func (a *Auth) Login(ctx context.Context, email, pass string) (models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.TokenPair{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !password.Verify(pass, user.PassHash) {
		log.Info("invalid credentials")
		return models.TokenPair{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.TokenPair{}, ErrInactiveUser
	}

	pair, err := a.issue(ctx, user.UUID)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.String("uuid", user.UUID))

	return pair, nil
}

// * Refresh обменивает последний выданный refresh токен на новую пару
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	claims, err := a.tokens.Parse(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))
		return models.TokenPair{}, ErrUnauthorized
	}

	user, err := a.userByID(ctx, claims.UUID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !sameDigest(user.RefreshTokenHash, hashToken(refreshToken)) {
		log.Warn("refresh token is not the latest issued", slog.String("uuid", user.UUID))
		return models.TokenPair{}, ErrUnauthorized
	}

	if !user.IsActive {
		return models.TokenPair{}, ErrInactiveUser
	}

	pair, err := a.issue(ctx, user.UUID)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.String("uuid", user.UUID))

	return pair, nil
}

// * Authenticate возвращает активного пользователя по access токену
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	const op = "auth.Authenticate"

	user, _, err := a.authenticate(ctx, accessToken)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive {
		return models.User{}, ErrInactiveUser
	}

	return user, nil
}

// * VerifyToken проверяет access токен и возвращает uuid владельца
func (a *Auth) VerifyToken(ctx context.Context, accessToken string) (string, error) {
	user, err := a.Authenticate(ctx, accessToken)
	if err != nil {
		return "", err
	}

	return user.UUID, nil
}

// * Logout очищает слот refresh токена и отзывает текущий access токен
func (a *Auth) Logout(ctx context.Context, accessToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	user, claims, err := a.authenticate(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetRefreshTokenHash(ctx, user.UUID, ""); err != nil {
		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if a.denylist != nil && claims.ExpiresAt != nil {
		ttl := claims.ExpiresAt.Sub(a.now())
		if err := a.denylist.RevokeAccessToken(ctx, claims.ID, ttl); err != nil {
			log.Error("failed to revoke access token", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("logout successful", slog.String("uuid", user.UUID))

	return nil
}

func (a *Auth) ChangePassword(ctx context.Context, user models.User, current, next string) error {
	const op = "auth.ChangePassword"

	log := a.log.With(slog.String("op", op))

	if !password.Verify(current, user.PassHash) {
		return ErrPasswordMismatch
	}

	if current == next {
		return ErrPasswordUnchanged
	}

	passHash, err := password.Hash(next)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdatePassword(ctx, user.UUID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.String("uuid", user.UUID))

	return nil
}

func (a *Auth) authenticate(ctx context.Context, accessToken string) (models.User, *jwt.Claims, error) {
	claims, err := a.tokens.Parse(accessToken, models.TokenTypeAccess)
	if err != nil {
		return models.User{}, nil, ErrUnauthorized
	}

	if a.denylist != nil {
		revoked, err := a.denylist.IsAccessTokenRevoked(ctx, claims.ID)
		if err != nil {
			return models.User{}, nil, err
		}
		if revoked {
			return models.User{}, nil, ErrUnauthorized
		}
	}

	user, err := a.userByID(ctx, claims.UUID)
	if err != nil {
		return models.User{}, nil, err
	}

	return user, claims, nil
}

func (a *Auth) userByID(ctx context.Context, userUUID string) (models.User, error) {
	user, err := a.usrProvider.UserByID(ctx, userUUID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUnauthorized
		}

		return models.User{}, err
	}

	return user, nil
}

// * issue выпускает пару и перезаписывает единственный слот refresh токена
func (a *Auth) issue(ctx context.Context, userUUID string) (models.TokenPair, error) {
	pair, err := a.tokens.NewPair(userUUID)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := a.usrSaver.SetRefreshTokenHash(ctx, userUUID, hashToken(pair.RefreshToken)); err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

func (a *Auth) publish(ctx context.Context, log *slog.Logger, event models.Event) {
	if a.events == nil {
		return
	}

	event.OccurredAt = a.now().UTC()

	if err := a.events.Publish(ctx, event); err != nil {
		log.Error("failed to publish event", slog.String("type", event.Type), sl.Err(err))
	}
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sameDigest(stored, presented string) bool {
	if stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
