package jwt_test

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo_service/internal/lib/jwt"
	"todo_service/internal/models"
)

const (
	secret   = "test-secret"
	userUUID = "0b6f5d5e-5f57-4b8f-9d3c-6a2a4d1c7e11"
)

func newManager(t *testing.T) *jwt.Manager {
	t.Helper()

	m, err := jwt.New(secret, "HS256", 30*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	return m
}

func TestNewRejectsNonHMAC(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{"RS256", "none", ""} {
		_, err := jwt.New(secret, alg, time.Minute, time.Hour)
		assert.Error(t, err, alg)
	}
}

func TestTokenTypes(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	pair, err := m.NewPair(userUUID)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := m.Parse(pair.AccessToken, models.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, userUUID, claims.UUID)
	assert.Equal(t, models.TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)

	_, err = m.Parse(pair.AccessToken, models.TokenTypeRefresh)
	assert.ErrorIs(t, err, jwt.ErrInvalidTokenType)

	claims, err = m.Parse(pair.RefreshToken, models.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, userUUID, claims.UUID)

	_, err = m.Parse(pair.RefreshToken, models.TokenTypeAccess)
	assert.ErrorIs(t, err, jwt.ErrInvalidTokenType)
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now()
	m := newManager(t).WithClock(func() time.Time { return issuedAt })

	pair, err := m.NewPair(userUUID)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		after     time.Duration
		token     string
		tokenType string
		expired   bool
	}{
		{"Access within ttl", 29 * time.Minute, pair.AccessToken, models.TokenTypeAccess, false},
		{"Access past ttl", 31 * time.Minute, pair.AccessToken, models.TokenTypeAccess, true},
		{"Refresh within ttl", 6 * 24 * time.Hour, pair.RefreshToken, models.TokenTypeRefresh, false},
		{"Refresh past ttl", 8 * 24 * time.Hour, pair.RefreshToken, models.TokenTypeRefresh, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			later := m.WithClock(func() time.Time { return issuedAt.Add(tc.after) })

			_, err := later.Parse(tc.token, tc.tokenType)
			if tc.expired {
				assert.ErrorIs(t, err, jwt.ErrTokenExpired)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	other, err := jwt.New("another-secret", "HS256", time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := other.NewPair(userUUID)
	require.NoError(t, err)

	_, err = m.Parse(pair.AccessToken, models.TokenTypeAccess)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	hs512, err := jwt.New(secret, "HS512", time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err = hs512.NewPair(userUUID)
	require.NoError(t, err)

	_, err = m.Parse(pair.AccessToken, models.TokenTypeAccess)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	_, err = m.Parse("not-a-token", models.TokenTypeAccess)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestParseRequiresExpiry(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"token_type": models.TokenTypeAccess,
		"uuid":       userUUID,
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = m.Parse(token, models.TokenTypeAccess)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}
