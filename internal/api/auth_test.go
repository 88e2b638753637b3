package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alumnihub/messaging/internal/database"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("password")
	assert.NoError(t, err)
	assert.NotEqual(t, "password", hash)

	assert.True(t, verifyPassword(hash, "password"))
	assert.False(t, verifyPassword(hash, "wrong"))
	assert.False(t, verifyPassword("not-a-hash", "password"))
}

func TestJwtRoundTrip(t *testing.T) {
	app := newTestApp(t, &database.MockMessagingRepository{})

	token, err := app.createJwtForSession(42, defaultJwtExpiration)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userId, err := app.extractUserIdFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, 42, userId)
}

func TestExtractUserIdFromToken(t *testing.T) {
	app := newTestApp(t, &database.MockMessagingRepository{})

	t.Run("rejects an expired token", func(t *testing.T) {
		token, err := app.createJwtForSession(42, -time.Hour)
		assert.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects a token signed with a different key", func(t *testing.T) {
		other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			userIdClaim: 42,
			expClaim:    time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := other.SignedString([]byte("some-other-key"))
		assert.NoError(t, err)

		_, err = app.extractUserIdFromToken(tokenString)
		assert.Error(t, err)
	})

	t.Run("rejects an unexpected signing method", func(t *testing.T) {
		none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			userIdClaim: 42,
			expClaim:    time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		assert.NoError(t, err)

		_, err = app.extractUserIdFromToken(tokenString)
		assert.Error(t, err)
	})

	t.Run("rejects a token without a user id claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			expClaim: time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := token.SignedString(app.signingKey)
		assert.NoError(t, err)

		_, err = app.extractUserIdFromToken(tokenString)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := app.extractUserIdFromToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestCreateJwtCookie(t *testing.T) {
	cookie := createJwtCookie("tokenvalue", time.Hour)

	assert.Equal(t, tokenCookieKey, cookie.Name)
	assert.Equal(t, "tokenvalue", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly, "session cookie must not be script-readable")
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cookie.Expires, time.Minute)
}

func TestUserIdContext(t *testing.T) {
	ctx := WithUserId(context.Background(), 7)
	userId, ok := UserId(ctx)
	assert.True(t, ok)
	assert.Equal(t, 7, userId)

	_, ok = UserId(context.Background())
	assert.False(t, ok)
}
