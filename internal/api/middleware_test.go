package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alumnihub/messaging/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	app := newTestApp(t, &database.MockMessagingRepository{})

	t.Run("missing cookie is unauthorized", func(t *testing.T) {
		called := false
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called, "handler must not run without a session")
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		called := false
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(createJwtCookie("garbage", defaultJwtExpiration))
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})

	t.Run("valid token reaches the handler with the user id", func(t *testing.T) {
		token, err := app.createJwtForSession(42, defaultJwtExpiration)
		assert.NoError(t, err)

		var gotUserId int
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			userId, ok := UserId(r.Context())
			assert.True(t, ok, "expected user id in request context")
			gotUserId = userId
		})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(createJwtCookie(token, defaultJwtExpiration))
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, 42, gotUserId)
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	})
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	app := newTestApp(t, &database.MockMessagingRepository{})

	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
