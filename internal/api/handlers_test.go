package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alumnihub/messaging/internal/config"
	"github.com/alumnihub/messaging/internal/database"
	"github.com/alumnihub/messaging/internal/server"
	"github.com/alumnihub/messaging/internal/stats"
	"github.com/alumnihub/messaging/internal/testutil"
	"github.com/alumnihub/messaging/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// findCookie returns the named cookie from the recorded response, or
// nil if it was not set.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr: "localhost:8000",
		SigningKey: []byte("test-signing-key"),
	}
}

func newTestApp(t *testing.T, db *database.MockMessagingRepository) *MessagingApp {
	return NewMessagingApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, nil, testConfig())
}

// newTestAppWithChatServer wires a real ChatServer for handlers that
// reach through it (lock, delete, statistics).
func newTestAppWithChatServer(t *testing.T, db *database.MockMessagingRepository) *MessagingApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)
	db.On("GetLock").Return(database.MessagingLock{}, nil).Once()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create chat server: %v", err)
	}

	return NewMessagingApp(http.NewServeMux(), logger, cs, db, su, testConfig())
}

// authedRequest builds a request carrying an authenticated user id and
// arranges for the account lookup to succeed.
func authedRequest(db *database.MockMessagingRepository, user database.User, method, target string, body []byte) *http.Request {
	db.On("GetAccountById", user.Id).Return(user, nil).Once()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(WithUserId(context.Background(), user.Id))
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockMessagingRepository{}
			defer db.AssertExpectations(t)
			db.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, db)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code)
			} else {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, "OK", rr.Body.String())
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	t.Run("creates an account with the default role", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Name == "newuser" && p.EmailAddress == "newuser@example.com" &&
				p.Role == "alumni" && p.PasswordHash != "password"
		})).Return(database.User{
			Id: 1, Name: "newuser", EmailAddress: "newuser@example.com", Role: "alumni",
		}, nil).Once()

		app := newTestApp(t, db)
		body, _ := json.Marshal(RegisterRequest{Name: "newuser", Email: "newuser@example.com", Password: "password"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
		app.createAccount(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var user types.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, 1, user.Id)
		assert.Equal(t, "alumni", user.Role)
	})

	t.Run("rejects incomplete requests", func(t *testing.T) {
		bodies := []RegisterRequest{
			{Email: "a@example.com", Password: "password"},
			{Name: "newuser", Password: "password"},
			{Name: "newuser", Email: "a@example.com"},
		}

		for _, reqBody := range bodies {
			db := &database.MockMessagingRepository{}
			app := newTestApp(t, db)
			body, _ := json.Marshal(reqBody)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			app.createAccount(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			db.AssertNotCalled(t, "CreateAccount", mock.Anything)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("not json"))
		app.createAccount(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestLoginHandler(t *testing.T) {
	passwordHash, err := hashPassword("password")
	assert.NoError(t, err)

	dbUser := database.User{
		Id:           1,
		Name:         "alice",
		EmailAddress: "alice@example.com",
		PasswordHash: passwordHash,
		Role:         "alumni",
	}

	t.Run("successful login sets the session cookie", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "alice@example.com").Return(dbUser, nil).Once()

		app := newTestApp(t, db)
		body, _ := json.Marshal(LoginRequest{Email: "alice@example.com", Password: "password"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		cookie := findCookie(rr, tokenCookieKey)
		assert.NotNil(t, cookie, "expected token cookie to be set")
		userId, err := app.extractUserIdFromToken(cookie.Value)
		assert.NoError(t, err)
		assert.Equal(t, 1, userId)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "alice@example.com").Return(dbUser, nil).Once()

		app := newTestApp(t, db)
		body, _ := json.Marshal(LoginRequest{Email: "alice@example.com", Password: "wrong"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Nil(t, findCookie(rr, tokenCookieKey))
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "ghost@example.com").Return(database.User{}, sql.ErrNoRows).Once()

		app := newTestApp(t, db)
		body, _ := json.Marshal(LoginRequest{Email: "ghost@example.com", Password: "password"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func Test_logout(t *testing.T) {
	app := newTestApp(t, &database.MockMessagingRepository{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	req.AddCookie(createJwtCookie("testtoken", defaultJwtExpiration))
	rr := httptest.NewRecorder()
	app.logout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)

	token := findCookie(rr, tokenCookieKey)
	assert.NotNil(t, token, "expected token cookie to be set")
	assert.WithinDuration(t, token.Expires, time.Now(), time.Second, "expected token to be expired")
	assert.Equal(t, "", token.Value, "expected token value to be empty")
}

func Test_session(t *testing.T) {
	db := &database.MockMessagingRepository{}
	defer db.AssertExpectations(t)

	dbUser := database.User{Id: 1, Name: "alice", EmailAddress: "alice@example.com", Role: "faculty"}
	app := newTestApp(t, db)
	req := authedRequest(db, dbUser, http.MethodGet, "/api/auth/session", nil)
	rr := httptest.NewRecorder()
	app.session(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var user types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	assert.Equal(t, 1, user.Id)
	assert.Equal(t, "faculty", user.Role)
}

func TestGetPublicMessages(t *testing.T) {
	member := database.User{Id: 1, Name: "alice", Role: "alumni"}
	admin := database.User{Id: 9, Name: "root", Role: types.RoleAdmin}

	t.Run("returns visible history", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		db.On("ListPublic", 50, 0, false).Return([]database.PublicMessage{
			{Id: 1, SenderId: 1, SenderName: "alice", Content: "first"},
			{Id: 2, SenderId: 2, SenderName: "bob", Content: "second"},
		}, nil).Once()

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/messages/public", nil)
		rr := httptest.NewRecorder()
		app.getPublicMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var msgs []types.PublicMessage
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
		assert.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
	})

	t.Run("include_hidden is admin-only", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/messages/public?include_hidden=true", nil)
		rr := httptest.NewRecorder()
		app.getPublicMessages(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "ListPublic", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("admin may include hidden messages", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		db.On("ListPublic", 50, 0, true).Return([]database.PublicMessage{
			{Id: 1, Content: "hidden one", IsHidden: true},
		}, nil).Once()

		app := newTestApp(t, db)
		req := authedRequest(db, admin, http.MethodGet, "/api/messages/public?include_hidden=true", nil)
		rr := httptest.NewRecorder()
		app.getPublicMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejects bad pagination", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/messages/public?limit=abc", nil)
		rr := httptest.NewRecorder()
		app.getPublicMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDeletePublicMessageHandler(t *testing.T) {
	admin := database.User{Id: 9, Name: "root", Role: types.RoleAdmin}
	member := database.User{Id: 1, Name: "alice", Role: "student"}

	t.Run("admin deletes a message", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		db.On("SoftDeletePublic", 42, 9).Return(true, nil).Once()

		req := authedRequest(db, admin, http.MethodDelete, "/api/messages/public/42", nil)
		req.SetPathValue("id", "42")
		rr := httptest.NewRecorder()
		app.deletePublicMessage(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		req := authedRequest(db, member, http.MethodDelete, "/api/messages/public/42", nil)
		req.SetPathValue("id", "42")
		rr := httptest.NewRecorder()
		app.deletePublicMessage(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "SoftDeletePublic", mock.Anything, mock.Anything)
	})

	t.Run("missing message is not found", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		db.On("SoftDeletePublic", 42, 9).Return(false, nil).Once()

		req := authedRequest(db, admin, http.MethodDelete, "/api/messages/public/42", nil)
		req.SetPathValue("id", "42")
		rr := httptest.NewRecorder()
		app.deletePublicMessage(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed id is a bad request", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		req := authedRequest(db, admin, http.MethodDelete, "/api/messages/public/abc", nil)
		req.SetPathValue("id", "abc")
		rr := httptest.NewRecorder()
		app.deletePublicMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetInbox(t *testing.T) {
	db := &database.MockMessagingRepository{}
	defer db.AssertExpectations(t)

	member := database.User{Id: 1, Name: "alice"}
	db.On("ListConversationSummaries", 1).Return([]database.ConversationSummary{
		{
			OtherUserId:   2,
			OtherUserName: "bob",
			LastMessage:   sql.NullString{String: "see you there", Valid: true},
			LastMessageAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
			UnreadCount:   3,
		},
	}, nil).Once()

	app := newTestApp(t, db)
	req := authedRequest(db, member, http.MethodGet, "/api/messages/inbox", nil)
	rr := httptest.NewRecorder()
	app.getInbox(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var summaries []types.ConversationSummary
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&summaries))
	assert.Len(t, summaries, 1)
	assert.Equal(t, "bob", summaries[0].OtherUserName)
	assert.Equal(t, 3, summaries[0].UnreadCount)
}

func TestGetConversationMessages(t *testing.T) {
	member := database.User{Id: 1, Name: "alice"}

	t.Run("lists messages and marks them read", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		db.On("ListConversation", 1, 2, 50, 0).Return([]database.PrivateMessage{
			{Id: 1, SenderId: 2, SenderName: "bob", ReceiverId: 1, Content: "hi"},
		}, nil).Once()
		db.On("MarkConversationRead", 2, 1).Return(1, nil).Once()

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/conversations/2/messages", nil)
		req.SetPathValue("user_id", "2")
		rr := httptest.NewRecorder()
		app.getConversationMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var msgs []types.PrivateMessage
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
		assert.Len(t, msgs, 1)
		assert.Equal(t, "hi", msgs[0].Content)
	})

	t.Run("requires a numeric user id", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/conversations/abc/messages", nil)
		req.SetPathValue("user_id", "abc")
		rr := httptest.NewRecorder()
		app.getConversationMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		db.AssertNotCalled(t, "ListConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSearchMessages(t *testing.T) {
	member := database.User{Id: 1, Name: "alice"}

	t.Run("searches all message types by default", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		db.On("SearchMessages", "reunion", 1, "all", 20).Return([]database.SearchResult{
			{Type: "public", Id: 1, SenderId: 2, Content: "reunion this friday"},
		}, nil).Once()

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/messages/search?q=reunion", nil)
		rr := httptest.NewRecorder()
		app.searchMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var results []types.SearchResult
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&results))
		assert.Len(t, results, 1)
		assert.Equal(t, "public", results[0].Type)
	})

	t.Run("requires a query", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/messages/search", nil)
		rr := httptest.NewRecorder()
		app.searchMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects unknown message type", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := authedRequest(db, member, http.MethodGet, "/api/messages/search?q=x&type=bogus", nil)
		rr := httptest.NewRecorder()
		app.searchMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		db.AssertNotCalled(t, "SearchMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLockHandlers(t *testing.T) {
	admin := database.User{Id: 9, Name: "root", Role: types.RoleAdmin}
	member := database.User{Id: 1, Name: "alice", Role: "alumni"}

	t.Run("admin locks via REST", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		db.On("SetHiddenAll", true).Return(2, nil).Once()
		db.On("SetLock", mock.MatchedBy(func(l database.MessagingLock) bool {
			return l.IsLocked && l.LockedBy.Int64 == 9
		})).Return(nil).Once()

		body, _ := json.Marshal(LockRequest{Reason: "maintenance"})
		req := authedRequest(db, admin, http.MethodPost, "/api/admin/messaging/lock", body)
		rr := httptest.NewRecorder()
		app.lockMessaging(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var status types.LockStatus
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
		assert.True(t, status.IsLocked)
		assert.Equal(t, "maintenance", status.Reason)
	})

	t.Run("non-admin cannot lock", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		req := authedRequest(db, member, http.MethodPost, "/api/admin/messaging/lock", nil)
		rr := httptest.NewRecorder()
		app.lockMessaging(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "SetHiddenAll", mock.Anything)
	})

	t.Run("admin unlocks via REST", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		db.On("SetHiddenAll", false).Return(2, nil).Once()
		db.On("SetLock", database.MessagingLock{}).Return(nil).Once()

		req := authedRequest(db, admin, http.MethodPost, "/api/admin/messaging/unlock", nil)
		rr := httptest.NewRecorder()
		app.unlockMessaging(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var status types.LockStatus
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
		assert.False(t, status.IsLocked)
	})

	t.Run("lock status is admin-only", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		req := authedRequest(db, member, http.MethodGet, "/api/admin/messaging/status", nil)
		rr := httptest.NewRecorder()
		app.getLockStatus(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestGetStatistics(t *testing.T) {
	admin := database.User{Id: 9, Name: "root", Role: types.RoleAdmin}
	member := database.User{Id: 1, Name: "alice", Role: "student"}

	t.Run("admin gets counts and lock state", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		db.On("GetMessagingStats").Return(120, 45, 12, nil).Once()

		req := authedRequest(db, admin, http.MethodGet, "/api/admin/messaging/statistics", nil)
		rr := httptest.NewRecorder()
		app.getStatistics(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var s types.MessagingStats
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&s))
		assert.Equal(t, 120, s.TotalPublicMessages)
		assert.Equal(t, 45, s.TotalPrivateMessages)
		assert.Equal(t, 12, s.TotalConversations)
		assert.False(t, s.SystemLocked)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		db := &database.MockMessagingRepository{}
		defer db.AssertExpectations(t)
		app := newTestAppWithChatServer(t, db)

		req := authedRequest(db, member, http.MethodGet, "/api/admin/messaging/statistics", nil)
		rr := httptest.NewRecorder()
		app.getStatistics(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "GetMessagingStats")
	})
}
