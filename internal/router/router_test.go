package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"discussable/internal/middleware"
	"discussable/internal/models"
	"discussable/internal/services"
	"discussable/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-0123456789"

type testServer struct {
	t      *testing.T
	conn   *gorm.DB
	svc    *services.Services
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	conn, svc := testutil.NewServices(t)
	engine := New(svc, testutil.Logger(t), Config{
		JWTSecret:      testSecret,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	return &testServer{t: t, conn: conn, svc: svc, engine: engine}
}

func (s *testServer) token(u *models.User) string {
	tok, err := middleware.GenerateToken(testSecret, u.ID, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestWritesRequireAuthentication(t *testing.T) {
	s := newTestServer(t)
	u := testutil.SeedUser(t, s.conn, "alice")
	d := testutil.SeedDiscussion(t, s.conn, u, "hello")

	w := s.do(http.MethodPost, fmt.Sprintf("/api/vote/discussion/%d", d.ID), "", gin.H{"value": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/discussions", "garbage", gin.H{"subject": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// token 有效但用户不存在
	ghost := &models.User{ID: 4242}
	w = s.do(http.MethodPost, "/api/discussions", s.token(ghost), gin.H{"subject": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := middleware.GenerateToken(testSecret, u.ID, -time.Minute)
	require.NoError(t, err)
	w = s.do(http.MethodPost, "/api/discussions", expired, gin.H{"subject": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 匿名可以读
	w = s.do(http.MethodGet, "/api/discussions", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDiscussionLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.SeedUser(t, s.conn, "alice")
	bob := testutil.SeedUser(t, s.conn, "bob")

	w := s.do(http.MethodPost, "/api/discussions", s.token(alice), gin.H{
		"subject":  "Best editor?",
		"category": "tools",
		"comment":  gin.H{"content": "I like *vim*"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	discussion := body["discussion"].(map[string]interface{})
	id := uint(discussion["id"].(float64))
	assert.Equal(t, "Best editor?", discussion["subject"])
	assert.Equal(t, "visible", discussion["visibility_status"])
	comment := body["comment"].(map[string]interface{})
	assert.Contains(t, comment["content_html"], "<em>vim</em>")

	w = s.do(http.MethodPost, fmt.Sprintf("/api/discussions/%d/comments", id), s.token(bob), gin.H{
		"content":   "emacs",
		"parent_id": uint(comment["id"].(float64)),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, fmt.Sprintf("/api/vote/discussion/%d", id), s.token(bob), gin.H{"value": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vote := decode(t, w)
	assert.Equal(t, true, vote["created"])
	stats := vote["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_votes"])
	assert.Equal(t, float64(50), stats["participation_percentage"])

	w = s.do(http.MethodPost, fmt.Sprintf("/api/vote/discussion/%d", id), s.token(bob), gin.H{"value": -1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["created"])

	w = s.do(http.MethodGet, fmt.Sprintf("/api/discussions/%d", id), s.token(bob), nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode(t, w)
	d := thread["discussion"].(map[string]interface{})
	assert.Equal(t, float64(-1), d["viewer_vote"])
	assert.Equal(t, true, d["hidden"])
	comments := thread["comments"].([]interface{})
	require.Len(t, comments, 1)
	replies := comments[0].(map[string]interface{})["replies"].([]interface{})
	assert.Len(t, replies, 1)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/discussions/%d", id), s.token(bob), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/discussions/%d", id), s.token(alice), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/discussions/%d", id), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoteErrors(t *testing.T) {
	s := newTestServer(t)
	u := testutil.SeedUser(t, s.conn, "alice")
	d := testutil.SeedDiscussion(t, s.conn, u, "hello")
	tok := s.token(u)

	cases := []struct {
		name string
		path string
		body interface{}
		code int
		err  string
	}{
		{"bad value", fmt.Sprintf("/api/vote/discussion/%d", d.ID), gin.H{"value": 5}, http.StatusBadRequest, "INVALID_VOTE_VALUE"},
		{"missing value", fmt.Sprintf("/api/vote/discussion/%d", d.ID), gin.H{}, http.StatusBadRequest, "INVALID_VOTE_VALUE"},
		{"unknown kind", fmt.Sprintf("/api/vote/poll/%d", d.ID), gin.H{"value": 1}, http.StatusNotFound, "NOT_FOUND"},
		{"missing votable", "/api/vote/comment/999", gin.H{"value": 1}, http.StatusNotFound, "NOT_FOUND"},
		{"bad id", "/api/vote/comment/abc", gin.H{"value": 1}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(http.MethodPost, tc.path, tok, tc.body)
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.err, decode(t, w)["code"])
		})
	}
}

func TestPreferencesAndHideAuthor(t *testing.T) {
	s := newTestServer(t)
	viewer := testutil.SeedUser(t, s.conn, "viewer")
	author := testutil.SeedUser(t, s.conn, "author")
	d := testutil.SeedDiscussion(t, s.conn, author, "thread")
	testutil.SeedComment(t, s.conn, author, d.ID, nil, "one")
	testutil.SeedComment(t, s.conn, author, d.ID, nil, "two")
	tok := s.token(viewer)

	w := s.do(http.MethodPost, fmt.Sprintf("/api/preferences/discussion/%d", d.ID), tok, gin.H{"preference": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PREFERENCE", decode(t, w)["code"])

	w = s.do(http.MethodPost, fmt.Sprintf("/api/preferences/discussion/%d", d.ID), tok, gin.H{"preference": "hide"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/discussions", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["discussions"])

	w = s.do(http.MethodGet, "/api/discussions?include_hidden=true&sort=popularity", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["discussions"], 1)
	assert.Equal(t, "popularity", body["sort"])

	w = s.do(http.MethodPost, fmt.Sprintf("/api/users/%d/hide", author.ID), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["hidden"])

	w = s.do(http.MethodPost, "/api/users/9999/hide", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleRefreshAccepted(t *testing.T) {
	s := newTestServer(t)
	u := testutil.SeedUser(t, s.conn, "alice")
	d := testutil.SeedDiscussion(t, s.conn, u, "hello")

	w := s.do(http.MethodPost, fmt.Sprintf("/api/stats/discussion/%d/refresh", d.ID), s.token(u), nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
