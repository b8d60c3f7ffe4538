package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MeKo-Tech/ndvimap/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(ttl time.Duration) (*Sessions, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(ttl, func() *app.Controller { return app.New(app.Config{}) })
	s.now = func() time.Time { return now }
	return s, &now
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSessions_GetCreatesAndReuses(t *testing.T) {
	s, _ := newTestSessions(time.Hour)

	rec := httptest.NewRecorder()
	first := s.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	rec2 := httptest.NewRecorder()
	assert.Same(t, first, s.Get(rec2, req))
	assert.Empty(t, rec2.Result().Cookies())
	assert.Equal(t, 1, s.Len())
}

func TestSessions_UnknownCookieStartsNewSession(t *testing.T) {
	s, _ := newTestSessions(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale"})
	rec := httptest.NewRecorder()
	s.Get(rec, req)

	assert.NotEqual(t, "stale", sessionCookie(t, rec).Value)
}

func TestSessions_Expiry(t *testing.T) {
	s, now := newTestSessions(time.Minute)

	rec := httptest.NewRecorder()
	s.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	c := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/api/chart.png", nil)
	req.AddCookie(c)
	_, ok := s.Lookup(req)
	require.True(t, ok)

	*now = now.Add(2 * time.Minute)
	s.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	_, ok = s.Lookup(req)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestSessions_LookupWithoutCookie(t *testing.T) {
	s, _ := newTestSessions(0)
	_, ok := s.Lookup(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
