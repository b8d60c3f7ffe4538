package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/ndvimap/internal/app"
	"github.com/google/uuid"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "ndvimap_session"

type session struct {
	ctrl     *app.Controller
	lastSeen time.Time
}

// Sessions keeps one controller per browser and evicts idle ones.
type Sessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	newCtrl func() *app.Controller
	now     func() time.Time
	byID    map[string]*session
}

// NewSessions creates a session store. A ttl of zero keeps sessions forever.
func NewSessions(ttl time.Duration, newCtrl func() *app.Controller) *Sessions {
	return &Sessions{
		ttl:     ttl,
		newCtrl: newCtrl,
		now:     time.Now,
		byID:    make(map[string]*session),
	}
}

// Get returns the controller of the request's session, creating the session
// and setting its cookie when there is none.
func (s *Sessions) Get(w http.ResponseWriter, r *http.Request) *app.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if c, err := r.Cookie(SessionCookie); err == nil {
		if sess, ok := s.byID[c.Value]; ok {
			sess.lastSeen = now
			return sess.ctrl
		}
	}

	id := uuid.NewString()
	sess := &session{ctrl: s.newCtrl(), lastSeen: now}
	s.byID[id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess.ctrl
}

// Lookup returns an existing session's controller without creating one.
func (s *Sessions) Lookup(r *http.Request) (*app.Controller, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[c.Value]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.ctrl, true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Sessions) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.byID {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.byID, id)
		}
	}
}
