package echo

import (
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"

	"github.com/signet-dev/signet/internal/randutil"
)

// SessionCookieName is the cookie carrying the login session id.
const SessionCookieName = "signet_session"

// Session is one browser login session. It exists in two stages: a
// pre-auth session carrying only the federation round-trip state, and an
// authenticated one holding the resolved user.
type Session struct {
	ID       string
	UserID   string
	Username string

	// Federation round-trip state, set between Begin and the provider
	// callback.
	FedProvider string
	FedState    string

	CreatedAt time.Time
}

// Authenticated reports whether a user has logged in on this session.
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// SessionStore keeps login sessions in process memory with a TTL. The
// store is safe for concurrent use.
type SessionStore struct {
	cache *ttlcache.Cache[string, *Session]
	ttl   time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
	)
	go cache.Start()
	return &SessionStore{cache: cache, ttl: ttl}
}

// Create starts a fresh session and returns it.
func (s *SessionStore) Create() (*Session, error) {
	id, err := randutil.State()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
	}
	s.cache.Set(id, sess, ttlcache.DefaultTTL)
	return sess, nil
}

// Get returns the session for id, or nil when there is none.
func (s *SessionStore) Get(id string) *Session {
	if id == "" {
		return nil
	}
	item := s.cache.Get(id)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Save writes the session back, refreshing its TTL.
func (s *SessionStore) Save(sess *Session) {
	s.cache.Set(sess.ID, sess, ttlcache.DefaultTTL)
}

// Delete removes the session.
func (s *SessionStore) Delete(id string) {
	s.cache.Delete(id)
}

// Close stops the expiry loop.
func (s *SessionStore) Close() {
	s.cache.Stop()
}

// sessionFromRequest resolves the request's session cookie, returning nil
// when absent or expired.
func (s *SessionStore) sessionFromRequest(c echo.Context) *Session {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	return s.Get(cookie.Value)
}

// setSessionCookie attaches the session cookie to the response.
func (s *SessionStore) setSessionCookie(c echo.Context, sess *Session) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
