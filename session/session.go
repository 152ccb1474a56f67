// Package session attaches a cookie-identified session to each request
// and exposes its key-value storage.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "relocate_session"

var ErrNoSession = errors.New("no session attached to request")

type contextKey struct{}

type Config struct {
	// Storage for session values. An in-memory provider is used if nil.
	Provider Provider
	// Name of the cookie carrying the session ID.
	CookieName string
	// Path of the session cookie. Defaults to "/".
	CookiePath string
	// Lifetime of the session cookie. Zero means a browser session cookie.
	MaxAge time.Duration
	// Only send the cookie over HTTPS.
	Secure bool
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

type Manager struct {
	provider   Provider
	cookieName string
	cookiePath string
	maxAge     time.Duration
	secure     bool
	log        zerolog.Logger
}

// NewManager creates a session manager from the given config.
func NewManager(config Config) *Manager {
	m := &Manager{
		provider:   config.Provider,
		cookieName: config.CookieName,
		cookiePath: config.CookiePath,
		maxAge:     config.MaxAge,
		secure:     config.Secure,
	}
	if m.provider == nil {
		m.provider = NewMemProvider()
	}
	if m.cookieName == "" {
		m.cookieName = DefaultCookieName
	}
	if m.cookiePath == "" {
		m.cookiePath = "/"
	}
	if config.Logger == nil {
		m.log = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		m.log = *config.Logger
	}
	return m
}

// Session is the storage of a single session.
// It is only valid for the request it was attached to.
type Session struct {
	id       string
	provider Provider
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Get returns the value stored under key in this session.
func (s *Session) Get(key string) ([]byte, bool, error) {
	return s.provider.Get(s.id, key)
}

// Set stores value under key in this session, replacing any previous value.
func (s *Session) Set(key string, value []byte) error {
	return s.provider.Put(s.id, key, value)
}

// Middleware loads the session identified by the request cookie, or starts a new one,
// and attaches it to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(w, r)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// Load returns the session of the request.
// If the request carries no valid session cookie, a new session is started
// and its cookie is set on the response.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	logger := m.logger(r)
	if c, err := r.Cookie(m.cookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			logger.Trace().Str("session", id.String()).Msg("Using existing session")
			return &Session{id: id.String(), provider: m.provider}
		}
		logger.Debug().Str("cookie", c.Value).Msg("Malformed session cookie, starting new session")
	}
	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     m.cookiePath,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.maxAge > 0 {
		cookie.MaxAge = int(m.maxAge.Seconds())
	}
	http.SetCookie(w, cookie)
	logger.Trace().Str("session", id).Msg("Started new session")
	return &Session{id: id, provider: m.provider}
}

// Destroy removes all values of the request's session.
func (m *Manager) Destroy(r *http.Request) error {
	s, err := FromRequest(r)
	if err != nil {
		return err
	}
	return m.provider.Purge(s.id)
}

func (m *Manager) logger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &m.log
	}
	return logger
}

// NewContext returns a copy of ctx carrying the session.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// FromRequest returns the session attached to the request.
// It returns ErrNoSession if the session middleware did not run.
func FromRequest(r *http.Request) (*Session, error) {
	if s, ok := FromContext(r.Context()); ok {
		return s, nil
	}
	return nil, ErrNoSession
}
