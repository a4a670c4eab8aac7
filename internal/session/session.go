package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/luxe-portal/internal/encryption"
)

const (
	contextKey = "session"
	flashName  = "luxe_flash"
)

var ErrExpired = errors.New("session expired")

// Session is the caller's authentication state. It is loaded once per request
// and handed to handlers explicitly; nothing else records whether the user is
// logged in.
type Session struct {
	Token    string    `json:"token"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

type StoreConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Store keeps the session in a sealed cookie. The browser holds the token but
// cannot read or change it.
type Store struct {
	enc    encryption.Service
	name   string
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

func NewStore(enc encryption.Service, cfg StoreConfig) *Store {
	name := cfg.CookieName
	if name == "" {
		name = "luxe_session"
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Store{
		enc:    enc,
		name:   name,
		maxAge: maxAge,
		secure: cfg.Secure,
		now:    time.Now,
	}
}

func (s *Store) Save(c *gin.Context, sess *Session) error {
	if sess.IssuedAt.IsZero() {
		sess.IssuedAt = s.now()
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	sealed, err := s.enc.Encrypt(raw)
	if err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, sealed, int(s.maxAge.Seconds()), "/", "", s.secure, true)
	return nil
}

// Open reads the session cookie. A missing cookie yields an empty session and
// no error.
func (s *Store) Open(c *gin.Context) (*Session, error) {
	sealed, err := c.Cookie(s.name)
	if err != nil || sealed == "" {
		return &Session{}, nil
	}

	raw, err := s.enc.Decrypt(sealed)
	if err != nil {
		return &Session{}, err
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return &Session{}, err
	}
	if s.now().Sub(sess.IssuedAt) > s.maxAge {
		return &Session{}, ErrExpired
	}
	return &sess, nil
}

func (s *Store) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
}

// Middleware loads the session for every request. Unreadable or expired
// cookies are dropped and the request continues unauthenticated.
func Middleware(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Open(c)
		if err != nil {
			store.Clear(c)
		}
		c.Set(contextKey, sess)
		c.Next()
	}
}

func FromContext(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	return &Session{}
}

// Require sends unauthenticated callers back to the login page.
func Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !FromContext(c).Authenticated() {
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetFlash stores a one-shot message shown on the next page.
func SetFlash(c *gin.Context, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashName, msg, 60, "/", "", false, true)
}

// PopFlash returns the pending flash message and clears it.
func PopFlash(c *gin.Context) string {
	msg, err := c.Cookie(flashName)
	if err != nil || msg == "" {
		return ""
	}
	c.SetCookie(flashName, "", -1, "/", "", false, true)
	return msg
}
