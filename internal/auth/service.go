package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mesikahq/luxe-portal/internal/apiclient"
	"github.com/mesikahq/luxe-portal/internal/audit"
	"github.com/mesikahq/luxe-portal/internal/session"
)

const (
	msgLoginFailed = "Login failed"
	msgTryAgain    = "Login failed. Please try again."
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginUnavailable   = errors.New("login service unavailable")
)

// LoginError carries the message shown on the login page.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Poster is the part of the API client used for login.
type Poster interface {
	Post(ctx context.Context, op, path string, in, out interface{}) error
}

type Service interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Logout(ctx context.Context, sess *session.Session)
}

type service struct {
	api   Poster
	audit audit.Service
}

func NewService(api Poster, audit audit.Service) Service {
	return &service{
		api:   api,
		audit: audit,
	}
}

// Login exchanges credentials for an API token. The token is not verified
// here; the remote API remains the only judge of it.
func (s *service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	var resp LoginResponse
	err := s.api.Post(ctx, "auth.login", "patients/login", map[string]string{
		"username": email,
		"password": password,
	}, &resp)

	if err != nil {
		s.logLogin(ctx, email, audit.StatusFailure)
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return nil, &LoginError{Message: loginMessage(apiErr.Message, apiErr.Status), Err: ErrInvalidCredentials}
		}
		return nil, &LoginError{Message: msgTryAgain, Err: fmt.Errorf("%w: %v", ErrLoginUnavailable, err)}
	}

	if resp.Token == "" {
		s.logLogin(ctx, email, audit.StatusFailure)
		msg := resp.Message
		if msg == "" {
			msg = msgLoginFailed
		}
		return nil, &LoginError{Message: msg, Err: ErrInvalidCredentials}
	}

	sess := &session.Session{
		Token: resp.Token,
		Email: identityFromToken(resp.Token, email),
	}
	s.logLogin(ctx, sess.Email, audit.StatusSuccess)
	return sess, nil
}

func (s *service) Logout(ctx context.Context, sess *session.Session) {
	if s.audit == nil || !sess.Authenticated() {
		return
	}
	_ = s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType: audit.EventLogout,
		UserID:    sess.Email,
		Action:    "LOGOUT",
		Resource:  "session",
		Status:    audit.StatusSuccess,
	})
}

// loginMessage keeps the API's own wording unless it only sent a status.
func loginMessage(apiMessage string, status int) string {
	if apiMessage == "" || strings.EqualFold(apiMessage, http.StatusText(status)) {
		return msgLoginFailed
	}
	return apiMessage
}

// identityFromToken reads the display identity from a JWT without verifying
// it. Opaque tokens fall back to the address the user typed.
func identityFromToken(token, fallback string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	for _, key := range []string{"email", "username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

func (s *service) logLogin(ctx context.Context, email, status string) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{"username": email})
	_ = s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType: audit.EventLogin,
		UserID:    email,
		Action:    "LOGIN",
		Resource:  "session",
		Status:    status,
		Details:   details,
	})
}
