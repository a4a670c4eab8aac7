package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesikahq/luxe-portal/internal/apiclient"
	"github.com/mesikahq/luxe-portal/internal/audit"
	"github.com/mesikahq/luxe-portal/internal/session"
)

func TestLoginForm_Validate(t *testing.T) {
	tests := []struct {
		name string
		form LoginForm
		want map[string]string
	}{
		{"valid", LoginForm{Username: "nurse@luxe.example", Password: "secret1"}, map[string]string{}},
		{"trimmed email", LoginForm{Username: "  nurse@luxe.example ", Password: "secret1"}, map[string]string{}},
		{"empty", LoginForm{}, map[string]string{"username": msgEmail, "password": msgPassword}},
		{"no domain dot", LoginForm{Username: "nurse@luxe", Password: "secret1"}, map[string]string{"username": msgEmail}},
		{"space inside", LoginForm{Username: "nu rse@luxe.example", Password: "secret1"}, map[string]string{"username": msgEmail}},
		{"short password", LoginForm{Username: "a@b.co", Password: "12345"}, map[string]string{"password": msgPassword}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.form
			assert.Equal(t, tt.want, f.Validate())
		})
	}
}

func newTestService(t *testing.T, handler http.HandlerFunc) (Service, *test.Hook) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api", Timeout: time.Second})
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	return NewService(client, audit.NewService(nil, logger, "")), hook
}

func TestLogin_Success(t *testing.T) {
	svc, hook := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/patients/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nurse@luxe.example", body["username"])
		assert.Equal(t, "secret1", body["password"])
		_, _ = w.Write([]byte(`{"token":"opaque-token"}`))
	})

	sess, err := svc.Login(context.Background(), "nurse@luxe.example", "secret1")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "opaque-token", sess.Token)
	assert.Equal(t, "nurse@luxe.example", sess.Email)

	entry := hook.LastEntry()
	assert.Equal(t, audit.EventLogin, entry.Data["event_type"])
	assert.Equal(t, logrus.InfoLevel, entry.Level)
}

func TestLogin_ReadsIdentityFromJWT(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "admin@luxe.example",
	}).SignedString([]byte("api-side-key"))
	require.NoError(t, err)

	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})

	sess, err := svc.Login(context.Background(), "typed@luxe.example", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "admin@luxe.example", sess.Email)
}

func TestLogin_RejectedWithMessage(t *testing.T) {
	svc, hook := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid username or password"}`))
	})

	_, err := svc.Login(context.Background(), "nurse@luxe.example", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "Invalid username or password", loginErr.Message)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestLogin_OKWithoutToken(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := svc.Login(context.Background(), "nurse@luxe.example", "secret1")
	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "Login failed", loginErr.Message)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_BareStatus(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := svc.Login(context.Background(), "nurse@luxe.example", "secret1")
	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "Login failed", loginErr.Message)
}

func TestLogin_Unavailable(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.Login(context.Background(), "nurse@luxe.example", "secret1")
	assert.ErrorIs(t, err, ErrLoginUnavailable)

	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "Login failed. Please try again.", loginErr.Message)
}

func TestLogout(t *testing.T) {
	svc, hook := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

	svc.Logout(context.Background(), &session.Session{})
	assert.Empty(t, hook.AllEntries())

	svc.Logout(context.Background(), &session.Session{Token: "t", Email: "a@b.co"})
	assert.Equal(t, audit.EventLogout, hook.LastEntry().Data["event_type"])
	assert.Equal(t, "a@b.co", hook.LastEntry().Data["user_id"])
}

func TestIdentityFromToken(t *testing.T) {
	assert.Equal(t, "fallback", identityFromToken("not-a-jwt", "fallback"))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", identityFromToken(token, "fallback"))
}
