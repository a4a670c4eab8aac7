package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesikahq/luxe-portal/internal/metrics"
)

func newClient(t *testing.T, h http.Handler, retries uint) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:        srv.URL + "/api/",
		Timeout:        2 * time.Second,
		MaxRetries:     retries,
		Metrics:        metrics.New(),
		InitialBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "://"})
	assert.Error(t, err)
}

func TestGet_DecodesAndSendsToken(t *testing.T) {
	var gotAuth, gotPath string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "ok"})
	}), 0)

	var out struct{ Name string }
	ctx := WithToken(context.Background(), "tok")
	require.NoError(t, c.Get(ctx, "test.get", "/patients", &out))

	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/patients", gotPath)
}

func TestGet_NoTokenNoHeader(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}), 0)
	require.NoError(t, c.Get(context.Background(), "test.get", "patients", nil))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}), 3)

	var out []json.RawMessage
	require.NoError(t, c.Get(context.Background(), "test.get", "patients", &out))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"message":"down"}`, http.StatusServiceUnavailable)
	}), 2)

	err := c.Get(context.Background(), "test.get", "patients", nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "down", apiErr.Message)
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}), 3)

	err := c.Get(context.Background(), "test.get", "patients/x", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_DecodeErrorNotRetried(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{not json`))
	}), 3)

	var out map[string]string
	err := c.Get(context.Background(), "test.get", "patients", &out)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_Cancelled(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 3)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.Get(ctx, "test.get", "patients", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPost_SendsJSONAndMapsUnauthorized(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "x@example.com", in["username"])

		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}), 3)

	err := c.Post(context.Background(), "auth.login", "patients/login", map[string]string{"username": "x@example.com"}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestPutAndDelete(t *testing.T) {
	var methods []string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}), 0)

	require.NoError(t, c.Put(context.Background(), "p.update", "patients/1", map[string]int{"age": 3}, nil))
	require.NoError(t, c.Delete(context.Background(), "p.delete", "patients/1"))
	assert.Equal(t, []string{"PUT /api/patients/1", "DELETE /api/patients/1"}, methods)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "m", errorMessage([]byte(`{"message":"m","error":"e"}`), 400))
	assert.Equal(t, "e", errorMessage([]byte(`{"error":"e"}`), 400))
	assert.Equal(t, "Bad Request", errorMessage([]byte(`<html>`), 400))
}
