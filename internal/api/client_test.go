package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens is a mutable TokenSource for tests
type staticTokens struct {
	token string
}

func (s *staticTokens) Token() string { return s.token }

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	tokens := &staticTokens{token: "tok-123"}
	client := New(server.URL, tokens)

	_, err := client.ListAlbums(context.Background(), "u1")
	require.NoError(t, err)

	// Token is read per request, so clearing it takes effect immediately
	tokens.token = ""
	_, err = client.ListAlbums(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, gotAuth, 2)
	assert.Equal(t, "Bearer tok-123", gotAuth[0])
	assert.Empty(t, gotAuth[1], "no token must mean no Authorization header")
}

func TestClient_NilTokenSourceSendsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := New(server.URL, nil).ListAlbums(context.Background(), "u1")
	require.NoError(t, err)
}

func TestClient_UnauthorizedIsLoggedAndPropagated(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"jwt expired"}`))
	}))
	defer server.Close()

	var logs bytes.Buffer
	client := New(server.URL, &staticTokens{token: "old"}, WithLogger(zerolog.New(&logs)))

	_, err := client.VerifyToken(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, calls, "401 must not be retried")
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, "jwt expired", MessageOr(err, "fallback"))
	assert.Contains(t, logs.String(), "Authentication error")
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantText string
	}{
		{name: "message field", status: 400, body: `{"message":"Email already registered"}`, wantMsg: "Email already registered"},
		{name: "error field", status: 404, body: `{"error":"not found"}`, wantMsg: "not found"},
		{name: "no json", status: 500, body: `gateway exploded`, wantMsg: "", wantText: "gateway exploded"},
		{name: "empty body", status: 403, body: ``, wantMsg: "", wantText: "status 403"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := New(server.URL, nil).Register(context.Background(), RegisterRequest{Email: "a@b.com"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
			if tt.wantMsg == "" {
				assert.Equal(t, "generic", MessageOr(err, "generic"))
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(&APIError{StatusCode: 502}))
	assert.False(t, IsTransient(&APIError{StatusCode: 401}))
	assert.False(t, IsTransient(&APIError{StatusCode: 404}))
	assert.True(t, IsTransient(&TransportError{Op: "GET /", Err: errors.New("connection refused")}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &TransportError{Op: "GET /", Err: context.DeadlineExceeded})))
	assert.False(t, IsTransient(&TransportError{Op: "GET /", Err: context.Canceled}))
	assert.False(t, IsTransient(ErrMalformedResponse))
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // nothing listens any more

	_, err := New(url, nil).VerifyToken(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsUnauthorized(err))
}

func TestClient_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		cancel() // cancelling twice is harmless
	}()

	_, err := New(server.URL, nil).VerifyToken(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, nil, WithTimeout(30*time.Millisecond))
	_, err := client.VerifyToken(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNew_TrimsBaseURL(t *testing.T) {
	assert.Equal(t, "http://api.test", New("http://api.test///", nil).BaseURL())
}
