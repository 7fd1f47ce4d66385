package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonServer answers every request with status and body after running check
func jsonServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLogin_FlatPayload(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"email":"a@b.com","token":"tok","_id":"123"}`, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, LoginRequest{Email: "a@b.com", Password: "pw"}, req)
	})

	res, err := New(server.URL, nil).Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, &AuthResult{Email: "a@b.com", Token: "tok", UserID: "123"}, res)
}

func TestLogin_NestedPayload(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"token":"tok","user":{"id":"u-9","email":"c@d.com","name":"Cee"}}`, nil)

	res, err := New(server.URL, nil).Login(context.Background(), "c@d.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", res.Email)
	assert.Equal(t, "u-9", res.UserID)
	assert.Equal(t, "Cee", res.Name)
}

func TestLogin_MalformedPayload(t *testing.T) {
	tests := map[string]string{
		"no token": `{"email":"a@b.com"}`,
		"no email": `{"token":"tok"}`,
		"not json": `<html>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			server := jsonServer(t, http.StatusOK, body, nil)
			_, err := New(server.URL, nil).Login(context.Background(), "a@b.com", "pw")
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestLogin_BackendMessage(t *testing.T) {
	server := jsonServer(t, http.StatusUnauthorized, `{"message":"Invalid password"}`, nil)

	_, err := New(server.URL, nil).Login(context.Background(), "a@b.com", "bad")
	require.Error(t, err)
	assert.Equal(t, "Invalid password", MessageOr(err, "Login failed. Please check your credentials."))
}

func TestVerifyToken(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *User
		wantErr error
	}{
		{
			name: "wrapped user",
			body: `{"user":{"email":"a@b.com","_id":"123"}}`,
			want: &User{Email: "a@b.com", ID: "123"},
		},
		{
			name: "wrapped user without id",
			body: `{"user":{"email":"a@b.com"}}`,
			want: &User{Email: "a@b.com"},
		},
		{
			name: "top level user",
			body: `{"email":"a@b.com","id":"77"}`,
			want: &User{Email: "a@b.com", AltID: "77"},
		},
		{
			name:    "no email",
			body:    `{"user":{"_id":"123"}}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "empty object",
			body:    `{}`,
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := jsonServer(t, http.StatusOK, tt.body, func(r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, DefaultVerifyPath, r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			})

			user, err := New(server.URL, &staticTokens{token: "tok"}).VerifyToken(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, user)
		})
	}
}

func TestVerifyToken_CustomPath(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"user":{"email":"a@b.com"}}`, func(r *http.Request) {
		assert.Equal(t, "/api/me", r.URL.Path)
	})

	_, err := New(server.URL, nil, WithVerifyPath("/api/me")).VerifyToken(context.Background())
	require.NoError(t, err)
}

func TestOTPEndpoints(t *testing.T) {
	var paths []string
	var bodies []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.Write([]byte(`{"email":"a@b.com","token":"fresh","_id":"1"}`))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.com", Password: "pw"}))
	res, err := client.VerifyOTP(ctx, "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.Token)
	require.NoError(t, client.SendResetOTP(ctx, "a@b.com"))
	require.NoError(t, client.ResetPassword(ctx, ResetPasswordRequest{Email: "a@b.com", OTP: "654321", Password: "new"}))

	assert.Equal(t, []string{
		"/api/users/register",
		"/api/users/otp-verify",
		"/api/otp/sent-otp",
		"/api/otp/reset-password",
	}, paths)
	assert.Equal(t, "123456", bodies[1]["otp"])
	assert.Equal(t, "a@b.com", bodies[2]["email"])
	assert.Equal(t, "new", bodies[3]["password"])
}
