package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/bootstrap"
	"github.com/allone-dev/allone/internal/config"
	"github.com/allone-dev/allone/internal/session"
	"github.com/allone-dev/allone/internal/sessionstore"
)

type fixedPhase bootstrap.Phase

func (p fixedPhase) Phase() bootstrap.Phase { return bootstrap.Phase(p) }

type testEnv struct {
	server  *Server
	session *session.Session
	store   *sessionstore.Store
	backend *http.ServeMux
}

// newTestEnv wires a front end to a fake backend. Register backend routes on env.backend.
func newTestEnv(t *testing.T, phase bootstrap.Phase) *testEnv {
	t.Helper()

	mux := http.NewServeMux()
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	store := sessionstore.New(sessionstore.NewMemoryBackend(), zerolog.Nop())
	sess := session.New(store)
	client := api.New(backend.URL, api.TokenFunc(store.Token))

	// httptest requests are addressed to example.com
	cfg := config.WebConfig{AllowedHosts: []string{"example.com"}}
	srv, err := New(cfg, sess, fixedPhase(phase), client, zerolog.Nop())
	require.NoError(t, err)

	return &testEnv{server: srv, session: sess, store: store, backend: mux}
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, e.session.Login(session.Identity{Email: "a@b.com", Token: "tok", UserID: "u1"}))
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestBootstrapGate_ShowsLoadingWhileChecking(t *testing.T) {
	env := newTestEnv(t, bootstrap.Checking)

	for _, path := range []string{"/", "/login", "/notes"} {
		w := env.get(path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "Checking your session")
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, bootstrap.Checking)

	w := env.get("/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "checking", body["session"])
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)

	w := env.get("/login")
	assert.Len(t, w.Header().Get(requestIDHeader), 26)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set(requestIDHeader, "caller-id")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(requestIDHeader))
}

func TestProtectedPageRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)

	w := env.get("/notes?q=work")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?from=%2Fnotes%3Fq%3Dwork", w.Header().Get("Location"))
}

func TestPublicPageRedirectsHomeWhenAuthenticated(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)

	for _, path := range []string{"/login", "/signup", "/forgot-password"} {
		w := env.get(path)
		assert.Equal(t, http.StatusSeeOther, w.Code, path)
		assert.Equal(t, "/", w.Header().Get("Location"), path)
	}
}

func TestLogin_ReturnsToRequestedPage(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.backend.HandleFunc("/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.com", req.Email)
		assert.Equal(t, "secret", req.Password)
		writeJSON(w, http.StatusOK, map[string]string{"email": "a@b.com", "token": "tok", "_id": "u1"})
	})

	w := env.postForm("/login", url.Values{
		"email":    {" a@b.com "},
		"password": {"secret"},
		"from":     {"/albums?sort=Name"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/albums?sort=Name", w.Header().Get("Location"))

	st := env.session.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "u1", st.UserID)
	tok, ok := env.store.Get(sessionstore.KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
}

func TestLogin_IgnoresForeignReturnPath(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.backend.HandleFunc("/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"email": "a@b.com", "token": "tok"})
	})

	w := env.postForm("/login", url.Values{"email": {"a@b.com"}, "password": {"x"}, "from": {"//evil.test"}})
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLogin_BackendMessageShown(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.backend.HandleFunc("/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
	})

	w := env.postForm("/login", url.Values{"email": {"a@b.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	assert.False(t, env.session.IsAuthenticated())
}

func TestLogin_FallbackMessageAndMalformedPayload(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.backend.HandleFunc("/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"email": "a@b.com"})
	})

	w := env.postForm("/login", url.Values{"email": {"a@b.com"}, "password": {"x"}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Login failed. Please check your credentials.")
	assert.False(t, env.session.IsAuthenticated())
}

func TestLogin_Validation(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)

	w := env.postForm("/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a valid email address.")
}

func TestLogout_TakesEffectOnNextRequest(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)

	w := env.get("/logout")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Are you sure you want to log out?")

	w = env.postForm("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	assert.False(t, env.session.IsAuthenticated())
	_, ok := env.store.Get(sessionstore.KeyToken)
	assert.False(t, ok)

	w = env.get("/profile")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?from=%2Fprofile", w.Header().Get("Location"))
}

func TestSignupAndVerifyOTP(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.backend.HandleFunc("/api/users/register", func(w http.ResponseWriter, r *http.Request) {
		var req api.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ada", req.Name)
		writeJSON(w, http.StatusCreated, map[string]string{"message": "OTP sent"})
	})
	env.backend.HandleFunc("/api/users/otp-verify", func(w http.ResponseWriter, r *http.Request) {
		var req api.VerifyOTPRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.OTP != "123456" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "OTP expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok", "user": map[string]string{"email": req.Email, "_id": "u7"}})
	})

	w := env.get("/verify-otp")
	assert.Equal(t, "/signup", w.Header().Get("Location"), "no pending signup")

	w = env.postForm("/signup", url.Values{"name": {"Ada"}, "email": {"ada@b.com"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please agree to the terms and conditions.")

	w = env.postForm("/signup", url.Values{"name": {"Ada"}, "email": {"ada@b.com"}, "password": {"secret1"}, "agree_terms": {"true"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/verify-otp", w.Header().Get("Location"))
	assert.Equal(t, "ada@b.com", env.session.State().PendingVerificationEmail)

	w = env.get("/verify-otp")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@b.com")

	w = env.postForm("/verify-otp", url.Values{"otp": {"12a456"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter all 6 digits.")

	w = env.postForm("/verify-otp", url.Values{"otp": {"000000"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "OTP expired")

	w = env.postForm("/verify-otp", url.Values{"otp": {"123456"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	st := env.session.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "ada@b.com", st.Email)
	assert.Equal(t, "u7", st.UserID)
	assert.Empty(t, st.PendingVerificationEmail)
}

func TestVerifyOTP_Cancel(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.session.SetPendingVerification("ada@b.com")

	w := env.postForm("/verify-otp/cancel", nil)
	assert.Equal(t, "/signup", w.Header().Get("Location"))
	assert.Empty(t, env.session.State().PendingVerificationEmail)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	env.backend.HandleFunc("/api/otp/sent-otp", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "sent"})
	})
	env.backend.HandleFunc("/api/otp/reset-password", func(w http.ResponseWriter, r *http.Request) {
		var req api.ResetPasswordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada@b.com", req.Email)
		assert.Equal(t, "654321", req.OTP)
		assert.Equal(t, "newpass", req.Password)
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})

	w := env.get("/reset-password")
	assert.Equal(t, "/forgot-password", w.Header().Get("Location"))

	w = env.postForm("/forgot-password", url.Values{"email": {"ada@b.com"}})
	assert.Equal(t, "/reset-password", w.Header().Get("Location"))
	assert.Equal(t, "ada@b.com", env.session.State().PendingPasswordResetEmail)

	w = env.postForm("/reset-password", url.Values{"otp": {"654321"}, "password": {"newpass"}, "confirm_password": {"other"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Passwords do not match.")

	w = env.postForm("/reset-password", url.Values{"otp": {"654321"}, "password": {"newpass"}, "confirm_password": {"newpass"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?reset=1", w.Header().Get("Location"))
	assert.Empty(t, env.session.State().PendingPasswordResetEmail)
	assert.False(t, env.session.IsAuthenticated())

	w = env.get("/login?reset=1")
	assert.Contains(t, w.Body.String(), "Password updated.")
}

func TestHome(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.backend.HandleFunc("/api/note-categories/user/u1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []map[string]string{{"_id": "c1", "name": "A"}, {"_id": "c2", "name": "B"}})
	})
	env.backend.HandleFunc("/api/date-categories/user/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{})
	})
	env.backend.HandleFunc("/api/doc-categories/user/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"categories": []any{}})
	})
	env.backend.HandleFunc("/api/album/user/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{"_id": "a1", "title": "Trip"}})
	})

	w := env.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "2 categories")
	assert.Contains(t, body, "- categories")
	assert.Contains(t, body, "0 categories")
	assert.Contains(t, body, "1 albums")
}

func TestHome_UnknownUserID(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	require.NoError(t, env.session.Login(session.Identity{Email: "a@b.com", Token: "tok"}))

	w := env.get("/")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "account id is unknown")
}

func TestNoteCategory_PinnedFirstAndSearch(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.backend.HandleFunc("/api/note-categories/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"category": map[string]string{"_id": "c1", "name": "Ideas"},
			"notes": []map[string]any{
				{"_id": "n1", "title": "Older plain", "content": "x", "createdAt": "2024-01-01T00:00:00Z"},
				{"_id": "n2", "title": "Pinned one", "content": "y", "isPinned": true, "createdAt": "2023-01-01T00:00:00Z"},
				{"_id": "n3", "title": "Newer plain", "content": "z", "createdAt": "2024-06-01T00:00:00Z"},
			},
		})
	})

	w := env.get("/notes/c1")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	pinned := strings.Index(body, "Pinned one")
	newer := strings.Index(body, "Newer plain")
	older := strings.Index(body, "Older plain")
	assert.True(t, pinned < newer && newer < older, "pinned first, then newest")

	w = env.get("/notes/c1?q=newer")
	assert.Contains(t, w.Body.String(), "Newer plain")
	assert.NotContains(t, w.Body.String(), "Older plain")
}

func TestNoteMutations(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)

	var calls []string
	env.backend.HandleFunc("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateNoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, api.CreateNoteRequest{UserID: "u1", CategoryID: "c1", Title: "T", Content: "C"}, req)
		calls = append(calls, "create")
		writeJSON(w, http.StatusCreated, map[string]string{})
	})
	env.backend.HandleFunc("/api/notes/n1", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method)
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	w := env.postForm("/notes/c1", url.Values{"title": {"T"}, "content": {"C"}})
	assert.Equal(t, "/notes/c1", w.Header().Get("Location"))

	w = env.postForm("/notes/c1/items/n1/pin", url.Values{"pinned": {"true"}})
	assert.Equal(t, "/notes/c1", w.Header().Get("Location"))

	w = env.postForm("/notes/c1/items/n1/delete", nil)
	assert.Equal(t, "/notes/c1", w.Header().Get("Location"))

	assert.Equal(t, []string{"create", http.MethodPut, http.MethodDelete}, calls)

	w = env.postForm("/notes/c1", url.Values{"title": {"T"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Content is required.")
}

func TestVaultCall_Unauthorized(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.backend.HandleFunc("/api/album/user/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
	})

	w := env.get("/albums")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Your session may have expired.")
	assert.True(t, env.session.IsAuthenticated(), "a failed vault call does not end the session")
}

func TestDateCategory_Upcoming(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.server.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	env.backend.HandleFunc("/api/date-categories/d1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"category": map[string]string{"_id": "d1", "name": "Family"},
			"dates": []map[string]any{
				{"_id": "x", "title": "Past birthday", "date": "2024-02-01"},
				{"_id": "y", "title": "Anniversary", "date": "2024-09-10"},
			},
		})
	})

	w := env.get("/dates/d1")
	assert.Contains(t, w.Body.String(), "Past birthday")
	assert.Contains(t, w.Body.String(), "Tuesday, September 10, 2024")

	w = env.get("/dates/d1?upcoming=1")
	assert.NotContains(t, w.Body.String(), "Past birthday")
	assert.Contains(t, w.Body.String(), "Anniversary")
}

func TestCreateAlbum_UploadsCoverFirst(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.backend.HandleFunc("/api/images/upload", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "cover.jpg", header.Filename)
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://cdn.test/cover.jpg"})
	})
	env.backend.HandleFunc("/api/album/upload", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateAlbumRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, api.CreateAlbumRequest{UserID: "u1", URL: "https://cdn.test/cover.jpg", Title: "Summer"}, req)
		writeJSON(w, http.StatusCreated, map[string]string{})
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Summer"))
	part, err := mw.CreateFormFile("cover", "cover.jpg")
	require.NoError(t, err)
	part.Write([]byte("JPEG"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/albums", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/albums", w.Header().Get("Location"))
}

func TestAlbums_SortByName(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.backend.HandleFunc("/api/album/user/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"_id": "1", "title": "Zoo", "createdAt": "2024-05-01T00:00:00Z"},
			{"_id": "2", "title": "Alps", "createdAt": "2023-05-01T00:00:00Z"},
		})
	})

	body := env.get("/albums").Body.String()
	assert.Less(t, strings.Index(body, "Zoo"), strings.Index(body, "Alps"), "newest first by default")

	body = env.get("/albums?sort=Name").Body.String()
	assert.Less(t, strings.Index(body, "Alps"), strings.Index(body, "Zoo"))
}

func TestDownloadDocument(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	env.signIn(t)
	env.backend.HandleFunc("/api/documents/content/doc1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})

	w := env.get("/documents/c1/items/doc1/download")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestProfile_ShowsTokenExpiry(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	issued := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(issued.Add(48 * time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, env.session.Login(session.Identity{Email: "a@b.com", Token: token, UserID: "u1"}))
	env.server.now = func() time.Time { return issued }

	w := env.get("/profile")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "expires in 2d 0h")
	assert.Contains(t, w.Body.String(), "u1")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	assert.Equal(t, http.StatusNotFound, env.get("/nope").Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// syncBuffer is a log sink safe to read while the server writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSessionWatcher(t *testing.T) {
	env := newTestEnv(t, bootstrap.Unauthenticated)
	var logs bytes.Buffer
	env.server.logger = zerolog.New(&logs)

	watch := env.server.sessionWatcher(session.State{})
	watch(session.State{PendingVerificationEmail: "a@b.com"})
	assert.Empty(t, logs.String())

	signedIn := session.State{IsAuthenticated: true, Email: "a@b.com", Token: "tok"}
	watch(signedIn)
	watch(signedIn)
	assert.Equal(t, 1, strings.Count(logs.String(), "Session signed in"))

	watch(session.State{IsAuthenticated: true, Email: "c@d.com", Token: "tok2"})
	assert.Equal(t, 2, strings.Count(logs.String(), "Session signed in"))

	watch(session.State{})
	assert.Contains(t, logs.String(), `"email":"c@d.com","message":"Session signed out"`)
}

func TestServe_LogsSessionTransitions(t *testing.T) {
	env := newTestEnv(t, bootstrap.Authenticated)
	logs := &syncBuffer{}
	env.server.logger = zerolog.New(logs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Starting HTTP server")
	}, 2*time.Second, 10*time.Millisecond)

	env.signIn(t)
	assert.Contains(t, logs.String(), "Session signed in")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// The subscription ends with the server
	env.session.Logout()
	assert.NotContains(t, logs.String(), "Session signed out")
}
