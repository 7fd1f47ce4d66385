package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty falls back", raw: "", want: DefaultAPIURL},
		{name: "blank falls back", raw: "   \t", want: DefaultAPIURL},
		{name: "trimmed", raw: "  https://api.example.com  ", want: "https://api.example.com"},
		{name: "single trailing slash", raw: "https://api.example.com/", want: "https://api.example.com"},
		{name: "many trailing slashes", raw: "https://api.example.com///", want: "https://api.example.com"},
		{name: "path kept", raw: "http://localhost:3000/v1/", want: "http://localhost:3000/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBaseURL(tt.raw))
		})
	}
}

// isolate runs the test from an empty directory with no config env set
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{
		"ALLONE_CONFIG", "VITE_API_URL", "ALLONE_API_URL", "ALLONE_VERIFY_PATH",
		"ALLONE_API_TIMEOUT", "ALLONE_STORE", "ALLONE_STORE_PATH",
		"ALLONE_RETAIN_ON_TRANSIENT", "ALLONE_LISTEN", "ALLONE_ALLOWED_ORIGINS",
		"ALLONE_ALLOWED_HOSTS", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, "/api/users/verify-token", cfg.API.VerifyPath)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.False(t, cfg.Bootstrap.RetainOnTransient)
	assert.Equal(t, "127.0.0.1:5173", cfg.Web.Listen)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("VITE_API_URL", "https://legacy.example.com")
	t.Setenv("ALLONE_API_URL", " https://api.example.com// ")
	t.Setenv("ALLONE_API_TIMEOUT", "15s")
	t.Setenv("ALLONE_STORE", "KEYRING")
	t.Setenv("ALLONE_RETAIN_ON_TRANSIENT", "true")
	t.Setenv("ALLONE_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("ALLONE_ALLOWED_HOSTS", "vault.lan,")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.API.URL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "keyring", cfg.Store.Backend)
	assert.True(t, cfg.Bootstrap.RetainOnTransient)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Web.AllowedOrigins)
	assert.Equal(t, []string{"vault.lan"}, cfg.Web.AllowedHosts)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ViteURLFallback(t *testing.T) {
	isolate(t)
	t.Setenv("VITE_API_URL", "http://localhost:4000/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", cfg.API.URL)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)

	content := `api:
  url: "http://vault.local/"
  verify_path: /api/me
store:
  backend: sqlite
  path: /tmp/allone.db
bootstrap:
  retain_on_transient: true
  retries: 5
  retry_delay: 250ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://vault.local", cfg.API.URL)
	assert.Equal(t, "/api/me", cfg.API.VerifyPath)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/allone.db", cfg.Store.Path)
	assert.True(t, cfg.Bootstrap.RetainOnTransient)
	assert.Equal(t, 5, cfg.Bootstrap.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Bootstrap.RetryDelay)
	// untouched sections keep their defaults
	assert.Equal(t, "127.0.0.1:5173", cfg.Web.Listen)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolate(t)
	t.Setenv("ALLONE_CONFIG", "does-not-exist.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("ALLONE_RETAIN_ON_TRANSIENT", "sometimes")

	_, err := Load()
	assert.Error(t, err)
}
