package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is used when no API URL is configured
const DefaultAPIURL = "https://be-allone.onrender.com"

// DefaultConfigFile is read from the working directory when ALLONE_CONFIG is unset
const DefaultConfigFile = "allone.yaml"

// Config holds all configuration for the application
type Config struct {
	// API Configuration
	API APIConfig `yaml:"api"`

	// Session store Configuration
	Store StoreConfig `yaml:"store"`

	// Bootstrap Configuration
	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	// Web front end Configuration
	Web WebConfig `yaml:"web"`

	// Logging Configuration
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds backend API configuration
type APIConfig struct {
	URL        string        `yaml:"url"`
	VerifyPath string        `yaml:"verify_path"`
	Timeout    time.Duration `yaml:"timeout"` // 0 keeps the transport default
}

// StoreConfig selects the persisted session store backend
type StoreConfig struct {
	Backend string `yaml:"backend"` // file, keyring, sqlite, leveldb, memory
	Path    string `yaml:"path"`    // file/sqlite/leveldb location, empty = user config dir
}

// BootstrapConfig controls how a failed token verification is treated
type BootstrapConfig struct {
	RetainOnTransient bool          `yaml:"retain_on_transient"`
	Retries           int           `yaml:"retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

// WebConfig holds the local web front end configuration
type WebConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// Host names the front end answers to besides loopback and the listen host
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:        DefaultAPIURL,
			VerifyPath: "/api/users/verify-token",
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Bootstrap: BootstrapConfig{
			Retries:    2,
			RetryDelay: time.Second,
		},
		Web: WebConfig{
			Listen: "127.0.0.1:5173",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from .env files, an optional YAML file and environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := Default()

	path := os.Getenv("ALLONE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := loadFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.API.URL = ResolveBaseURL(cfg.API.URL)
	if cfg.API.VerifyPath == "" {
		cfg.API.VerifyPath = Default().API.VerifyPath
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	// VITE_API_URL is honoured so existing deployment env files keep working
	if v := os.Getenv("VITE_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("ALLONE_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("ALLONE_VERIFY_PATH"); v != "" {
		cfg.API.VerifyPath = v
	}
	if v := os.Getenv("ALLONE_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ALLONE_API_TIMEOUT %q: %w", v, err)
		}
		cfg.API.Timeout = d
	}

	if v := os.Getenv("ALLONE_STORE"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ALLONE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("ALLONE_RETAIN_ON_TRANSIENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ALLONE_RETAIN_ON_TRANSIENT %q: %w", v, err)
		}
		cfg.Bootstrap.RetainOnTransient = b
	}

	if v := os.Getenv("ALLONE_LISTEN"); v != "" {
		cfg.Web.Listen = v
	}
	if v := os.Getenv("ALLONE_ALLOWED_ORIGINS"); v != "" {
		cfg.Web.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ALLONE_ALLOWED_HOSTS"); v != "" {
		cfg.Web.AllowedHosts = splitList(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return nil
}

// ResolveBaseURL trims the configured API URL and strips trailing slashes,
// falling back to DefaultAPIURL when it is blank.
func ResolveBaseURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		url = DefaultAPIURL
	}
	return strings.TrimRight(url, "/")
}

// splitList splits a comma separated value, dropping empty entries
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
