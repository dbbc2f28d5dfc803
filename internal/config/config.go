package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvBaseUrl     = "REVNEXT_URL"
	EnvUsername    = "REVNEXT_USERNAME"
	EnvPassword    = "REVNEXT_PASSWORD"
	EnvSessionPath = "REVNEXT_SESSION_PATH"

	DefaultBaseUrl     = "https://mikecarney.revolutionnext.com.au"
	DefaultSessionFile = ".revnext-session.json"
)

var ErrMissingCredentials = errors.New(
	"REVNEXT_USERNAME and REVNEXT_PASSWORD must be set (via flags, environment variables or a .env file)",
)

// Config is everything needed to obtain an authenticated session. It is
// built once per process and never mutated afterwards.
type Config struct {
	BaseUrl     string
	Username    string
	Password    string
	SessionPath string
}

// Overrides are explicit values (usually from flags), a non-empty field
// always wins over the environment.
type Overrides struct {
	BaseUrl     string
	Username    string
	Password    string
	SessionPath string
	// NoDotenv skips loading .env from the working directory.
	NoDotenv bool
}

func loadDotenv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "err", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func normalizeBaseUrl(url string) string {
	url = strings.TrimRight(url, "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url
}

func defaultSessionPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultSessionFile
	}
	return filepath.Join(cwd, DefaultSessionFile)
}

// FromEnv resolves each field as explicit override > environment > default.
func FromEnv(o Overrides) Config {
	if !o.NoDotenv {
		loadDotenv()
	}
	return Config{
		BaseUrl: normalizeBaseUrl(firstNonEmpty(
			o.BaseUrl, os.Getenv(EnvBaseUrl), DefaultBaseUrl,
		)),
		Username: firstNonEmpty(o.Username, os.Getenv(EnvUsername)),
		Password: firstNonEmpty(o.Password, os.Getenv(EnvPassword)),
		SessionPath: firstNonEmpty(
			o.SessionPath, os.Getenv(EnvSessionPath), defaultSessionPath(),
		),
	}
}

// Validate fails when credentials are missing, callers must run it before
// making any network request.
func (c Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// BaseUrlFromEnv resolves only the base url, for callers that never log in.
func BaseUrlFromEnv() string {
	loadDotenv()
	return normalizeBaseUrl(firstNonEmpty(os.Getenv(EnvBaseUrl), DefaultBaseUrl))
}
