package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dghubble/oauth1/twitter"
)

// Config is the root configuration structure.
type Config struct {
	API       API       `yaml:"api"`
	Transport Transport `yaml:"transport"`
	Settings  Settings  `yaml:"settings"`
	Journal   Journal   `yaml:"journal"`
	Watch     Watch     `yaml:"watch"`
	Metrics   Metrics   `yaml:"metrics"`
}

// API locates the REST root and the OAuth endpoints.
type API struct {
	BaseURL         string `yaml:"base_url" validate:"required,url"`
	RequestTokenURL string `yaml:"request_token_url" validate:"required,url"`
	AuthorizeURL    string `yaml:"authorize_url" validate:"required,url"`
	AccessTokenURL  string `yaml:"access_token_url" validate:"required,url"`
}

// Protocol selects the HTTP transport.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTP2 Protocol = "http2"
)

// Transport configures the transfer engine's HTTP client.
type Transport struct {
	Protocol        Protocol      `yaml:"protocol" validate:"oneof=http http2"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" validate:"gte=0"`
	TLSInsecure     bool          `yaml:"tls_insecure"`
	RateLimit       float64       `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
	RateBurst       int           `yaml:"rate_burst" validate:"gte=0"`
}

// Backend selects where settings live.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Settings configures the credential settings store.
type Settings struct {
	Backend Backend `yaml:"backend" validate:"oneof=file sqlite memory"`
	Path    string  `yaml:"path"`
}

// Journal configures the journal datastore.
type Journal struct {
	Path string `yaml:"path" validate:"required"`
}

// Watch configures periodic comment refresh.
type Watch struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Entries  []string      `yaml:"entries,omitempty"`
}

// Metrics configures Prometheus metrics.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// DefaultDir is where twrkit keeps its files.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "twrkit")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		API: API{
			BaseURL:         "https://api.twitter.com/1.1",
			RequestTokenURL: twitter.AuthorizeEndpoint.RequestTokenURL,
			AuthorizeURL:    twitter.AuthorizeEndpoint.AuthorizeURL,
			AccessTokenURL:  twitter.AuthorizeEndpoint.AccessTokenURL,
		},
		Transport: Transport{
			Protocol:        ProtocolHTTP,
			Timeout:         30 * time.Second,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
			RateLimit:       1,
			RateBurst:       5,
		},
		Settings: Settings{
			Backend: BackendFile,
			Path:    filepath.Join(dir, "settings.yaml"),
		},
		Journal: Journal{
			Path: filepath.Join(dir, "journal.db"),
		},
		Watch: Watch{
			Interval: 5 * time.Minute,
		},
		Metrics: Metrics{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}
