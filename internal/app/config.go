package app

import (
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/nearandnow/cart-service/pkg/httpmiddleware"
)

const defaultAddr = "0.0.0.0:8080"

// Config is the service configuration, read from NEARNOW_* environment
// variables, flags and YAML files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	BackendURL     string        `usage:"Base URL of the Near&Now customer API" flag:"backend-url"`
	BackendTimeout time.Duration `default:"15s" usage:"Timeout of a single backend request" flag:"backend-timeout"`
	DatabaseURL    string        `usage:"PostgreSQL URL of the checkout journal; empty disables it" flag:"database-url"`
	SessionPepper  string        `usage:"HMAC pepper for session keys (NEARNOW_SESSION_PEPPER)" flag:"session-pepper"`
	Session        SessionConfig
	RateLimit      httpmiddleware.RateLimitConfig
	CORS           httpmiddleware.CORSConfig
	Graceful       GracefulConfig
}

// SessionConfig controls how long idle carts are kept in memory.
type SessionConfig struct {
	IdleTTL       time.Duration `default:"2h" usage:"Evict carts idle for longer than this" flag:"session-idle-ttl"`
	SweepInterval time.Duration `default:"5m" usage:"How often idle carts are swept" flag:"session-sweep-interval"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads the configuration and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "NEARNOW",
		Files:     []string{"config.yaml", "/etc/nearnow/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend URL is required: set NEARNOW_BACKEND_URL")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return errors.Wrap(err, "parse backend URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("backend URL %q: scheme must be http or https", c.BackendURL)
	}
	if c.SessionPepper == "" {
		return errors.New("session pepper is required: set NEARNOW_SESSION_PEPPER")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.Errorf("session sweep interval must be positive, got %s", c.Session.SweepInterval)
	}
	return nil
}

// applyPlatformDefaults honours the DATABASE_URL and PORT variables set by
// hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
