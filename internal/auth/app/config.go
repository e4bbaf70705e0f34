package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/quackwell/pkg/httpx"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigPathEnv names the YAML config file when --config is not given.
const ConfigPathEnv = "QUACKWELL_CONFIG"

var (
	ErrMissingSecret  = errors.New("app: jwt secret is not set")
	ErrSharedReset    = errors.New("app: jwt reset secret must differ from the access and refresh secrets")
	ErrUnknownDriver  = errors.New("app: unknown database driver")
	ErrMissingDSN     = errors.New("app: database dsn is not set")
	ErrMissingMailer  = errors.New("app: mail.from is required when smtp is configured")
	ErrMissingResetTo = errors.New("app: reset_url is not set")
	ErrBadProxy       = errors.New("app: rate_limit.trusted_proxies is invalid")
)

type Config struct {
	Env    string       `koanf:"env"`  // dev, staging, prod (default: dev)
	Port   int          `koanf:"port"` // HTTP server port (default: 8080)
	Log    LogConfig    `koanf:"log"`
	DB     DBConfig     `koanf:"database"`
	JWT    JWTConfig    `koanf:"jwt"`
	Mail   MailConfig   `koanf:"mail"`
	Google GoogleConfig `koanf:"google"`

	// StateSecret seals the OAuth state cookie. Defaults to the access secret.
	StateSecret string `koanf:"state_secret"`

	Cookies   CookieConfig     `koanf:"cookies"`
	RateLimit httpx.RateLimits `koanf:"rate_limit"`

	// ResetURL is the frontend origin reset links point at.
	ResetURL string `koanf:"reset_url"`
	// FrontendURL receives the browser after Google sign-in.
	FrontendURL string `koanf:"frontend_url"`

	Metrics              bool          `koanf:"metrics"`               // expose /metrics (default: true)
	ShutdownGracePeriod  time.Duration `koanf:"shutdown_grace_period"` // default: 10s
	HousekeepingInterval time.Duration `koanf:"housekeeping_interval"` // default: 1h
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error (default: info)
	Format string `koanf:"format"` // json, text (default: json)
}

type DBConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres (default: sqlite)
	DSN    string `koanf:"dsn"`    // file path for sqlite, URL for postgres
}

type JWTConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	ResetSecret   string        `koanf:"reset_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	ResetTTL      time.Duration `koanf:"reset_ttl"`
}

type MailConfig struct {
	Host     string        `koanf:"host"` // empty logs mail instead of sending it
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Secure   bool          `koanf:"secure"` // implicit TLS
	From     string        `koanf:"from"`
	Timeout  time.Duration `koanf:"timeout"`
}

type GoogleConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CallbackURL  string `koanf:"callback_url"`
}

type CookieConfig struct {
	Secure bool   `koanf:"secure"`
	Domain string `koanf:"domain"`
}

var defaults = map[string]any{
	"env":                   "dev",
	"port":                  8080,
	"log.level":             "info",
	"log.format":            "json",
	"database.driver":       "sqlite",
	"database.dsn":          "quackwell.db",
	"jwt.access_ttl":        "15m",
	"jwt.refresh_ttl":       "168h",
	"jwt.reset_ttl":         "1h",
	"mail.port":             587,
	"mail.timeout":          "10s",
	"reset_url":             "http://localhost:3000",
	"metrics":               true,
	"shutdown_grace_period": "10s",
	"housekeeping_interval": "1h",
}

// envKeys maps environment variables onto config keys. The MAIL_* and
// RESET_PASSWORD_FRONTEND_URL names are kept for existing deployments.
var envKeys = map[string]string{
	"ENV":                         "env",
	"PORT":                        "port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"DATABASE_DRIVER":             "database.driver",
	"DATABASE_URL":                "database.dsn",
	"JWT_ACCESS_SECRET":           "jwt.access_secret",
	"JWT_REFRESH_SECRET":          "jwt.refresh_secret",
	"JWT_RESET_SECRET":            "jwt.reset_secret",
	"JWT_ACCESS_TTL":              "jwt.access_ttl",
	"JWT_REFRESH_TTL":             "jwt.refresh_ttl",
	"JWT_RESET_TTL":               "jwt.reset_ttl",
	"MAIL_HOST":                   "mail.host",
	"MAIL_PORT":                   "mail.port",
	"MAIL_USER":                   "mail.username",
	"MAIL_PASS":                   "mail.password",
	"MAIL_SECURE":                 "mail.secure",
	"MAIL_FROM":                   "mail.from",
	"GOOGLE_CLIENT_ID":            "google.client_id",
	"GOOGLE_CLIENT_SECRET":        "google.client_secret",
	"GOOGLE_CALLBACK_URL":         "google.callback_url",
	"OAUTH_STATE_SECRET":          "state_secret",
	"COOKIE_SECURE":               "cookies.secure",
	"COOKIE_DOMAIN":               "cookies.domain",
	"RESET_PASSWORD_FRONTEND_URL": "reset_url",
	"FRONTEND_URL":                "frontend_url",
	"METRICS_ENABLED":             "metrics",
	"SHUTDOWN_GRACE_PERIOD":       "shutdown_grace_period",
	"HOUSEKEEPING_INTERVAL":       "housekeeping_interval",
}

// Rate limit profiles default to httpx.DefaultRateLimits and are tuned with
// RATELIMIT_{STRICT,MODERATE,LENIENT}_{REQUESTS,WINDOW,BURST}. Forwarding
// headers are believed only from TRUSTED_PROXIES, a comma separated list.
func init() {
	limits := httpx.DefaultRateLimits()
	for name, rl := range map[string]httpx.RateLimitConfig{
		"strict":   limits.Strict,
		"moderate": limits.Moderate,
		"lenient":  limits.Lenient,
	} {
		key := "rate_limit." + name
		defaults[key+".requests"] = rl.RequestsPerWindow
		defaults[key+".window"] = rl.Window
		defaults[key+".burst"] = rl.Burst

		env := "RATELIMIT_" + strings.ToUpper(name)
		envKeys[env+"_REQUESTS"] = key + ".requests"
		envKeys[env+"_WINDOW"] = key + ".window"
		envKeys[env+"_BURST"] = key + ".burst"
	}
	envKeys["TRUSTED_PROXIES"] = "rate_limit.trusted_proxies"
}

// flagKeys maps the flags RegisterFlags adds onto config keys.
var flagKeys = map[string]string{
	"port":            "port",
	"database-driver": "database.driver",
	"database-dsn":    "database.dsn",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// RegisterFlags adds the flags LoadConfig understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file (env: "+ConfigPathEnv+")")
	fs.Int("port", 8080, "HTTP server port")
	fs.String("database-driver", "sqlite", "database driver (sqlite, postgres)")
	fs.String("database-dsn", "quackwell.db", "sqlite file or postgres URL")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json, text)")
}

// LoadConfig layers configuration: built in defaults, then the YAML file,
// then environment variables, then flags that were set explicitly. fs may
// be nil.
func LoadConfig(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	path := getEnvOrDefault(ConfigPathEnv, "")
	if fs != nil {
		if p, _ := fs.GetString("config"); p != "" {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	for env, key := range envKeys {
		if v := os.Getenv(env); v != "" {
			if err := k.Set(key, v); err != nil {
				return Config{}, fmt.Errorf("apply %s: %w", env, err)
			}
		}
	}

	// JWT_SECRET is the single secret older deployments set. It never signs
	// reset tokens.
	if shared := os.Getenv("JWT_SECRET"); shared != "" {
		for _, key := range []string{"jwt.access_secret", "jwt.refresh_secret"} {
			if k.String(key) == "" {
				_ = k.Set(key, shared)
			}
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			// Empty keys are skipped, which keeps command specific flags out.
			return flagKeys[f.Name], f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("apply flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without. Secrets are
// checked after EnsureSecrets has had a chance to fill them in dev.
func (c Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" || c.JWT.ResetSecret == "" {
		return ErrMissingSecret
	}
	if c.JWT.ResetSecret == c.JWT.AccessSecret || c.JWT.ResetSecret == c.JWT.RefreshSecret {
		return ErrSharedReset
	}

	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return ErrMissingDSN
	}

	if c.Mail.Host != "" && c.Mail.From == "" {
		return ErrMissingMailer
	}
	if c.ResetURL == "" {
		return ErrMissingResetTo
	}
	if _, err := httpx.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return fmt.Errorf("%w: %w", ErrBadProxy, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
