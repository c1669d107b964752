package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/mind-engage/checkmark/internal/grading"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	SiteID    string

	DBDriver string
	DBDSN    string

	BlobBasePath string

	EnableLocalAuth bool
	AuthHMACSecret  string
	TokenTTL        time.Duration

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Session state for table filters/sorting. Empty means in-process memory.
	RedisURL   string
	SessionTTL time.Duration

	MailFrom       string
	MailFromName   string
	SendgridAPIKey string
	// Feedback younger than this is not mailed yet so graders can still edit it.
	MailDelay time.Duration

	CronBudget time.Duration

	// GradingStrategy names the autograde strategy ("sum" or "proportion").
	GradingStrategy string

	// LTI AGS grade push (optional)
	AGSEnabled      bool
	AGSTokenURL     string
	AGSClientID     string
	AGSClientSecret string
}

// fileConfig mirrors the optional TOML file; every key is optional.
type fileConfig struct {
	Server struct {
		Mode      string `toml:"mode"`
		Addr      string `toml:"addr"`
		PublicURL string `toml:"public_url"`
		SiteID    string `toml:"site_id"`
	} `toml:"server"`

	Database struct {
		Driver string `toml:"driver"`
		DSN    string `toml:"dsn"`
	} `toml:"database"`

	Blob struct {
		BasePath string `toml:"base_path"`
	} `toml:"blob"`

	Auth struct {
		LocalAuth  *bool  `toml:"local_auth"`
		HMACSecret string `toml:"hmac_secret"`
		TokenTTL   string `toml:"token_ttl"`
	} `toml:"auth"`

	CORS struct {
		Online  []string `toml:"online"`
		Offline []string `toml:"offline"`
	} `toml:"cors"`

	Session struct {
		RedisURL string `toml:"redis_url"`
		TTL      string `toml:"ttl"`
	} `toml:"session"`

	Mail struct {
		From        string `toml:"from"`
		FromName    string `toml:"from_name"`
		SendgridKey string `toml:"sendgrid_api_key"`
		Delay       string `toml:"delay"`
	} `toml:"mail"`

	Cron struct {
		Budget string `toml:"budget"`
	} `toml:"cron"`

	Grading struct {
		Strategy string `toml:"strategy"`
	} `toml:"grading"`

	AGS struct {
		Enabled      bool   `toml:"enabled"`
		TokenURL     string `toml:"token_url"`
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
	} `toml:"ags"`
}

func defaults() Config {
	return Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		SiteID:             "local",
		DBDriver:           "sqlite",
		BlobBasePath:       "./data",
		EnableLocalAuth:    true,
		AuthHMACSecret:     "supersecret-dev-key",
		TokenTTL:           8 * time.Hour,
		CORSOriginsOnline:  []string{"https://checkmark.mindengage.ai"},
		CORSOriginsOffline: []string{"http://localhost:3000"},
		SessionTTL:         12 * time.Hour,
		MailFrom:           "noreply@localhost",
		MailFromName:       "Checkmark",
		MailDelay:          30 * time.Minute,
		CronBudget:         5 * time.Minute,
		GradingStrategy:    "sum",
	}
}

// FromEnv builds the config from defaults, the TOML file named by
// CONFIG_FILE (if any), and finally environment variables. A dotenv file
// (ENV_FILE, default ".env") fills in variables that are not already set.
func FromEnv() (Config, error) {
	if err := loadDotEnv(envOr("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}
	return Load(os.Getenv("CONFIG_FILE"))
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

// Load is FromEnv with an explicit file path; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
		if err := cfg.applyFile(fc); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.Mode != ModeOffline && cfg.Mode != ModeOnline {
		return cfg, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if !grading.KnownStrategy(cfg.GradingStrategy) {
		return cfg, fmt.Errorf("unknown grading strategy %q", cfg.GradingStrategy)
	}
	return cfg, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	setStr(&c.HTTPAddr, fc.Server.Addr)
	setStr(&c.PublicURL, fc.Server.PublicURL)
	setStr(&c.SiteID, fc.Server.SiteID)
	if fc.Server.Mode != "" {
		c.Mode = Mode(fc.Server.Mode)
	}
	setStr(&c.DBDriver, fc.Database.Driver)
	setStr(&c.DBDSN, fc.Database.DSN)
	setStr(&c.BlobBasePath, fc.Blob.BasePath)
	if fc.Auth.LocalAuth != nil {
		c.EnableLocalAuth = *fc.Auth.LocalAuth
	}
	setStr(&c.AuthHMACSecret, fc.Auth.HMACSecret)
	if len(fc.CORS.Online) > 0 {
		c.CORSOriginsOnline = fc.CORS.Online
	}
	if len(fc.CORS.Offline) > 0 {
		c.CORSOriginsOffline = fc.CORS.Offline
	}
	setStr(&c.RedisURL, fc.Session.RedisURL)
	setStr(&c.MailFrom, fc.Mail.From)
	setStr(&c.MailFromName, fc.Mail.FromName)
	setStr(&c.SendgridAPIKey, fc.Mail.SendgridKey)
	setStr(&c.GradingStrategy, fc.Grading.Strategy)
	c.AGSEnabled = c.AGSEnabled || fc.AGS.Enabled
	setStr(&c.AGSTokenURL, fc.AGS.TokenURL)
	setStr(&c.AGSClientID, fc.AGS.ClientID)
	setStr(&c.AGSClientSecret, fc.AGS.ClientSecret)

	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&c.TokenTTL, fc.Auth.TokenTTL, "auth.token_ttl"},
		{&c.SessionTTL, fc.Session.TTL, "session.ttl"},
		{&c.MailDelay, fc.Mail.Delay, "mail.delay"},
		{&c.CronBudget, fc.Cron.Budget, "cron.budget"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	if m := os.Getenv("MODE"); m != "" {
		c.Mode = Mode(m)
	}
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.PublicURL = envOr("PUBLIC_URL", c.PublicURL)
	c.SiteID = envOr("SITE_ID", c.SiteID)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.BlobBasePath = envOr("BLOB_BASE_PATH", c.BlobBasePath)
	c.EnableLocalAuth = envBool("ENABLE_LOCAL_AUTH", c.EnableLocalAuth)
	c.AuthHMACSecret = envOr("AUTH_HMAC_SECRET", c.AuthHMACSecret)
	c.CORSOriginsOnline = csvOr("CORS_ORIGINS_ONLINE", strings.Join(c.CORSOriginsOnline, ","))
	c.CORSOriginsOffline = csvOr("CORS_ORIGINS_OFFLINE", strings.Join(c.CORSOriginsOffline, ","))
	c.RedisURL = envOr("REDIS_URL", c.RedisURL)
	c.MailFrom = envOr("MAIL_FROM", c.MailFrom)
	c.MailFromName = envOr("MAIL_FROM_NAME", c.MailFromName)
	c.SendgridAPIKey = envOr("SENDGRID_API_KEY", c.SendgridAPIKey)
	c.GradingStrategy = envOr("GRADING_STRATEGY", c.GradingStrategy)
	c.AGSEnabled = envBool("AGS_ENABLED", c.AGSEnabled)
	c.AGSTokenURL = envOr("AGS_TOKEN_URL", c.AGSTokenURL)
	c.AGSClientID = envOr("AGS_CLIENT_ID", c.AGSClientID)
	c.AGSClientSecret = envOr("AGS_CLIENT_SECRET", c.AGSClientSecret)

	var err error
	if c.TokenTTL, err = envDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.SessionTTL, err = envDuration("SESSION_TTL", c.SessionTTL); err != nil {
		return err
	}
	if c.MailDelay, err = envDuration("MAIL_DELAY", c.MailDelay); err != nil {
		return err
	}
	if c.CronBudget, err = envDuration("CRON_BUDGET", c.CronBudget); err != nil {
		return err
	}
	return nil
}

// CORSOrigins returns the origin list for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
