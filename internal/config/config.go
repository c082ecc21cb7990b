// Package config loads server settings from defaults, an optional YAML file,
// a .env file and BLOG_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Log       Log       `yaml:"log"`
	Session   Session   `yaml:"session"`
	Blog      Blog      `yaml:"blog"`
	Mail      Mail      `yaml:"mail"`
	Feed      Feed      `yaml:"feed"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

type Server struct {
	Addr            string        `yaml:"addr" env:"BLOG_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"BLOG_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"BLOG_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"BLOG_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"BLOG_SHUTDOWN_TIMEOUT"`
}

type Database struct {
	Driver string `yaml:"driver" env:"BLOG_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"BLOG_DB_DSN"`
}

type Log struct {
	Level  string `yaml:"level" env:"BLOG_LOG_LEVEL"`
	Format string `yaml:"format" env:"BLOG_LOG_FORMAT"`
}

type Session struct {
	CookieName    string        `yaml:"cookie_name" env:"BLOG_SESSION_COOKIE"`
	TTL           time.Duration `yaml:"ttl" env:"BLOG_SESSION_TTL"`
	Secure        bool          `yaml:"secure" env:"BLOG_SESSION_SECURE"`
	FlashSecret   string        `yaml:"flash_secret" env:"BLOG_FLASH_SECRET"`
	SweepSchedule string        `yaml:"sweep_schedule" env:"BLOG_SESSION_SWEEP"`
}

type Blog struct {
	Title    string `yaml:"title" env:"BLOG_TITLE"`
	PageSize int    `yaml:"page_size" env:"BLOG_PAGE_SIZE"`
}

type Mail struct {
	Host     string        `yaml:"host" env:"BLOG_SMTP_HOST"`
	Port     int           `yaml:"port" env:"BLOG_SMTP_PORT"`
	Username string        `yaml:"username" env:"BLOG_SMTP_USER"`
	Password string        `yaml:"password" env:"BLOG_SMTP_PASSWORD"`
	From     string        `yaml:"from" env:"BLOG_MAIL_FROM"`
	Inbox    string        `yaml:"inbox" env:"BLOG_MAIL_INBOX"`
	Mode     string        `yaml:"mode" env:"BLOG_SMTP_MODE"`
	Timeout  time.Duration `yaml:"timeout" env:"BLOG_SMTP_TIMEOUT"`
}

type Feed struct {
	URL         string `yaml:"url" env:"BLOG_FEED_URL"`
	Owner       string `yaml:"owner" env:"BLOG_FEED_OWNER"`
	ImportOnRun bool   `yaml:"import_on_start" env:"BLOG_FEED_IMPORT_ON_START"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"BLOG_RATE_RPS"`
	Burst int     `yaml:"burst" env:"BLOG_RATE_BURST"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{Driver: "sqlite3", DSN: "data/blog.db"},
		Log:      Log{Level: "info", Format: "text"},
		Session: Session{
			CookieName:    "session_id",
			TTL:           24 * time.Hour,
			SweepSchedule: "@hourly",
		},
		Blog: Blog{Title: "My Blog", PageSize: 5},
		Mail: Mail{Mode: "tls", Timeout: 10 * time.Second},
		Feed: Feed{URL: "https://api.npoint.io/1e4f1e284ac8b96dac33"},
		RateLimit: RateLimit{
			RPS:   1,
			Burst: 10,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file at a
// non-empty path is an error. A .env file in the working directory is read
// when present and never overrides variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlite3 or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	if c.Blog.PageSize < 1 {
		problems = append(problems, "blog.page_size must be positive")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}
	if c.Session.CookieName == "" {
		problems = append(problems, "session.cookie_name is required")
	}
	switch c.Mail.Mode {
	case "tls", "starttls", "none":
	default:
		problems = append(problems, fmt.Sprintf("mail.mode %q must be tls, starttls or none", c.Mail.Mode))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		problems = append(problems, "rate_limit.rps and rate_limit.burst must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
