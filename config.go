package users

import (
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

// Environment names
const (
	EnvLocal      = "local"
	EnvCI         = "ci"
	EnvProduction = "production"
)

// Config carries every runtime setting, loaded from the environment
type Config struct {
	AppName     string
	APIURL      string
	Environment string
	Domain      string
	HTTPAddr    string

	JWTSecret  string
	CSRFSecret string

	AccessTokenExpireMinutes   int
	EmailResetTokenExpireHours int

	DatabaseURL      string
	PostgresServer   string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	SuperuserName     string
	SuperuserEmail    string
	SuperuserPassword string

	EmailEnabled bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
}

// LoadConfig reads settings from environment variables. JWT_SECRET is the
// only required value, everything else has a workable default.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "go-users")
	v.SetDefault("API_URL", "http://localhost:8000")
	v.SetDefault("ENVIRONMENT", EnvLocal)
	v.SetDefault("DOMAIN", "localhost")
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 11520)
	v.SetDefault("EMAIL_RESET_TOKEN_EXPIRE_HOURS", 48)
	v.SetDefault("POSTGRES_SERVER", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_DB", "users")
	v.SetDefault("EMAIL_ENABLED", false)
	v.SetDefault("SMTP_PORT", 587)

	cfg := &Config{
		AppName:     v.GetString("APP_NAME"),
		APIURL:      v.GetString("API_URL"),
		Environment: v.GetString("ENVIRONMENT"),
		Domain:      v.GetString("DOMAIN"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),

		JWTSecret:  v.GetString("JWT_SECRET"),
		CSRFSecret: v.GetString("CSRF_SECRET"),

		AccessTokenExpireMinutes:   v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES"),
		EmailResetTokenExpireHours: v.GetInt("EMAIL_RESET_TOKEN_EXPIRE_HOURS"),

		DatabaseURL:      v.GetString("DATABASE_URL"),
		PostgresServer:   v.GetString("POSTGRES_SERVER"),
		PostgresPort:     v.GetInt("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),

		SuperuserName:     v.GetString("SUPERUSER_NAME"),
		SuperuserEmail:    v.GetString("SUPERUSER_EMAIL"),
		SuperuserPassword: v.GetString("SUPERUSER_PASSWORD"),

		EmailEnabled: v.GetBool("EMAIL_ENABLED"),
		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUser:     v.GetString("SMTP_USER"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		EmailFrom:    v.GetString("EMAIL_FROM"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required", errors.CategoryBadInput)
	}
	if cfg.CSRFSecret == "" {
		cfg.CSRFSecret = cfg.JWTSecret
	}
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = fmt.Sprintf("%s <no-reply@%s>", cfg.AppName, cfg.Domain)
	}

	return cfg, nil
}

// AccessTTL is the session token lifetime
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// ResetTTL is the password recovery token lifetime
func (c *Config) ResetTTL() time.Duration {
	return time.Duration(c.EmailResetTokenExpireHours) * time.Hour
}

// DSN returns the Postgres connection string, preferring DATABASE_URL when
// it is set over the assembled POSTGRES_* parts
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresServer,
		c.PostgresPort,
		c.PostgresDB,
	)
}

// IsLocal reports whether we run in local development, the only environment
// that relaxes the Secure flag on cookies
func (c *Config) IsLocal() bool {
	return c.Environment == EnvLocal
}
