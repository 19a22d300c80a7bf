package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Landing   LandingConfig   `yaml:"landing"`
	Auth      AuthConfig      `yaml:"auth"`
	Mailer    MailerConfig    `yaml:"mailer"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	BaseURL        string   `yaml:"base_url"` // absolute URL used in emailed links
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// RedisConfig holds the optional Redis connection. An empty URL selects the
// in-memory session store and PG advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds object storage configuration for the download bucket
type StorageConfig struct {
	Type            string `yaml:"type"` // "local" or "aws"
	LocalPath       string `yaml:"local_path"`
	PublicBaseURL   string `yaml:"public_base_url"`
	S3Bucket        string `yaml:"s3_bucket"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	PresignMinutes  int    `yaml:"presign_minutes"`
	UploadPrefix    string `yaml:"upload_prefix"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
	ListConcurrency int    `yaml:"list_concurrency"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// PresignTTL returns how long presigned object URLs stay valid
func (c StorageConfig) PresignTTL() time.Duration {
	return time.Duration(c.PresignMinutes) * time.Minute
}

// MaxUploadBytes returns the upload size limit in bytes
func (c StorageConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// LandingConfig holds the public landing page settings
type LandingConfig struct {
	DownloadPath      string `yaml:"download_path"` // static asset served by GET /download
	DownloadName      string `yaml:"download_name"`
	EmailDownloadLink bool   `yaml:"email_download_link"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
	SecureCookie       bool   `yaml:"secure_cookie"`
	AllowSignup        bool   `yaml:"allow_signup"`
	AllowedDomain      string `yaml:"allowed_domain"`
	MinPasswordLength  int    `yaml:"min_password_length"`
	LoginLinkMinutes   int    `yaml:"login_link_minutes"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
}

// SessionTTL returns the session lifetime
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.CookieMaxAge) * time.Second
}

// LoginLinkTTL returns how long an emailed login link stays valid
func (c AuthConfig) LoginLinkTTL() time.Duration {
	return time.Duration(c.LoginLinkMinutes) * time.Minute
}

// GoogleEnabled reports whether Google sign-in is configured
func (c AuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// MailerConfig holds transactional email settings
type MailerConfig struct {
	Provider       string `yaml:"provider"` // "none", "ses" or "sendgrid"
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	SESRegion      string `yaml:"ses_region"`
	SESAccessKey   string `yaml:"ses_access_key"`
	SESSecretKey   string `yaml:"ses_secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LeadSubject    string `yaml:"lead_subject"`
	LeadTemplate   string `yaml:"lead_template"`
	LoginSubject   string `yaml:"login_subject"`
	LoginTemplate  string `yaml:"login_template"`
}

// Timeout returns the configured timeout as a duration
func (c MailerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DashboardConfig holds admin dashboard read limits. Zero means unbounded.
type DashboardConfig struct {
	MaxRows int `yaml:"max_rows"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/pdfs"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Storage.PresignMinutes == 0 {
		cfg.Storage.PresignMinutes = 60
	}
	if cfg.Storage.UploadPrefix == "" {
		cfg.Storage.UploadPrefix = "pdf_"
	}
	if cfg.Storage.MaxUploadMB == 0 {
		cfg.Storage.MaxUploadMB = 25
	}
	if cfg.Storage.ListConcurrency == 0 {
		cfg.Storage.ListConcurrency = 8
	}

	if cfg.Landing.DownloadPath == "" {
		cfg.Landing.DownloadPath = "./static/free-guide.pdf"
	}
	if cfg.Landing.DownloadName == "" {
		cfg.Landing.DownloadName = "free-guide.pdf"
	}

	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "leadfunnel_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 7 * 24 * 3600
	}
	if cfg.Auth.MinPasswordLength == 0 {
		cfg.Auth.MinPasswordLength = 6
	}
	if cfg.Auth.LoginLinkMinutes == 0 {
		cfg.Auth.LoginLinkMinutes = 15
	}

	if cfg.Mailer.Provider == "" {
		cfg.Mailer.Provider = "none"
	}
	if cfg.Mailer.FromName == "" {
		cfg.Mailer.FromName = "Free PDF"
	}
	if cfg.Mailer.SESRegion == "" {
		cfg.Mailer.SESRegion = "us-east-1"
	}
	if cfg.Mailer.TimeoutSeconds == 0 {
		cfg.Mailer.TimeoutSeconds = 10
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
		cfg.Storage.Type = "aws"
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.Mailer.SendGridAPIKey = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mailer.SESAccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mailer.SESSecretKey = v
	}

	return cfg, nil
}
