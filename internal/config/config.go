// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file; both win over the
// defaults set in Load.
//
// Every key is the lower-case form of its environment variable, so
// JWT_SECRET in the environment and jwt_secret in config.yaml are the same
// setting.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultConfigFile = "config.yaml"

// Avatar storage backends.
const (
	AvatarStoreDB = "db"
	AvatarStoreS3 = "s3"
)

type Config struct {
	Port   int    `mapstructure:"port"`
	DBPath string `mapstructure:"db_path"`

	JWTSecret  string        `mapstructure:"jwt_secret"`
	JWTTTL     time.Duration `mapstructure:"jwt_ttl"` // 0 = tokens never expire
	BcryptCost int           `mapstructure:"bcrypt_cost"`

	SendGridAPIKey string `mapstructure:"sendgrid_api_key"` // empty = emails are only logged
	MailFrom       string `mapstructure:"mail_from"`
	MailFromName   string `mapstructure:"mail_from_name"`

	AvatarStore       string `mapstructure:"avatar_store"`
	S3Bucket          string `mapstructure:"s3_bucket"`
	S3Region          string `mapstructure:"s3_region"`
	S3Endpoint        string `mapstructure:"s3_endpoint"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`

	GitHubClientID     string `mapstructure:"github_client_id"` // empty = GitHub sign-in off
	GitHubClientSecret string `mapstructure:"github_client_secret"`
	GitHubCallbackURL  string `mapstructure:"github_callback_url"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads CONFIG_FILE (default config.yaml) if present, overlays the
// environment and validates the result. A missing default file is fine; a
// missing file that was asked for explicitly is an error.
func Load() (*Config, error) {
	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit || path == "" {
		path, explicit = defaultConfigFile, false
	}
	return load(path, explicit)
}

func load(path string, required bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if required {
		return nil, fmt.Errorf("config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// setDefaults registers every key. viper only unmarshals environment
// variables for keys it already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("db_path", "data/tasks.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", "0s")
	v.SetDefault("bcrypt_cost", 0)
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("mail_from", "noreply@task-manager.local")
	v.SetDefault("mail_from_name", "Task Manager")
	v.SetDefault("avatar_store", AvatarStoreDB)
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")
	v.SetDefault("github_client_id", "")
	v.SetDefault("github_client_secret", "")
	v.SetDefault("github_callback_url", "")
	v.SetDefault("cors_allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func (c *Config) normalize() {
	c.AvatarStore = strings.ToLower(strings.TrimSpace(c.AvatarStore))
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)

	var origins []string
	for _, o := range c.CORSAllowedOrigins {
		for part := range strings.SplitSeq(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORSAllowedOrigins = origins

	if c.GitHubCallbackURL == "" {
		c.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
	}
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL < 0 {
		return errors.New("config: JWT_TTL must not be negative")
	}
	switch c.AvatarStore {
	case AvatarStoreDB:
	case AvatarStoreS3:
		if c.S3Bucket == "" {
			return errors.New("config: AVATAR_STORE=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("config: unknown AVATAR_STORE %q", c.AvatarStore)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
