package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"server"`
	Database struct {
		Host           string `mapstructure:"host"`
		Port           string `mapstructure:"port"`
		User           string `mapstructure:"user"`
		Password       string `mapstructure:"password"`
		Name           string `mapstructure:"name"`
		SSLMode        string `mapstructure:"sslmode"`
		MigrationsPath string `mapstructure:"migrations_path"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	JWT struct {
		AccessSecret  string        `mapstructure:"access_secret"`
		RefreshSecret string        `mapstructure:"refresh_secret"`
		AccessTTL     time.Duration `mapstructure:"access_ttl"`
		RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"jwt"`
	Auth struct {
		ResetTokenTTL             time.Duration `mapstructure:"reset_token_ttl"`
		BcryptCost                int           `mapstructure:"bcrypt_cost"`
		// ForgotPasswordMinDuration pads forgot-password responses to a fixed minimum.
		ForgotPasswordMinDuration time.Duration `mapstructure:"forgot_password_min_duration"`
	} `mapstructure:"auth"`
	Ledger struct {
		// Driver is "memory" or "redis".
		Driver string `mapstructure:"driver"`
	} `mapstructure:"ledger"`
	Mail struct {
		// Driver is "none", "smtp" or "kafka".
		Driver string `mapstructure:"driver"`
		SMTP   struct {
			Host     string `mapstructure:"host"`
			Port     int    `mapstructure:"port"`
			User     string `mapstructure:"user"`
			Password string `mapstructure:"password"`
			From     string `mapstructure:"from"`
		} `mapstructure:"smtp"`
		Kafka struct {
			Brokers []string `mapstructure:"brokers"`
			Topic   string   `mapstructure:"topic"`
		} `mapstructure:"kafka"`
	} `mapstructure:"mail"`
	Cache struct {
		CausesTTL time.Duration `mapstructure:"causes_ttl"`
	} `mapstructure:"cache"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.frontend_url", "http://localhost:3001")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "file://db/migrations")
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.reset_token_ttl", time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.forgot_password_min_duration", time.Second)
	v.SetDefault("ledger.driver", "memory")
	v.SetDefault("mail.driver", "none")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.user", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.from", "")
	v.SetDefault("mail.kafka.brokers", []string{})
	v.SetDefault("mail.kafka.topic", "lighthouse.mail")
	v.SetDefault("cache.causes_ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from path, overlays environment variables
// (JWT_ACCESS_SECRET for jwt.access_secret, and so on) and validates the result.
// A missing config file is not an error; the environment alone may configure the process.
func LoadConfig(path string) error {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

// Validate checks the settings the auth subsystem cannot run without.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("jwt.access_secret and jwt.refresh_secret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("jwt.access_secret and jwt.refresh_secret must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt token lifetimes must be positive")
	}
	switch c.Ledger.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	switch c.Mail.Driver {
	case "none", "smtp", "kafka":
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	return nil
}
