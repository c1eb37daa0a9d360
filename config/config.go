package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/amarket/chat-service/pkg/logger"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr" validate:"required"`
}

type HTTP struct {
	Addr           string        `yaml:"addr" validate:"required"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type Logging struct {
	Env       string `yaml:"env" validate:"omitempty,oneof=dev stage prod"`
	Service   string `yaml:"service"`
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend" validate:"omitempty,oneof=std zap"`
	Level     string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Postgres struct {
	DSN             string        `yaml:"dsn" validate:"required"`
	MaxConns        int32         `yaml:"maxConns" validate:"gte=0"`
	MinConns        int32         `yaml:"minConns" validate:"gte=0"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`
	Migrate         bool          `yaml:"migrate"`
}

type JWT struct {
	PublicKeyPath string        `yaml:"publicKeyPath" validate:"required"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Security struct {
	JWT JWT `yaml:"jwt"`
}

type Chat struct {
	MaxMessageLength int           `yaml:"maxMessageLength" validate:"gte=0"`
	SendQueueSize    int           `yaml:"sendQueueSize" validate:"gte=0"`
	PingInterval     time.Duration `yaml:"pingInterval"`
	WriteTimeout     time.Duration `yaml:"writeTimeout"`
	ReadLimit        int64         `yaml:"readLimit" validate:"gte=0"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
}

// Redis — межинстансовая рассылка событий комнат; пустой addr выключает relay.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Channel  string `yaml:"channel"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Security Security `yaml:"security"`
	Chat     Chat     `yaml:"chat"`
	Redis    Redis    `yaml:"redis"`
	Metrics  Metrics  `yaml:"metrics"`
}

// LoadConfig: .env.local/.env -> YAML из CONFIG_PATH -> переопределения из env -> валидация -> дефолты.
func LoadConfig() (*Config, error) {
	LoadDotEnv()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"HTTP_ADDR":           &c.HTTP.Addr,
		"GRPC_ADDR":           &c.GRPC.Addr,
		"POSTGRES_DSN":        &c.Postgres.DSN,
		"REDIS_ADDR":          &c.Redis.Addr,
		"JWT_PUBLIC_KEY_PATH": &c.Security.JWT.PublicKeyPath,
	}
	for env, dst := range overrides {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	// APP_ENV допускает синонимы (production, staging)
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		c.Logging.Env = string(logger.ParseEnv(v))
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Postgres.MaxConns > 0 && c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("invalid config: postgres.minConns > postgres.maxConns")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	c.HTTP.RequestTimeout = durationOr(c.HTTP.RequestTimeout, 30*time.Second)

	if c.Security.JWT.ClockSkew == 0 {
		c.Security.JWT.ClockSkew = 30 * time.Second
	}

	if c.Chat.MaxMessageLength == 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Chat.SendQueueSize == 0 {
		c.Chat.SendQueueSize = 64
	}
	c.Chat.PingInterval = durationOr(c.Chat.PingInterval, 15*time.Second)
	c.Chat.WriteTimeout = durationOr(c.Chat.WriteTimeout, 5*time.Second)
	if c.Chat.ReadLimit == 0 {
		c.Chat.ReadLimit = 64 << 10
	}
	if len(c.Chat.AllowedOrigins) == 0 {
		c.Chat.AllowedOrigins = c.HTTP.AllowedOrigins
	}
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
