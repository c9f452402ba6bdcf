package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		AckTimeout      string `yaml:"ack_timeout"`
		SendBuffer      int    `yaml:"send_buffer"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Moderation struct {
		BannedWords []string `yaml:"banned_words"`
		Replacement string   `yaml:"replacement"`
	} `yaml:"moderation"`
}

// overrides are environment variables that win over the YAML file.
type overrides struct {
	Port        string `env:"SERVER_PORT"`
	AckTimeout  string `env:"ACK_TIMEOUT"`
	SendBuffer  *int   `env:"SEND_BUFFER"`
	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisPass   string `env:"REDIS_PASSWORD"`
	RedisDB     *int   `env:"REDIS_DB"`
	RedisTTL    string `env:"REDIS_TTL"`
	PostgresURL string `env:"POSTGRES_URL"`
	QuizTTL     string `env:"QUIZ_TTL"`
	LogLevel    string `env:"LOG_LEVEL"`
	BannedWords string `env:"BANNED_WORDS"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	var o overrides
	if _, err := env.UnmarshalFromEnviron(&o); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	o.apply(&cfg)
	return cfg, nil
}

// Default is the configuration of a single in-memory instance.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.AckTimeout = "5s"
	cfg.Server.SendBuffer = 64
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Auth.Issuer = "quiz-sync"
	cfg.Redis.TTL = "12h"
	cfg.Quiz.TTL = "10m"
	cfg.Log.Level = "INFO"
	cfg.Moderation.Replacement = "*"
	return cfg
}

func (o overrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Port, o.Port)
	set(&cfg.Server.AckTimeout, o.AckTimeout)
	set(&cfg.Auth.JWTSecret, o.JWTSecret)
	set(&cfg.Auth.Issuer, o.JWTIssuer)
	set(&cfg.Redis.Addr, o.RedisAddr)
	set(&cfg.Redis.Password, o.RedisPass)
	set(&cfg.Redis.TTL, o.RedisTTL)
	set(&cfg.Postgres.URL, o.PostgresURL)
	set(&cfg.Quiz.TTL, o.QuizTTL)
	set(&cfg.Log.Level, o.LogLevel)
	if o.SendBuffer != nil {
		cfg.Server.SendBuffer = *o.SendBuffer
	}
	if o.RedisDB != nil {
		cfg.Redis.DB = *o.RedisDB
	}
	if o.BannedWords != "" {
		cfg.Moderation.BannedWords = strings.Split(o.BannedWords, ",")
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// ReplacementRune is the first rune of the moderation replacement, '*' by default.
func (c Config) ReplacementRune() rune {
	for _, r := range c.Moderation.Replacement {
		return r
	}
	return '*'
}
