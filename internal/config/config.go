package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	StoreDriver   string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	TokenTTL          time.Duration

	AIAPIURL             string
	AIAPIKey             string
	AIModel              string
	TTSAPIURL            string
	GeneratorConcurrency int

	PublicURL string
	Rules     engine.Rules
}

// Load reads an optional .env file (path may be empty) and then the
// environment. Values that do not parse fail the load.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	p := &parser{}
	rules := engine.DefaultRules()
	rules.QuestionTimerSec = p.int("QUESTION_SECONDS", rules.QuestionTimerSec)
	rules.BreakTimerSec = p.int("BREAK_SECONDS", rules.BreakTimerSec)
	rules.PerformTimerSec = p.int("PERFORM_SECONDS", rules.PerformTimerSec)
	rules.TurnDelayMs = p.int("TURN_DELAY_MS", rules.TurnDelayMs)

	cfg := &Config{
		Addr:      getEnv("ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),
		SessionTTL:    p.duration("SESSION_TTL", 12*time.Hour),

		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenTTL:          p.duration("TOKEN_TTL", 24*time.Hour),

		AIAPIURL:             strings.TrimRight(getEnv("AI_API_URL", ""), "/"),
		AIAPIKey:             getEnv("AI_API_KEY", ""),
		AIModel:              getEnv("AI_MODEL", "gpt-4o-mini"),
		TTSAPIURL:            strings.TrimRight(getEnv("TTS_API_URL", ""), "/"),
		GeneratorConcurrency: p.int("GENERATOR_CONCURRENCY", 4),

		PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:5173"), "/"),
		Rules:     rules,
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (memory|postgres|redis)", c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (json|console)", c.LogFormat)
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.GeneratorConcurrency < 1 {
		return fmt.Errorf("GENERATOR_CONCURRENCY must be positive, got %d", c.GeneratorConcurrency)
	}
	r := c.Rules
	if r.QuestionTimerSec < 1 || r.BreakTimerSec < 1 || r.PerformTimerSec < 1 || r.TurnDelayMs < 0 {
		return errors.New("timer settings must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// parser keeps the first conversion error so Load can report it once.
type parser struct{ err error }

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return d
}
