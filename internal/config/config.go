package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env string

	ServerAddr  string
	CORSOrigins string
	RateLimit   int

	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisAddr     string
	RedisPassword string

	JWTSecret      string
	AccessTokenTTL time.Duration

	LogLevel string
	LogJSON  bool

	// Broadcast selects the realtime pusher: "local" or "redis".
	Broadcast   string
	FanoutLimit int
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", ":8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("ACCESS_TOKEN_TTL", "24h")
	v.SetDefault("REALTIME_BROADCAST", "local")
	v.SetDefault("NOTIFY_FANOUT_LIMIT", 50)

	cfg := &Config{
		Env:            strings.ToLower(v.GetString("APP_ENV")),
		ServerAddr:     v.GetString("PORT"),
		CORSOrigins:    v.GetString("CORS_ORIGINS"),
		RateLimit:      v.GetInt("RATE_LIMIT_PER_MINUTE"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		AccessTokenTTL: v.GetDuration("ACCESS_TOKEN_TTL"),
		Broadcast:      strings.ToLower(v.GetString("REALTIME_BROADCAST")),
		FanoutLimit:    v.GetInt("NOTIFY_FANOUT_LIMIT"),
	}

	if !strings.Contains(cfg.ServerAddr, ":") {
		cfg.ServerAddr = ":" + cfg.ServerAddr
	}

	cfg.LogLevel = v.GetString("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
		if cfg.IsProduction() {
			cfg.LogLevel = "info"
		}
	}
	cfg.LogJSON = cfg.IsProduction()
	if v.IsSet("LOG_JSON") {
		cfg.LogJSON = v.GetBool("LOG_JSON")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.Broadcast != "local" && c.Broadcast != "redis" {
		return errors.New("REALTIME_BROADCAST must be 'local' or 'redis'")
	}
	if c.FanoutLimit <= 0 {
		return errors.New("NOTIFY_FANOUT_LIMIT must be positive")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}
