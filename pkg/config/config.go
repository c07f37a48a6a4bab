package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database        DatabaseConfig
	Redis           RedisConfig
	JWT             JWTConfig
	CORS            CORSConfig
	Log             LogConfig
	Scheduling      SchedulingConfig
	DailyTick       DailyTickConfig
	Leader          LeaderConfig
	CompletionFacts CompletionFactsConfig
	Events          EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to validate tokens issued by the identity layer.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig defines the civil calendar all date comparisons use.
type SchedulingConfig struct {
	Timezone string
}

// DailyTickConfig controls the background Planned to Pending promotion.
type DailyTickConfig struct {
	Enabled bool
	Hour    int
	Retries int
}

// LeaderConfig configures the redis lease that keeps the daily tick single-writer across replicas.
type LeaderConfig struct {
	Enabled       bool
	Key           string
	LeaseDuration time.Duration
	RenewInterval time.Duration
}

// CompletionFactsConfig configures the upstream completion fact source and its cache.
type CompletionFactsConfig struct {
	URL      string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// EventsConfig configures domain event publication. Empty URL disables publishing.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		Timezone: v.GetString("SCHEDULING_TIMEZONE"),
	}

	hour := v.GetInt("DAILY_TICK_HOUR")
	if hour < 0 || hour > 23 {
		hour = 0
	}
	cfg.DailyTick = DailyTickConfig{
		Enabled: v.GetBool("ENABLE_DAILY_TICK"),
		Hour:    hour,
		Retries: v.GetInt("DAILY_TICK_RETRIES"),
	}

	cfg.Leader = LeaderConfig{
		Enabled:       v.GetBool("ENABLE_LEADER_ELECTION"),
		Key:           v.GetString("LEADER_ELECTION_KEY"),
		LeaseDuration: parseDuration(v.GetString("LEADER_LEASE_DURATION"), 15*time.Second),
		RenewInterval: parseDuration(v.GetString("LEADER_RENEW_INTERVAL"), 5*time.Second),
	}

	cfg.CompletionFacts = CompletionFactsConfig{
		URL:      v.GetString("COMPLETION_FACTS_URL"),
		CacheTTL: parseDuration(v.GetString("COMPLETION_FACTS_CACHE_TTL"), 10*time.Minute),
		Timeout:  parseDuration(v.GetString("COMPLETION_FACTS_TIMEOUT"), 5*time.Second),
	}

	cfg.Events = EventsConfig{
		NATSURL:       v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "maintenance_slots")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_TIMEZONE", "Asia/Hong_Kong")

	v.SetDefault("ENABLE_DAILY_TICK", true)
	v.SetDefault("DAILY_TICK_HOUR", 0)
	v.SetDefault("DAILY_TICK_RETRIES", 3)

	v.SetDefault("ENABLE_LEADER_ELECTION", false)
	v.SetDefault("LEADER_ELECTION_KEY", "maintenance:daily-tick:leader")
	v.SetDefault("LEADER_LEASE_DURATION", "15s")
	v.SetDefault("LEADER_RENEW_INTERVAL", "5s")

	v.SetDefault("COMPLETION_FACTS_URL", "")
	v.SetDefault("COMPLETION_FACTS_CACHE_TTL", "10m")
	v.SetDefault("COMPLETION_FACTS_TIMEOUT", "5s")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT_PREFIX", "maintenance")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
