package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Overlap modes understood by the slot assignment engine.
const (
	OverlapModeFull  = "full"
	OverlapModeStart = "start"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Conflicts ConflictCacheConfig
	Scheduler SchedulerConfig
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

// ConflictCacheConfig governs caching of conflict scans.
type ConflictCacheConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// SchedulerConfig tunes timetable generation, workload checks and substitute searches.
type SchedulerConfig struct {
	DefaultMaxWorkload int
	SubstituteDelay    time.Duration
	SubstituteTTL      time.Duration
	MinSkillOverlap    int
	OverlapMode        string
	SearchWorkers      int
	SweepSchedule      string
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

	cfg.Conflicts = ConflictCacheConfig{
		CacheEnabled: v.GetBool("ENABLE_CONFLICT_CACHE"),
		CacheTTL:     parseDuration(v.GetString("CONFLICT_CACHE_TTL"), 2*time.Minute),
	}

	maxWorkload := v.GetInt("SCHEDULER_DEFAULT_MAX_WORKLOAD")
	if maxWorkload <= 0 {
		maxWorkload = 5
	}
	minOverlap := v.GetInt("SCHEDULER_MIN_SKILL_OVERLAP")
	if minOverlap <= 0 {
		minOverlap = 3
	}
	cfg.Scheduler = SchedulerConfig{
		DefaultMaxWorkload: maxWorkload,
		SubstituteDelay:    parseDuration(v.GetString("SCHEDULER_SUBSTITUTE_DELAY"), 6*time.Second),
		SubstituteTTL:      parseDuration(v.GetString("SCHEDULER_SUBSTITUTE_TTL"), 30*time.Minute),
		MinSkillOverlap:    minOverlap,
		OverlapMode:        normalizeOverlapMode(v.GetString("SCHEDULER_OVERLAP_MODE")),
		SearchWorkers:      v.GetInt("SCHEDULER_SEARCH_WORKERS"),
		SweepSchedule:      v.GetString("SCHEDULER_SWEEP_SCHEDULE"),
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
	v.SetDefault("DB_NAME", "campus_timetable")
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

	v.SetDefault("ENABLE_CONFLICT_CACHE", false)
	v.SetDefault("CONFLICT_CACHE_TTL", "2m")

	v.SetDefault("SCHEDULER_DEFAULT_MAX_WORKLOAD", 5)
	v.SetDefault("SCHEDULER_SUBSTITUTE_DELAY", "6s")
	v.SetDefault("SCHEDULER_SUBSTITUTE_TTL", "30m")
	v.SetDefault("SCHEDULER_MIN_SKILL_OVERLAP", 3)
	v.SetDefault("SCHEDULER_OVERLAP_MODE", OverlapModeFull)
	v.SetDefault("SCHEDULER_SEARCH_WORKERS", 2)
	v.SetDefault("SCHEDULER_SWEEP_SCHEDULE", "@every 5m")
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

func normalizeOverlapMode(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), OverlapModeStart) {
		return OverlapModeStart
	}
	return OverlapModeFull
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
