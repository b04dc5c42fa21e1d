// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port string

	// Database
	DBDriver    string // "sqlite" or "postgres"
	DBPath      string
	DatabaseURL string

	// Pokemon TCG catalog
	CatalogBaseURL   string
	CatalogAPIKey    string
	CatalogTimeout   time.Duration
	CatalogRateLimit float64 // requests per second, 0 disables throttling

	// Resolver
	ResolveMaxAttempts  int
	ResolveBaseDelay    time.Duration
	ResolveConcurrency  int
	AutocompleteCacheSz int

	// Background workers
	CardSyncInterval   time.Duration
	CardStaleness      time.Duration
	SnapshotHour       int
	SyncCardsOnStartup bool
	CORSAllowedOrigins []string
	LogLevel           string
	FrontendDistPath   string
}

// Load reads .env (if present) and the environment, falling back to defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Info("Config: loaded .env file")
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBDriver:            strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:              getEnv("DB_PATH", "./binder_tracker.db"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		CatalogBaseURL:      getEnv("POKEMON_TCG_BASE_URL", "https://api.pokemontcg.io/v2"),
		CatalogAPIKey:       os.Getenv("POKEMON_TCG_API_KEY"),
		CatalogTimeout:      getDuration("CATALOG_TIMEOUT", 30*time.Second),
		CatalogRateLimit:    getFloat("CATALOG_RATE_LIMIT", 10),
		ResolveMaxAttempts:  getInt("RESOLVE_MAX_ATTEMPTS", 3),
		ResolveBaseDelay:    getDuration("RESOLVE_BASE_DELAY", time.Second),
		ResolveConcurrency:  getInt("RESOLVE_CONCURRENCY", 5),
		AutocompleteCacheSz: getInt("AUTOCOMPLETE_CACHE_SIZE", 1024),
		CardSyncInterval:    getDuration("CARD_SYNC_INTERVAL", 6*time.Hour),
		CardStaleness:       getDuration("CARD_STALENESS", 24*time.Hour),
		SnapshotHour:        getInt("SNAPSHOT_HOUR", 23),
		SyncCardsOnStartup:  os.Getenv("SYNC_CARDS_ON_STARTUP") == "true",
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		FrontendDistPath:    os.Getenv("FRONTEND_DIST_PATH"),
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = strings.Split(origins, ",")
	} else {
		cfg.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}

	return cfg
}

// ConfigureLogging applies the configured log level to the global logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Config: invalid LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("Config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warnf("Config: invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("Config: invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
