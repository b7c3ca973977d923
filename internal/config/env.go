// Package config loads process configuration from the environment and the
// tunable balance constants from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration.
type Config struct {
	Port         string
	DatabaseURL  string // PostgreSQL; empty disables
	RedisURL     string // read-through cache in front of the SQL store
	SQLitePath   string // used when DatabaseURL is empty
	TickInterval time.Duration
	SaveInterval time.Duration
	CacheTTL     time.Duration
	BalanceFile  string
	CatalogFile  string
	NewsAPIURL   string
	NewsAPIKey   string
	NewsModel    string
	Seed         uint64 // 0 = seed from the clock
}

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not set.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// FromEnv reads the configuration, applying reference defaults.
func FromEnv() (Config, error) {
	c := Config{
		Port:        GetEnv("PORT", "8080"),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		RedisURL:    GetEnv("REDIS_URL", ""),
		SQLitePath:  GetEnv("SQLITE_PATH", ""),
		BalanceFile: GetEnv("BALANCE_FILE", ""),
		CatalogFile: GetEnv("CATALOG_FILE", ""),
		NewsAPIURL:  GetEnv("NEWS_API_URL", ""),
		NewsAPIKey:  GetEnv("NEWS_API_KEY", ""),
		NewsModel:   GetEnv("NEWS_MODEL", "gpt-4o-mini"),
	}

	var err error
	if c.TickInterval, err = durationEnv("TICK_INTERVAL", 100*time.Millisecond); err != nil {
		return Config{}, err
	}
	if c.SaveInterval, err = durationEnv("SAVE_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if c.CacheTTL, err = durationEnv("CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if s := GetEnv("RNG_SEED", ""); s != "" {
		if c.Seed, err = strconv.ParseUint(s, 10, 64); err != nil {
			return Config{}, fmt.Errorf("invalid RNG_SEED %q: %w", s, err)
		}
	}
	return c, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := GetEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, s)
	}
	return d, nil
}
