package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Scraper ScraperConfig
}

type ServerConfig struct {
	Port int
}

type CacheConfig struct {
	// TTL for cached search results, in seconds.
	TTLSeconds int
	// SweepMinutes controls the eager expiry sweep interval.
	SweepMinutes int
	// When RedisAddr is set the shared redis backend is used instead of
	// the in-memory store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type ScraperConfig struct {
	// Sources enabled at startup, by adapter name.
	Sources []string
	// Headless toggles the browser used for rendered-mode fetches.
	Headless bool
	// TimeoutSeconds bounds every individual page fetch.
	TimeoutSeconds int
	// DelayMS is the minimum inter-request delay per adapter.
	DelayMS int
	// SelectorsFile optionally overrides the built-in CSS selector
	// tables, so markup drift can be patched without a rebuild.
	SelectorsFile string
	ProxyServer   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8090),
		},
		Cache: CacheConfig{
			TTLSeconds:    getEnvInt("CACHE_TTL", 3600),
			SweepMinutes:  getEnvInt("CACHE_SWEEP_MINUTES", 30),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Scraper: ScraperConfig{
			Sources:        getEnvList("SCRAPER_SOURCES", []string{"amazon", "mercadolibre_mx", "mercadolibre_ar"}),
			Headless:       getEnvBool("SCRAPER_HEADLESS", true),
			TimeoutSeconds: getEnvInt("SCRAPER_TIMEOUT", 30),
			DelayMS:        getEnvInt("SCRAPER_DELAY_MS", 2000),
			SelectorsFile:  getEnv("SCRAPER_SELECTORS_FILE", ""),
			ProxyServer:    getEnv("SCRAPER_PROXY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %d", c.Cache.TTLSeconds)
	}

	if len(c.Scraper.Sources) == 0 {
		return fmt.Errorf("at least one scraper source is required")
	}

	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper timeout must be positive, got %d", c.Scraper.TimeoutSeconds)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
