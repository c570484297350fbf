package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Scraper    ScraperConfig
	Translator TranslatorConfig
	Cache      CacheConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type ScraperConfig struct {
	TargetDomain    string
	NavigateTimeout time.Duration
	SettleDelay     time.Duration
	ClickSettle     time.Duration
	ScrollStep      int
	ScrollPause     time.Duration
	ScrollBudget    int
	MinImageSize    int
	MaxImages       int
}

type TranslatorConfig struct {
	APIKey          string
	ModelCandidates []string
	CallInterval    time.Duration
	MaxRetries      int
	RetryBase       time.Duration
	MaxOCRImages    int
	MinOCRTextLen   int
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ko-KR,ko;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Seoul"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ko-KR"),
		},
		Scraper: ScraperConfig{
			TargetDomain:    getEnvOrDefault("SCRAPER_TARGET_DOMAIN", "idus.com"),
			NavigateTimeout: getDurationOrDefault("SCRAPER_NAVIGATE_TIMEOUT", 60*time.Second),
			SettleDelay:     getDurationOrDefault("SCRAPER_SETTLE_DELAY", 3*time.Second),
			ClickSettle:     getDurationOrDefault("SCRAPER_CLICK_SETTLE", 1500*time.Millisecond),
			ScrollStep:      getIntOrDefault("SCRAPER_SCROLL_STEP", 400),
			ScrollPause:     getDurationOrDefault("SCRAPER_SCROLL_PAUSE", 300*time.Millisecond),
			ScrollBudget:    getIntOrDefault("SCRAPER_SCROLL_BUDGET", 60),
			MinImageSize:    getIntOrDefault("SCRAPER_MIN_IMAGE_SIZE", 300),
			MaxImages:       getIntOrDefault("SCRAPER_MAX_IMAGES", 15),
		},
		Translator: TranslatorConfig{
			APIKey:          os.Getenv("GEMINI_API_KEY"),
			ModelCandidates: getStringSliceOrDefault("GEMINI_MODEL_CANDIDATES", defaultModelCandidates()),
			CallInterval:    getDurationOrDefault("TRANSLATOR_CALL_INTERVAL", 1*time.Second),
			MaxRetries:      getIntOrDefault("TRANSLATOR_MAX_RETRIES", 3),
			RetryBase:       getDurationOrDefault("TRANSLATOR_RETRY_BASE", 2*time.Second),
			MaxOCRImages:    getIntOrDefault("MAX_OCR_IMAGES", 10),
			MinOCRTextLen:   getIntOrDefault("MIN_OCR_TEXT_LEN", 10),
		},
		Cache: CacheConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			TTL:           getDurationOrDefault("CACHE_TTL", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.TargetDomain == "" {
		return fmt.Errorf("SCRAPER_TARGET_DOMAIN must not be empty")
	}

	if c.Scraper.ScrollStep < 1 {
		return fmt.Errorf("SCRAPER_SCROLL_STEP must be at least 1")
	}

	if c.Scraper.MaxImages < 1 {
		return fmt.Errorf("SCRAPER_MAX_IMAGES must be at least 1")
	}

	if c.Translator.MaxRetries < 1 {
		return fmt.Errorf("TRANSLATOR_MAX_RETRIES must be at least 1")
	}

	if len(c.Translator.ModelCandidates) == 0 {
		return fmt.Errorf("GEMINI_MODEL_CANDIDATES must not be empty")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func defaultModelCandidates() []string {
	return []string{
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-pro",
	}
}
