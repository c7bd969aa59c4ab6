package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// The client commands and the development server share one configuration
// surface; fields that only matter to one side carry defaults that keep the
// other side working untouched.
type Config struct {
	AppEnv           string
	Port             string
	ServerBaseURL    string
	StateDir         string
	JWTSecret        string
	CheckoutSecret   string
	StoragePath      string
	StorageBaseURL   string
	AllowedOrigins   []string
	SessionTTL       time.Duration
	RefreshInterval  time.Duration
	HTTPTimeout      time.Duration
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	MaxUploadBytes   int64
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		ServerBaseURL:    strings.TrimRight(getEnv("SNAPPDF_SERVER", "http://localhost:"+port), "/"),
		StateDir:         getEnv("SNAPPDF_STATE_DIR", defaultStateDir()),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CheckoutSecret:   getEnv("CHECKOUT_SECRET", "snappdf-dev-checkout"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		SessionTTL:       time.Second * time.Duration(getEnvInt("SESSION_TTL_SECONDS", 30)),
		RefreshInterval:  time.Minute * time.Duration(getEnvInt("REFRESH_INTERVAL_MINUTES", 13)),
		HTTPTimeout:      time.Second * time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)),
		AccessTokenTTL:   time.Minute * time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 15)),
		RefreshTokenTTL:  time.Hour * 24 * time.Duration(getEnvInt("REFRESH_TOKEN_TTL_DAYS", 7)),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 2<<20)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "snappdf-dev-secret"
	}

	return cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".snappdf"
	}
	return filepath.Join(home, ".snappdf")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
