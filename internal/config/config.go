package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRulemakingEndpoint は Federal Register の文書検索APIエンドポイント。
const DefaultRulemakingEndpoint = "https://www.federalregister.gov/api/v1/documents.json"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// System sources
	SystemRefreshInterval time.Duration
	SystemCacheTTL        time.Duration
	SystemCacheSize       int
	GuardianAPIKey        string
	NYTAPIKey             string
	CongressAPIKey        string
	RulemakingEndpoint    string

	// Rate Limit
	RateLimitGeneral int
	RateLimitRefresh int

	// Session
	SessionRetentionDays int
	CleanupSchedule      string

	// Server
	ServerPort string
	LogLevel   string

	// CORS
	CORSAllowedOrigin string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// DefaultEnvFile はENV_FILE未指定時に読み込む.envファイルのパス。
const DefaultEnvFile = ".env"

// EnvFile は読み込む.envファイルのパスを返す。
func EnvFile() string {
	return getEnvString("ENV_FILE", DefaultEnvFile)
}

// LoadDotEnv は.envファイルの内容を環境変数に設定する。
// 既に設定されている環境変数は上書きしない。ファイルがなければ何もせずfalseを返す。
func LoadDotEnv(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return true, nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// APIキーは任意で、未設定の場合は該当ソースの取得時に設定エラーとなる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 10)
	cfg.SystemRefreshInterval = getEnvDuration("SYSTEM_REFRESH_INTERVAL", 15*time.Minute)
	cfg.SystemCacheTTL = getEnvDuration("SYSTEM_CACHE_TTL", 15*time.Minute)
	cfg.SystemCacheSize = getEnvInt("SYSTEM_CACHE_SIZE", 64)
	cfg.GuardianAPIKey = os.Getenv("GUARDIAN_API_KEY")
	cfg.NYTAPIKey = os.Getenv("NYT_API_KEY")
	cfg.CongressAPIKey = os.Getenv("CONGRESS_API_KEY")
	cfg.RulemakingEndpoint = getEnvString("RULEMAKING_ENDPOINT", DefaultRulemakingEndpoint)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRefresh = getEnvInt("RATE_LIMIT_REFRESH", 10)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 30)
	cfg.CleanupSchedule = getEnvString("CLEANUP_SCHEDULE", "@daily")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
