package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（既読トラッキング用、未設定の場合はメモリ実装にフォールバック）
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Fetch
	RelayTimeout       time.Duration // リレー1回あたりのタイムアウト
	FetchMaxSize       int64         // レスポンスボディの最大サイズ
	FetchMaxConcurrent int           // フィード並列フェッチの最大数
	RefreshInterval    time.Duration // キャッシュの鮮度判定間隔 兼 自動リフレッシュ間隔

	// Retention
	RetentionDays int // 日アーカイブの保持日数（1=今日のみ、2=今日と昨日）

	// Translation
	TranslateEnabled  bool
	TranslateInterval time.Duration // 翻訳APIの呼び出し間隔

	// Rate Limit
	RateLimitGeneral int // API全般のレート（req/min/クライアント）

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// DATABASE_URLが未設定の場合はエラーとせず空のまま返す（メモリストアで起動する）。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.RelayTimeout = getEnvDuration("RELAY_TIMEOUT", 4*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 10)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", time.Hour)

	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 2)

	cfg.TranslateEnabled = getEnvBool("TRANSLATE_ENABLED", true)
	cfg.TranslateInterval = getEnvDuration("TRANSLATE_INTERVAL", 200*time.Millisecond)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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
