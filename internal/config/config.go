// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Google OAuth（サインインとカレンダーAPIの両方で使用する）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// LINE Login（未設定の場合はLINEサインインを無効にする）
	LineChannelID     string
	LineChannelSecret string
	LineRedirectURL   string

	// Session
	SessionMaxAge time.Duration

	// Sync
	SyncInterval  time.Duration
	SyncFetchDays int

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitSync    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// .envファイルが存在する場合は先に読み込む（開発環境用。本番では配置しない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional: LINE Loginは3つ揃ったときのみ有効
	cfg.LineChannelID = os.Getenv("LINE_CHANNEL_ID")
	cfg.LineChannelSecret = os.Getenv("LINE_CHANNEL_SECRET")
	cfg.LineRedirectURL = os.Getenv("LINE_REDIRECT_URL")

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 15*time.Minute)
	cfg.SyncFetchDays = getEnvInt("SYNC_FETCH_DAYS", 90)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSync = getEnvInt("RATE_LIMIT_SYNC", 6)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:8081")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// LineEnabled はLINE Loginの設定が揃っているかを返す。
func (c *Config) LineEnabled() bool {
	return c.LineChannelID != "" && c.LineChannelSecret != "" && c.LineRedirectURL != ""
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
