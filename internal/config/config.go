package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Whop OAuth / API
	WhopAppID       string
	WhopAPIKey      string
	WhopRedirectURI string

	// Session
	SessionSecret string
	SessionMaxAge int

	// External data sources
	OddsAPIKey    string
	WeatherAPIKey string
	NewsFeedURLs  []string

	// Fetch
	FetchTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Cleanup
	CleanupInterval        time.Duration
	PredictionRetentionTTL time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// defaultNewsFeedURLs は設定未指定時に参照するスポーツニュースフィード。
var defaultNewsFeedURLs = []string{
	"https://www.espn.com/espn/rss/soccer/news",
	"https://feeds.bbci.co.uk/sport/football/rss.xml",
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.WhopAppID = os.Getenv("WHOP_APP_ID")
	if cfg.WhopAppID == "" {
		missing = append(missing, "WHOP_APP_ID")
	}

	cfg.WhopAPIKey = os.Getenv("WHOP_API_KEY")
	if cfg.WhopAPIKey == "" {
		missing = append(missing, "WHOP_API_KEY")
	}

	cfg.WhopRedirectURI = os.Getenv("WHOP_REDIRECT_URI")
	if cfg.WhopRedirectURI == "" {
		missing = append(missing, "WHOP_REDIRECT_URI")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 2592000) // 30 days
	cfg.OddsAPIKey = getEnvString("ODDS_API_KEY", "")
	cfg.WeatherAPIKey = getEnvString("WEATHER_API_KEY", "")
	cfg.NewsFeedURLs = getEnvStringList("NEWS_FEED_URLS", defaultNewsFeedURLs)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 1*time.Hour)
	cfg.PredictionRetentionTTL = getEnvDuration("PREDICTION_RETENTION_TTL", 7*24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvStringList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
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
