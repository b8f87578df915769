// internal/config/config.go
//
// Environment configuration for the Double Words server.
// Responsibilities:
//   - Load `.env` (if present) and read every setting once at startup.
//   - Apply development defaults so the server runs with no configuration.
//   - Configure the global zerolog logger.
//
// Environment variables:
//   PORT, LOG_LEVEL, NODE_ENV, CLIENT_ORIGIN
//   DB_DRIVER (sqlite3 | postgres | mysql), DB_DSN
//   JWT_SECRET, JWT_EXPIRES_DAYS, COOKIE_NAME
//   TEXTGEN_URL, TEXTGEN_MODEL, TEXTGEN_API_KEY
//   SEASON_ID, SEASON_END (RFC3339 or YYYY-MM-DD)
//   SES_REGION, SES_FROM_EMAIL, SEASON_REPORT_TO (comma separated)

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
)

const devSecret = "dev_secret_change_me"

// Config is the full server configuration.
type Config struct {
	Port         string
	LogLevel     string
	Production   bool
	ClientOrigin string

	DBDriver string
	DBDSN    string

	JWTSecret  string
	JWTTTL     time.Duration
	CookieName string

	TextGen generator.TextGenConfig
	Season  leaderboard.Season

	SESRegion      string
	SESFrom        string
	SeasonReportTo []string
}

// Load reads `.env` and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Production:   os.Getenv("NODE_ENV") == "production",
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:        os.Getenv("DB_DSN"),
		JWTSecret:    getEnv("JWT_SECRET", devSecret),
		CookieName:   getEnv("COOKIE_NAME", "dw_token"),
		TextGen: generator.TextGenConfig{
			URL:    os.Getenv("TEXTGEN_URL"),
			Model:  getEnv("TEXTGEN_MODEL", "gpt-4o-mini"),
			APIKey: os.Getenv("TEXTGEN_API_KEY"),
		},
		SESRegion: getEnv("SES_REGION", "eu-west-1"),
		SESFrom:   os.Getenv("SES_FROM_EMAIL"),
	}

	days, err := strconv.Atoi(getEnv("JWT_EXPIRES_DAYS", "14"))
	if err != nil || days <= 0 {
		return Config{}, fmt.Errorf("JWT_EXPIRES_DAYS: invalid value %q", os.Getenv("JWT_EXPIRES_DAYS"))
	}
	c.JWTTTL = time.Duration(days) * 24 * time.Hour

	c.Season.ID = os.Getenv("SEASON_ID")
	if v := os.Getenv("SEASON_END"); v != "" {
		end, err := parseDate(v)
		if err != nil {
			return Config{}, fmt.Errorf("SEASON_END: %w", err)
		}
		c.Season.End = end
		if c.Season.ID == "" {
			c.Season.ID = end.Format("2006-01-02")
		}
	}

	for _, to := range strings.Split(os.Getenv("SEASON_REPORT_TO"), ",") {
		if to = strings.TrimSpace(to); to != "" {
			c.SeasonReportTo = append(c.SeasonReportTo, to)
		}
	}

	if c.Production && c.JWTSecret == devSecret {
		return Config{}, fmt.Errorf("JWT_SECRET must be set in production")
	}
	return c, nil
}

// SetupLogging sets the global level; development builds log to the console.
func (c Config) SetupLogging() {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !c.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
