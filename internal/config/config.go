// Package config reads the bot settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	BotToken      string  `env:"BOT_TOKEN,required,notEmpty"`
	TMDBAPIKey    string  `env:"TMDB_API_KEY,required,notEmpty"`
	ChannelID     string  `env:"CHANNEL_ID"`
	Admins        []int64 `env:"ADMINS" envSeparator:","`
	WebhookSecret string  `env:"WEBHOOK_SECRET"`
	Port          string  `env:"PORT" envDefault:"8080"`

	MongoURL      string `env:"MONGO_URL"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"tmdbbot"`
	BoltPath      string `env:"BOLT_PATH"`

	CacheTTL      time.Duration `env:"CACHE_TTL"      envDefault:"1h"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"1h"`
	CheckInterval time.Duration `env:"CHECK_INTERVAL" envDefault:"1h"`
	PostDelay     time.Duration `env:"POST_DELAY"     envDefault:"5s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT"   envDefault:"9s"`

	PageSize   int `env:"PAGE_SIZE"   envDefault:"10"`
	MaxResults int `env:"MAX_RESULTS" envDefault:"100"`
	WeeklyDay  int `env:"WEEKLY_DAY"  envDefault:"0"`
	WeeklyHour int `env:"WEEKLY_HOUR" envDefault:"9"`

	TMDBBaseURL   string  `env:"TMDB_BASE_URL"   envDefault:"https://api.themoviedb.org/3"`
	TMDBImageBase string  `env:"TMDB_IMAGE_BASE" envDefault:"https://image.tmdb.org/t/p"`
	TMDBLanguage  string  `env:"TMDB_LANGUAGE"   envDefault:"en-US"`
	TMDBRateLimit float64 `env:"TMDB_RATE_LIMIT" envDefault:"20"`

	Env     string `env:"ENV" envDefault:"production"`
	Debug   bool   `env:"DEBUG"`
	LogFile string `env:"LOG_FILE"`
}

// Load applies envFile (if it exists) and parses the environment.
// Variables already set in the process win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Port), ":")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.PageSize < 1 || c.PageSize > 20 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be within 1..20, got %d", c.PageSize))
	}
	if c.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("MAX_RESULTS must be positive, got %d", c.MaxResults))
	}
	if c.WeeklyDay < 0 || c.WeeklyDay > 6 {
		errs = append(errs, fmt.Errorf("WEEKLY_DAY must be within 0..6 (0 is Sunday), got %d", c.WeeklyDay))
	}
	if c.WeeklyHour < 0 || c.WeeklyHour > 23 {
		errs = append(errs, fmt.Errorf("WEEKLY_HOUR must be within 0..23, got %d", c.WeeklyHour))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, errors.New("CHECK_INTERVAL must be positive"))
	}
	if c.PostDelay < 0 || c.SweepInterval < 0 {
		errs = append(errs, errors.New("POST_DELAY and SWEEP_INTERVAL must not be negative"))
	}
	if c.SessionTTL <= 0 || c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL and SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) Weekday() time.Weekday { return time.Weekday(c.WeeklyDay) }

// BroadcastEnabled is false when no channel is configured.
func (c Config) BroadcastEnabled() bool { return strings.TrimSpace(c.ChannelID) != "" }
