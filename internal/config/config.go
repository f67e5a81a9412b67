package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration of the engine and the operations router.
type Config struct {
	DatabaseDSN string `mapstructure:"DATABASE_DSN" validate:"required"`
	LogFormat   string `mapstructure:"LOG_FORMAT" validate:"omitempty,oneof=human json"`
	LogLevel    string `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`
	GinMode     string `mapstructure:"GIN_MODE" validate:"omitempty,oneof=debug release test"`
	ListenAddr  string `mapstructure:"LISTEN_ADDR" validate:"required"`
	APIURL      string `mapstructure:"API_URL" validate:"omitempty,url"`
	EnablePprof bool   `mapstructure:"ENABLE_PPROF"`

	LookbackDays       int           `mapstructure:"LOOKBACK_DAYS" validate:"min=1"`
	SweepWindowDays    int           `mapstructure:"SWEEP_WINDOW_DAYS" validate:"min=1"`
	SyncInterval       time.Duration `mapstructure:"SYNC_INTERVAL" validate:"gt=0"`
	PendingMatchWindow time.Duration `mapstructure:"PENDING_MATCH_WINDOW" validate:"gt=0"`
	ImportConcurrency  int           `mapstructure:"IMPORT_CONCURRENCY" validate:"min=1"`
	LookupCacheSize    int           `mapstructure:"LOOKUP_CACHE_SIZE" validate:"min=1"`

	PlaidFeedURL    string `mapstructure:"PLAID_FEED_URL" validate:"omitempty,url"`
	PlaidFeedToken  string `mapstructure:"PLAID_FEED_TOKEN"`
	StripeFeedURL   string `mapstructure:"STRIPE_FEED_URL" validate:"omitempty,url"`
	StripeFeedToken string `mapstructure:"STRIPE_FEED_TOKEN"`
	CSVImportDir    string `mapstructure:"CSV_IMPORT_DIR" validate:"omitempty,dir"`
	MemoRulesFile   string `mapstructure:"EVENT_MEMO_RULES_FILE" validate:"omitempty,file"`
}

var defaults = map[string]any{
	"DATABASE_DSN":          "data/hcb.db",
	"LOG_FORMAT":            "",
	"LOG_LEVEL":             "",
	"GIN_MODE":              "",
	"LISTEN_ADDR":           ":8080",
	"API_URL":               "",
	"ENABLE_PPROF":          false,
	"LOOKBACK_DAYS":         30,
	"SWEEP_WINDOW_DAYS":     15,
	"SYNC_INTERVAL":         "1h",
	"PENDING_MATCH_WINDOW":  "240h",
	"IMPORT_CONCURRENCY":    4,
	"LOOKUP_CACHE_SIZE":     1024,
	"PLAID_FEED_URL":        "",
	"PLAID_FEED_TOKEN":      "",
	"STRIPE_FEED_URL":       "",
	"STRIPE_FEED_TOKEN":     "",
	"CSV_IMPORT_DIR":        "",
	"EVENT_MEMO_RULES_FILE": "",
}

// Load reads the configuration from the environment. A .env file in the
// working directory is read first if it exists, the environment takes
// precedence over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("configuration could not be read: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("configuration is invalid: %w", err)
	}

	return cfg, nil
}

// Lookback is the window nightly runs re-import.
func (c Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// SweepWindow is the size of the blocks full reconciliation sweeps are processed in.
func (c Config) SweepWindow() time.Duration {
	return time.Duration(c.SweepWindowDays) * 24 * time.Hour
}
