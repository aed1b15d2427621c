package config

// =============================================================================
// CONFIGURATION - Environment driven settings for the stock ledger server
// =============================================================================
//
// PURPOSE:
// Collects every tunable of the server in one struct. Values come from the
// process environment, optionally seeded from a .env file; command line
// flags in cmd/server override the few that operators change most.
//
// KEY CONCEPTS:
// - A missing .env file is not an error. Real environment variables always
//   win over .env values.
// - Each setting has a default, so an empty environment yields a working
//   local server backed by stock.db.
//
// =============================================================================

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/stock-ledger/ledger"
)

type Config struct {
	Port         string
	DBPath       string
	LogLevel     string
	LogFormat    string
	CORSOrigins  []string
	KafkaBrokers []string
	KafkaTopic   string
	AmendPolicy  ledger.AmendPolicy
	RetryBudget  int
	ExpiryWindow int // months
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"DB_PATH":              "stock.db",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CORS_ORIGINS":         "*",
	"KAFKA_BROKERS":        "",
	"KAFKA_TOPIC":          "stock-events",
	"STOCK_AMEND_POLICY":   "reset",
	"LEDGER_RETRY_BUDGET":  ledger.DefaultRetryBudget,
	"EXPIRY_WINDOW_MONTHS": 3,
}

// Load reads envFiles (default ".env") into the environment, then builds the
// Config from the environment.
func Load(envFiles ...string) (*Config, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	policy, err := ledger.ParseAmendPolicy(v.GetString("STOCK_AMEND_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("STOCK_AMEND_POLICY: %w", err)
	}
	cfg := &Config{
		Port:         v.GetString("PORT"),
		DBPath:       v.GetString("DB_PATH"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogFormat:    strings.ToLower(v.GetString("LOG_FORMAT")),
		CORSOrigins:  splitList(v.GetString("CORS_ORIGINS")),
		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),
		AmendPolicy:  policy,
		RetryBudget:  v.GetInt("LEDGER_RETRY_BUDGET"),
		ExpiryWindow: v.GetInt("EXPIRY_WINDOW_MONTHS"),
	}
	if cfg.RetryBudget < 1 {
		return nil, fmt.Errorf("LEDGER_RETRY_BUDGET must be at least 1, got %d", cfg.RetryBudget)
	}
	if cfg.ExpiryWindow < 0 {
		return nil, fmt.Errorf("EXPIRY_WINDOW_MONTHS must not be negative, got %d", cfg.ExpiryWindow)
	}
	return cfg, nil
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
