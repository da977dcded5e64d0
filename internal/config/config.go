package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Matching MatchingConfig
	Billing  BillingConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// MatchingConfig holds the reconciliation tunables.
type MatchingConfig struct {
	DateWindowDays      int     `mapstructure:"date_window_days"`
	AmountTolerance     string  `mapstructure:"amount_tolerance"` // decimal string, e.g. "0.01"
	AutoAcceptThreshold float64 `mapstructure:"auto_accept_threshold"`
}

// BillingConfig holds competence and audit settings.
type BillingConfig struct {
	CompetenceOffsetMonths int `mapstructure:"competence_offset_months"` // competence = due month + offset; -1 in practice
	GapWindowMonths        int `mapstructure:"gap_window_months"`
}

// Load reads configuration from file and env. Env var overrides use prefix RECON_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "reconciliation.db")
	v.SetDefault("database.migrations_path", "internal/storage/migrations")
	v.SetDefault("matching.date_window_days", 3)
	v.SetDefault("matching.amount_tolerance", "0.01")
	v.SetDefault("matching.auto_accept_threshold", 0.95)
	v.SetDefault("billing.competence_offset_months", -1)
	v.SetDefault("billing.gap_window_months", 12)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("RECON_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("RECON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
