// Package config loads the service configuration from a YAML file with
// environment overrides for the values that differ per deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
)

type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type OrchestratorConfig struct {
	Workflow    string        `mapstructure:"workflow"`
	CatalogPath string        `mapstructure:"catalog_path"`
	Workers     int           `mapstructure:"workers"`
	SweepBudget time.Duration `mapstructure:"sweep_budget"`
}

type HTTPConfig struct {
	Port          int    `mapstructure:"port"`
	TriggerSecret string `mapstructure:"trigger_secret"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type Config struct {
	Database     db.Config          `mapstructure:"database"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Outreach     RateLimitConfig    `mapstructure:"outreach_rate_limit"`
	GatewayLimit RateLimitConfig    `mapstructure:"gateway_rate_limit"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Redis        RedisConfig        `mapstructure:"redis"`
}

// Load reads the config file at path (CONFIG_PATH wins when set) and
// applies environment overrides. A missing file is not an error; the
// defaults plus environment are enough to boot.
func Load(path string) (*Config, error) {
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		path = env
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "alba")
	v.SetDefault("database.database", "alba")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("gateway.timeout", 30*time.Second)

	v.SetDefault("outreach_rate_limit.max_requests", 50)
	v.SetDefault("outreach_rate_limit.window", 24*time.Hour)

	// Gateway budget is off unless configured.
	v.SetDefault("gateway_rate_limit.window", time.Hour)

	v.SetDefault("orchestrator.workflow", "lead_daily")
	v.SetDefault("orchestrator.workers", 3)
	v.SetDefault("orchestrator.sweep_budget", 10*time.Minute)

	v.SetDefault("http.port", 8080)
}

// applyEnvOverrides maps the deployment-specific environment variables
// onto the loaded config. Secrets are expected from the environment, not
// the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		cfg.Database.Database = v
	}

	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}

	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.HTTP.TriggerSecret = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTP.Port = n
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}
