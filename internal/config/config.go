// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации магазина.
//
// Настройки программы лояльности читаются только из переменных окружения и
// передаются в Loyalty Ledger явной структурой, а не глобальными константами.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	GatewayAddress string `env:"GATEWAY_ADDRESS"`
	AuthSecret     string `env:"AUTH_SECRET"`

	OrderNumberPrefix string `env:"ORDER_NUMBER_PREFIX" envDefault:"TAT"`

	PointsPerUnit float64 `env:"LOYALTY_POINTS_PER_UNIT" envDefault:"1"`

	SilverMinPoints   int64 `env:"LOYALTY_SILVER_MIN_POINTS" envDefault:"500"`
	GoldMinPoints     int64 `env:"LOYALTY_GOLD_MIN_POINTS" envDefault:"1000"`
	PlatinumMinPoints int64 `env:"LOYALTY_PLATINUM_MIN_POINTS" envDefault:"2500"`

	SilverDiscount   int `env:"LOYALTY_SILVER_DISCOUNT" envDefault:"5"`
	GoldDiscount     int `env:"LOYALTY_GOLD_DISCOUNT" envDefault:"10"`
	PlatinumDiscount int `env:"LOYALTY_PLATINUM_DISCOUNT" envDefault:"15"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "payment gateway address")
	flag.StringVar(&cfg.AuthSecret, "s", "tatlight-secret", "secret key for auth cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
