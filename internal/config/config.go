// Package config содержит логику чтения конфигурации сервиса сапатарии.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/bcastroea/sapatariacapacita-backend/internal/events"
)

// ErrJWTSecretRequired возвращается, если секрет подписи токенов не задан.
var ErrJWTSecretRequired = errors.New("JWT secret is required (-s or JWT_SECRET)")

// Config содержит параметры конфигурации сервиса сапатарии.
type Config struct {
	RunAddress   string `env:"RUN_ADDRESS"`
	DatabaseURI  string `env:"DATABASE_URI"`
	JWTSecret    string `env:"JWT_SECRET"`
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC"`

	AdminName     string `env:"ADMIN_NAME" envDefault:"Administrator"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Brokers возвращает список адресов Kafka; пустой, если брокеры не заданы.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// BootstrapAdmin сообщает, задана ли учётная запись администратора для создания при старте.
func (c *Config) BootstrapAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret
	envKafkaBrokers := cfg.KafkaBrokers
	envKafkaTopic := cfg.KafkaTopic

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (empty for in-memory storage)")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret for signing bearer tokens")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "comma-separated Kafka brokers")
	flag.StringVar(&cfg.KafkaTopic, "t", events.DefaultTopic, "Kafka topic for order events")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}
	if envKafkaBrokers != "" {
		cfg.KafkaBrokers = envKafkaBrokers
	}
	if envKafkaTopic != "" {
		cfg.KafkaTopic = envKafkaTopic
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = events.DefaultTopic
	}

	if cfg.JWTSecret == "" {
		return nil, ErrJWTSecretRequired
	}

	return cfg, nil
}
