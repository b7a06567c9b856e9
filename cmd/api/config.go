package main

import (
	"log/slog"
	"time"
)

type apiConfig struct {
	Port            uint16        `env:"HTTP_PORT"`
	PostgresDSN     string        `env:"PG_DSN"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// Set empty to run without a broker (events are dropped).
	AMQPURL string `env:"AMQP_URL"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
}
