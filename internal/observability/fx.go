package observability

import (
	"os"
	"strings"

	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/observability/logger"
	"github.com/bidworks/clearhouse/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		metrics.New,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	debug := cfg.Environment != "production"
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		Format:              strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
