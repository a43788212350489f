// Package logging builds the process logger and scrubs secrets out of
// values before they are logged.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root logger. Production environments get the JSON encoder
// at info level; anything else gets the development console encoder at
// debug level. A non-empty level overrides the preset's default.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production", "prod":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = parsed
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
