// Package logging provides zap logger construction and helpers for
// sanitizing values before they are logged.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root logger for the engine. The "local" environment gets
// a human-readable development logger; everything else gets production
// JSON output.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
