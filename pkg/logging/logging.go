// Package logging builds the process-wide zap logger and scrubs credentials
// from anything that is about to be logged.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a logger appropriate for the environment: human-readable in
// "local", JSON everywhere else.
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
