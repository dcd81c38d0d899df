// Package logging builds the process-wide zap logger.
package logging

import "go.uber.org/zap"

func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
