package logger

import "go.uber.org/zap"

// New builds the process logger; production gets the sampled JSON encoder.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
