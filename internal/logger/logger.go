package logger

import "go.uber.org/zap"

// New builds a production JSON logger writing to stdout at the given level.
func New(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	config.Level = lvl

	return config.Build()
}
