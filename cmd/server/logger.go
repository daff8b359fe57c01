package main

import "go.uber.org/zap"

// configureLogger swaps the bootstrap production logger for a development
// one when LOG_DEVELOPMENT is set. On error the bootstrap logger is returned.
func configureLogger(bootstrap *zap.Logger, development bool) (*zap.Logger, error) {
	if !development {
		return bootstrap, nil
	}

	dev, err := zap.NewDevelopment()
	if err != nil {
		return bootstrap, err
	}
	_ = bootstrap.Sync()
	return dev, nil
}
