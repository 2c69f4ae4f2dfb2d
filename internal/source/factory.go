package source

import (
	"fmt"

	"github.com/rs/zerolog"
)

// New creates a source for the configured backend.
// The websocket backend needs a live connection and is built with NewWebSocketSource.
func New(cfg Config, logger zerolog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source config: %w", err)
	}

	switch cfg.Backend {
	case BackendDevice:
		return newDeviceSource(cfg, logger)
	case BackendFile:
		return NewFileSource(cfg, logger), nil
	case BackendWebSocket:
		return nil, fmt.Errorf("websocket sources are created per connection")
	default:
		return nil, fmt.Errorf("unsupported audio backend: %s", cfg.Backend)
	}
}
