package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the engine's process-wide slog.Logger. LOG_FORMAT=json
// selects the JSON handler for deployed environments; anything else gets
// human-readable text. Both handlers attach source locations.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
