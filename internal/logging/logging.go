// Package logging configures structured logging for the archive engine:
// Setup builds a JSON *slog.Logger from a Config, and OrDefault substitutes
// slog.Default() for a nil logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how log records are written.
type Config struct {
	// Level is the minimum level emitted (debug, info, warn, error).
	Level string
	// FilePath is where to write JSON log records. Empty disables file output.
	FilePath string
	// WriteToStderr additionally mirrors records to stderr.
	WriteToStderr bool
}

// DefaultConfig returns info-level logging to stderr only.
func DefaultConfig() Config {
	return Config{Level: "info", WriteToStderr: true}
}

// Setup builds a logger per cfg and a cleanup func to flush/close the file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	var file *os.File
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		file = f
		writers = append(writers, f)
	}
	if cfg.WriteToStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer
	if len(writers) == 1 {
		out = writers[0]
	} else {
		out = io.MultiWriter(writers...)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler)

	cleanup := func() {
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

// parseLevel converts a level name to an slog.Level, defaulting to Info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OrDefault returns logger, or slog.Default() if logger is nil, so a nil
// *slog.Logger passed by a caller never panics.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
