package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

func ParseLogLevel(level string) (slog.Level, error) {
	var parsed slog.Level

	if level == "" {
		return slog.LevelInfo, nil
	}

	if err := parsed.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return parsed, fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}

	return parsed, nil
}

// NewLogger builds the process logger described by the log section.
func (s LogConfig) NewLogger(output io.Writer) (*slog.Logger, error) {
	level, err := ParseLogLevel(s.Level)
	if err != nil {
		return nil, err
	}

	handlerOptions := &slog.HandlerOptions{
		Level: level,
	}

	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, handlerOptions)), nil
	}

	return slog.New(slog.NewTextHandler(output, handlerOptions)), nil
}
