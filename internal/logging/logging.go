package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// New builds a text slog logger at the named level (debug, info, warn or
// error) and installs it as the default. slog.SetDefault also sends the
// standard log package through the handler.
func New(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}
