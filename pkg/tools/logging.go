package tools

import (
	"log"
	"strings"

	"github.com/rs/zerolog"
)

// zerologStdLogger adapts a zerolog logger for libraries that want a *log.Logger.
func zerologStdLogger(logger zerolog.Logger) *log.Logger {
	return log.New(lineWriter{logger: logger}, "", 0)
}

type lineWriter struct {
	logger zerolog.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	w.logger.Warn().Str("source", "mcp").Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
