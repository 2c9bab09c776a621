package messages

import (
	"context"
	"log/slog"
)

// LevelCriticalSlog sits above slog.LevelError so critical messages stand out in log queries.
const LevelCriticalSlog = slog.LevelError + 4

// SlogSink writes messages to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over logger; nil uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogSink{logger: logger}
}

// Send implements Sink.
func (s *SlogSink) Send(m Message) {
	attrs := m.Attrs

	level := slog.LevelInfo

	switch m.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelInfo:
	case LevelSuccess:
		attrs = append([]any{"outcome", "success"}, attrs...)
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	case LevelCritical:
		level = LevelCriticalSlog
	}

	s.logger.Log(context.Background(), level, m.Text, attrs...)
}
