package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogLevel is the value of logging.level and --log-level.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug" // per-transition encoder and scheduler detail
)

var slogLevels = map[LogLevel]slog.Level{
	LogLevelError: slog.LevelError,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelDebug: slog.LevelDebug,
}

// parseLogLevel accepts any case and "warning" as an alias of warn.
func parseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if l == "warning" {
		l = LogLevelWarn
	}
	if _, ok := slogLevels[l]; !ok {
		return "", fmt.Errorf("unknown log level %q, want error, warn, info or debug", s)
	}
	return l, nil
}

func (l LogLevel) slogLevel() slog.Level {
	if lv, ok := slogLevels[l]; ok {
		return lv
	}
	return slog.LevelInfo
}

// setupLogger returns the daemon's root logger. Components derive theirs
// with a "component" attribute.
func setupLogger(w io.Writer, level LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()}))
}
