package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func Init() {
	InitWriter(os.Stderr, os.Getenv("LOG_LEVEL"))
}

// InitWriter installs the default JSON logger writing to w at the named level.
func InitWriter(w io.Writer, levelName string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(levelName),
	})))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
