// Package logger is the daemon's printf-style logging facade over slog.
// The level is mutable at runtime so a config reload can raise verbosity
// on a live process.
package logger

import (
	"fmt"
	"os"
	"strings"

	"log/slog"
)

var level slog.LevelVar

var std = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))

// SetLevel parses a level name; unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

func Debugf(format string, v ...any) { std.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { std.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { std.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { std.Error(fmt.Sprintf(format, v...)) }
