package commands

import "log/slog"

// parseLogLevel maps a config/flag log level string onto a slog.Level,
// defaulting to info for anything unrecognized.
func parseLogLevel(level string) slog.Level {
	switch level {
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
