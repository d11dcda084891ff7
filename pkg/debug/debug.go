// Package debug provides category-based debug logging for qrgate.
//
// Categories select WHAT to trace (QRGATE_DEBUG or observability.debug),
// the level selects HOW MUCH (QRGATE_LOG_LEVEL or observability.log_level).
//
//	debug.Log("downstream", "request", "url", url, "status", status)
//	if debug.Enabled("qr") { /* expensive formatting */ }
//
// Categories: qr, auth, pipeline, downstream, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. Full downstream bodies are only
// logged at this level.
const LevelTrace = slog.LevelDebug - 4

// categories is written by Init at startup and read-only afterwards.
var categories = parseCategories(os.Getenv("QRGATE_DEBUG"))

// Init installs the default slog handler and the enabled categories.
// Environment variables take precedence over the configured values.
func Init(configCategories, configLevel string) {
	InitWriter(os.Stderr, configCategories, configLevel)
}

// InitWriter is Init with an explicit output, used by tests.
func InitWriter(w io.Writer, configCategories, configLevel string) {
	categories = parseCategories(firstNonEmpty(os.Getenv("QRGATE_DEBUG"), configCategories))

	level := ParseLevel(firstNonEmpty(os.Getenv("QRGATE_LOG_LEVEL"), configLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Enabled reports whether debug output is active for the category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug record tagged with the category. No-op when the
// category is disabled.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level record for the category.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceEnabled reports whether TRACE output would be emitted for the category.
func TraceEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories in sorted order.
func Categories() []string {
	out := make([]string, 0, len(categories))
	for k := range categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Truncate shortens s to maxLen bytes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
