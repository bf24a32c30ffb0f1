package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted in telemetry.logging.format.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console" // text without timestamps
)

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Config describes the process logger.
type Config struct {
	Level     string // debug, info, warn or error; empty means info
	Format    string // json, text or console; empty means json
	AddSource bool
	Writer    io.Writer // defaults to os.Stderr

	// LevelVar, when set, receives the parsed level and is consulted on every
	// record, so the level can be changed after New returns.
	LevelVar *slog.LevelVar
}

// New builds a logger whose records carry the context fields added by
// WithRequestID, WithCheckMode and WithReloadID.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var leveler slog.Leveler = level
	if cfg.LevelVar != nil {
		cfg.LevelVar.Set(level)
		leveler = cfg.LevelVar
	}
	opts := &slog.HandlerOptions{Level: leveler, AddSource: cfg.AddSource}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	case FormatConsole:
		opts.ReplaceAttr = dropTime
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: unknown format %q", cfg.Format)
	}
	return slog.New(NewContextHandler(h)), nil
}

// ParseLevel maps a configured level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(s)]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("invalid log level: unknown level %q", s)
	}
	return level, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
