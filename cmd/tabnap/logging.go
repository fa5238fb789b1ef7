package main

import (
	"io"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/internal/appconfig"
)

// newServeLogger returns the serve logger and the rotating file it writes to, if any.
func newServeLogger(cfg appconfig.LoggingConfig) (pslog.Logger, io.Closer) {
	opts := pslog.Options{Mode: pslog.ModeConsole}
	applyLevel(&opts, cfg.Level)
	if strings.TrimSpace(cfg.File) == "" {
		return pslog.LoggerFromEnv(
			pslog.WithEnvWriter(os.Stderr),
			pslog.WithEnvOptions(opts),
		), nil
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	opts.Mode = pslog.ModeStructured
	opts.NoColor = true
	return pslog.LoggerFromEnv(
		pslog.WithEnvWriter(io.MultiWriter(os.Stderr, file)),
		pslog.WithEnvOptions(opts),
	), file
}

func applyLevel(opts *pslog.Options, level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		opts.MinLevel = pslog.InfoLevel
	}
}
