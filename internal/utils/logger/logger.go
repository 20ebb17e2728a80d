package logger

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// New создает логгер по окружению: local цветной вывод, dev и prod JSON
func New(env string) *slog.Logger {
	return build(env, os.Stdout, "")
}

// NewWithLevel как New, но с явным уровнем для dev и prod
func NewWithLevel(env, level string) *slog.Logger {
	return build(env, os.Stdout, level)
}

// NewWithFile пишет JSON в файл с ротацией; используется фоновым режимом клиента
func NewWithFile(env, path string) *slog.Logger {
	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := slog.LevelInfo
	if env != envProd {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level}))
}

// NewConsole цветной вывод в stderr с заданным уровнем для интерактивных команд
func NewConsole(level string) *slog.Logger {
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: parseLevel(level, slog.LevelWarn),
		},
	}
	return slog.New(opts.NewPrettyHandler(os.Stderr))
}

func build(env string, out io.Writer, level string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)}))
	default:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)}))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	return slog.New(opts.NewPrettyHandler(os.Stdout))
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return fallback
}
