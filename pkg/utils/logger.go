// Package utils предоставляет логгер и вспомогательные функции обработки текста.
//
// Логгер построен на log/slog с обработчиком tint. По умолчанию пишет
// в .log файл в текущей директории с timestamp в имени. MCP серверы
// пишут в stderr, потому что stdout занят протоколом.
package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LogOptions - параметры инициализации логгера.
type LogOptions struct {
	// Dir - директория для лог-файла. Пусто = текущая директория.
	Dir string
	// Prefix - префикс имени файла (wxagent-2025-12-27-15-30.log).
	Prefix string
	// Stderr - писать в stderr вместо файла.
	Stderr bool
	// Debug включает уровень DEBUG.
	Debug bool
	// Writer - явный приёмник (тесты). Имеет приоритет над Stderr и Dir.
	Writer io.Writer
}

var (
	logMutex sync.Mutex
	logFile  *os.File
	logger   = slog.New(slog.DiscardHandler)
)

// InitLogger настраивает глобальный логгер.
//
// Повторный вызов закрывает предыдущий файл и открывает новый.
func InitLogger(opts LogOptions) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	closeFileLocked()

	var out io.Writer
	noColor := true
	switch {
	case opts.Writer != nil:
		out = opts.Writer
	case opts.Stderr:
		out = os.Stderr
		noColor = false
	default:
		prefix := opts.Prefix
		if prefix == "" {
			prefix = "wxagent"
		}
		if opts.Dir != "" {
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create log dir: %w", err)
			}
		}
		// Имя файла: wxagent-2025-12-27-15-30.log
		filename := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("2006-01-02-15-04")))

		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = f
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	logger = slog.New(tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    noColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	}))

	if logFile != nil {
		logger.Info("Logger initialized", "file", logFile.Name())
	}
	return nil
}

// Logger возвращает текущий *slog.Logger.
func Logger() *slog.Logger {
	logMutex.Lock()
	defer logMutex.Unlock()
	return logger
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	Logger().Info(msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	Logger().Error(msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	Logger().Debug(msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	Logger().Warn(msg, keyvals...)
}

// Close закрывает лог-файл и возвращает логгер в режим discard.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	closeFileLocked()
	logger = slog.New(slog.DiscardHandler)
}

func closeFileLocked() {
	if logFile == nil {
		return
	}
	if err := logFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
	}
	logFile = nil
}
