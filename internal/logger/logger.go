package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger writes structured JSON records tagged with the service name,
// the action being performed and the request (checkout attempt) id.
type Logger struct {
	service  string
	hostname string
	handler  *slog.Logger
}

// New creates a logger writing to stdout at the given level.
func New(service, level string) *Logger {
	return NewWithWriter(service, level, os.Stdout)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(service, level string, w io.Writer) *Logger {
	hostname, _ := os.Hostname()

	handler := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))

	return &Logger{
		service:  service,
		hostname: hostname,
		handler:  handler,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter("nop", "error", io.Discard)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func (l *Logger) log(level slog.Level, action, requestID, message string, attrs []slog.Attr) {
	if l == nil {
		return
	}
	base := []slog.Attr{
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("action", action),
		slog.String("request_id", requestID),
	}
	l.handler.LogAttrs(context.Background(), level, message, append(base, attrs...)...)
}

func (l *Logger) Info(action, requestID, message string, attrs ...slog.Attr) {
	l.log(slog.LevelInfo, action, requestID, message, attrs)
}

func (l *Logger) Debug(action, requestID, message string, attrs ...slog.Attr) {
	l.log(slog.LevelDebug, action, requestID, message, attrs)
}

func (l *Logger) Warn(action, requestID, message string, attrs ...slog.Attr) {
	l.log(slog.LevelWarn, action, requestID, message, attrs)
}

func (l *Logger) Error(action, requestID, message string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.Group("error", slog.String("msg", err.Error())))
	}
	l.log(slog.LevelError, action, requestID, message, attrs)
}
