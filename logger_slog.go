package wsfeed

import (
	"fmt"
	"log/slog"
)

// slogLogger adapts a *slog.Logger to the logger interface so callers can
// plug the handler they already run (JSON, text, whatever).
type slogLogger struct {
	inner *slog.Logger
}

// NewSlogLogger wraps l for use as the client logger. A nil l falls back
// to slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{inner: l}
}

func (l *slogLogger) WithField(key string, value any) logger {
	return &slogLogger{inner: l.inner.With(key, value)}
}

func (l *slogLogger) Debug(args ...any) {
	l.inner.Debug(fmt.Sprint(args...))
}

func (l *slogLogger) Debugf(format string, args ...any) {
	l.inner.Debug(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Debugln(args ...any) {
	l.inner.Debug(fmt.Sprintln(args...))
}

func (l *slogLogger) Info(args ...any) {
	l.inner.Info(fmt.Sprint(args...))
}

func (l *slogLogger) Infof(format string, args ...any) {
	l.inner.Info(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Infoln(args ...any) {
	l.inner.Info(fmt.Sprintln(args...))
}

func (l *slogLogger) Warn(args ...any) {
	l.inner.Warn(fmt.Sprint(args...))
}

func (l *slogLogger) Warnf(format string, args ...any) {
	l.inner.Warn(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Warnln(args ...any) {
	l.inner.Warn(fmt.Sprintln(args...))
}

func (l *slogLogger) Error(args ...any) {
	l.inner.Error(fmt.Sprint(args...))
}

func (l *slogLogger) Errorf(format string, args ...any) {
	l.inner.Error(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Errorln(args ...any) {
	l.inner.Error(fmt.Sprintln(args...))
}
