package wsfeed

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFieldsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	log := newWriterLogger(&buf).WithField("channel", "threats")

	log.Infof("reconnecting in %s", "2s")
	log.Warnln("dropping frame")

	out := buf.String()
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "WARN")
	require.Contains(t, out, "channel=threats")
	require.Contains(t, out, "reconnecting in 2s")
}

func TestWriterLoggerWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newWriterLogger(&buf)
	parent.WithField("component", "dispatcher")

	parent.Info("plain")
	require.False(t, strings.Contains(buf.String(), "component=dispatcher"))
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	log.WithField("channel", "tactical").Debugf("dial %d", 1)
	log.Error("boom")

	out := buf.String()
	require.Contains(t, out, "channel=tactical")
	require.Contains(t, out, "dial 1")
	require.Contains(t, out, "boom")
}

func TestSlogLoggerNilFallsBackToDefault(t *testing.T) {
	require.NotPanics(t, func() {
		NewSlogLogger(nil).Debug("quiet")
	})
}

func TestNoopLoggerSwallowsEverything(t *testing.T) {
	log := noopLogger{}.WithField("k", "v")
	log.Debug("a")
	log.Infof("%d", 1)
	log.Warnln("b")
	log.Errorln("c")
}
