package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("test")
	log.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "subsystem=test")
}

func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test2")

	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log.Info("after switch", "key", "value")
	assert.Contains(t, buf.String(), "after switch")
}

func TestLogger_Cached(t *testing.T) {
	assert.Same(t, Logger("cached"), Logger("cached"))
}

func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("leveled")
	SetLevel("leveled", slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown")

	// 派生 Logger 共享级别
	child := log.With("peer", "x")
	SetLevel("leveled", slog.LevelError)
	child.Warn("hidden too")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig("orchestrator=debug, relay=warn, error", "json", "1")
	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("orchestrator"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("relay"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("other"))
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)

	def := ParseConfig("", "", "")
	assert.Equal(t, slog.LevelInfo, def.DefaultLevel)
	assert.Equal(t, FormatText, def.Format)
	assert.False(t, def.AddSource)

	// 非法级别被忽略
	bad := ParseConfig("kad=loud,nonsense", "", "false")
	assert.Equal(t, slog.LevelInfo, bad.DefaultLevel)
	_, ok := bad.SubsystemLevels["kad"]
	assert.False(t, ok)
}

func TestRecorder(t *testing.T) {
	log, rec := NewRecorder()
	log.With("module", "relay").Warn("预留被拒绝", "src", "peer-a")
	log.Debug("其他事件")

	entries := rec.Entries()
	require.Len(t, entries, 2)

	e, ok := rec.Find("预留被拒绝")
	require.True(t, ok)
	assert.Equal(t, slog.LevelWarn, e.Level)
	assert.Equal(t, "relay", e.Attrs["module"])
	assert.Equal(t, "peer-a", e.Attrs["src"])
	assert.Equal(t, 1, rec.Count(slog.LevelDebug))

	rec.Reset()
	assert.Empty(t, rec.Entries())
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
