package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"api_key", "sk-123", "session_id", "s1", "input_tokens", 42, "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "session_id", "s1", "input_tokens", 42, "dangling"}, got)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("session_id", "s1").Info("answer accepted", "correct", true, "dsn", "postgres://x")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s1", fields["session_id"])
	assert.Equal(t, true, fields["correct"])
	assert.Equal(t, "[REDACTED]", fields["dsn"])
}

func TestNewWithFile(t *testing.T) {
	l, err := New(Options{Mode: "prod", Level: "debug", File: filepath.Join(t.TempDir(), "cat.log")})
	require.NoError(t, err)
	l.Info("hello")
	l.Sync()
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Error("ignored", "k", "v") })
}
