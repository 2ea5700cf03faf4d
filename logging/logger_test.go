package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"", LogLevelInfo},
		{"nonsense", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestZerologAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LogLevelDebug)

	l.Info("runner.turn.start", "agent", "triage", "turn", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "runner.turn.start", entry["message"])
	assert.Equal(t, "triage", entry["agent"])
	assert.Equal(t, float64(1), entry["turn"])
	assert.Equal(t, "info", entry["level"])
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewZerolog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agentloop.log")
	l, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)
	l.Debug("memory.sql.append", "session_id", "s1")
	require.NoError(t, l.Close())
}

func TestWith_BindsArgs(t *testing.T) {
	var buf bytes.Buffer
	l := With(NewSlogLogger(&buf, LogLevelInfo, "json", false), "run_id", "r-1")
	l.Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "r-1", entry["run_id"])
	assert.Equal(t, "v", entry["k"])
}

type recordingLogger struct {
	args [][]any
}

func (r *recordingLogger) Debug(string, ...any)       {}
func (r *recordingLogger) Info(_ string, args ...any) { r.args = append(r.args, args) }
func (r *recordingLogger) Warn(string, ...any)        {}
func (r *recordingLogger) Error(string, ...any)       {}

func TestWith_WrapsForeignLogger(t *testing.T) {
	rec := &recordingLogger{}
	With(rec, "a", 1).Info("x", "b", 2)
	require.Len(t, rec.args, 1)
	assert.Equal(t, []any{"a", 1, "b", 2}, rec.args[0])
	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "a", 1))
}
