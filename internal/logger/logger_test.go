package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Config(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json stdout", config: Config{Level: "debug", Format: "json", Output: "stdout"}},
		{name: "text stderr", config: Config{Level: "info", Format: "text", Output: "stderr"}},
		{name: "empty level defaults to info", config: Config{Format: "text", Output: "stderr"}},
		{name: "json file", config: Config{Level: "warn", Format: "json", Output: filepath.Join(dir, "out.log")}},
		{name: "text with json side file", config: Config{Level: "info", Format: "text", Output: "stderr", File: filepath.Join(dir, "side", "berrus.log")}},
		{name: "invalid level", config: Config{Level: "verbose", Format: "json", Output: "stdout"}, wantErr: true},
		{name: "invalid format", config: Config{Level: "debug", Format: "xml", Output: "stdout"}, wantErr: true},
		{name: "invalid output path", config: Config{Level: "debug", Format: "json", Output: "/dev/null/nested/file.log"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
			assert.NoError(t, log.Close())
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	log := createTestLogger(t, buf, "json")

	log.Debug("debug message", Field{Key: "k", Value: "v"})
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message", errors.New("boom"), Field{Key: "context", Value: "value"})

	output := buf.String()
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
	assert.Contains(t, output, "boom")
}

func TestLogger_ContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	log := createTestLogger(t, buf, "json")
	ctx := context.Background()

	log.DebugCtx(ctx, "debug ctx")
	log.InfoCtx(ctx, "info ctx")
	log.WarnCtx(ctx, "warn ctx")
	log.ErrorCtx(ctx, "error ctx", errors.New("ctx failure"))

	output := buf.String()
	for _, want := range []string{"debug ctx", "info ctx", "warn ctx", "error ctx", "ctx failure"} {
		assert.Contains(t, output, want)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []bool // debug, info, warn, error
	}{
		{level: "debug", want: []bool{true, true, true, true}},
		{level: "info", want: []bool{false, true, true, true}},
		{level: "warn", want: []bool{false, false, true, true}},
		{level: "error", want: []bool{false, false, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log, err := New(Config{Level: tt.level, Format: "json", Writer: buf})
			require.NoError(t, err)

			log.Debug("debug message")
			log.Info("info message")
			log.Warn("warn message")
			log.Error("error message", nil)

			output := buf.String()
			got := []bool{
				strings.Contains(output, "debug message"),
				strings.Contains(output, "info message"),
				strings.Contains(output, "warn message"),
				strings.Contains(output, "error message"),
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	log := createTestLogger(t, buf, "json")

	log.With(Field{Key: "component", Value: "observer"}).Info("scheduled")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "scheduled", record["msg"])
	assert.Equal(t, "observer", record["component"])
}

func TestLogger_FileFanout(t *testing.T) {
	buf := &bytes.Buffer{}
	path := filepath.Join(t.TempDir(), "berrus.log")

	log, err := New(Config{Level: "info", Format: "text", Writer: buf, File: path})
	require.NoError(t, err)

	log.Info("fact relayed", Field{Key: "type", Value: "JOB_DETECTED"})
	require.NoError(t, log.Close())

	assert.Contains(t, buf.String(), "fact relayed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "fact relayed", record["msg"])
	assert.Equal(t, "JOB_DETECTED", record["type"])
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("discarded")
	assert.NoError(t, log.Close())
}

// createTestLogger создаёт logger, пишущий в буфер
func createTestLogger(t *testing.T, buf *bytes.Buffer, format string) *Logger {
	t.Helper()

	log, err := New(Config{Level: "debug", Format: format, Writer: buf})
	require.NoError(t, err)
	return log
}
