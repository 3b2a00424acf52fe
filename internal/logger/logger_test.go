package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()
	originalLevel := currentLevel.Load()
	originalFormat := currentFormat.Load()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		currentLevel.Store(originalLevel)
		currentFormat.Store(originalFormat)
		reconfigure()
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		for _, want := range []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("WarnLevelFiltersInfoAndDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("warn")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("ErrorAlwaysLogged", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")
		Error("boom")

		assert.Contains(t, buf.String(), "boom")
	})
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetLevel("LOUD")

	assert.Equal(t, LevelInfo, GetLevel())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warn", LevelWarn, true},
		{"error", LevelError, true},
		{"trace", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextFormat_TimestampPrefix(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	Info("Stopped.", KeyExitCode, 0, KeyTrigger, "signal")

	line := strings.TrimSpace(buf.String())
	pattern := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}\] \[INFO\] Stopped\. exit_code=0 trigger=signal$`)
	assert.Regexp(t, pattern, line)
}

func TestTextFormat_QuotesValuesWithSpaces(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	Error("teardown failed", Err(errors.New("disk went away")))

	assert.Contains(t, buf.String(), `error="disk went away"`)
}

func TestTextFormat_Groups(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	With("component", "supervisor").WithGroup("teardown").Info("done", "outcome", "success")

	out := buf.String()
	assert.Contains(t, out, "component=supervisor")
	assert.Contains(t, out, "teardown.outcome=success")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	Info("Shutting down alarm-clock", KeySignal, "terminated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Shutting down alarm-clock", entry["msg"])
	assert.Equal(t, "terminated", entry["signal"])
	assert.NotEmpty(t, entry["time"])
}

func TestContextLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	lc := NewLogContext("3f0c").WithComponent("supervisor").WithTrace("abc", "def")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "teardown started")

	out := buf.String()
	assert.Contains(t, out, "instance_id=3f0c")
	assert.Contains(t, out, "component=supervisor")
	assert.Contains(t, out, "trace_id=abc")
	assert.Contains(t, out, "span_id=def")
	assert.Less(t, strings.Index(out, "instance_id"), strings.Index(out, "trace_id"))
}

func TestLogContext_CloneIsIndependent(t *testing.T) {
	lc := NewLogContext("one")
	clone := lc.WithComponent("app")

	assert.Empty(t, lc.Component)
	assert.Equal(t, "app", clone.Component)
	assert.Nil(t, (*LogContext)(nil).Clone())
	assert.Nil(t, (*LogContext)(nil).WithTrace("abc", "def"))
	assert.Empty(t, lc.WithTrace("", "def").SpanID)
	assert.Nil(t, FromContext(context.Background()))
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Info("tick", "n", n)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
}

func TestInit_FileOutput(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "alarmclock.log")
	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))

	Info("written to file")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInit_BadFileOutput(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
