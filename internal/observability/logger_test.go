// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// lockedBuffer lets the zap core and the assertions share a buffer safely.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf := &lockedBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "patrol",
			Colors:      config.ColorConfig{Info: "green"},
		}, buf)
		GetLogger().Info("visit finished")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "visit finished")
		assert.Contains(t, output, colorGreen+"INFO"+colorReset)
		assert.Contains(t, output, "patrol.")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "json-test"}, buf)
		GetLogger().Warn("tick skipped", zap.String("reason", "busy"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "json-test", entry["logger"])
		assert.Equal(t, "tick skipped", entry["msg"])
		assert.Equal(t, "busy", entry["reason"])
	})

	t.Run("should honor the level threshold", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, buf)
		GetLogger().Info("hidden")
		Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		logFile := filepath.Join(t.TempDir(), "patrol.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: logFile, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))
		GetLogger().Debug("to the file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "to the file")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		first := &lockedBuffer{}
		second := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, first)
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, second)
		GetLogger().Info("once")
		Sync()

		assert.Contains(t, first.String(), "once")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
}

func TestEventLog(t *testing.T) {
	t.Run("writes ISO prefixed lines", func(t *testing.T) {
		buf := &lockedBuffer{}
		el := NewEventLog(buf)
		el.Record("session demo succeeded")
		el.Recordf("tick skipped: %s", "busy")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		pattern := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z\] `)
		assert.Regexp(t, pattern, lines[0])
		assert.True(t, strings.HasSuffix(lines[0], "session demo succeeded"))
		assert.True(t, strings.HasSuffix(lines[1], "tick skipped: busy"))
	})

	t.Run("appends across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "events.log")

		el, err := OpenEventLog(path)
		require.NoError(t, err)
		el.Record("first")
		el.Close()

		el, err = OpenEventLog(path)
		require.NoError(t, err)
		el.Record("second")
		el.Close()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(string(content), "\n"))
		assert.Contains(t, string(content), "first")
		assert.Contains(t, string(content), "second")
	})

	t.Run("nil and empty logs discard", func(t *testing.T) {
		var nilLog *EventLog
		assert.NotPanics(t, func() { nilLog.Record("x"); nilLog.Close() })

		el, err := OpenEventLog("")
		require.NoError(t, err)
		assert.NotPanics(t, func() { el.Recordf("%d", 1); el.Close() })
	})
}

func TestMetrics(t *testing.T) {
	before := testutil.ToFloat64(metricTicksSkipped)
	RecordTickSkipped()
	assert.Equal(t, before+1, testutil.ToFloat64(metricTicksSkipped))

	evicted := testutil.ToFloat64(metricArtifactsEvicted)
	RecordEvictions(0)
	RecordEvictions(3)
	assert.Equal(t, evicted+3, testutil.ToFloat64(metricArtifactsEvicted))

	failed := testutil.ToFloat64(metricSessions.WithLabelValues("failed"))
	RecordSession("failed", "NavigationTimeout", 12)
	assert.Equal(t, failed+1, testutil.ToFloat64(metricSessions.WithLabelValues("failed")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metricSessionFailures.WithLabelValues("NavigationTimeout")), 1.0)

	RecordNotificationFailure("telegram")
	assert.GreaterOrEqual(t, testutil.ToFloat64(metricNotificationsFailed.WithLabelValues("telegram")), 1.0)
}
