package observability

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventLog is the append-only companion log: one "[ISO-8601] message" line per event.
// The zero value and a nil *EventLog discard everything.
type EventLog struct {
	logger *zap.Logger
	close  func()
}

// OpenEventLog opens (or creates) path in append mode. An empty path yields a
// log that discards.
func OpenEventLog(path string) (*EventLog, error) {
	if path == "" {
		return &EventLog{}, nil
	}
	ws, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %q: %w", path, err)
	}
	el := NewEventLog(ws)
	el.close = closeFn
	return el, nil
}

// NewEventLog writes event lines to ws.
func NewEventLog(ws zapcore.WriteSyncer) *EventLog {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.UTC().Format(isoLayout) + "]")
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, zapcore.DebugLevel)
	return &EventLog{logger: zap.New(core)}
}

// Record appends one line.
func (e *EventLog) Record(msg string) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Info(msg)
}

// Recordf appends one formatted line.
func (e *EventLog) Recordf(format string, args ...any) {
	e.Record(fmt.Sprintf(format, args...))
}

// Close flushes and releases the underlying file.
func (e *EventLog) Close() {
	if e == nil || e.logger == nil {
		return
	}
	_ = e.logger.Sync()
	if e.close != nil {
		e.close()
	}
}
