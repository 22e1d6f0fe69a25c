package notify_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/mocks"
	"github.com/xkilldash9x/patrol-cli/internal/notify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func newDispatcher(logger *zap.Logger, transports ...notify.Transport) *notify.Dispatcher {
	return notify.NewDispatcher(logger, rate.Inf, 1, time.Second, transports...)
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture-demo-visit-ts.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	return path
}

func TestNotifyWithoutTransports(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := newDispatcher(zap.New(core))

	assert.False(t, d.Enabled())
	assert.NotPanics(t, func() { d.Notify(context.Background(), "hello", "") })
	assert.Equal(t, 1, logs.FilterMessage("No notification transport configured; skipping notification.").Len())
}

func TestNotifySendsTextThenAttachment(t *testing.T) {
	path := writeArtifact(t)

	tr := &mocks.MockAttachmentTransport{}
	tr.On("Name").Return("telegram")
	tr.On("SendText", mock.Anything, "demo succeeded").Return(notify.Response{OK: true, Status: "200 OK"}, nil).Once()
	tr.On("SendAttachment", mock.Anything, path, filepath.Base(path)).Return(notify.Response{OK: true, Status: "200 OK"}, nil).Once()

	newDispatcher(zaptest.NewLogger(t), tr).Notify(context.Background(), "demo succeeded", path)

	tr.AssertExpectations(t)
}

func TestNotifySkipsAttachment(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		tr := &mocks.MockAttachmentTransport{}
		tr.On("Name").Return("telegram")
		tr.On("SendText", mock.Anything, "x").Return(notify.Response{OK: true}, nil).Once()

		newDispatcher(zaptest.NewLogger(t), tr).Notify(context.Background(), "x", filepath.Join(t.TempDir(), "gone.png"))

		tr.AssertExpectations(t)
		tr.AssertNotCalled(t, "SendAttachment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("text only transport", func(t *testing.T) {
		tr := &mocks.MockTransport{}
		tr.On("Name").Return("nats")
		tr.On("SendText", mock.Anything, "x").Return(notify.Response{OK: true}, nil).Once()

		newDispatcher(zaptest.NewLogger(t), tr).Notify(context.Background(), "x", writeArtifact(t))
		tr.AssertExpectations(t)
	})
}

func TestNotifyFailuresAreLoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	path := writeArtifact(t)
	longBody := strings.Repeat("E", 5000)

	tr := &mocks.MockAttachmentTransport{}
	tr.On("Name").Return("telegram")
	tr.On("SendText", mock.Anything, "x").Return(notify.Response{OK: false, Status: "500 Internal Server Error", Body: longBody}, nil).Once()
	tr.On("SendAttachment", mock.Anything, path, mock.Anything).Return(notify.Response{}, errors.New("connection reset")).Once()

	assert.NotPanics(t, func() {
		newDispatcher(zap.New(core), tr).Notify(context.Background(), "x", path)
	})
	tr.AssertExpectations(t)

	rejected := logs.FilterMessage("Notification rejected.").All()
	require.Len(t, rejected, 1)
	fields := rejected[0].ContextMap()
	assert.Equal(t, "500 Internal Server Error", fields["status"])
	assert.Equal(t, "NotificationTransportError", fields["reason"])
	body := fields["body"].(string)
	assert.Equal(t, 1000+len("... (truncated)"), len(body))
	assert.True(t, strings.HasSuffix(body, "... (truncated)"))

	assert.Equal(t, 1, logs.FilterMessage("Notification failed.").Len(), "attachment failure is logged on its own")
}

func TestNotifyContinuesAcrossTransports(t *testing.T) {
	broken := &mocks.MockTransport{}
	broken.On("Name").Return("nats")
	broken.On("SendText", mock.Anything, "x").Return(notify.Response{}, errors.New("no servers")).Once()

	healthy := &mocks.MockTransport{}
	healthy.On("Name").Return("telegram")
	healthy.On("SendText", mock.Anything, "x").Return(notify.Response{OK: true}, nil).Once()

	newDispatcher(zaptest.NewLogger(t), broken, healthy).Notify(context.Background(), "x", "")

	broken.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestNotifyResult(t *testing.T) {
	path := writeArtifact(t)
	result := schemas.SessionResult{
		ID:            "4f1c",
		Target:        schemas.Target{Label: "demo", Destination: "https://example.test"},
		Status:        schemas.StatusFailed,
		FailureReason: "TargetElementNotFound",
		Artifact:      &schemas.ArtifactRef{FileName: filepath.Base(path), Path: path},
	}

	chat := &mocks.MockAttachmentTransport{}
	chat.On("Name").Return("telegram")
	chat.On("SendText", mock.Anything, notify.Summary(result)).Return(notify.Response{OK: true}, nil).Once()
	chat.On("SendAttachment", mock.Anything, path, filepath.Base(path)).Return(notify.Response{OK: true}, nil).Once()

	bus := &mocks.MockResultTransport{}
	bus.On("Name").Return("nats")
	bus.On("SendResult", mock.Anything, result).Return(notify.Response{OK: true}, nil).Once()

	newDispatcher(zaptest.NewLogger(t), chat, bus).NotifyResult(context.Background(), result)

	chat.AssertExpectations(t)
	bus.AssertExpectations(t)
	bus.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything)
}

func TestNotifyTextReachesResultTransports(t *testing.T) {
	bus := &mocks.MockResultTransport{}
	bus.On("Name").Return("nats")
	bus.On("SendText", mock.Anything, "patrol started").Return(notify.Response{OK: true}, nil).Once()

	newDispatcher(zaptest.NewLogger(t), bus).Notify(context.Background(), "patrol started", "")

	bus.AssertExpectations(t)
	bus.AssertNotCalled(t, "SendResult", mock.Anything, mock.Anything)
}

func TestFromConfigWithoutCredentials(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := config.NewDefaultConfig().Notify()
	cfg.Telegram.BotToken = "123456:ABCDEFGHIJKLMNOP"

	d, closeFn := notify.FromConfig(zap.New(core), cfg)
	defer closeFn()

	assert.False(t, d.Enabled(), "chat id is missing")
	entries := logs.FilterMessage("Telegram credentials missing; Telegram notifications disabled.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "123456...MNOP", entries[0].ContextMap()["bot_token"])
}

func TestSummary(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := schemas.SessionResult{
		Target:        schemas.Target{Label: "a<b>", Destination: "https://example.test"},
		Profile:       "pixel-7",
		StartedAt:     start,
		FinishedAt:    start.Add(12 * time.Second),
		Status:        schemas.StatusFailed,
		FailureReason: "TargetElementNotFound",
		Artifact:      &schemas.ArtifactRef{FileName: "capture-a_b_-notfound-x.png"},
	}

	s := notify.Summary(r)
	assert.Contains(t, s, "<b>a&lt;b&gt;</b> failed (TargetElementNotFound)")
	assert.Contains(t, s, "Profile: pixel-7")
	assert.Contains(t, s, "Duration: 12s")
	assert.Contains(t, s, "<code>capture-a_b_-notfound-x.png</code>")
	assert.NotContains(t, s, "Query:")
}
