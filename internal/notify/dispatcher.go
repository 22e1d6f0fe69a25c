// Package notify delivers visit summaries to external channels on a best-effort
// basis. Nothing in this package returns an error to the session.
package notify

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const reasonTransport = "NotificationTransportError"

// Dispatcher fans a notification out to every configured transport.
type Dispatcher struct {
	logger     *zap.Logger
	transports []Transport
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewDispatcher returns a dispatcher over transports. An empty list is valid
// and turns Notify into a logged no-op.
func NewDispatcher(logger *zap.Logger, limit rate.Limit, burst int, timeout time.Duration, transports ...Transport) *Dispatcher {
	if burst < 1 {
		burst = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		logger:     logger.Named("notify"),
		transports: transports,
		limiter:    rate.NewLimiter(limit, burst),
		timeout:    timeout,
	}
}

// FromConfig builds the transports the configuration has credentials for.
// Missing credentials or an unreachable NATS server degrade the dispatcher;
// they are logged, never returned. The returned func closes open connections.
func FromConfig(logger *zap.Logger, cfg config.NotifyConfig) (*Dispatcher, func()) {
	log := logger.Named("notify")
	var (
		transports []Transport
		closers    []func()
	)

	tg := cfg.Telegram
	if tg.Enabled() {
		t, err := newTelegramFromConfig(tg, cfg.Timeout)
		if err != nil {
			log.Warn("Telegram transport disabled.", zap.Error(err))
		} else {
			transports = append(transports, t)
			log.Info("Telegram transport enabled.",
				zap.String("bot_token", Mask(tg.BotToken)),
				zap.String("chat_id", Mask(tg.ChatID)))
		}
	} else {
		log.Warn("Telegram credentials missing; Telegram notifications disabled.",
			zap.String("bot_token", Mask(tg.BotToken)),
			zap.String("chat_id", Mask(tg.ChatID)))
	}

	if cfg.NATS.URL != "" {
		n, err := DialNATS(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.Name, cfg.Timeout)
		if err != nil {
			log.Warn("NATS transport disabled.", zap.Error(err))
		} else {
			transports = append(transports, n)
			closers = append(closers, n.Close)
			log.Info("NATS transport enabled.", zap.String("subject", cfg.NATS.Subject))
		}
	}

	d := NewDispatcher(logger, rate.Limit(cfg.RateLimit), cfg.Burst, cfg.Timeout, transports...)
	return d, func() {
		for _, c := range closers {
			c()
		}
	}
}

// Enabled reports whether any transport is configured.
func (d *Dispatcher) Enabled() bool { return len(d.transports) > 0 }

// Notify sends text to every transport, then the artifact to those that accept
// attachments when artifactPath names an existing file. Failures are logged
// with the response body cut to MaxBodyChars and otherwise ignored.
func (d *Dispatcher) Notify(ctx context.Context, text, artifactPath string) {
	d.dispatch(ctx, text, artifactPath, nil)
}

// NotifyResult reports a finished visit. Transports that implement
// ResultSender receive the result; the others get its Summary and the
// captured artifact.
func (d *Dispatcher) NotifyResult(ctx context.Context, result schemas.SessionResult) {
	artifactPath := ""
	if result.Artifact != nil {
		artifactPath = result.Artifact.Path
	}
	d.dispatch(ctx, Summary(result), artifactPath, &result)
}

func (d *Dispatcher) dispatch(ctx context.Context, text, artifactPath string, result *schemas.SessionResult) {
	if len(d.transports) == 0 {
		d.logger.Info("No notification transport configured; skipping notification.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	hasArtifact := false
	if artifactPath != "" {
		if _, err := os.Stat(artifactPath); err == nil {
			hasArtifact = true
		} else if errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("Artifact missing; sending text only.", zap.String("artifact", artifactPath))
		} else {
			d.logger.Warn("Artifact unreadable; sending text only.", zap.String("artifact", artifactPath), zap.Error(err))
		}
	}

	for _, t := range d.transports {
		if rs, ok := t.(ResultSender); ok && result != nil {
			d.deliver(ctx, t.Name(), "result", func(ctx context.Context) (Response, error) {
				return rs.SendResult(ctx, *result)
			})
		} else {
			d.deliver(ctx, t.Name(), "text", func(ctx context.Context) (Response, error) {
				return t.SendText(ctx, text)
			})
		}

		if !hasArtifact {
			continue
		}
		sender, ok := t.(AttachmentSender)
		if !ok {
			continue
		}
		d.deliver(ctx, t.Name(), "attachment", func(ctx context.Context) (Response, error) {
			return sender.SendAttachment(ctx, artifactPath, filepath.Base(artifactPath))
		})
	}
}

func (d *Dispatcher) deliver(ctx context.Context, transport, kind string, send func(context.Context) (Response, error)) {
	log := d.logger.With(zap.String("transport", transport), zap.String("kind", kind))

	if err := d.limiter.Wait(ctx); err != nil {
		log.Warn("Notification dropped by rate limiter.", zap.String("reason", reasonTransport), zap.Error(err))
		observability.RecordNotificationFailure(transport)
		return
	}

	resp, err := send(ctx)
	switch {
	case err != nil:
		log.Warn("Notification failed.", zap.String("reason", reasonTransport), zap.Error(err))
		observability.RecordNotificationFailure(transport)
	case !resp.OK:
		log.Warn("Notification rejected.",
			zap.String("reason", reasonTransport),
			zap.String("status", resp.Status),
			zap.String("body", Truncate(resp.Body, MaxBodyChars)))
		observability.RecordNotificationFailure(transport)
	default:
		log.Debug("Notification delivered.", zap.String("status", resp.Status))
	}
}
