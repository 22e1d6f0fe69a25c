// File: internal/service/components.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/patrol-cli/internal/browser"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/history"
	"github.com/xkilldash9x/patrol-cli/internal/notify"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"github.com/xkilldash9x/patrol-cli/internal/profile"
	"github.com/xkilldash9x/patrol-cli/internal/retention"
	"github.com/xkilldash9x/patrol-cli/internal/scheduler"
	"github.com/xkilldash9x/patrol-cli/internal/session"
)

const browserShutdownTimeout = 30 * time.Second

// Components holds every long-lived dependency of the engine and owns their
// shutdown order.
type Components struct {
	Config     config.Interface
	Browser    *browser.Manager
	Artifacts  *retention.Store
	Dispatcher *notify.Dispatcher
	// History is nil when no database is configured or it was unreachable.
	History *history.Store
	Events  *observability.EventLog
	Runner  *session.Runner
	Rand    session.Rand

	logger   *zap.Logger
	closers  []func()
	shutdown sync.Once
}

// Option customises component construction.
type Option func(*options)

type options struct {
	launcher browser.Launcher
	rng      session.Rand
}

// WithLauncher replaces the chromedp browser manager.
func WithLauncher(l browser.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithRand fixes the random source shared by profile selection and pacing.
func WithRand(r session.Rand) Option {
	return func(o *options) { o.rng = r }
}

// NewComponents wires the engine from configuration. Missing notification
// credentials and an unreachable history database degrade the engine; a bad
// artifact directory or event log path is an error.
func NewComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...Option) (_ *Components, err error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = session.NewRand(time.Now().UnixNano())
	}

	c := &Components{Config: cfg, Rand: o.rng, logger: logger.Named("service")}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			c.Shutdown()
		}
	}()

	// 1. Event log
	c.Events, err = observability.OpenEventLog(cfg.Logger().EventLog)
	if err != nil {
		return nil, err
	}

	// 2. Retention store
	c.Artifacts, err = retention.Open(logger, cfg.Artifacts().Dir, cfg.Artifacts().Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	logger.Debug("Artifact store opened.", zap.String("dir", c.Artifacts.Dir()), zap.Int("capacity", c.Artifacts.Capacity()))

	// 3. Notification transports
	var closeNotify func()
	c.Dispatcher, closeNotify = notify.FromConfig(logger, cfg.Notify())
	c.closers = append(c.closers, closeNotify)

	// 4. Visit history
	if dsn := cfg.History().DatabaseURL; dsn != "" {
		h, closeDB, herr := history.Connect(ctx, dsn, logger, cfg.History().Timeout)
		if herr != nil {
			logger.Warn("Visit history disabled.", zap.Error(herr))
		} else {
			c.History = h
			c.closers = append(c.closers, closeDB)
			logger.Debug("Visit history connected.")
		}
	}

	// 5. Browser
	launcher := o.launcher
	if launcher == nil {
		c.Browser = browser.NewManager(logger, cfg.Browser())
		launcher = c.Browser
	}

	// 6. Session runner
	deps := session.Dependencies{
		Launcher: launcher,
		Profiles: profile.NewSelector(profile.DefaultCatalog(), cfg.Profiles().MobileRatio),
		Store:    c.Artifacts,
		Notifier: c.Dispatcher,
		Events:   c.Events,
		Rand:     c.Rand,
	}
	if c.History != nil {
		deps.Recorder = c.History
	}
	c.Runner, err = session.NewRunner(cfg, logger, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create session runner: %w", err)
	}
	return c, nil
}

// NewScheduler builds the scheduler over the configured targets.
func (c *Components) NewScheduler() (*scheduler.Scheduler, error) {
	opts := []scheduler.Option{scheduler.WithNotifier(c.Dispatcher)}
	if c.History != nil {
		opts = append(opts, scheduler.WithRecorder(c.History))
	}
	return scheduler.New(c.logger, c.Config.Schedule(), c.Config.Targets(), c.Runner, c.Rand, c.Events, opts...)
}

// AnnounceStart sends the start-up notice when enabled.
func (c *Components) AnnounceStart(ctx context.Context) {
	sc := c.Config.Schedule()
	c.Events.Recordf("patrol started: %d targets every %s", len(c.Config.Targets()), sc.Interval)
	if !sc.NotifyOnStart {
		return
	}
	text := fmt.Sprintf("🟢 <b>patrol</b> started: %d targets, every %s (±%s)", len(c.Config.Targets()), sc.Interval, sc.Jitter)
	c.Dispatcher.Notify(ctx, text, "")
}

// Shutdown releases everything in reverse order of acquisition. It is safe to
// call more than once and on partially built components.
func (c *Components) Shutdown() {
	c.shutdown.Do(func() {
		logger := c.logger
		if logger == nil {
			logger = observability.GetLogger()
		}
		logger.Debug("Beginning components shutdown sequence.")

		// 1. Browser processes.
		if c.Browser != nil {
			ctx, cancel := context.WithTimeout(context.Background(), browserShutdownTimeout)
			if err := c.Browser.Shutdown(ctx); err != nil {
				logger.Warn("Error during browser manager shutdown.", zap.Error(err))
			} else {
				logger.Debug("Browser manager shut down.")
			}
			cancel()
		}

		// 2. Network clients (NATS, database pool).
		for i := len(c.closers) - 1; i >= 0; i-- {
			if c.closers[i] != nil {
				c.closers[i]()
			}
		}

		// 3. Event log.
		if c.Events != nil {
			c.Events.Recordf("patrol stopped")
			c.Events.Close()
		}
		logger.Info("All components shut down.")
	})
}
