// Package scheduler drives recurring visits with a single-flight guarantee: a
// tick that finds the previous one still running is dropped, never queued.
package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"github.com/xkilldash9x/patrol-cli/internal/session"
)

// Visitor runs one visit to completion.
type Visitor interface {
	Run(ctx context.Context, target schemas.Target) schemas.SessionResult
}

// panicReportTimeout bounds delivery of a result built at the panic boundary.
const panicReportTimeout = 30 * time.Second

// Option configures optional collaborators.
type Option func(*Scheduler)

// WithNotifier delivers results of visits that panicked, which never reach
// the session's own Report step.
func WithNotifier(n session.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithRecorder records results of visits that panicked.
func WithRecorder(r session.Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// Scheduler owns the single permit that guards the browser resource. The
// permit lives only in memory, so a restart always starts unlocked.
type Scheduler struct {
	logger  *zap.Logger
	cfg     config.ScheduleConfig
	targets []schemas.Target
	visitor Visitor
	rng     session.Rand
	events  *observability.EventLog

	notifier session.Notifier
	recorder session.Recorder

	permit  *semaphore.Weighted
	trigger chan struct{}
	wg      sync.WaitGroup

	mu         sync.Mutex
	lastTickAt time.Time
}

// New validates its inputs. events may be nil.
func New(logger *zap.Logger, cfg config.ScheduleConfig, targets []schemas.Target, visitor Visitor, rng session.Rand, events *observability.EventLog, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if visitor == nil {
		return nil, errors.New("visitor cannot be nil")
	}
	if len(targets) == 0 {
		return nil, errors.New("at least one target is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("schedule interval must be positive")
	}
	if rng == nil {
		rng = session.NewRand(time.Now().UnixNano())
	}
	s := &Scheduler{
		logger:  logger.Named("scheduler"),
		cfg:     cfg,
		targets: append([]schemas.Target(nil), targets...),
		visitor: visitor,
		rng:     rng,
		events:  events,
		permit:  semaphore.NewWeighted(1),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run ticks immediately and then every interval plus jitter until ctx is
// cancelled. It waits for the in-flight tick before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started.",
		zap.Int("targets", len(s.targets)),
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("jitter", s.cfg.Jitter))
	defer s.wg.Wait()

	s.launch(ctx)

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping; waiting for the running tick.", zap.Error(ctx.Err()))
			return nil
		case <-timer.C:
			s.launch(ctx)
			timer.Reset(s.nextDelay())
		case <-s.trigger:
			s.logger.Info("Out-of-band tick requested.")
			s.launch(ctx)
		}
	}
}

// Trigger requests an extra tick. It contends for the same permit as timed
// ticks and is dropped if one is already pending.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastTickAt is the start time of the most recent tick that ran.
func (s *Scheduler) LastTickAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTickAt
}

func (s *Scheduler) launch(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Tick(ctx)
	}()
}

func (s *Scheduler) nextDelay() time.Duration {
	return s.cfg.Interval + session.Jitter(s.rng, s.cfg.Jitter)
}

// Tick visits every target in order under the permit. It returns false without
// visiting anything when another tick holds the permit.
func (s *Scheduler) Tick(ctx context.Context) ([]schemas.SessionResult, bool) {
	if !s.permit.TryAcquire(1) {
		s.logger.Warn("Previous tick still running; skipping tick.")
		observability.RecordTickSkipped()
		s.events.Record("tick skipped: previous tick still running")
		return nil, false
	}
	defer s.permit.Release(1)

	start := time.Now().UTC()
	s.mu.Lock()
	s.lastTickAt = start
	s.mu.Unlock()
	s.logger.Info("Tick started.", zap.Int("targets", len(s.targets)))

	results := make([]schemas.SessionResult, 0, len(s.targets))
	for i, t := range s.targets {
		if i > 0 && ctx.Err() == nil {
			s.pause(ctx)
		}
		if ctx.Err() != nil {
			results = append(results, s.skip(t))
			continue
		}
		results = append(results, s.visit(ctx, t))
	}

	var failed int
	for _, r := range results {
		if r.Status != schemas.StatusSucceeded {
			failed++
		}
	}
	s.logger.Info("Tick finished.",
		zap.Int("visits", len(results)),
		zap.Int("not_succeeded", failed),
		zap.Duration("duration", time.Since(start)))
	return results, true
}

func (s *Scheduler) pause(ctx context.Context) {
	d := s.cfg.TargetDelay + session.Jitter(s.rng, s.cfg.TargetJitter)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Scheduler) skip(t schemas.Target) schemas.SessionResult {
	res := session.Skipped(t, session.ReasonCancelled)
	s.logger.Info("Target skipped; shutting down.", zap.String("target", t.Label))
	observability.RecordSession(string(res.Status), res.FailureReason, 0)
	s.events.Recordf("visit %s skipped (%s)", t.Label, res.FailureReason)
	return res
}

// visit is the panic boundary: a panicking session becomes a failed result
// and the tick moves on.
func (s *Scheduler) visit(ctx context.Context, t schemas.Target) (res schemas.SessionResult) {
	started := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during visit; recorded as failure.",
				zap.String("target", t.Label),
				zap.Any("panic_reason", r),
				zap.String("stack", string(debug.Stack())))
			res = session.Panicked(t, started)
			observability.RecordSession(string(res.Status), res.FailureReason, res.Duration().Seconds())
			s.events.Recordf("visit %s failed (%s)", t.Label, res.FailureReason)
			s.reportPanicked(ctx, res)
		}
	}()
	return s.visitor.Run(ctx, t)
}

// reportPanicked runs inside the recover of visit; a panic here would escape
// the tick, so each call recovers on its own.
func (s *Scheduler) reportPanicked(ctx context.Context, res schemas.SessionResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), panicReportTimeout)
	defer cancel()

	guard := func(what string, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic while reporting a failed visit.", zap.String("step", what), zap.Any("panic_reason", r))
			}
		}()
		fn()
	}
	if s.notifier != nil {
		guard("notify", func() { s.notifier.NotifyResult(ctx, res) })
	}
	if s.recorder != nil {
		guard("record", func() {
			if err := s.recorder.Record(ctx, res); err != nil {
				s.logger.Warn("Failed to record visit history.", zap.String("target", res.Target.Label), zap.Error(err))
			}
		})
	}
}
