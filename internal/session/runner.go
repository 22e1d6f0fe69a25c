// Package session runs one visit to one target as an explicit state machine.
// The browser acquired in Launch is released on every exit path before Run
// returns, including panics.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/browser"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/locate"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"github.com/xkilldash9x/patrol-cli/internal/profile"
	"github.com/xkilldash9x/patrol-cli/internal/retention"
)

// -- Interfaces for Dependency Inversion --

// ProfileSelector picks the device identity for a visit.
type ProfileSelector interface {
	Select(rng profile.Source) (schemas.DeviceProfile, error)
}

// ArtifactStore persists captures and bounds how many are kept.
type ArtifactStore interface {
	Save(name string, data []byte, createdAt time.Time) (schemas.ArtifactRef, error)
	Admit(ref schemas.ArtifactRef) []schemas.ArtifactRef
}

// Notifier delivers a finished visit to external channels. It never fails
// the caller.
type Notifier interface {
	NotifyResult(ctx context.Context, result schemas.SessionResult)
}

// Recorder keeps a durable history of results.
type Recorder interface {
	Record(ctx context.Context, result schemas.SessionResult) error
}

const (
	readyExpr = `document.readyState === "interactive" || document.readyState === "complete"`
	videoExpr = `document.querySelector('video') !== null`
)

// Capture file suffixes by outcome.
const (
	suffixVisit    = "visit"
	suffixNotFound = "notfound"
	suffixFailed   = "failed"
)

// Dependencies are the collaborators of a Runner. Recorder, Events and Rand
// are optional.
type Dependencies struct {
	Launcher browser.Launcher
	Profiles ProfileSelector
	Store    ArtifactStore
	Notifier Notifier
	Recorder Recorder
	Events   *observability.EventLog
	Rand     Rand
}

// Runner executes visits. It holds no per-visit state, so one Runner serves
// every tick.
type Runner struct {
	cfg    config.Interface
	logger *zap.Logger
	deps   Dependencies
}

// NewRunner validates the required dependencies.
func NewRunner(cfg config.Interface, logger *zap.Logger, deps Dependencies) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Launcher == nil {
		return nil, errors.New("browser launcher cannot be nil")
	}
	if deps.Profiles == nil {
		return nil, errors.New("profile selector cannot be nil")
	}
	if deps.Store == nil {
		return nil, errors.New("artifact store cannot be nil")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if deps.Rand == nil {
		deps.Rand = NewRand(time.Now().UnixNano())
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.Named("session"),
		deps:   deps,
	}, nil
}

// Run performs one visit and always returns a completed result. A panic in a
// step releases the browser and then propagates to the caller.
func (r *Runner) Run(ctx context.Context, target schemas.Target) schemas.SessionResult {
	v := &visit{
		runner: r,
		target: target,
		state:  StateInit,
		result: schemas.SessionResult{
			ID:        uuid.NewString(),
			Target:    target,
			StartedAt: time.Now().UTC(),
			Trace:     []string{string(StateInit)},
		},
	}
	v.log = r.logger.With(zap.String("session_id", v.result.ID), zap.String("target", target.Label))

	defer v.cleanup(ctx)

	v.log.Info("Visit started.", zap.Bool("search", target.IsSearch()))
	v.execute(ctx)
	v.cleanup(ctx)
	v.finish()
	v.record(ctx)

	v.log.Info("Visit finished.",
		zap.String("status", string(v.result.Status)),
		zap.String("reason", v.result.FailureReason),
		zap.Duration("duration", v.result.Duration()))
	return v.result
}

// visit is the mutable state of a single Run.
type visit struct {
	runner *Runner
	target schemas.Target
	log    *zap.Logger

	state  State
	page   browser.Page
	match  locate.Match
	err    *StepError
	result schemas.SessionResult

	releaseOnce sync.Once
}

func (v *visit) enter(next State) {
	if !CanTransition(v.state, next) {
		v.log.Error("Invalid session state transition.",
			zap.String("from", string(v.state)), zap.String("to", string(next)))
	}
	v.state = next
	v.result.Trace = append(v.result.Trace, string(next))
}

// fail records the first failure. Later failures are logged but keep the original reason.
func (v *visit) fail(ctx context.Context, reason string, err error) {
	if ctx.Err() != nil && reason != ReasonResourceAcquisition {
		reason = ReasonCancelled
	}
	se := &StepError{State: v.state, Reason: reason, Err: err}
	v.log.Warn("Visit step failed.", zap.String("state", string(v.state)), zap.String("reason", reason), zap.Error(err))
	if v.err == nil {
		v.err = se
		v.result.FailureReason = reason
	}
}

func (v *visit) execute(ctx context.Context) {
	if ctx.Err() != nil {
		v.fail(ctx, ReasonCancelled, ctx.Err())
		v.report(ctx)
		return
	}

	if !v.launch(ctx) {
		v.report(ctx)
		return
	}

	suffix := suffixVisit
	switch {
	case !v.navigate(ctx):
		suffix = suffixFailed
	case !v.locate(ctx):
		suffix = suffixNotFound
		if ReasonOf(v.err) != ReasonNotFound {
			suffix = suffixFailed
		}
	default:
		v.interact(ctx)
		if ctx.Err() != nil {
			v.fail(ctx, ReasonCancelled, ctx.Err())
			suffix = suffixFailed
		}
	}

	v.capture(ctx, suffix)
	v.report(ctx)
}

func (v *visit) cfg() config.Interface { return v.runner.cfg }

// -- Launch --

func (v *visit) launch(ctx context.Context) bool {
	v.enter(StateLaunch)
	deps := v.runner.deps

	prof, err := deps.Profiles.Select(deps.Rand)
	if err != nil {
		v.fail(ctx, ReasonResourceAcquisition, fmt.Errorf("failed to select device profile: %w", err))
		return false
	}
	v.result.Profile = prof.Name

	launchCtx, cancel := context.WithTimeout(ctx, v.cfg().Session().LaunchTimeout)
	defer cancel()

	page, err := deps.Launcher.Launch(launchCtx)
	if err != nil {
		v.fail(ctx, ReasonResourceAcquisition, fmt.Errorf("failed to launch browser: %w", err))
		return false
	}
	v.page = page

	if err := page.SetIdentity(launchCtx, prof); err != nil {
		v.fail(ctx, ReasonResourceAcquisition, fmt.Errorf("failed to apply device profile: %w", err))
		return false
	}
	v.log.Debug("Browser acquired.", zap.String("profile", prof.Name), zap.String("class", string(prof.Class)))
	return true
}

// -- Navigate --

// Destination is the first URL a visit loads: the target itself, or the
// search results page for its query.
func Destination(target schemas.Target, searchTemplate string) string {
	if target.IsSearch() {
		return fmt.Sprintf(searchTemplate, url.QueryEscape(target.Query))
	}
	return target.URL()
}

func (v *visit) navigate(ctx context.Context) bool {
	v.enter(StateNavigate)
	dest := Destination(v.target, v.cfg().Search().URLTemplate)

	navCtx, cancel := context.WithTimeout(ctx, v.cfg().Session().NavigationTimeout)
	defer cancel()

	err := v.page.Navigate(navCtx, dest)
	if err == nil {
		err = v.page.WaitFor(navCtx, readyExpr)
	}
	if err != nil {
		reason := ReasonNavigationError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonNavigationTimeout
		}
		v.fail(ctx, reason, fmt.Errorf("navigation to %s failed: %w", dest, err))
		return false
	}
	v.log.Debug("Page ready.", zap.String("url", dest))
	return true
}

// -- Locate --

func (v *visit) locate(ctx context.Context) bool {
	v.enter(StateLocate)
	lc := v.cfg().Locate()
	loc := locate.New(v.log, lc.PollInterval, locate.ForTarget(v.target, lc.DefaultTexts)...)

	locCtx, cancel := context.WithTimeout(ctx, lc.Timeout)
	defer cancel()

	m, err := loc.Locate(locCtx, v.page)
	if err != nil {
		v.fail(ctx, ReasonNotFound, err)
		return false
	}
	v.match = m
	v.log.Info("Target element located.", zap.String("strategy", m.Strategy))
	return true
}

// -- Interact --

// interact never fails the visit. Each sub-step logs its own error and the
// next one still runs.
func (v *visit) interact(ctx context.Context) {
	v.enter(StateInteract)
	ic := v.cfg().Interaction()

	ictx, cancel := context.WithTimeout(ctx, v.cfg().Session().InteractTimeout)
	defer cancel()

	v.pause(ictx)
	v.click(ictx, ic.ClickWait)
	v.pause(ictx)
	v.scroll(ictx, ic)
	if ic.PlayMedia {
		v.playMedia(ictx)
	}
	if err := sleep(ictx, ic.Dwell); err != nil {
		v.warn("dwell", err)
	}
}

func (v *visit) warn(step string, err error) {
	v.log.Warn("Interaction step failed.",
		zap.String("step", step), zap.String("reason", ReasonInteraction), zap.Error(err))
}

func (v *visit) pause(ctx context.Context) {
	ic := v.cfg().Interaction()
	_ = sleep(ctx, ic.MinDelay+Jitter(v.runner.deps.Rand, ic.DelayJitter))
}

func (v *visit) click(ctx context.Context, wait time.Duration) {
	before, _ := v.page.URL(ctx)
	if err := v.page.Click(ctx, v.match.Element); err != nil {
		v.warn("click", err)
		return
	}
	if before == "" || wait <= 0 {
		return
	}

	quoted, err := json.Marshal(before)
	if err != nil {
		v.warn("click", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := v.page.WaitFor(wctx, fmt.Sprintf("location.href !== %s", quoted)); err != nil {
		v.log.Debug("URL unchanged after click.", zap.String("url", before), zap.Error(err))
	}
}

func (v *visit) scroll(ctx context.Context, ic config.InteractionConfig) {
	rng := v.runner.deps.Rand
	span := ic.ScrollMaxStep - ic.ScrollMinStep
	deadline := time.Now().Add(ic.ScrollDuration)

	for steps := 0; steps == 0 || time.Now().Before(deadline); steps++ {
		dy := ic.ScrollMinStep
		if span > 0 {
			dy += rng.Intn(span + 1)
		}
		if err := v.page.Scroll(ctx, dy); err != nil {
			v.warn("scroll", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		v.pause(ctx)
	}
}

func (v *visit) playMedia(ctx context.Context) {
	present, err := v.page.Probe(ctx, videoExpr)
	if err != nil {
		v.warn("media_probe", err)
		return
	}
	if !present {
		v.log.Debug("No video element; skipping playback.")
		return
	}
	if _, err := v.page.PlayMedia(ctx); err != nil {
		v.warn("media_play", err)
	}
}

// -- Capture --

func (v *visit) capture(ctx context.Context, suffix string) {
	v.enter(StateCapture)

	cctx, cancel := context.WithTimeout(ctx, v.cfg().Session().CaptureTimeout)
	defer cancel()

	if u, err := v.page.URL(cctx); err == nil {
		v.result.FinalURL = u
	}

	data, err := v.page.Screenshot(cctx)
	if err != nil {
		v.captureFailed(err)
		return
	}
	now := time.Now().UTC()
	ref, err := v.runner.deps.Store.Save(retention.FileName(v.target.Label, suffix, now), data, now)
	if err != nil {
		v.captureFailed(err)
		return
	}
	v.result.Artifact = &ref
	v.log.Info("Capture saved.", zap.String("file", ref.FileName))
}

func (v *visit) captureFailed(err error) {
	v.log.Warn("Capture failed; continuing without artifact.",
		zap.String("reason", ReasonCapture), zap.Error(err))
}

// -- Report --

// report runs under a context detached from shutdown so that an interrupted
// visit is still delivered within the report timeout. History is written by
// record, after the terminal state is in the trace.
func (v *visit) report(ctx context.Context) {
	v.enter(StateReport)
	deps := v.runner.deps

	v.result.FinishedAt = time.Now().UTC()
	v.result.Status = schemas.StatusSucceeded
	if v.err != nil {
		v.result.Status = schemas.StatusFailed
	}

	rctx, cancel := context.WithTimeout(browser.Detach(ctx), v.cfg().Session().ReportTimeout)
	defer cancel()

	deps.Notifier.NotifyResult(rctx, v.result)

	if v.result.Artifact != nil {
		if evicted := deps.Store.Admit(*v.result.Artifact); len(evicted) > 0 {
			v.log.Debug("Retention evicted old captures.", zap.Int("count", len(evicted)))
		}
	}

	observability.RecordSession(string(v.result.Status), v.result.FailureReason, v.result.Duration().Seconds())
	if v.result.FailureReason != "" {
		deps.Events.Recordf("visit %s %s (%s)", v.target.Label, v.result.Status, v.result.FailureReason)
	} else {
		deps.Events.Recordf("visit %s %s", v.target.Label, v.result.Status)
	}
}

// -- Cleanup --

// cleanup releases the browser once. It is called on the normal path and again
// from a deferred call, so a panic anywhere above still releases.
func (v *visit) cleanup(ctx context.Context) {
	v.releaseOnce.Do(func() {
		v.enter(StateCleanup)
		if v.page == nil {
			return
		}
		rctx, cancel := context.WithTimeout(browser.Detach(ctx), v.cfg().Session().ReleaseTimeout)
		defer cancel()
		if err := v.page.Close(rctx); err != nil {
			v.log.Warn("Failed to release browser.", zap.Error(err))
			return
		}
		v.log.Debug("Browser released.")
	})
}

func (v *visit) finish() {
	if v.result.Status == schemas.StatusSucceeded {
		v.enter(StateSucceeded)
	} else {
		v.enter(StateFailed)
	}
}

// record stores the result once the trace is complete, under the same detached
// bound as Report.
func (v *visit) record(ctx context.Context) {
	if v.runner.deps.Recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(browser.Detach(ctx), v.cfg().Session().ReportTimeout)
	defer cancel()
	if err := v.runner.deps.Recorder.Record(rctx, v.result); err != nil {
		v.log.Warn("Failed to record visit history.", zap.Error(err))
	}
}
