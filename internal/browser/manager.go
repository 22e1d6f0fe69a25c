// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Launch after Shutdown has started.
var ErrManagerClosed = errors.New("browser manager is shut down")

// Manager launches one browser process per page so that releasing a page
// always ends its process. It tracks live pages for shutdown.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ Launcher = (*Manager)(nil)

// NewManager returns a manager. No browser is started until Launch.
func NewManager(logger *zap.Logger, cfg config.BrowserConfig) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
}

// Launch starts a fresh browser and returns its first tab. ctx bounds the start-up
// only; the browser lives until the page is closed.
func (m *Manager) Launch(ctx context.Context) (Page, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), allocatorOptions(m.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser. It must not run under a context that
	// gets canceled afterwards, or the browser would die with it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	var err error
	select {
	case err = <-started:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		m.wg.Done()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	m.logger.Debug("Browser launched.")
	return &chromePage{
		logger:      m.logger.Named("page"),
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		done:        m.wg.Done,
	}, nil
}

// Shutdown refuses new launches and waits for live pages to be closed,
// respecting the caller's deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Browser manager shut down.")
		return nil
	case <-ctx.Done():
		m.logger.Warn("Timed out waiting for browser pages to close.")
		return ctx.Err()
	}
}

type allocatorFlag struct {
	name  string
	value interface{}
}

// allocatorFlags lists the flags layered on top of chromedp's defaults.
func allocatorFlags(cfg config.BrowserConfig) []allocatorFlag {
	flags := []allocatorFlag{
		{"headless", cfg.Headless},
		{"ignore-certificate-errors", cfg.IgnoreTLSErrors},
		{"disable-extensions", true},
		{"disable-gpu", cfg.Headless},
		{"mute-audio", true},
		{"autoplay-policy", "no-user-gesture-required"},
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, allocatorFlag{name, parts[1]})
		} else {
			flags = append(flags, allocatorFlag{name, true})
		}
	}

	// Needed inside containers.
	if runtime.GOOS == "linux" {
		flags = append(flags,
			allocatorFlag{"no-sandbox", true},
			allocatorFlag{"disable-dev-shm-usage", true},
			allocatorFlag{"disable-setuid-sandbox", true},
		)
	}
	return flags
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}
	for _, f := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
