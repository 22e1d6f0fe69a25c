// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/browser"
	"github.com/xkilldash9x/patrol-cli/internal/notify"
)

// -- Notification Transport Mocks --

// MockTransport mocks notify.Transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTransport) SendText(ctx context.Context, text string) (notify.Response, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(notify.Response), args.Error(1)
}

// MockAttachmentTransport mocks a transport that can also send files.
type MockAttachmentTransport struct {
	MockTransport
}

func (m *MockAttachmentTransport) SendAttachment(ctx context.Context, path, caption string) (notify.Response, error) {
	args := m.Called(ctx, path, caption)
	return args.Get(0).(notify.Response), args.Error(1)
}

// MockResultTransport mocks a transport that publishes structured results.
type MockResultTransport struct {
	MockTransport
}

func (m *MockResultTransport) SendResult(ctx context.Context, result schemas.SessionResult) (notify.Response, error) {
	args := m.Called(ctx, result)
	return args.Get(0).(notify.Response), args.Error(1)
}

// -- Session Collaborator Mocks --

// MockNotifier mocks the session's notification dependency.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyResult(ctx context.Context, result schemas.SessionResult) {
	m.Called(ctx, result)
}

// MockRecorder mocks the visit history dependency.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, result schemas.SessionResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// -- Browser Fakes --

// FakeElement is the element handle produced by FakePage.
type FakeElement struct {
	Expr string
}

func (e FakeElement) Description() string { return e.Expr }

// FakePage is a scriptable browser.Page. Zero values mean success. Present lists
// substrings: a query matches when its expression contains one of them.
type FakePage struct {
	mu sync.Mutex

	Present        []string
	NavigateFunc   func(ctx context.Context, url string) error
	SetIdentErr    error
	QueryErr       error
	ClickErr       error
	ScrollErr      error
	ProbeResult    bool
	MediaPresent   bool
	MediaErr       error
	ScreenshotErr  error
	ScreenshotData []byte
	CurrentURL     string
	CloseErr       error
	// PanicOn names a method that panics when called.
	PanicOn string

	calls      []string
	closeCount int
	identity   schemas.DeviceProfile
}

var _ browser.Page = (*FakePage)(nil)

func (p *FakePage) record(method string) {
	p.mu.Lock()
	p.calls = append(p.calls, method)
	panicOn := p.PanicOn
	p.mu.Unlock()
	if panicOn == method {
		panic(fmt.Sprintf("injected panic in %s", method))
	}
}

// Calls returns the method names invoked so far, in order.
func (p *FakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Called reports whether method was invoked at least once.
func (p *FakePage) Called(method string) bool {
	for _, c := range p.Calls() {
		if c == method {
			return true
		}
	}
	return false
}

// CloseCount is the number of Close invocations.
func (p *FakePage) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

// Identity returns the last profile applied.
func (p *FakePage) Identity() schemas.DeviceProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

func (p *FakePage) SetIdentity(ctx context.Context, profile schemas.DeviceProfile) error {
	p.record("SetIdentity")
	p.mu.Lock()
	p.identity = profile
	p.mu.Unlock()
	return p.SetIdentErr
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.record("Navigate")
	if p.NavigateFunc != nil {
		if err := p.NavigateFunc(ctx, url); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	return nil
}

func (p *FakePage) WaitFor(ctx context.Context, expr string) error {
	p.record("WaitFor")
	return nil
}

func (p *FakePage) Query(ctx context.Context, q browser.Query) (browser.Element, bool, error) {
	p.record("Query")
	if p.QueryErr != nil {
		return nil, false, p.QueryErr
	}
	for _, s := range p.Present {
		if strings.Contains(q.Expr, s) {
			return FakeElement{Expr: q.Expr}, true, nil
		}
	}
	return nil, false, nil
}

func (p *FakePage) Click(ctx context.Context, el browser.Element) error {
	p.record("Click")
	return p.ClickErr
}

func (p *FakePage) Scroll(ctx context.Context, dy int) error {
	p.record("Scroll")
	return p.ScrollErr
}

func (p *FakePage) Probe(ctx context.Context, expr string) (bool, error) {
	p.record("Probe")
	return p.ProbeResult, nil
}

func (p *FakePage) PlayMedia(ctx context.Context) (bool, error) {
	p.record("PlayMedia")
	return p.MediaPresent, p.MediaErr
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.record("Screenshot")
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if p.ScreenshotData != nil {
		return p.ScreenshotData, nil
	}
	return []byte("\x89PNG\r\n\x1a\nfake"), nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.record("URL")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *FakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	p.calls = append(p.calls, "Close")
	p.closeCount++
	p.mu.Unlock()
	return p.CloseErr
}

// FakeLauncher hands out fresh FakePages built by NewPage, or fails with Err.
type FakeLauncher struct {
	mu      sync.Mutex
	NewPage func() *FakePage
	Err     error
	pages   []*FakePage
}

var _ browser.Launcher = (*FakeLauncher)(nil)

func (l *FakeLauncher) Launch(ctx context.Context) (browser.Page, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	p := &FakePage{}
	if l.NewPage != nil {
		p = l.NewPage()
	}
	l.mu.Lock()
	l.pages = append(l.pages, p)
	l.mu.Unlock()
	return p, nil
}

// Pages returns every page launched so far.
func (l *FakeLauncher) Pages() []*FakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakePage(nil), l.pages...)
}
