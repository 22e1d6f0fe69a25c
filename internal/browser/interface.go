// internal/browser/interface.go
package browser

import (
	"context"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// QueryKind selects how Query.Expr is interpreted.
type QueryKind int

const (
	CSS QueryKind = iota
	XPath
)

func (k QueryKind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// Query identifies elements on the rendered page.
type Query struct {
	Expr string
	Kind QueryKind
}

// Element is an opaque handle to a node found by Page.Query. It is only valid
// on the page that produced it.
type Element interface {
	Description() string
}

// Page is one isolated browser context owned by a single visit. Every method
// honors the deadline and cancellation of ctx.
type Page interface {
	// SetIdentity applies the device profile. Call before the first navigation.
	SetIdentity(ctx context.Context, profile schemas.DeviceProfile) error
	// Navigate loads url and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitFor polls a JavaScript expression until it is truthy.
	WaitFor(ctx context.Context, expr string) error
	// Query returns the first element matching q, or false when there is none.
	Query(ctx context.Context, q Query) (Element, bool, error)
	Click(ctx context.Context, el Element) error
	// Scroll moves the viewport vertically by dy pixels.
	Scroll(ctx context.Context, dy int) error
	// Probe evaluates a capability check. Absence is (false, nil).
	Probe(ctx context.Context, expr string) (bool, error)
	// PlayMedia starts the first video element muted. It reports whether one was found.
	PlayMedia(ctx context.Context) (bool, error)
	// Screenshot renders the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	URL(ctx context.Context) (string, error)
	// Close releases the browser context and its process. Safe to call more than once.
	Close(ctx context.Context) error
}

// Launcher acquires fresh pages.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}
