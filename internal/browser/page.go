package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"go.uber.org/zap"
)

const (
	pollInterval = 100 * time.Millisecond
	// pngQuality makes FullScreenshot emit PNG instead of JPEG.
	pngQuality = 100
)

const playMediaScript = `(() => {
	const v = document.querySelector('video');
	if (!v) { return false; }
	v.muted = true;
	const p = v.play();
	if (p && typeof p.catch === 'function') { p.catch(() => {}); }
	return true;
})()`

var errForeignElement = errors.New("element does not belong to this page")

type nodeElement struct {
	node *cdp.Node
}

func (e nodeElement) Description() string {
	if e.node == nil {
		return "<nil>"
	}
	return fmt.Sprintf("<%s> %s", e.node.LocalName, e.node.FullXPath())
}

type chromePage struct {
	logger      *zap.Logger
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	done        func()

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab bounded by ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(p.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (p *chromePage) SetIdentity(ctx context.Context, profile schemas.DeviceProfile) error {
	return p.run(ctx, emulateProfile(profile, p.logger))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitFor(ctx context.Context, expr string) error {
	var ok bool
	return p.run(ctx, chromedp.Poll(fmt.Sprintf("!!(%s)", expr), &ok, chromedp.WithPollingInterval(pollInterval)))
}

func (p *chromePage) Query(ctx context.Context, q Query) (Element, bool, error) {
	by := chromedp.ByQuery
	if q.Kind == XPath {
		by = chromedp.BySearch
	}
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(q.Expr, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, false, fmt.Errorf("query %s %q: %w", q.Kind, q.Expr, err)
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodeElement{node: nodes[0]}, true, nil
}

func (p *chromePage) Click(ctx context.Context, el Element) error {
	ne, ok := el.(nodeElement)
	if !ok || ne.node == nil {
		return errForeignElement
	}
	return p.run(ctx, chromedp.MouseClickNode(ne.node))
}

func (p *chromePage) Scroll(ctx context.Context, dy int) error {
	var ok bool
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d), true", dy), &ok))
}

func (p *chromePage) Probe(ctx context.Context, expr string) (bool, error) {
	var present bool
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf("!!(%s)", expr), &present)); err != nil {
		return false, err
	}
	return present, nil
}

func (p *chromePage) PlayMedia(ctx context.Context) (bool, error) {
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(playMediaScript, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, pngQuality)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Close asks the browser to close, then kills the process. The allocator cancel
// waits for the process to exit and removes its profile directory.
func (p *chromePage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		defer p.done()

		closed := make(chan error, 1)
		go func() { closed <- chromedp.Cancel(p.tabCtx) }()
		select {
		case err := <-closed:
			if err != nil && !errors.Is(err, context.Canceled) {
				p.closeErr = fmt.Errorf("failed to close browser gracefully: %w", err)
			}
		case <-ctx.Done():
			p.closeErr = fmt.Errorf("timed out closing browser: %w", ctx.Err())
		}
		p.tabCancel()
		p.allocCancel()
	})
	return p.closeErr
}
