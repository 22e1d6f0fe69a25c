package locate

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/patrol-cli/internal/browser"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no strategy matched before the deadline.
var ErrNotFound = errors.New("target element not found")

// Match is the winning strategy and its element.
type Match struct {
	Strategy string
	Element  browser.Element
}

// Locator polls an ordered strategy list against a page.
type Locator struct {
	logger     *zap.Logger
	strategies []Strategy
	interval   time.Duration
}

// New returns a locator. interval is the pause between rounds.
func New(logger *zap.Logger, interval time.Duration, strategies ...Strategy) *Locator {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Locator{logger: logger.Named("locator"), strategies: strategies, interval: interval}
}

// Locate tries every strategy in order each round; the first match wins. It
// gives up with ErrNotFound when ctx ends. Query errors are logged and treated
// as a miss for that round.
func (l *Locator) Locate(ctx context.Context, page browser.Page) (Match, error) {
	if len(l.strategies) == 0 {
		return Match{}, ErrNotFound
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		for _, s := range l.strategies {
			el, ok, err := page.Query(ctx, s.Query())
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				l.logger.Debug("Strategy query failed.", zap.String("strategy", s.Name()), zap.Error(err))
				continue
			}
			if ok {
				l.logger.Debug("Element located.", zap.String("strategy", s.Name()), zap.Int("round", round))
				return Match{Strategy: s.Name(), Element: el}, nil
			}
		}

		select {
		case <-ctx.Done():
			return Match{}, ErrNotFound
		case <-ticker.C:
		}
	}
}
