package locate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/browser"
	"github.com/xkilldash9x/patrol-cli/internal/mocks"
	"go.uber.org/zap/zaptest"
)

func TestStrategyQueries(t *testing.T) {
	t.Run("text variants build one xpath", func(t *testing.T) {
		q := TextVariants{"Login", "LOGIN"}.Query()
		assert.Equal(t, browser.XPath, q.Kind)
		assert.Contains(t, q.Expr, `contains(normalize-space(.), "Login")`)
		assert.Contains(t, q.Expr, `contains(normalize-space(.), "LOGIN")`)
	})

	t.Run("text with double quotes", func(t *testing.T) {
		q := TextVariants{`Say "hi"`}.Query()
		assert.Contains(t, q.Expr, `'Say "hi"'`)

		both := TextVariants{`it's "x"`}.Query()
		assert.Contains(t, both.Expr, `concat("it's ", '"', "x", '"', "")`)
	})

	t.Run("empty variants never match", func(t *testing.T) {
		assert.Contains(t, TextVariants{" "}.Query().Expr, "false()")
	})

	t.Run("href contains is css", func(t *testing.T) {
		q := HrefContains("example.test").Query()
		assert.Equal(t, browser.CSS, q.Kind)
		assert.Equal(t, `a[href*="example.test"]`, q.Expr)
	})
}

func TestForTarget(t *testing.T) {
	defaults := []string{"Login", "LOGIN"}

	t.Run("direct target uses default texts", func(t *testing.T) {
		got := ForTarget(schemas.Target{Label: "demo", Destination: "https://example.test"}, defaults)
		require.Len(t, got, 1)
		assert.Equal(t, TextVariants(defaults), got[0])
	})

	t.Run("direct target with hints keeps order", func(t *testing.T) {
		got := ForTarget(schemas.Target{
			Label:       "demo",
			Destination: "https://example.test",
			Match:       schemas.MatchHints{Texts: []string{"Sign in"}, HrefContains: "/login", Selector: "#cta"},
		}, defaults)
		require.Len(t, got, 3)
		assert.Equal(t, "text", got[0].Name())
		assert.Equal(t, "href", got[1].Name())
		assert.Equal(t, "selector", got[2].Name())
	})

	t.Run("search target looks for the host first", func(t *testing.T) {
		got := ForTarget(schemas.Target{Label: "s", Destination: "www.example.org", Query: "example"}, defaults)
		require.Len(t, got, 1)
		assert.Equal(t, HrefContains("example.org"), got[0])
	})
}

func TestLocate(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("first matching strategy wins", func(t *testing.T) {
		page := &mocks.FakePage{Present: []string{"example.test", "#cta"}}
		l := New(logger, 10*time.Millisecond, TextVariants{"Login"}, HrefContains("example.test"), Selector("#cta"))

		m, err := l.Locate(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, "href", m.Strategy)
		assert.NotNil(t, m.Element)
	})

	t.Run("times out with not found", func(t *testing.T) {
		page := &mocks.FakePage{}
		l := New(logger, 5*time.Millisecond, Selector("#nothing"))

		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := l.Locate(ctx, page)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("query errors count as misses", func(t *testing.T) {
		page := &mocks.FakePage{QueryErr: errors.New("cdp hiccup")}
		l := New(logger, 5*time.Millisecond, Selector("#a"))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := l.Locate(ctx, page)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no strategies", func(t *testing.T) {
		_, err := New(logger, 0).Locate(context.Background(), &mocks.FakePage{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
