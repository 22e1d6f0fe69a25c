package profile

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// fixedSource replays a float then an index.
type fixedSource struct {
	f   float64
	idx int
}

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) Intn(n int) int   { return s.idx % n }

func TestSelect(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("low draw picks mobile at even split", func(t *testing.T) {
		p, err := NewSelector(catalog, 0.5).Select(fixedSource{f: 0.1, idx: 0})
		require.NoError(t, err)
		assert.Equal(t, schemas.ClassMobile, p.Class)
		assert.True(t, p.Viewport.IsMobile)
		assert.True(t, p.Viewport.HasTouch)
	})

	t.Run("high draw picks desktop at even split", func(t *testing.T) {
		p, err := NewSelector(catalog, 0.5).Select(fixedSource{f: 0.9, idx: 1})
		require.NoError(t, err)
		assert.Equal(t, "desktop-mac-safari", p.Name)
	})

	t.Run("ratio zero never picks mobile", func(t *testing.T) {
		sel := NewSelector(catalog, 0)
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 200; i++ {
			p, err := sel.Select(rng)
			require.NoError(t, err)
			require.Equal(t, schemas.ClassDesktop, p.Class)
		}
	})

	t.Run("empty partition falls back", func(t *testing.T) {
		onlyDesktop := catalog[:2]
		p, err := NewSelector(onlyDesktop, 1).Select(fixedSource{f: 0.0})
		require.NoError(t, err)
		assert.Equal(t, schemas.ClassDesktop, p.Class)
	})

	t.Run("empty catalog errors", func(t *testing.T) {
		_, err := NewSelector(nil, 0.5).Select(fixedSource{})
		assert.ErrorIs(t, err, ErrEmptyCatalog)
	})

	t.Run("same source gives same profile", func(t *testing.T) {
		sel := NewSelector(catalog, 0.5)
		a, err := sel.Select(rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		b, err := sel.Select(rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(a, b))
	})
}

func TestSelectSplitRatio(t *testing.T) {
	sel := NewSelector(DefaultCatalog(), 0.5)
	rng := rand.New(rand.NewSource(1))

	const draws = 10000
	mobile := 0
	for i := 0; i < draws; i++ {
		p, err := sel.Select(rng)
		require.NoError(t, err)
		if p.Class == schemas.ClassMobile {
			mobile++
		}
	}
	assert.InDelta(t, 0.5, float64(mobile)/draws, 0.05)
}
