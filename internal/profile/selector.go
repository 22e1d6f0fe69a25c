// Package profile picks the emulated device identity for a visit.
package profile

import (
	"errors"
	"math/rand"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// ErrEmptyCatalog is returned when there is no profile to choose from.
var ErrEmptyCatalog = errors.New("profile catalog is empty")

// Source is the subset of *rand.Rand the selector draws from.
type Source interface {
	Float64() float64
	Intn(n int) int
}

var _ Source = (*rand.Rand)(nil)

// Selector chooses one profile per call. It keeps no state between calls.
type Selector struct {
	desktop     []schemas.DeviceProfile
	mobile      []schemas.DeviceProfile
	mobileRatio float64
}

// NewSelector partitions the catalog by device class. mobileRatio is clamped to [0, 1].
func NewSelector(catalog []schemas.DeviceProfile, mobileRatio float64) *Selector {
	s := &Selector{mobileRatio: min(max(mobileRatio, 0), 1)}
	for _, p := range catalog {
		if p.Class == schemas.ClassMobile || (p.Class == "" && p.Viewport.IsMobile) {
			s.mobile = append(s.mobile, p)
		} else {
			s.desktop = append(s.desktop, p)
		}
	}
	return s
}

// Select draws the partition first, then a uniform profile inside it. An empty
// partition falls back to the other one.
func (s *Selector) Select(rng Source) (schemas.DeviceProfile, error) {
	pool := s.desktop
	if rng.Float64() < s.mobileRatio {
		pool = s.mobile
	}
	if len(pool) == 0 {
		pool = append(append([]schemas.DeviceProfile(nil), s.desktop...), s.mobile...)
	}
	if len(pool) == 0 {
		return schemas.DeviceProfile{}, ErrEmptyCatalog
	}
	return pool[rng.Intn(len(pool))], nil
}
