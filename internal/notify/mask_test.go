package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"0123456789", "**********"},
		{"123456:ABCDEFGHIJKLMNOPQRSTUVWXYZ", "123456...WXYZ"},
		{"-1001234567890", "-10012...7890"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Mask(tc.in))
			assert.Equal(t, Mask(tc.in), Mask(Mask(tc.in)), "masking twice changes nothing")
		})
	}
}

func TestMaskProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("masking is idempotent", prop.ForAll(
		func(s string) bool {
			return Mask(Mask(s)) == Mask(s)
		},
		gen.AnyString(),
	))

	// Prefix, middle and suffix come from disjoint alphabets so the middle
	// can only show up in the output if it leaked.
	properties.Property("middle never survives", prop.ForAll(
		func(prefix, middle, suffix string) bool {
			secret := prefix + middle + suffix
			return !strings.Contains(Mask(secret), middle)
		},
		gen.SliceOfN(6, gen.AlphaLowerChar()).Map(runesToString),
		gen.SliceOfN(8, gen.NumChar()).Map(runesToString),
		gen.SliceOfN(4, gen.AlphaUpperChar()).Map(runesToString),
	))

	properties.TestingRun(t)
}

func runesToString(r []rune) string { return string(r) }

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))

	long := strings.Repeat("x", 1500)
	got := Truncate(long, MaxBodyChars)
	assert.Equal(t, strings.Repeat("x", 1000)+"... (truncated)", got)

	// Counts characters, not bytes.
	assert.Equal(t, "é... (truncated)", Truncate("éé", 1))
	assert.Equal(t, "éé", Truncate("éé", 3))

	cyrillic := strings.Repeat("ж", 1200)
	got = Truncate(cyrillic, MaxBodyChars)
	assert.Equal(t, strings.Repeat("ж", 1000)+"... (truncated)", got)
	assert.Equal(t, 1000+len([]rune("... (truncated)")), utf8.RuneCountInString(got))
}
