package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 1, Estimate("a"))
	assert.Equal(t, 1, Estimate("test"))
	assert.Equal(t, 2, Estimate("tests"))
	assert.Equal(t, 15, Estimate("The quick brown fox jumps over the lazy dog. This is a test."))
}

func TestEstimate_CountsCharactersNotBytes(t *testing.T) {
	assert.Equal(t, 1, Estimate("°C°C"))
}

func TestEstimate_Monotonic(t *testing.T) {
	prev := 0
	for n := 0; n < 200; n++ {
		got := Estimate(strings.Repeat("x", n))
		assert.GreaterOrEqual(t, got, prev, "length %d", n)
		prev = got
	}
}

func TestSavedAndRatio(t *testing.T) {
	assert.Equal(t, 40, Saved(100, 60))
	assert.Equal(t, 0, Saved(60, 100))
	assert.InDelta(t, 0.6, Ratio(100, 60), 1e-9)
	assert.Equal(t, 1.0, Ratio(0, 0))
}
