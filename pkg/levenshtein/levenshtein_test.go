package levenshtein_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/autoscan/pkg/levenshtein"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"a", "a", 0},
		{"ab", "aa", 1},
		{"ab", "aaa", 2},
		{"bbb", "a", 3},
		{"kitten", "sitting", 3},
		{"sitting", "kitten", 3},
		{"a", "", 1},
		{"", "a", 1},
		{"Fön", "Föm", 1},
	}

	var ctx levenshtein.Context

	for _, tt := range tests {
		assert.Equal(t, tt.want, ctx.Distance(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
	}
}

func TestClosest(t *testing.T) {
	t.Parallel()

	names := []string{"mainerror", "suspects", "plugins", "settings", "records", "version", "fcx"}

	got, ok := levenshtein.Closest("suspect", names)
	assert.True(t, ok)
	assert.Equal(t, "suspects", got)

	got, ok = levenshtein.Closest("PLUGIN", names)
	assert.True(t, ok)
	assert.Equal(t, "plugins", got)

	_, ok = levenshtein.Closest("graphics", names)
	assert.False(t, ok)

	_, ok = levenshtein.Closest("", names)
	assert.False(t, ok)
}
