package checkout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderNumberGenerator(t *testing.T) {
	gen, err := NewOrderNumberGenerator("test-salt")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := gen.Generate(7)
		assert.True(t, strings.HasPrefix(n, "MRC-"), n)
		assert.False(t, seen[n], "duplicate order number: %s", n)
		seen[n] = true

		code := strings.TrimPrefix(n, "MRC-")
		assert.GreaterOrEqual(t, len(code), 10)
		// Ambiguous characters are excluded from the alphabet.
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "0")
	}
}

func TestOrderNumberGenerator_SaltChangesOutput(t *testing.T) {
	a, err := NewOrderNumberGenerator("salt-a")
	require.NoError(t, err)
	b, err := NewOrderNumberGenerator("salt-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Generate(1), b.Generate(1))
}
