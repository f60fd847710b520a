package token

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewOpaque_Format(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v, err := NewOpaque()
		require.NoError(t, err)
		assert.Regexp(t, hexRe, v)
		assert.False(t, seen[v], "duplicate opaque token")
		seen[v] = true
	}
}

func TestNewNumericOTP_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v, err := NewNumericOTP()
		require.NoError(t, err)
		require.Len(t, v, 6)
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}
