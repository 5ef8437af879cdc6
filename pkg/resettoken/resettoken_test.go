package resettoken_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/codeai/pkg/resettoken"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	plain, hash, err := resettoken.Generate()
	require.NoError(t, err)

	assert.Len(t, plain, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, plain, hash)
	assert.Equal(t, resettoken.Hash(plain), hash)
	assert.True(t, resettoken.WellFormed(plain))
}

func TestGenerate_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 100)
	for range 100 {
		plain, _, err := resettoken.Generate()
		require.NoError(t, err)
		_, dup := seen[plain]
		require.False(t, dup)
		seen[plain] = struct{}{}
	}
}

func TestWellFormed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", strings.Repeat("ab", 32), true},
		{"too short", strings.Repeat("ab", 31), false},
		{"too long", strings.Repeat("ab", 33), false},
		{"not hex", strings.Repeat("zz", 32), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resettoken.WellFormed(tt.input))
		})
	}
}
