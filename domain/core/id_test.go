package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID_Unique(t *testing.T) {
	seen := make(map[RunID]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		require.False(t, seen[id], "duplicate run ID %s", id)
		seen[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()

	parsed, err := ParseRunID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseRunID("  ")
	assert.Error(t, err)

	_, err = ParseRunID("not-a-uuid")
	assert.Error(t, err)
}

func TestParseFeatureKey(t *testing.T) {
	key, err := ParseFeatureKey("name_length")
	require.NoError(t, err)
	assert.Equal(t, FeatureKey("name_length"), key)

	_, err = ParseFeatureKey("")
	assert.Error(t, err)
}

func TestNewHash_Deterministic(t *testing.T) {
	a := NewHash([]byte("subgroup|name_length|q3"))
	b := NewHash([]byte("subgroup|name_length|q3"))
	c := NewHash([]byte("subgroup|name_length|q4"))

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.Len(t, a.String(), 64)
	assert.Len(t, a.Short(), 12)
}

func TestComputeFingerprint_OrderIndependent(t *testing.T) {
	a := ComputeFingerprint(map[string]interface{}{"rows": 500, "seed": 42})
	b := ComputeFingerprint(map[string]interface{}{"seed": 42, "rows": 500})
	c := ComputeFingerprint(map[string]interface{}{"seed": 43, "rows": 500})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
