package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeded_Deterministic(t *testing.T) {
	a, b := Seeded(7), Seeded(7)

	bufA := make([]byte, 48)
	bufB := make([]byte, 48)
	require.NoError(t, a.Fill(bufA))
	require.NoError(t, b.Fill(bufB))
	assert.Equal(t, bufA, bufB)
	assert.True(t, a.Deterministic())

	// The stream advances.
	next := make([]byte, 48)
	require.NoError(t, a.Fill(next))
	assert.NotEqual(t, bufA, next)
}

func TestSeeded_DifferentSeeds(t *testing.T) {
	bufA := make([]byte, 32)
	bufB := make([]byte, 32)
	require.NoError(t, Seeded(1).Fill(bufA))
	require.NoError(t, Seeded(2).Fill(bufB))
	assert.NotEqual(t, bufA, bufB)
}

func TestEntropy(t *testing.T) {
	src := Entropy()
	buf := make([]byte, 32)
	require.NoError(t, src.Fill(buf))
	assert.NotEqual(t, make([]byte, 32), buf)
	assert.False(t, src.Deterministic())
}

func TestFromMode(t *testing.T) {
	src, err := FromMode("seeded", 3)
	require.NoError(t, err)
	assert.True(t, src.Deterministic())

	src, err = FromMode("entropy", 0)
	require.NoError(t, err)
	assert.False(t, src.Deterministic())

	_, err = FromMode("", 0)
	assert.Error(t, err)
}
