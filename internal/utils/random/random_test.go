package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShufflePreservesElements(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, Shuffle(items))
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, items)
}

func TestShuffleHandlesShortSlices(t *testing.T) {
	require.NoError(t, Shuffle([]string{}))

	one := []string{"only"}
	require.NoError(t, Shuffle(one))
	assert.Equal(t, []string{"only"}, one)
}

func TestPickReturnsMember(t *testing.T) {
	items := []string{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		got, err := Pick(items)
		require.NoError(t, err)
		assert.Contains(t, items, got)
	}
}

func TestPickEmptySlice(t *testing.T) {
	_, err := Pick([]int{})
	require.Error(t, err)
}
