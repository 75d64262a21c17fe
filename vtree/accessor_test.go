package vtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type countingAccessor struct {
	state  TreeState
	leaves map[Path]*LeafRecord
	hashes int
	reads  int
}

func (a *countingAccessor) State() TreeState { return a.state }

func (a *countingAccessor) FindHash(p Path) (Hash, error) {
	a.hashes++
	if !a.state.Contains(p) {
		return NullHash, ErrNotFound
	}
	return Hash{byte(p)}, nil
}

func (a *countingAccessor) FindLeafRecord(p Path) (*LeafRecord, error) {
	a.reads++
	rec, ok := a.leaves[p]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func TestCachedAccessor(t *testing.T) {
	ra := &countingAccessor{
		state:  TreeStateForLeafCount(2),
		leaves: map[Path]*LeafRecord{1: {Path: 1, Key: []byte("a")}},
	}
	_, err := NewCachedAccessor(ra, 0)
	require.Error(t, err)
	c, err := NewCachedAccessor(ra, 2)
	require.NoError(t, err)
	require.Equal(t, ra.state, c.State())

	for range 3 {
		h, err := c.FindHash(2)
		require.NoError(t, err)
		require.Equal(t, Hash{2}, h)
		rec, err := c.FindLeafRecord(1)
		require.NoError(t, err)
		require.Equal(t, []byte("a"), rec.Key)
	}
	require.Equal(t, 1, ra.hashes)
	require.Equal(t, 1, ra.reads)

	// misses are not cached
	for range 2 {
		_, err = c.FindHash(5)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = c.FindLeafRecord(2)
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Equal(t, 3, ra.hashes)
	require.Equal(t, 3, ra.reads)

	// 2 is evicted
	_, err = c.FindHash(0)
	require.NoError(t, err)
	_, err = c.FindHash(1)
	require.NoError(t, err)
	_, err = c.FindHash(2)
	require.NoError(t, err)
	require.Equal(t, 6, ra.hashes)
}
