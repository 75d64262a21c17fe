package traversal

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// testStates returns all valid non-empty tree states with up to maxFirst as
// the first leaf path.
func testStates(maxFirst vtree.Path) []vtree.TreeState {
	states := []vtree.TreeState{{FirstLeafPath: 1, LastLeafPath: 1}}
	for first := vtree.Path(1); first <= maxFirst; first++ {
		if first > 1 {
			states = append(states, vtree.TreeState{FirstLeafPath: first, LastLeafPath: 2*first - 1})
		}
		states = append(states, vtree.TreeState{FirstLeafPath: first, LastLeafPath: 2 * first})
	}
	return states
}

func TestCleanSet(t *testing.T) {
	s := newCleanSet()
	require.Equal(t, vtree.InvalidPath, s.covering(5))
	require.True(t, s.add(3))
	require.True(t, s.add(4))
	require.Equal(t, 2, s.size())
	require.Equal(t, vtree.Path(3), s.covering(3))
	require.Equal(t, vtree.Path(3), s.covering(7))
	require.Equal(t, vtree.Path(3), s.covering(vtree.Path(3).LeftmostDescendant(3)))
	require.Equal(t, vtree.InvalidPath, s.covering(5))

	// children are replaced by their parent
	require.True(t, s.add(1))
	require.Equal(t, 1, s.size())
	require.True(t, s.contains(1))
	require.False(t, s.contains(3))
	require.False(t, s.add(4))
	require.False(t, s.add(1))
	require.Equal(t, vtree.InvalidPath, s.covering(2))
	require.Equal(t, vtree.InvalidPath, s.covering(0))
}

func TestLeafLayout(t *testing.T) {
	for _, state := range testStates(40) {
		layout := newLeafLayout(state)
		leaves := slices.Collect(state.Leaves())
		require.Equal(t, int64(len(leaves)), layout.count(), "state %s", state)
		for i, p := range leaves {
			require.Equal(t, int64(i), layout.indexOf(p))
			require.Equal(t, p, layout.leafAt(int64(i)))
		}
		for a := vtree.Path(0); a < state.FirstLeafPath; a++ {
			var under []vtree.Path
			for _, p := range leaves {
				if p.IsDescendantOf(a) {
					under = append(under, p)
				}
			}
			require.NotEmpty(t, under)
			require.Equal(t, under[0], layout.firstLeafUnder(a), "state %s node %d", state, a)
			require.Equal(t, under[len(under)-1], layout.lastLeafUnder(a), "state %s node %d", state, a)
			// leaves of a subtree are contiguous in layout order
			require.Equal(t, int64(len(under)-1),
				layout.indexOf(under[len(under)-1])-layout.indexOf(under[0]))
		}
	}
	require.Zero(t, newLeafLayout(vtree.EmptyTreeState).count())
}

func collectLevel(w *levelWalker, clean *cleanSet) []vtree.Path {
	var out []vtree.Path
	for p := w.next(clean); p != vtree.InvalidPath; p = w.next(clean) {
		out = append(out, p)
	}
	return out
}

func TestLevelWalker(t *testing.T) {
	for _, state := range testStates(40) {
		clean := newCleanSet()
		got := collectLevel(newLevelWalker(vtree.RootPath, 1, state.LastLeafPath+1), clean)
		var expected []vtree.Path
		for p := vtree.Path(1); p <= state.LastLeafPath; p++ {
			expected = append(expected, p)
		}
		require.Equal(t, expected, got, "state %s", state)

		if state.FirstLeafPath < 3 {
			continue
		}
		for q := vtree.Path(1); q <= 2; q++ {
			got := collectLevel(newLevelWalker(q, q, state.FirstLeafPath), clean)
			expected = expected[:0]
			for p := q; p < state.FirstLeafPath; p++ {
				if p.IsDescendantOf(q) {
					expected = append(expected, p)
				}
			}
			require.Equal(t, expected, got, "state %s subtree %d", state, q)
		}
	}
}

func TestLevelWalkerSkipsClean(t *testing.T) {
	state := vtree.TreeStateForLeafCount(16)
	clean := newCleanSet()
	w := newLevelWalker(vtree.RootPath, 1, state.LastLeafPath+1)
	require.Equal(t, vtree.Path(1), w.next(clean))
	require.Equal(t, vtree.Path(2), w.next(clean))
	clean.add(1)
	got := collectLevel(w, clean)
	for _, p := range got {
		require.False(t, p.IsDescendantOf(1), "path %d", p)
	}
	require.Equal(t, []vtree.Path{5, 6, 11, 12, 13, 14, 23, 24, 25, 26, 27, 28, 29, 30}, got)

	// a clean subtree root ends a subtree walk
	w = newLevelWalker(2, 2, state.FirstLeafPath)
	clean.add(2)
	require.Equal(t, vtree.InvalidPath, w.next(clean))
}

func TestLeafWalkerOrder(t *testing.T) {
	for _, state := range testStates(40) {
		layout := newLeafLayout(state)
		clean := newCleanSet()
		w := newLeafWalker(layout, vtree.RootPath, 0, layout.count()-1)
		seen := make(map[vtree.Path]int)
		var i int
		for p := w.next(clean); p != vtree.InvalidPath; p = w.next(clean) {
			_, dup := seen[p]
			require.False(t, dup, "state %s path %d", state, p)
			seen[p] = i
			i++
		}
		require.True(t, w.done())
		require.Len(t, seen, int(state.LastLeafPath), "state %s", state)
		for p := vtree.Path(1); p < state.FirstLeafPath; p++ {
			require.Greater(t, seen[p], seen[layout.firstLeafUnder(p)], "state %s node %d", state, p)
		}
	}
}

func TestLeafWalkerSkipsClean(t *testing.T) {
	state := vtree.TreeStateForLeafCount(8)
	layout := newLeafLayout(state)
	clean := newCleanSet()
	w := newLeafWalker(layout, vtree.RootPath, 0, layout.count()-1)
	require.Equal(t, vtree.Path(7), w.next(clean))
	require.Equal(t, vtree.Path(3), w.next(clean))
	require.Equal(t, vtree.Path(1), w.next(clean))
	clean.add(1)
	require.Equal(t, vtree.Path(11), w.next(clean))
	require.Equal(t, vtree.Path(5), w.next(clean))
	require.Equal(t, vtree.Path(2), w.next(clean))
	clean.add(2)
	require.Equal(t, vtree.InvalidPath, w.next(clean))
	require.True(t, w.done())
}
