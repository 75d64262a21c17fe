package vtree

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

const maxTestRank = 6

func TestRanks(t *testing.T) {
	require.Equal(t, -1, InvalidPath.Rank())
	require.Equal(t, 0, RootPath.Rank())
	for rank := 0; rank <= maxTestRank; rank++ {
		first, last := FirstPathInRank(rank), LastPathInRank(rank)
		require.Equal(t, int64(1)<<rank, int64(last-first+1))
		for p := first; p <= last; p++ {
			require.Equal(t, rank, p.Rank(), "path %d", p)
			require.Equal(t, p, PathForRankAndIndex(rank, p.IndexInRank()))
		}
	}
	require.Equal(t, 62, Path(1<<62).Rank())
}

func TestChildrenAndParent(t *testing.T) {
	require.Equal(t, InvalidPath, RootPath.Parent())
	require.Equal(t, InvalidPath, RootPath.Sibling())
	require.False(t, RootPath.IsLeft())
	require.False(t, RootPath.IsRight())
	for p := Path(0); p <= LastPathInRank(maxTestRank-1); p++ {
		l, r := p.LeftChild(), p.RightChild()
		require.True(t, l.IsLeft())
		require.True(t, r.IsRight())
		require.Equal(t, p, l.Parent())
		require.Equal(t, p, r.Parent())
		require.Equal(t, r, l.Sibling())
		require.Equal(t, l, r.Sibling())
		require.Equal(t, p.Rank()+1, l.Rank())
		require.Equal(t, 2*p.IndexInRank(), l.IndexInRank())
		require.Equal(t, 2*p.IndexInRank()+1, r.IndexInRank())
	}
	for p := Path(1); p <= LastPathInRank(maxTestRank); p++ {
		if p.IsLeft() {
			require.Equal(t, p, p.Parent().LeftChild())
		} else {
			require.Equal(t, p, p.Parent().RightChild())
		}
		require.Equal(t, p.Rank()-1, p.Parent().Rank())
	}
}

// naiveAncestor walks the parent chain.
func naiveAncestor(p Path, levels int) Path {
	for i := 0; i < levels && p != InvalidPath; i++ {
		p = p.Parent()
	}
	return p
}

func TestDescendants(t *testing.T) {
	for p := Path(0); p <= LastPathInRank(maxTestRank); p++ {
		for down := 0; p.Rank()+down <= maxTestRank; down++ {
			lm, rm := p.LeftmostDescendant(down), p.RightmostDescendant(down)
			l, r := p, p
			for i := 0; i < down; i++ {
				l = l.LeftChild()
				r = r.RightChild()
			}
			require.Equal(t, l, lm, "path %d down %d", p, down)
			require.Equal(t, r, rm, "path %d down %d", p, down)
			require.Equal(t, int64(1)<<down, int64(rm-lm+1))
			for d := lm; d <= rm; d++ {
				require.True(t, d.IsDescendantOf(p))
				require.Equal(t, p, d.AncestorAtLevelsAbove(down))
			}
			if lm > FirstPathInRank(lm.Rank()) {
				require.False(t, (lm - 1).IsDescendantOf(p))
			}
			if rm < LastPathInRank(rm.Rank()) {
				require.False(t, (rm + 1).IsDescendantOf(p))
			}
		}
	}
}

func TestAncestors(t *testing.T) {
	for p := Path(0); p <= LastPathInRank(maxTestRank); p++ {
		for levels := 0; levels <= maxTestRank+1; levels++ {
			require.Equal(t, naiveAncestor(p, levels), p.AncestorAtLevelsAbove(levels),
				"path %d levels %d", p, levels)
		}
		require.Equal(t, InvalidPath, p.AncestorAtLevelsAbove(-1))
		require.Equal(t, RootPath, p.AncestorAtRank(0))
		require.Equal(t, p, p.AncestorAtRank(p.Rank()))
		for a := Path(0); a <= LastPathInRank(maxTestRank); a++ {
			expected := false
			for q := p; q != InvalidPath; q = q.Parent() {
				if q == a {
					expected = true
					break
				}
			}
			require.Equal(t, expected, p.IsDescendantOf(a), "path %d ancestor %d", p, a)
		}
	}
	require.False(t, InvalidPath.IsDescendantOf(RootPath))
	require.False(t, RootPath.IsDescendantOf(InvalidPath))
}

func TestPathAlgebraFuzz(t *testing.T) {
	f := fuzz.New().NilChance(0)
	for i := 0; i < 10000; i++ {
		var v uint64
		f.Fuzz(&v)
		p := Path(v >> 8)
		require.Equal(t, p, p.LeftChild().Parent())
		require.Equal(t, p, p.RightChild().Parent())
		if p != RootPath {
			require.Equal(t, p.Rank()-1, p.Parent().Rank())
			require.Equal(t, p, p.Sibling().Sibling())
			require.True(t, p.IsDescendantOf(p.Parent()))
		}
		require.Equal(t, p, p.LeftmostDescendant(3).AncestorAtLevelsAbove(3))
		require.Equal(t, p, p.RightmostDescendant(3).AncestorAtLevelsAbove(3))
	}
}
