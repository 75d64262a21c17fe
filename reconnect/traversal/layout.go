package traversal

import "github.com/spacemeshos/go-vreconnect/vtree"

// leafLayout maps leaves to their positions in left-to-right order. Leaves
// at the deepest rank come first, followed by the leaves one rank above.
type leafLayout struct {
	first, last vtree.Path
	lowStart    vtree.Path
	lowCount    int64
	rank        int
}

func newLeafLayout(state vtree.TreeState) leafLayout {
	if state.IsEmpty() {
		return leafLayout{first: vtree.InvalidPath, last: vtree.InvalidPath}
	}
	r := state.LastLeafPath.Rank()
	lowStart := max(vtree.FirstPathInRank(r), state.FirstLeafPath)
	return leafLayout{
		first:    state.FirstLeafPath,
		last:     state.LastLeafPath,
		lowStart: lowStart,
		lowCount: int64(state.LastLeafPath - lowStart + 1),
		rank:     r,
	}
}

func (l leafLayout) count() int64 {
	if l.last < 1 {
		return 0
	}
	return int64(l.last - l.first + 1)
}

func (l leafLayout) indexOf(p vtree.Path) int64 {
	if p >= l.lowStart {
		return int64(p - l.lowStart)
	}
	return l.lowCount + int64(p-l.first)
}

func (l leafLayout) leafAt(i int64) vtree.Path {
	if i < l.lowCount {
		return l.lowStart + vtree.Path(i)
	}
	return l.first + vtree.Path(i-l.lowCount)
}

// firstLeafUnder returns the leftmost leaf in the subtree of a.
func (l leafLayout) firstLeafUnder(a vtree.Path) vtree.Path {
	d := l.rank - a.Rank()
	if lm := a.LeftmostDescendant(d); lm <= l.last {
		return lm
	}
	return a.LeftmostDescendant(d - 1)
}

// lastLeafUnder returns the rightmost leaf in the subtree of a.
func (l leafLayout) lastLeafUnder(a vtree.Path) vtree.Path {
	d := l.rank - a.Rank()
	if rm := a.RightmostDescendant(d); rm <= l.last {
		return rm
	}
	if rm := a.RightmostDescendant(d - 1); rm >= l.first {
		return rm
	}
	// the rightmost node one rank above the leaves has a single child
	return l.last
}
