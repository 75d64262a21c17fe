package traversal

import "github.com/spacemeshos/go-vreconnect/vtree"

// levelWalker visits the nodes of a subtree rank by rank, left to right,
// starting at a given node and stopping at limit. Paths come out in
// ascending order. Subtrees of clean nodes are skipped.
type levelWalker struct {
	root  vtree.Path
	limit vtree.Path
	cur   vtree.Path
}

func newLevelWalker(root, start, limit vtree.Path) *levelWalker {
	return &levelWalker{root: root, limit: limit, cur: start}
}

func (w *levelWalker) advance(p vtree.Path) vtree.Path {
	d := p.Rank() - w.root.Rank()
	if p < w.root.RightmostDescendant(d) {
		return p + 1
	}
	return w.root.LeftmostDescendant(d + 1)
}

func (w *levelWalker) next(clean *cleanSet) vtree.Path {
	for {
		p := w.cur
		if p == vtree.InvalidPath || p >= w.limit {
			w.cur = vtree.InvalidPath
			return vtree.InvalidPath
		}
		if a := clean.covering(p); a != vtree.InvalidPath {
			if a.Rank() <= w.root.Rank() {
				w.cur = vtree.InvalidPath
				return vtree.InvalidPath
			}
			w.cur = w.advance(a.RightmostDescendant(p.Rank() - a.Rank()))
			continue
		}
		w.cur = w.advance(p)
		return p
	}
}

// leafWalker visits a contiguous run of leaves left to right. After a leaf,
// it walks up through the leaf's ancestors for as long as the node it came
// from is a left child, stopping below subroot. This way every internal node
// is visited right after the leftmost leaf of its subtree, and a clean
// response for it lets the walker skip the rest of the subtree.
type leafWalker struct {
	layout  leafLayout
	subroot vtree.Path
	cursor  int64
	hi      int64
	walking vtree.Path
}

func newLeafWalker(layout leafLayout, subroot vtree.Path, lo, hi int64) *leafWalker {
	return &leafWalker{
		layout:  layout,
		subroot: subroot,
		cursor:  lo,
		hi:      hi,
		walking: vtree.InvalidPath,
	}
}

func (w *leafWalker) next(clean *cleanSet) vtree.Path {
	for {
		if cur := w.walking; cur != vtree.InvalidPath {
			w.walking = vtree.InvalidPath
			if parent := cur.Parent(); cur.IsLeft() && parent != w.subroot {
				if clean.covering(parent) == vtree.InvalidPath {
					w.walking = parent
					return parent
				}
			}
		}
		if w.cursor > w.hi {
			return vtree.InvalidPath
		}
		leaf := w.layout.leafAt(w.cursor)
		if a := clean.covering(leaf); a != vtree.InvalidPath {
			w.cursor = w.layout.indexOf(w.layout.lastLeafUnder(a)) + 1
			continue
		}
		w.cursor++
		w.walking = leaf
		return leaf
	}
}

func (w *leafWalker) done() bool {
	return w.walking == vtree.InvalidPath && w.cursor > w.hi
}
