package vtree

import (
	"math/bits"
	"strconv"
)

// Path is the address of a node in a complete binary tree laid out in
// breadth-first order: the root is 0, the children of p are 2p+1 and 2p+2.
type Path int64

const (
	// RootPath is the path of the tree root.
	RootPath Path = 0
	// InvalidPath marks the absence of a node.
	InvalidPath Path = -1
)

// FirstPathInRank returns the leftmost path at the given rank.
func FirstPathInRank(rank int) Path {
	return Path(1)<<rank - 1
}

// LastPathInRank returns the rightmost path at the given rank.
func LastPathInRank(rank int) Path {
	return Path(1)<<(rank+1) - 2
}

// PathForRankAndIndex returns the path of the index-th node at the rank,
// counting from the left starting with 0.
func PathForRankAndIndex(rank int, index int64) Path {
	return FirstPathInRank(rank) + Path(index)
}

// Valid reports whether p addresses a node.
func (p Path) Valid() bool {
	return p >= 0
}

// Rank returns the distance from the root to p.
func (p Path) Rank() int {
	if p < 0 {
		return -1
	}
	return bits.Len64(uint64(p)+1) - 1
}

// IndexInRank returns the position of p among the nodes of its rank.
func (p Path) IndexInRank() int64 {
	return int64(p - FirstPathInRank(p.Rank()))
}

// Parent returns the parent path or InvalidPath for the root.
func (p Path) Parent() Path {
	if p <= RootPath {
		return InvalidPath
	}
	return (p - 1) >> 1
}

// LeftChild returns the path of the left child.
func (p Path) LeftChild() Path {
	return 2*p + 1
}

// RightChild returns the path of the right child.
func (p Path) RightChild() Path {
	return 2*p + 2
}

// IsLeft reports whether p is the left child of its parent.
func (p Path) IsLeft() bool {
	return p > 0 && p&1 == 1
}

// IsRight reports whether p is the right child of its parent.
func (p Path) IsRight() bool {
	return p > 0 && p&1 == 0
}

// Sibling returns the other child of the parent of p. The root has no sibling.
func (p Path) Sibling() Path {
	switch {
	case p <= RootPath:
		return InvalidPath
	case p.IsLeft():
		return p + 1
	default:
		return p - 1
	}
}

// LeftmostDescendant returns the leftmost node levelsDown below p.
func (p Path) LeftmostDescendant(levelsDown int) Path {
	return (p+1)<<levelsDown - 1
}

// RightmostDescendant returns the rightmost node levelsDown below p.
func (p Path) RightmostDescendant(levelsDown int) Path {
	return (p+2)<<levelsDown - 2
}

// AncestorAtLevelsAbove returns the ancestor of p that is levels ranks closer
// to the root, p itself for 0, or InvalidPath if there is no such node.
func (p Path) AncestorAtLevelsAbove(levels int) Path {
	if p < 0 || levels < 0 || levels > p.Rank() {
		return InvalidPath
	}
	return (p+1)>>levels - 1
}

// AncestorAtRank returns the ancestor of p at the given rank.
func (p Path) AncestorAtRank(rank int) Path {
	return p.AncestorAtLevelsAbove(p.Rank() - rank)
}

// IsDescendantOf reports whether p is in the subtree rooted at ancestor,
// ancestor itself included.
func (p Path) IsDescendantOf(ancestor Path) bool {
	if p < 0 || ancestor < 0 {
		return false
	}
	diff := p.Rank() - ancestor.Rank()
	if diff < 0 {
		return false
	}
	return p.AncestorAtLevelsAbove(diff) == ancestor
}

func (p Path) String() string {
	return strconv.FormatInt(int64(p), 10)
}
