package traversal

import (
	"sync"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// cleanSet holds the highest known clean internal nodes. When a node is
// added, its children are dropped, so no member is a descendant of another.
type cleanSet struct {
	mu    sync.RWMutex
	nodes map[vtree.Path]struct{}
}

func newCleanSet() *cleanSet {
	return &cleanSet{nodes: make(map[vtree.Path]struct{})}
}

// add records p as clean unless it's already covered by a clean ancestor.
// It returns false if p was covered.
func (s *cleanSet) add(p vtree.Path) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coveringLocked(p) != vtree.InvalidPath {
		return false
	}
	s.nodes[p] = struct{}{}
	delete(s.nodes, p.LeftChild())
	delete(s.nodes, p.RightChild())
	return true
}

// covering returns the clean node that p or one of its ancestors is, or
// InvalidPath.
func (s *cleanSet) covering(p vtree.Path) vtree.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coveringLocked(p)
}

func (s *cleanSet) coveringLocked(p vtree.Path) vtree.Path {
	if len(s.nodes) == 0 {
		return vtree.InvalidPath
	}
	for ; p != vtree.InvalidPath; p = p.Parent() {
		if _, ok := s.nodes[p]; ok {
			return p
		}
	}
	return vtree.InvalidPath
}

func (s *cleanSet) contains(p vtree.Path) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[p]
	return ok
}

func (s *cleanSet) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
