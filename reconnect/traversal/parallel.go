package traversal

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

type chunk struct {
	mu     sync.Mutex
	root   vtree.Path
	walker *leafWalker
}

// parallelBottomUp requests the nodes above the chunk rank first and then
// traverses the subtrees rooted at the chunk rank bottom-up. Subtrees are
// picked in round robin, so concurrent senders mostly work on different
// subtrees.
type parallelBottomUp struct {
	base
	topMu  sync.Mutex
	top    *levelWalker
	chunks []*chunk
	next   atomic.Uint64
}

func (o *parallelBottomUp) Start(state vtree.TreeState, counter NodeCounter) {
	o.start(state, counter)
	layout := newLeafLayout(state)
	if !o.chunkingEnabled() {
		o.opts.logger.Debug("tree too small for chunks, traversing bottom-up",
			zap.Object("state", state),
			zap.Int("chunk_rank", o.opts.chunkRank))
		o.chunks = []*chunk{{
			root:   vtree.RootPath,
			walker: newLeafWalker(layout, vtree.RootPath, 0, layout.count()-1),
		}}
		return
	}
	rank := o.opts.chunkRank
	o.top = newLevelWalker(vtree.RootPath, 1, vtree.FirstPathInRank(rank))
	for q := vtree.FirstPathInRank(rank); q <= vtree.LastPathInRank(rank) && q <= state.LastLeafPath; q++ {
		lo := layout.indexOf(layout.firstLeafUnder(q))
		hi := layout.indexOf(layout.lastLeafUnder(q))
		o.chunks = append(o.chunks, &chunk{
			root:   q,
			walker: newLeafWalker(layout, q.Parent(), lo, hi),
		})
	}
}

func (o *parallelBottomUp) NextPathToSend(ctx context.Context) (vtree.Path, error) {
	if err := ctx.Err(); err != nil {
		return vtree.InvalidPath, err
	}
	if o.finished() {
		return vtree.InvalidPath, nil
	}
	if p := o.nextTop(); p != vtree.InvalidPath {
		return p, nil
	}
	n := uint64(len(o.chunks))
	start := o.next.Add(1)
	// visiting every chunk before giving up makes sure a sender doesn't stop
	// while other chunks still have nodes
	for i := range n {
		c := o.chunks[(start+i)%n]
		c.mu.Lock()
		p := c.walker.next(o.clean)
		c.mu.Unlock()
		if p != vtree.InvalidPath {
			return p, nil
		}
	}
	return vtree.InvalidPath, nil
}

func (o *parallelBottomUp) nextTop() vtree.Path {
	o.topMu.Lock()
	defer o.topMu.Unlock()
	if o.top == nil {
		return vtree.InvalidPath
	}
	p := o.top.next(o.clean)
	if p == vtree.InvalidPath {
		o.top = nil
	}
	return p
}

func (o *parallelBottomUp) NodeReceived(p vtree.Path, clean bool) {
	o.received(p, clean)
}

func (o *parallelBottomUp) Concurrent() bool {
	return true
}
