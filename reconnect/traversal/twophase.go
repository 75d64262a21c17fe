package traversal

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// twoPhase first requests internal nodes, chunk by chunk, then waits for all
// of their responses and requests the leaves that aren't under clean nodes.
type twoPhase struct {
	base

	mu      sync.Mutex
	walkers []*levelWalker
	leaves  *levelWalker

	sentInternal     atomic.Int64
	receivedInternal atomic.Int64
}

func (o *twoPhase) Start(state vtree.TreeState, counter NodeCounter) {
	o.start(state, counter)
	if !o.chunkingEnabled() {
		o.walkers = []*levelWalker{newLevelWalker(vtree.RootPath, 1, state.FirstLeafPath)}
	} else {
		rank := o.opts.chunkRank
		o.walkers = append(o.walkers, newLevelWalker(vtree.RootPath, 1, vtree.FirstPathInRank(rank)))
		for q := vtree.FirstPathInRank(rank); q <= vtree.LastPathInRank(rank); q++ {
			o.walkers = append(o.walkers, newLevelWalker(q, q, state.FirstLeafPath))
		}
	}
	o.leaves = newLevelWalker(vtree.RootPath, state.FirstLeafPath, state.LastLeafPath+1)
}

func (o *twoPhase) NextPathToSend(ctx context.Context) (vtree.Path, error) {
	if err := ctx.Err(); err != nil {
		return vtree.InvalidPath, err
	}
	if o.finished() {
		return vtree.InvalidPath, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.walkers) > 0 {
		if p := o.walkers[0].next(o.clean); p != vtree.InvalidPath {
			o.sentInternal.Add(1)
			return p, nil
		}
		o.walkers = o.walkers[1:]
		if len(o.walkers) == 0 {
			o.opts.logger.Debug("internal nodes requested, waiting for responses",
				zap.Int64("sent", o.sentInternal.Load()))
			if err := o.waiter.waitFor(ctx, o.internalDone); err != nil {
				return vtree.InvalidPath, err
			}
			if o.finished() {
				return vtree.InvalidPath, nil
			}
		}
	}
	return o.leaves.next(o.clean), nil
}

func (o *twoPhase) internalDone() bool {
	return o.receivedInternal.Load() >= o.sentInternal.Load()
}

func (o *twoPhase) NodeReceived(p vtree.Path, clean bool) {
	o.received(p, clean)
	if p != vtree.RootPath && o.state.IsInternal(p) {
		o.receivedInternal.Add(1)
	}
}
