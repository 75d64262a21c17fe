package traversal

import (
	"context"
	"sync"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// topToBottom requests nodes rank by rank, skipping subtrees under clean
// nodes. It is simple, but a clean response only helps the nodes that
// haven't been requested yet, which at the lower ranks is rarely the case
// when responses lag.
type topToBottom struct {
	base
	mu     sync.Mutex
	walker *levelWalker
}

func (o *topToBottom) Start(state vtree.TreeState, counter NodeCounter) {
	o.start(state, counter)
	o.walker = newLevelWalker(vtree.RootPath, 1, state.LastLeafPath+1)
}

func (o *topToBottom) NextPathToSend(ctx context.Context) (vtree.Path, error) {
	if err := ctx.Err(); err != nil {
		return vtree.InvalidPath, err
	}
	if o.finished() {
		return vtree.InvalidPath, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.walker.next(o.clean), nil
}

func (o *topToBottom) NodeReceived(p vtree.Path, clean bool) {
	o.received(p, clean)
}
