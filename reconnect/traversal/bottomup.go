package traversal

import (
	"context"
	"sync"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// bottomUp requests leaves left to right. A node is requested right after
// the leftmost leaf of its subtree, so that a clean response for it arrives
// while most of its subtree is still to be requested.
type bottomUp struct {
	base
	mu     sync.Mutex
	walker *leafWalker
}

func (o *bottomUp) Start(state vtree.TreeState, counter NodeCounter) {
	o.start(state, counter)
	layout := newLeafLayout(state)
	o.walker = newLeafWalker(layout, vtree.RootPath, 0, layout.count()-1)
}

func (o *bottomUp) NextPathToSend(ctx context.Context) (vtree.Path, error) {
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

func (o *bottomUp) NodeReceived(p vtree.Path, clean bool) {
	o.received(p, clean)
}
