package traversal

import (
	"context"
	"fmt"

	"github.com/spacemeshos/go-vreconnect/reconnect/queue"
	"github.com/spacemeshos/go-vreconnect/vtree"
)

// twoPhasePessimistic requests internal nodes top to bottom and queues the
// leaf parents among them. The leaves of a parent are requested only after
// its response turns out dirty. Responses must arrive in request order, as
// the flags of leaf parents are matched with the queued parents by position,
// so there must be a single sender.
type twoPhasePessimistic struct {
	base

	internal *levelWalker
	parents  *queue.MonotonicQueue
	flags    *queue.BoolQueue
	pending  []vtree.Path
}

func newPessimistic(b base) *twoPhasePessimistic {
	return &twoPhasePessimistic{
		base:    b,
		parents: queue.NewMonotonicQueue(queue.DefaultBucketBits),
		flags:   queue.NewBoolQueue(queue.DefaultChunkSize),
	}
}

func (o *twoPhasePessimistic) Start(state vtree.TreeState, counter NodeCounter) {
	o.start(state, counter)
	o.internal = newLevelWalker(vtree.RootPath, 1, state.FirstLeafPath)
	if state.IsLeafParent(vtree.RootPath) {
		o.mustQueue(vtree.RootPath)
	}
}

func (o *twoPhasePessimistic) mustQueue(p vtree.Path) {
	if err := o.parents.Add(int64(p)); err != nil {
		panic(fmt.Sprintf("BUG: queue leaf parent %d: %v", p, err))
	}
}

func (o *twoPhasePessimistic) NextPathToSend(ctx context.Context) (vtree.Path, error) {
	if err := ctx.Err(); err != nil {
		return vtree.InvalidPath, err
	}
	if o.finished() {
		return vtree.InvalidPath, nil
	}
	if o.internal != nil {
		p := o.internal.next(o.clean)
		if p != vtree.InvalidPath {
			if o.state.IsLeafParent(p) {
				o.mustQueue(p)
			}
			return p, nil
		}
		o.internal = nil
	}
	for len(o.pending) == 0 {
		if o.parents.Size() == 0 {
			return vtree.InvalidPath, nil
		}
		v, err := o.parents.Remove()
		if err != nil {
			return vtree.InvalidPath, err
		}
		parent := vtree.Path(v)
		if err := o.waiter.waitFor(ctx, func() bool { return o.flags.Size() > 0 }); err != nil {
			return vtree.InvalidPath, err
		}
		clean, err := o.flags.Remove()
		if err != nil {
			return vtree.InvalidPath, err
		}
		if clean || o.clean.covering(parent) != vtree.InvalidPath {
			continue
		}
		for _, c := range []vtree.Path{parent.LeftChild(), parent.RightChild()} {
			if o.state.IsLeaf(c) {
				o.pending = append(o.pending, c)
			}
		}
	}
	p := o.pending[0]
	o.pending = o.pending[1:]
	return p, nil
}

func (o *twoPhasePessimistic) NodeReceived(p vtree.Path, clean bool) {
	o.received(p, clean)
	if o.state.IsLeafParent(p) {
		o.flags.Add(clean)
	}
}
