// Package traversal implements the orders in which a learner requests the
// nodes of the teacher's tree.
package traversal

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// Order decides which node the learner requests next.
//
// The learner requests the root itself. When the root response arrives, it
// calls Start with the teacher's tree state and then NodeReceived for the
// root. From then on, NextPathToSend is called until it returns InvalidPath,
// and NodeReceived is called for every response in the order responses
// arrive. Once a node is known to be clean, no node in its subtree is
// returned by NextPathToSend.
type Order interface {
	Start(state vtree.TreeState, counter NodeCounter)
	// NextPathToSend returns the next path to request or InvalidPath if there
	// is nothing left. It may block waiting for responses.
	NextPathToSend(ctx context.Context) (vtree.Path, error)
	NodeReceived(p vtree.Path, clean bool)
	// Concurrent reports whether NextPathToSend may be called from several
	// goroutines at once.
	Concurrent() bool
}

// NodeCounter collects statistics about the received nodes. A node is
// redundant if it was already covered by a clean ancestor when its response
// was received.
type NodeCounter interface {
	IncrementLeafCount()
	IncrementRedundantLeafCount()
	IncrementInternalCount()
	IncrementRedundantInternalCount()
}

// Counts is a NodeCounter safe for concurrent use.
type Counts struct {
	Leaves            atomic.Int64
	RedundantLeaves   atomic.Int64
	Internal          atomic.Int64
	RedundantInternal atomic.Int64
}

var _ NodeCounter = &Counts{}

func (c *Counts) IncrementLeafCount()              { c.Leaves.Add(1) }
func (c *Counts) IncrementRedundantLeafCount()     { c.RedundantLeaves.Add(1) }
func (c *Counts) IncrementInternalCount()          { c.Internal.Add(1) }
func (c *Counts) IncrementRedundantInternalCount() { c.RedundantInternal.Add(1) }

// Kind names a traversal order.
type Kind string

const (
	// KindTopToBottom requests nodes rank by rank starting at the root.
	KindTopToBottom Kind = "top-to-bottom"
	// KindBottomUp requests leaves left to right, each followed by the
	// ancestors it is the leftmost leaf of.
	KindBottomUp Kind = "bottom-up"
	// KindParallel splits the tree into subtrees traversed bottom-up in
	// round robin by several senders.
	KindParallel Kind = "parallel"
	// KindTwoPhase requests all internal nodes subtree by subtree and then
	// the leaves of subtrees that didn't turn out clean.
	KindTwoPhase Kind = "two-phase"
	// KindTwoPhasePessimistic requests internal nodes and then leaves, only
	// after the response for their parent is known to be dirty.
	KindTwoPhasePessimistic Kind = "two-phase-pessimistic"
)

// Kinds lists all supported traversal orders.
var Kinds = []Kind{KindTopToBottom, KindBottomUp, KindParallel, KindTwoPhase, KindTwoPhasePessimistic}

// DefaultChunkRank is the default rank of subtree roots for chunked orders.
const DefaultChunkRank = 4

// MaxChunkRank is the highest accepted chunk rank. It bounds the number of
// chunks.
const MaxChunkRank = 20

// Opt modifies a traversal order.
type Opt func(*options)

type options struct {
	logger    *zap.Logger
	chunkRank int
	backoff   Backoff
	clock     clockwork.Clock
	onWait    func()
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) {
		o.logger = logger
	}
}

// WithChunkRank sets the rank of subtree roots used by chunked orders.
func WithChunkRank(rank int) Opt {
	return func(o *options) {
		o.chunkRank = rank
	}
}

// WithBackoff sets the policy for waiting on responses.
func WithBackoff(b Backoff) Opt {
	return func(o *options) {
		o.backoff = b
	}
}

// WithWaitHook sets a function called before each sleep while waiting on
// responses. The learner uses it to flush buffered requests.
func WithWaitHook(f func()) Opt {
	return func(o *options) {
		o.onWait = f
	}
}

// WithClock specifies the clock used for backoff sleeps.
func WithClock(clock clockwork.Clock) Opt {
	return func(o *options) {
		o.clock = clock
	}
}

// New creates a traversal order of the given kind.
func New(kind Kind, opts ...Opt) (Order, error) {
	o := options{
		logger:    zap.NewNop(),
		chunkRank: DefaultChunkRank,
		backoff:   DefaultBackoff(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkRank < 1 || o.chunkRank > MaxChunkRank {
		return nil, fmt.Errorf("chunk rank %d out of range [1, %d]", o.chunkRank, MaxChunkRank)
	}
	switch kind {
	case KindTopToBottom:
		return &topToBottom{base: newBase(o)}, nil
	case KindBottomUp:
		return &bottomUp{base: newBase(o)}, nil
	case KindParallel:
		return &parallelBottomUp{base: newBase(o)}, nil
	case KindTwoPhase:
		return &twoPhase{base: newBase(o)}, nil
	case KindTwoPhasePessimistic:
		return newPessimistic(newBase(o)), nil
	default:
		return nil, fmt.Errorf("unknown traversal order %q", kind)
	}
}

// base holds what all orders share: the tree state, the clean set and the
// bookkeeping of received nodes.
type base struct {
	opts    options
	waiter  *waiter
	state   vtree.TreeState
	counter NodeCounter
	clean   *cleanSet
}

func newBase(o options) base {
	return base{
		opts:   o,
		waiter: &waiter{Backoff: o.backoff, clock: o.clock, onWait: o.onWait},
		clean:  newCleanSet(),
	}
}

func (b *base) start(state vtree.TreeState, counter NodeCounter) {
	if counter == nil {
		counter = &Counts{}
	}
	b.state = state
	b.counter = counter
}

// received records the response and reports whether it was redundant.
func (b *base) received(p vtree.Path, clean bool) bool {
	redundant := p != vtree.RootPath && b.clean.covering(p.Parent()) != vtree.InvalidPath
	if b.state.IsLeaf(p) {
		b.counter.IncrementLeafCount()
		if redundant {
			b.counter.IncrementRedundantLeafCount()
		}
		return redundant
	}
	b.counter.IncrementInternalCount()
	if redundant {
		b.counter.IncrementRedundantInternalCount()
	}
	if clean && !redundant && b.state.IsInternal(p) {
		b.clean.add(p)
	}
	return redundant
}

// finished reports whether there's nothing to send: the tree has no nodes
// besides the root or the root is clean.
func (b *base) finished() bool {
	return b.state.LastLeafPath < 1 || b.clean.contains(vtree.RootPath)
}

// chunkingEnabled reports whether subtrees rooted at the configured chunk
// rank fit above the leaves.
func (b *base) chunkingEnabled() bool {
	return b.state.LastLeafPath > 1 && b.opts.chunkRank <= b.state.LeafParentRank()
}

func (b *base) Concurrent() bool {
	return false
}
