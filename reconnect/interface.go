package reconnect

import (
	"context"
	"io"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

//go:generate mockgen -typed -package=reconnect -destination=./mocks.go -source=./interface.go

// HashListener receives the nodes that differ between the learner's tree and
// the teacher's tree and reconstructs the learner's tree from them.
type HashListener interface {
	// Prepare is called once, when the teacher's tree state is known. Stale
	// records are to be drained from the source whenever changes are flushed.
	Prepare(ctx context.Context, state vtree.TreeState, stale vtree.StaleRecordSource) error
	// OnLeaf receives a leaf that differs from the learner's copy. It may
	// block if the listener falls behind.
	OnLeaf(ctx context.Context, rec *vtree.LeafRecord) error
	// OnInternal is called for each internal node that differs from the
	// learner's copy.
	OnInternal(p vtree.Path)
	// Finish completes the reconstruction and returns the new root hash.
	Finish(ctx context.Context) (vtree.Hash, error)
	// Abort stops the reconstruction after a failed session.
	Abort()
}

// Stream is an ordered duplex byte stream between a teacher and a learner.
type Stream interface {
	io.ReadWriteCloser
}

// writeCloser is implemented by streams that can be closed for writing only.
type writeCloser interface {
	CloseWrite() error
}
