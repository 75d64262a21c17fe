package reconnect

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// NodeRemover finds the leaves of the learner's original tree that are no
// longer part of the tree being reconstructed. A mark names the original
// path and key of a leaf. A marked key may reappear elsewhere in the new
// tree; marks are reconciled against the store at flush time, see
// vtreedb.DB.Flush, which then removes only the record at the old path.
type NodeRemover struct {
	logger   *zap.Logger
	original vtree.RecordAccessor
	oldState vtree.TreeState

	mu       sync.Mutex
	newState vtree.TreeState
	pending  map[string]vtree.LeafRecord
	marked   int
}

var _ vtree.StaleRecordSource = &NodeRemover{}

// NewNodeRemover creates a remover for the original tree.
func NewNodeRemover(logger *zap.Logger, original vtree.RecordAccessor) *NodeRemover {
	return &NodeRemover{
		logger:   logger,
		original: original,
		oldState: original.State(),
		newState: vtree.EmptyTreeState,
		pending:  make(map[string]vtree.LeafRecord),
	}
}

// SetPathInformation records the state of the new tree. Original leaves at
// paths that become internal nodes are marked stale.
func (r *NodeRemover) SetPathInformation(state vtree.TreeState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newState = state
	if r.oldState.IsEmpty() {
		return nil
	}
	end := min(state.FirstLeafPath, r.oldState.LastLeafPath+1)
	for p := r.oldState.FirstLeafPath; p < end; p++ {
		if err := r.markLocked(p); err != nil {
			return err
		}
	}
	return nil
}

// NewLeafNode is called for a leaf received from the teacher. If the original
// tree had a different key at the path, the original leaf is marked stale.
func (r *NodeRemover) NewLeafNode(p vtree.Path, key []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.pending[string(key)]; ok {
		// the mark stays: Flush keeps the index entry once it points to p
		r.logger.Debug("leaf moved",
			zap.Binary("key", key),
			zap.Int64("from", int64(old.Path)),
			zap.Int64("to", int64(p)))
	}
	if !r.oldState.IsLeaf(p) {
		return nil
	}
	old, err := r.original.FindLeafRecord(p)
	switch {
	case errors.Is(err, vtree.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("original leaf at %d: %w", p, err)
	case string(old.Key) == string(key):
		return nil
	}
	r.addLocked(old)
	return nil
}

// AllNodesReceived marks the original leaves past the end of the new tree.
func (r *NodeRemover) AllNodesReceived() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.oldState.IsEmpty() {
		return nil
	}
	start := max(r.newState.LastLeafPath+1, r.oldState.FirstLeafPath)
	for p := start; p <= r.oldState.LastLeafPath; p++ {
		if err := r.markLocked(p); err != nil {
			return err
		}
	}
	return nil
}

// RecordsToDelete returns the records marked since the previous call, ordered
// by path.
func (r *NodeRemover) RecordsToDelete() []vtree.LeafRecord {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]vtree.LeafRecord)
	r.mu.Unlock()
	recs := slices.Collect(maps.Values(pending))
	slices.SortFunc(recs, func(a, b vtree.LeafRecord) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return recs
}

// Marked returns the number of distinct records marked so far.
func (r *NodeRemover) Marked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marked
}

func (r *NodeRemover) markLocked(p vtree.Path) error {
	rec, err := r.original.FindLeafRecord(p)
	switch {
	case errors.Is(err, vtree.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("original leaf at %d: %w", p, err)
	}
	r.addLocked(rec)
	return nil
}

func (r *NodeRemover) addLocked(rec *vtree.LeafRecord) {
	if _, ok := r.pending[string(rec.Key)]; ok {
		return
	}
	r.pending[string(rec.Key)] = vtree.LeafRecord{Path: rec.Path, Key: rec.Key}
	r.marked++
}
