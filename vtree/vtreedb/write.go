package vtreedb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/codec"
	"github.com/spacemeshos/go-vreconnect/vtree"
)

// Batch accumulates writes that are applied atomically by Flush.
type Batch struct {
	b      leveldb.Batch
	leaves int
}

// NewBatch creates an empty batch.
func (db *DB) NewBatch() *Batch {
	return &Batch{}
}

// PutLeaf stores the leaf record, its key index entry and its hash.
func (b *Batch) PutLeaf(rec *vtree.LeafRecord) {
	b.b.Put(pathKey(prefixLeaf, rec.Path), codec.MustEncode(rec))
	var p [8]byte
	binary.BigEndian.PutUint64(p[:], uint64(rec.Path))
	b.b.Put(indexKey(rec.Key), p[:])
	h := vtree.HashLeaf(rec.Key, rec.Value)
	b.b.Put(pathKey(prefixHash, rec.Path), h[:])
	b.leaves++
}

// PutHash stores the hash of a node.
func (b *Batch) PutHash(p vtree.Path, h vtree.Hash) {
	b.b.Put(pathKey(prefixHash, p), h[:])
}

// Leaves returns the number of leaves in the batch.
func (b *Batch) Leaves() int {
	return b.leaves
}

// Reset clears the batch.
func (b *Batch) Reset() {
	b.b.Reset()
	b.leaves = 0
}

// Flush writes the batch and then removes the stale records. A stale record
// is removed only where it is still current: its key index entry is deleted
// if the key still maps to the record path, and the leaf at the path is
// deleted if it still holds the record key. Records whose key moved to
// another path or whose path got a new key are left alone. Flush returns
// the number of removed leaf records.
func (db *DB) Flush(batch *Batch, stale []vtree.LeafRecord) (int, error) {
	if batch != nil && batch.b.Len() > 0 {
		if err := db.db.Write(&batch.b, nil); err != nil {
			return 0, fmt.Errorf("write batch: %w", err)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	var (
		del     leveldb.Batch
		removed int
	)
	for i := range stale {
		rec := &stale[i]
		p, err := db.FindLeafPath(rec.Key)
		switch {
		case errors.Is(err, vtree.ErrNotFound):
		case err != nil:
			return 0, err
		case p == rec.Path:
			del.Delete(indexKey(rec.Key))
		}
		cur, err := db.FindLeafRecord(rec.Path)
		switch {
		case errors.Is(err, vtree.ErrNotFound):
		case err != nil:
			return 0, err
		case sameKey(cur, rec.Key):
			del.Delete(pathKey(prefixLeaf, rec.Path))
			removed++
		default:
			db.logger.Debug("stale record superseded",
				zap.Int64("path", int64(rec.Path)),
				zap.Binary("key", rec.Key))
		}
	}
	if del.Len() == 0 {
		return 0, nil
	}
	if err := db.db.Write(&del, nil); err != nil {
		return 0, fmt.Errorf("delete stale records: %w", err)
	}
	return removed, nil
}

// PruneHashesAfter removes hashes of all nodes past the last path.
func (db *DB) PruneHashesAfter(last vtree.Path) error {
	r := &util.Range{
		Start: pathKey(prefixHash, last+1),
		Limit: pathKey(prefixHash, math.MaxInt64),
	}
	it := db.db.NewIterator(r, nil)
	defer it.Release()
	var (
		del leveldb.Batch
		n   int
	)
	for it.Next() {
		del.Delete(append([]byte(nil), it.Key()...))
		n++
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate hashes: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := db.db.Write(&del, nil); err != nil {
		return fmt.Errorf("prune hashes: %w", err)
	}
	db.logger.Debug("pruned hashes", zap.Int64("after", int64(last)), zap.Int("count", n))
	return nil
}

// Clear removes all records.
func (db *DB) Clear() error {
	it := db.db.NewIterator(nil, nil)
	defer it.Release()
	var del leveldb.Batch
	for it.Next() {
		del.Delete(append([]byte(nil), it.Key()...))
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	if err := db.db.Write(&del, nil); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	db.mu.Lock()
	db.state = vtree.EmptyTreeState
	db.mu.Unlock()
	return nil
}

// KeyValue is the content of a leaf.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Build replaces the content of the database with a tree holding the
// leaves in left-to-right order and returns its root hash.
func (db *DB) Build(kvs []KeyValue) (vtree.Hash, error) {
	return db.BuildState(vtree.TreeStateForLeafCount(int64(len(kvs))), kvs)
}

// BuildState is like Build but lays the leaves out in the given state, which
// must hold exactly len(kvs) leaves.
func (db *DB) BuildState(state vtree.TreeState, kvs []KeyValue) (vtree.Hash, error) {
	if err := state.Validate(); err != nil {
		return vtree.NullHash, err
	}
	if state.LeafCount() != int64(len(kvs)) {
		return vtree.NullHash, fmt.Errorf("%d leaves don't fit tree %s", len(kvs), state)
	}
	if err := db.Clear(); err != nil {
		return vtree.NullHash, err
	}
	if state.IsEmpty() {
		return vtree.NullHash, db.SetState(state)
	}
	batch := db.NewBatch()
	hashes := make(map[vtree.Path]vtree.Hash, 2*len(kvs))
	i := 0
	for p := range state.Leaves() {
		kv := kvs[i]
		i++
		batch.PutLeaf(&vtree.LeafRecord{Path: p, Key: kv.Key, Value: kv.Value})
		hashes[p] = vtree.HashLeaf(kv.Key, kv.Value)
	}
	for p := state.FirstLeafPath - 1; p >= vtree.RootPath; p-- {
		h := vtree.HashInternal(hashes[p.LeftChild()], hashes[p.RightChild()])
		hashes[p] = h
		batch.PutHash(p, h)
	}
	if _, err := db.Flush(batch, nil); err != nil {
		return vtree.NullHash, err
	}
	if err := db.SetState(state); err != nil {
		return vtree.NullHash, err
	}
	return hashes[vtree.RootPath], nil
}

// Rehash recomputes the hashes of the internal nodes from their children,
// processing paths from the highest to the lowest. The current tree state
// bounds the lookups.
func (db *DB) Rehash(paths []vtree.Path) (vtree.Hash, error) {
	state := db.State()
	computed := make(map[vtree.Path]vtree.Hash, len(paths))
	lookup := func(p vtree.Path) (vtree.Hash, error) {
		if !state.Contains(p) {
			return vtree.NullHash, nil
		}
		if h, ok := computed[p]; ok {
			return h, nil
		}
		return db.FindHash(p)
	}
	batch := db.NewBatch()
	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		if i > 0 && paths[i-1] >= p {
			return vtree.NullHash, fmt.Errorf("rehash: paths not sorted at %d", p)
		}
		if !state.IsInternal(p) {
			continue
		}
		left, err := lookup(p.LeftChild())
		if err != nil {
			return vtree.NullHash, fmt.Errorf("rehash %d: left child: %w", p, err)
		}
		right, err := lookup(p.RightChild())
		if err != nil {
			return vtree.NullHash, fmt.Errorf("rehash %d: right child: %w", p, err)
		}
		h := vtree.HashInternal(left, right)
		computed[p] = h
		batch.PutHash(p, h)
	}
	if _, err := db.Flush(batch, nil); err != nil {
		return vtree.NullHash, err
	}
	return db.RootHash()
}
