// Package vtreedb stores a virtual tree in leveldb: node hashes and leaf
// records are addressed by path, and leaf keys are indexed to their paths.
package vtreedb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/codec"
	"github.com/spacemeshos/go-vreconnect/vtree"
)

const (
	prefixState = 's'
	prefixHash  = 'h'
	prefixLeaf  = 'l'
	prefixKey   = 'k'
)

func stateKey() []byte {
	return []byte{prefixState}
}

func pathKey(prefix byte, p vtree.Path) []byte {
	var k [9]byte
	k[0] = prefix
	binary.BigEndian.PutUint64(k[1:], uint64(p))
	return k[:]
}

func indexKey(key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = prefixKey
	copy(k[1:], key)
	return k
}

// reader is implemented by both the database and its snapshots.
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// Opt modifies the database.
type Opt func(*DB)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(db *DB) {
		db.logger = logger
	}
}

// WithCache sets the leveldb block cache size in MiB and the number of open file handles.
func WithCache(cacheMiB, handles int) Opt {
	return func(db *DB) {
		db.cache = max(cacheMiB, 16)
		db.handles = max(handles, 16)
	}
}

// DB is a tree store. Reads may be done concurrently, writes are expected
// to come from a single goroutine.
type DB struct {
	logger  *zap.Logger
	fn      string
	cache   int
	handles int
	db      *leveldb.DB

	mu    sync.RWMutex
	state vtree.TreeState
}

var _ vtree.RecordAccessor = &DB{}

func newDB(opts []Opt) *DB {
	db := &DB{
		logger:  zap.NewNop(),
		cache:   16,
		handles: 16,
		state:   vtree.EmptyTreeState,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Open opens or creates the database in the directory.
func Open(file string, opts ...Opt) (*DB, error) {
	db := newDB(opts)
	db.fn = file
	ldb, err := leveldb.OpenFile(file, &opt.Options{
		OpenFilesCacheCapacity: db.handles,
		BlockCacheCapacity:     db.cache / 2 * opt.MiB,
		WriteBuffer:            db.cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	var corrupted *lerrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		db.logger.Warn("recovering corrupted database", zap.String("file", file), zap.Error(err))
		ldb, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	db.db = ldb
	if err := db.loadState(); err != nil {
		ldb.Close()
		return nil, err
	}
	db.logger.Info("tree database opened", zap.String("file", file), zap.Object("state", db.State()))
	return db, nil
}

// InMemory returns a database backed by memory storage.
func InMemory(opts ...Opt) *DB {
	db := newDB(opts)
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic("can't open in-memory leveldb: " + err.Error())
	}
	db.db = ldb
	return db
}

// Close closes the database.
func (db *DB) Close() error {
	if err := db.db.Close(); err != nil {
		return fmt.Errorf("close %s: %w", db.fn, err)
	}
	return nil
}

func (db *DB) loadState() error {
	state, err := readState(db.db)
	if err != nil {
		return err
	}
	db.mu.Lock()
	db.state = state
	db.mu.Unlock()
	return nil
}

// State returns the current leaf range.
func (db *DB) State() vtree.TreeState {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.state
}

// SetState stores the leaf range.
func (db *DB) SetState(state vtree.TreeState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	if err := db.db.Put(stateKey(), codec.MustEncode(&state), nil); err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	db.mu.Lock()
	db.state = state
	db.mu.Unlock()
	return nil
}

// FindHash returns the hash of the node at p.
func (db *DB) FindHash(p vtree.Path) (vtree.Hash, error) {
	return findHash(db.db, db.State(), p)
}

// FindLeafRecord returns the leaf at p.
func (db *DB) FindLeafRecord(p vtree.Path) (*vtree.LeafRecord, error) {
	return findLeaf(db.db, p)
}

// FindLeafPath returns the path of the leaf with the key.
func (db *DB) FindLeafPath(key []byte) (vtree.Path, error) {
	return findLeafPath(db.db, key)
}

// RootHash returns the hash of the root node.
func (db *DB) RootHash() (vtree.Hash, error) {
	return db.FindHash(vtree.RootPath)
}

// Leaves iterates over all stored leaf records in path order.
func (db *DB) Leaves() iter.Seq2[*vtree.LeafRecord, error] {
	return leaves(db.db)
}

// Snapshot returns an immutable view of the current tree.
func (db *DB) Snapshot() (*Snapshot, error) {
	snap, err := db.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	state, err := readState(snap)
	if err != nil {
		snap.Release()
		return nil, err
	}
	return &Snapshot{snap: snap, state: state}, nil
}

// Snapshot is a point-in-time view of the database.
type Snapshot struct {
	snap  *leveldb.Snapshot
	state vtree.TreeState
}

var _ vtree.Snapshot = &Snapshot{}

func (s *Snapshot) State() vtree.TreeState {
	return s.state
}

func (s *Snapshot) FindHash(p vtree.Path) (vtree.Hash, error) {
	return findHash(s.snap, s.state, p)
}

func (s *Snapshot) FindLeafRecord(p vtree.Path) (*vtree.LeafRecord, error) {
	return findLeaf(s.snap, p)
}

func (s *Snapshot) FindLeafPath(key []byte) (vtree.Path, error) {
	return findLeafPath(s.snap, key)
}

func (s *Snapshot) Release() {
	s.snap.Release()
}

func get(r reader, key []byte) ([]byte, error) {
	v, err := r.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, vtree.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get %x: %w", key, err)
	}
	return v, nil
}

func readState(r reader) (vtree.TreeState, error) {
	v, err := get(r, stateKey())
	switch {
	case errors.Is(err, vtree.ErrNotFound):
		return vtree.EmptyTreeState, nil
	case err != nil:
		return vtree.EmptyTreeState, err
	}
	var state vtree.TreeState
	if err := codec.Decode(v, &state); err != nil {
		return vtree.EmptyTreeState, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

func findHash(r reader, state vtree.TreeState, p vtree.Path) (vtree.Hash, error) {
	var h vtree.Hash
	if !state.Contains(p) {
		return h, vtree.ErrNotFound
	}
	if p == vtree.RootPath && state.IsEmpty() {
		return vtree.NullHash, nil
	}
	v, err := get(r, pathKey(prefixHash, p))
	if err != nil {
		return h, err
	}
	if len(v) != len(h) {
		return h, fmt.Errorf("hash at %d: bad length %d", p, len(v))
	}
	copy(h[:], v)
	return h, nil
}

func findLeaf(r reader, p vtree.Path) (*vtree.LeafRecord, error) {
	v, err := get(r, pathKey(prefixLeaf, p))
	if err != nil {
		return nil, err
	}
	var rec vtree.LeafRecord
	if err := codec.Decode(v, &rec); err != nil {
		return nil, fmt.Errorf("decode leaf at %d: %w", p, err)
	}
	return &rec, nil
}

func findLeafPath(r reader, key []byte) (vtree.Path, error) {
	v, err := get(r, indexKey(key))
	if err != nil {
		return vtree.InvalidPath, err
	}
	if len(v) != 8 {
		return vtree.InvalidPath, fmt.Errorf("key index for %x: bad length %d", key, len(v))
	}
	return vtree.Path(binary.BigEndian.Uint64(v)), nil
}

func leaves(r reader) iter.Seq2[*vtree.LeafRecord, error] {
	return func(yield func(*vtree.LeafRecord, error) bool) {
		it := r.NewIterator(util.BytesPrefix([]byte{prefixLeaf}), nil)
		defer it.Release()
		for it.Next() {
			var rec vtree.LeafRecord
			if err := codec.Decode(it.Value(), &rec); err != nil {
				yield(nil, fmt.Errorf("decode leaf %x: %w", it.Key(), err))
				return
			}
			if !yield(&rec, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(nil, err)
		}
	}
}

// sameKey compares the key of the stored record with key.
func sameKey(rec *vtree.LeafRecord, key []byte) bool {
	return rec != nil && bytes.Equal(rec.Key, key)
}
