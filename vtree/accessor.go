package vtree

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned when there's no record at the requested path.
var ErrNotFound = errors.New("not found")

// RecordAccessor provides read access to a tree.
type RecordAccessor interface {
	State() TreeState
	// FindHash returns the hash stored for the node at p.
	FindHash(p Path) (Hash, error)
	// FindLeafRecord returns the leaf stored at p.
	FindLeafRecord(p Path) (*LeafRecord, error)
}

// Snapshot is an immutable view of a tree that must be released after use.
type Snapshot interface {
	RecordAccessor
	Release()
}

// CachedAccessor is a RecordAccessor that keeps recently used hashes and
// leaves in memory. The underlying accessor must be immutable.
type CachedAccessor struct {
	RecordAccessor
	hashes *lru.Cache[Path, Hash]
	leaves *lru.Cache[Path, *LeafRecord]
}

var _ RecordAccessor = &CachedAccessor{}

// NewCachedAccessor wraps ra with LRU caches of the given size.
func NewCachedAccessor(ra RecordAccessor, size int) (*CachedAccessor, error) {
	hashes, err := lru.New[Path, Hash](size)
	if err != nil {
		return nil, fmt.Errorf("create hash cache: %w", err)
	}
	leaves, err := lru.New[Path, *LeafRecord](size)
	if err != nil {
		return nil, fmt.Errorf("create leaf cache: %w", err)
	}
	return &CachedAccessor{RecordAccessor: ra, hashes: hashes, leaves: leaves}, nil
}

func (c *CachedAccessor) FindHash(p Path) (Hash, error) {
	if h, ok := c.hashes.Get(p); ok {
		return h, nil
	}
	h, err := c.RecordAccessor.FindHash(p)
	if err != nil {
		return h, err
	}
	c.hashes.Add(p, h)
	return h, nil
}

func (c *CachedAccessor) FindLeafRecord(p Path) (*LeafRecord, error) {
	if r, ok := c.leaves.Get(p); ok {
		return r, nil
	}
	r, err := c.RecordAccessor.FindLeafRecord(p)
	if err != nil {
		return nil, err
	}
	c.leaves.Add(p, r)
	return r, nil
}

// StaleRecordSource supplies the leaf records that are no longer part of the
// tree and should be deleted from the store.
type StaleRecordSource interface {
	RecordsToDelete() []LeafRecord
}
