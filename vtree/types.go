package vtree

import (
	"encoding/hex"
	"fmt"
	"iter"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-vreconnect/hash"
)

const (
	// MaxKeySize is the upper bound of a leaf key length.
	MaxKeySize = 1024
	// MaxValueSize is the upper bound of a leaf value length.
	MaxValueSize = 1 << 20
)

// Hash is a node digest.
type Hash [hash.Size]byte

// NullHash denotes a missing node.
var NullHash Hash

// IsNull reports whether h is the null hash.
func (h Hash) IsNull() bool {
	return h == NullHash
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString returns the first 5 bytes of the hash in hex.
func (h Hash) ShortString() string {
	return hex.EncodeToString(h[:5])
}

// TreeState is the range of leaf paths in a tree. All leaves are contiguous
// in path space and an empty tree has both bounds set to InvalidPath.
type TreeState struct {
	FirstLeafPath Path
	LastLeafPath  Path
}

// EmptyTreeState is the state of a tree without leaves.
var EmptyTreeState = TreeState{FirstLeafPath: InvalidPath, LastLeafPath: InvalidPath}

// TreeStateForLeafCount returns the canonical state of a tree with n leaves.
func TreeStateForLeafCount(n int64) TreeState {
	switch {
	case n <= 0:
		return EmptyTreeState
	case n == 1:
		return TreeState{FirstLeafPath: 1, LastLeafPath: 1}
	default:
		return TreeState{FirstLeafPath: Path(n - 1), LastLeafPath: Path(2*n - 2)}
	}
}

// IsEmpty reports whether the tree has no leaves.
func (s TreeState) IsEmpty() bool {
	return s.LastLeafPath < 1
}

// Validate checks that the bounds describe a complete binary tree in which
// every internal node has at least a left child.
func (s TreeState) Validate() error {
	if s == EmptyTreeState {
		return nil
	}
	first, last := s.FirstLeafPath, s.LastLeafPath
	if first < 1 || last < 2*first-1 || last > 2*first {
		return fmt.Errorf("invalid leaf range [%d, %d]", first, last)
	}
	return nil
}

// LeafCount returns the number of leaves.
func (s TreeState) LeafCount() int64 {
	if s.IsEmpty() {
		return 0
	}
	return int64(s.LastLeafPath - s.FirstLeafPath + 1)
}

// Contains reports whether p addresses a node of the tree. The root always
// exists, even in an empty tree.
func (s TreeState) Contains(p Path) bool {
	return p == RootPath || (p > RootPath && p <= s.LastLeafPath)
}

// IsLeaf reports whether p is a leaf path.
func (s TreeState) IsLeaf(p Path) bool {
	return !s.IsEmpty() && p >= s.FirstLeafPath && p <= s.LastLeafPath
}

// IsInternal reports whether p is an internal node path.
func (s TreeState) IsInternal(p Path) bool {
	return !s.IsEmpty() && p >= RootPath && p < s.FirstLeafPath
}

// IsLeafParent reports whether p is an internal node with at least one leaf child.
func (s TreeState) IsLeafParent(p Path) bool {
	return s.IsInternal(p) && (s.IsLeaf(p.LeftChild()) || s.IsLeaf(p.RightChild()))
}

// LeafParentRank returns the rank of the lowest internal nodes, or -1 for
// an empty tree.
func (s TreeState) LeafParentRank() int {
	if s.IsEmpty() {
		return -1
	}
	return s.LastLeafPath.Rank() - 1
}

// Leaves iterates over leaf paths in left-to-right order. Leaves at the
// deepest rank precede those one rank above them.
func (s TreeState) Leaves() iter.Seq[Path] {
	return func(yield func(Path) bool) {
		if s.IsEmpty() {
			return
		}
		r := s.LastLeafPath.Rank()
		lowStart := FirstPathInRank(r)
		if s.FirstLeafPath > lowStart {
			lowStart = s.FirstLeafPath
		}
		for p := lowStart; p <= s.LastLeafPath; p++ {
			if !yield(p) {
				return
			}
		}
		for p := s.FirstLeafPath; p < lowStart; p++ {
			if !yield(p) {
				return
			}
		}
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s TreeState) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("first", int64(s.FirstLeafPath))
	enc.AddInt64("last", int64(s.LastLeafPath))
	return nil
}

func (s TreeState) String() string {
	return fmt.Sprintf("[%d, %d]", s.FirstLeafPath, s.LastLeafPath)
}

// EncodeScale implements scale codec interface.
func (s *TreeState) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := EncodePath(enc, s.FirstLeafPath)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := EncodePath(enc, s.LastLeafPath)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *TreeState) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := DecodePath(dec)
		if err != nil {
			return total, err
		}
		total += n
		s.FirstLeafPath = field
	}
	{
		field, n, err := DecodePath(dec)
		if err != nil {
			return total, err
		}
		total += n
		s.LastLeafPath = field
	}
	return total, nil
}

// LeafRecord is a key/value pair stored at a leaf path.
type LeafRecord struct {
	Path  Path
	Key   []byte
	Value []byte
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r *LeafRecord) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("path", int64(r.Path))
	enc.AddString("key", hex.EncodeToString(r.Key))
	enc.AddInt("value_size", len(r.Value))
	return nil
}

// EncodeScale implements scale codec interface.
func (r *LeafRecord) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := EncodePath(enc, r.Path)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, r.Key, MaxKeySize)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, r.Value, MaxValueSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *LeafRecord) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := DecodePath(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.Path = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxKeySize)
		if err != nil {
			return total, err
		}
		total += n
		r.Key = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxValueSize)
		if err != nil {
			return total, err
		}
		total += n
		r.Value = field
	}
	return total, nil
}

// EncodePath writes p as a compact integer shifted by one so that
// InvalidPath is representable.
func EncodePath(enc *scale.Encoder, p Path) (int, error) {
	if p < InvalidPath {
		return 0, fmt.Errorf("path %d out of range", p)
	}
	return scale.EncodeCompact64(enc, uint64(p+1))
}

// DecodePath reads a path written by EncodePath.
func DecodePath(dec *scale.Decoder) (Path, int, error) {
	v, n, err := scale.DecodeCompact64(dec)
	if err != nil {
		return InvalidPath, n, err
	}
	if v > 1<<62 {
		return InvalidPath, n, fmt.Errorf("path %d out of range", v)
	}
	return Path(v) - 1, n, nil
}
