package vtree

import (
	"encoding/binary"

	"github.com/spacemeshos/go-vreconnect/hash"
)

const (
	leafDomain     byte = 0
	internalDomain byte = 1
)

// HashLeaf computes the digest of a leaf record.
func HashLeaf(key, value []byte) Hash {
	var prefix [1 + binary.MaxVarintLen64]byte
	prefix[0] = leafDomain
	n := binary.PutUvarint(prefix[1:], uint64(len(key)))
	return hash.Sum(prefix[:1+n], key, value)
}

// HashInternal computes the digest of an internal node. A missing right
// child is passed as NullHash.
func HashInternal(left, right Hash) Hash {
	return hash.Sum([]byte{internalDomain}, left[:], right[:])
}
