// Package hash computes the node digests of virtual trees.
package hash

import (
	"sync"

	"github.com/zeebo/blake3"
)

// Size is the length of node digests in bytes. Blake3 is used in XOF mode
// to produce 48 bytes of output.
const Size = 48

// hashers are reset before they are returned to the pool.
var hashers = sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

// Sum computes the digest of the concatenation of the chunks.
func Sum(chunks ...[]byte) (out [Size]byte) {
	h := hashers.Get().(*blake3.Hasher)
	defer func() {
		h.Reset()
		hashers.Put(h)
	}()
	for _, c := range chunks {
		h.Write(c)
	}
	d := h.Digest()
	if _, err := d.Read(out[:]); err != nil {
		panic("BUG: blake3 digest read: " + err.Error())
	}
	return out
}
