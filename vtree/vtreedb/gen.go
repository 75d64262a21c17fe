package vtreedb

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// GenerateKeyValues returns n leaves with unique keys.
func GenerateKeyValues(rng *rand.Rand, n int, valueSize int) []KeyValue {
	kvs := make([]KeyValue, n)
	for i := range kvs {
		kvs[i] = KeyValue{
			Key:   []byte(fmt.Sprintf("key-%08d", i)),
			Value: randomBytes(rng, valueSize),
		}
	}
	rng.Shuffle(len(kvs), func(i, j int) { kvs[i], kvs[j] = kvs[j], kvs[i] })
	return kvs
}

// Mutation describes how Mutate derives a new leaf set.
type Mutation struct {
	// Updated is the number of leaves that get a new value.
	Updated int
	// Removed is the number of leaves removed.
	Removed int
	// Added is the number of leaves with fresh keys.
	Added int
	// Moved is the number of leaves relocated to another position.
	Moved int
}

// Mutate returns a modified copy of kvs.
func Mutate(rng *rand.Rand, kvs []KeyValue, m Mutation, valueSize int) []KeyValue {
	out := slices.Clone(kvs)
	for i := 0; i < m.Updated && len(out) > 0; i++ {
		n := rng.IntN(len(out))
		out[n] = KeyValue{Key: out[n].Key, Value: randomBytes(rng, valueSize)}
	}
	for i := 0; i < m.Removed && len(out) > 0; i++ {
		n := rng.IntN(len(out))
		out = slices.Delete(out, n, n+1)
	}
	for i := 0; i < m.Added; i++ {
		kv := KeyValue{
			Key:   []byte(fmt.Sprintf("new-%08d-%08x", i, rng.Uint32())),
			Value: randomBytes(rng, valueSize),
		}
		out = slices.Insert(out, rng.IntN(len(out)+1), kv)
	}
	for i := 0; i < m.Moved && len(out) > 1; i++ {
		from := rng.IntN(len(out))
		kv := out[from]
		out = slices.Delete(out, from, from+1)
		out = slices.Insert(out, rng.IntN(len(out)+1), kv)
	}
	return out
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	return b
}
