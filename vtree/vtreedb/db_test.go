package vtreedb

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-vreconnect/log/logtest"
	"github.com/spacemeshos/go-vreconnect/vtree"
)

func newTestDB(tb testing.TB) *DB {
	db := InMemory(WithLogger(logtest.New(tb)))
	tb.Cleanup(func() { require.NoError(tb, db.Close()) })
	return db
}

func kv(k, v string) KeyValue {
	return KeyValue{Key: []byte(k), Value: []byte(v)}
}

func TestBuild(t *testing.T) {
	db := newTestDB(t)
	root, err := db.Build([]KeyValue{kv("a", "1"), kv("b", "2"), kv("c", "3")})
	require.NoError(t, err)
	require.Equal(t, vtree.TreeState{FirstLeafPath: 2, LastLeafPath: 4}, db.State())

	// leaves in order: 3, 4, 2
	ha := vtree.HashLeaf([]byte("a"), []byte("1"))
	hb := vtree.HashLeaf([]byte("b"), []byte("2"))
	hc := vtree.HashLeaf([]byte("c"), []byte("3"))
	expected := vtree.HashInternal(vtree.HashInternal(ha, hb), hc)
	require.Equal(t, expected, root)
	got, err := db.RootHash()
	require.NoError(t, err)
	require.Equal(t, expected, got)

	rec, err := db.FindLeafRecord(4)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), rec.Key)
	p, err := db.FindLeafPath([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, vtree.Path(2), p)

	_, err = db.FindHash(5)
	require.ErrorIs(t, err, vtree.ErrNotFound)
	_, err = db.FindLeafPath([]byte("zz"))
	require.ErrorIs(t, err, vtree.ErrNotFound)
}

func TestBuildSmallTrees(t *testing.T) {
	db := newTestDB(t)
	root, err := db.Build(nil)
	require.NoError(t, err)
	require.Equal(t, vtree.NullHash, root)
	h, err := db.RootHash()
	require.NoError(t, err)
	require.True(t, h.IsNull())

	root, err = db.Build([]KeyValue{kv("a", "1")})
	require.NoError(t, err)
	require.Equal(t, vtree.HashInternal(vtree.HashLeaf([]byte("a"), []byte("1")), vtree.NullHash), root)
}

func TestSnapshotIsolation(t *testing.T) {
	db := newTestDB(t)
	root, err := db.Build([]KeyValue{kv("a", "1"), kv("b", "2")})
	require.NoError(t, err)
	snap, err := db.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	_, err = db.Build([]KeyValue{kv("x", "1"), kv("y", "2"), kv("z", "3")})
	require.NoError(t, err)

	require.Equal(t, vtree.TreeState{FirstLeafPath: 1, LastLeafPath: 2}, snap.State())
	h, err := snap.FindHash(vtree.RootPath)
	require.NoError(t, err)
	require.Equal(t, root, h)
	rec, err := snap.FindLeafRecord(1)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), rec.Key)
}

func TestFlushReconcilesStaleRecords(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Build([]KeyValue{kv("a", "1"), kv("b", "2"), kv("c", "3"), kv("d", "4")})
	require.NoError(t, err)
	// leaves 3..6: a b c d

	t.Run("path got a new key", func(t *testing.T) {
		b := db.NewBatch()
		b.PutLeaf(&vtree.LeafRecord{Path: 3, Key: []byte("e"), Value: []byte("5")})
		n, err := db.Flush(b, []vtree.LeafRecord{{Path: 3, Key: []byte("a")}})
		require.NoError(t, err)
		require.Zero(t, n)
		rec, err := db.FindLeafRecord(3)
		require.NoError(t, err)
		require.Equal(t, []byte("e"), rec.Key)
		_, err = db.FindLeafPath([]byte("a"))
		require.ErrorIs(t, err, vtree.ErrNotFound)
	})

	t.Run("key moved to another path", func(t *testing.T) {
		b := db.NewBatch()
		b.PutLeaf(&vtree.LeafRecord{Path: 5, Key: []byte("b"), Value: []byte("2")})
		n, err := db.Flush(b, []vtree.LeafRecord{{Path: 4, Key: []byte("b")}, {Path: 5, Key: []byte("c")}})
		require.NoError(t, err)
		require.Equal(t, 1, n)
		_, err = db.FindLeafRecord(4)
		require.ErrorIs(t, err, vtree.ErrNotFound)
		p, err := db.FindLeafPath([]byte("b"))
		require.NoError(t, err)
		require.Equal(t, vtree.Path(5), p)
		_, err = db.FindLeafPath([]byte("c"))
		require.ErrorIs(t, err, vtree.ErrNotFound)
	})

	t.Run("stale record still current", func(t *testing.T) {
		n, err := db.Flush(nil, []vtree.LeafRecord{{Path: 6, Key: []byte("d")}})
		require.NoError(t, err)
		require.Equal(t, 1, n)
		_, err = db.FindLeafRecord(6)
		require.ErrorIs(t, err, vtree.ErrNotFound)
		_, err = db.FindLeafPath([]byte("d"))
		require.ErrorIs(t, err, vtree.ErrNotFound)
	})
}

func TestRehashMatchesBuild(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{1, 2, 3, 7, 8, 33} {
		kvs := GenerateKeyValues(rng, n, 16)
		expected := newTestDB(t)
		root, err := expected.Build(kvs)
		require.NoError(t, err)

		db := newTestDB(t)
		_, err = db.Build(kvs)
		require.NoError(t, err)
		// corrupt all internal hashes and recompute them
		state := db.State()
		b := db.NewBatch()
		var paths []vtree.Path
		for p := vtree.RootPath; p < state.FirstLeafPath; p++ {
			b.PutHash(p, vtree.Hash{1})
			paths = append(paths, p)
		}
		_, err = db.Flush(b, nil)
		require.NoError(t, err)
		got, err := db.Rehash(paths)
		require.NoError(t, err)
		require.Equal(t, root, got, "leaves %d", n)
	}
}

func TestRehashUnsorted(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Build([]KeyValue{kv("a", "1"), kv("b", "2"), kv("c", "3")})
	require.NoError(t, err)
	_, err = db.Rehash([]vtree.Path{1, 0})
	require.Error(t, err)
}

func TestPruneHashesAfter(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Build(GenerateKeyValues(rand.New(rand.NewPCG(1, 1)), 10, 4))
	require.NoError(t, err)
	require.NoError(t, db.SetState(vtree.TreeState{FirstLeafPath: 4, LastLeafPath: 8}))
	require.NoError(t, db.PruneHashesAfter(8))
	require.NoError(t, db.SetState(vtree.TreeStateForLeafCount(10)))
	for p := vtree.Path(0); p <= 18; p++ {
		_, err := db.FindHash(p)
		if p <= 8 {
			require.NoError(t, err, "path %d", p)
		} else {
			require.ErrorIs(t, err, vtree.ErrNotFound, "path %d", p)
		}
	}
}

func TestLeavesAndClear(t *testing.T) {
	db := newTestDB(t)
	kvs := GenerateKeyValues(rand.New(rand.NewPCG(3, 4)), 20, 8)
	_, err := db.Build(kvs)
	require.NoError(t, err)
	n := 0
	for rec, err := range db.Leaves() {
		require.NoError(t, err)
		require.True(t, db.State().IsLeaf(rec.Path))
		n++
	}
	require.Equal(t, 20, n)

	require.NoError(t, db.Clear())
	require.True(t, db.State().IsEmpty())
	for range db.Leaves() {
		require.Fail(t, "leaf left after Clear")
	}
}

func TestOpenPersistsState(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, WithLogger(logtest.New(t)))
	require.NoError(t, err)
	root, err := db.Build([]KeyValue{kv("a", "1"), kv("b", "2")})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, vtree.TreeStateForLeafCount(2), db.State())
	got, err := db.RootHash()
	require.NoError(t, err)
	require.Equal(t, root, got)
}

func TestMutate(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	kvs := GenerateKeyValues(rng, 100, 8)
	out := Mutate(rng, kvs, Mutation{Updated: 3, Removed: 5, Added: 7, Moved: 2}, 8)
	require.Len(t, out, 102)
	seen := make(map[string]struct{})
	for _, kv := range out {
		_, dup := seen[string(kv.Key)]
		require.False(t, dup)
		seen[string(kv.Key)] = struct{}{}
	}
}

func TestBuildState(t *testing.T) {
	db := newTestDB(t)
	kvs := GenerateKeyValues(rand.New(rand.NewPCG(7, 13)), 7, 8)
	_, err := db.BuildState(vtree.TreeState{FirstLeafPath: 7, LastLeafPath: 13}, kvs[:6])
	require.Error(t, err)
	_, err = db.BuildState(vtree.TreeState{FirstLeafPath: 7, LastLeafPath: 15}, kvs)
	require.Error(t, err)

	root, err := db.BuildState(vtree.TreeState{FirstLeafPath: 7, LastLeafPath: 13}, kvs)
	require.NoError(t, err)
	h6 := vtree.HashInternal(vtree.HashLeaf(kvs[6].Key, kvs[6].Value), vtree.NullHash)
	got, err := db.FindHash(6)
	require.NoError(t, err)
	require.Equal(t, h6, got)

	canonical := newTestDB(t)
	other, err := canonical.Build(kvs)
	require.NoError(t, err)
	require.NotEqual(t, other, root)
}

func TestFlushKeepsMovedKeyIndex(t *testing.T) {
	for _, tc := range []struct {
		desc       string
		staleFirst bool
	}{
		{"stale record with the moved leaf", false},
		{"stale record before the moved leaf", true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			db := newTestDB(t)
			_, err := db.Build([]KeyValue{kv("a", "1"), kv("b", "2")})
			require.NoError(t, err)
			// a moves from 1, which turns internal, down to 3
			stale := []vtree.LeafRecord{{Path: 1, Key: []byte("a")}}
			b := db.NewBatch()
			b.PutLeaf(&vtree.LeafRecord{Path: 3, Key: []byte("a"), Value: []byte("1")})
			if tc.staleFirst {
				n, err := db.Flush(nil, stale)
				require.NoError(t, err)
				require.Equal(t, 1, n)
				_, err = db.Flush(b, nil)
				require.NoError(t, err)
			} else {
				n, err := db.Flush(b, stale)
				require.NoError(t, err)
				require.Equal(t, 1, n)
			}
			_, err = db.FindLeafRecord(1)
			require.ErrorIs(t, err, vtree.ErrNotFound)
			p, err := db.FindLeafPath([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, vtree.Path(3), p)
			rec, err := db.FindLeafRecord(3)
			require.NoError(t, err)
			require.Equal(t, []byte("a"), rec.Key)
		})
	}
}
