package reconnect

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/spacemeshos/go-vreconnect/log/logtest"
	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
	"github.com/spacemeshos/go-vreconnect/vtree"
	"github.com/spacemeshos/go-vreconnect/vtree/vtreedb"
)

func snapshotFunc(db *vtreedb.DB) SnapshotFunc {
	return func() (vtree.Snapshot, error) {
		snap, err := db.Snapshot()
		if err != nil {
			return nil, err
		}
		return snap, nil
	}
}

func TestP2PReconnect(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	t.Cleanup(func() { mesh.Close() })

	rng := rand.New(rand.NewPCG(21, 22))
	base := vtreedb.GenerateKeyValues(rng, 64, 16)
	teacher := newTestTree(t, vtreedb.Mutate(rng, base, vtreedb.Mutation{Updated: 4, Removed: 3, Added: 6, Moved: 2}, 16))
	learner := newTestTree(t, base)
	cfg := testConfig(traversal.KindParallel)
	logger := logtest.New(t)

	srv, err := NewP2PService(mesh.Hosts()[0], snapshotFunc(teacher), cfg, WithLogger(logger.Named("srv")))
	require.NoError(t, err)
	srv.Start()
	defer srv.Stop()
	cli, err := NewP2PService(mesh.Hosts()[1], snapshotFunc(learner), cfg, WithLogger(logger.Named("cli")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := cli.Reconnect(ctx, mesh.Hosts()[0].ID(), snapshot(t, learner), newRecordingListener(t, learner))
	require.NoError(t, err)
	expected, err := teacher.RootHash()
	require.NoError(t, err)
	require.Equal(t, expected, res.RootHash)
	requireSameTree(t, teacher, learner, base)

	srv.Stop()
	listener := NewMockHashListener(gomock.NewController(t))
	_, err = cli.Reconnect(ctx, mesh.Hosts()[0].ID(), snapshot(t, learner), listener)
	require.Error(t, err)
}

func TestP2PStreamAfterStop(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	t.Cleanup(func() { mesh.Close() })

	var snapshots atomic.Int32
	teacher := newTestTree(t, kvs("a", "b", "c"))
	get := snapshotFunc(teacher)
	srv, err := NewP2PService(mesh.Hosts()[0], func() (vtree.Snapshot, error) {
		snapshots.Add(1)
		return get()
	}, testConfig(traversal.KindTopToBottom), WithLogger(logtest.New(t)))
	require.NoError(t, err)
	srv.Start()
	srv.Stop()
	srv.Stop()

	// a stream that reaches the handler after Stop is reset without a session
	const captureProtocol = "/vreconnect-test/capture"
	streams := make(chan network.Stream, 1)
	mesh.Hosts()[0].SetStreamHandler(captureProtocol, func(s network.Stream) { streams <- s })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cs, err := mesh.Hosts()[1].NewStream(ctx, mesh.Hosts()[0].ID(), captureProtocol)
	require.NoError(t, err)
	_, err = cs.Write([]byte{0})
	require.NoError(t, err)
	select {
	case s := <-streams:
		srv.handle(s)
	case <-ctx.Done():
		require.FailNow(t, "stream not delivered")
	}
	_, err = cs.Read(make([]byte, 1))
	require.Error(t, err)
	require.Zero(t, snapshots.Load())
}
