package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// Protocol is the libp2p protocol of reconnect sessions.
const Protocol = "/vreconnect/1.0.0"

// SnapshotFunc returns an immutable view of the tree served to learners.
type SnapshotFunc func() (vtree.Snapshot, error)

// P2PService serves the local tree to learners over libp2p and reconnects
// the local tree to remote teachers.
type P2PService struct {
	logger   *zap.Logger
	h        host.Host
	snapshot SnapshotFunc
	teacher  *Teacher
	learner  *Learner

	start sync.Once
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	ctx     context.Context
}

// NewP2PService creates a service on the host.
func NewP2PService(h host.Host, snapshot SnapshotFunc, cfg Config, opts ...Opt) (*P2PService, error) {
	teacher, err := NewTeacher(cfg, opts...)
	if err != nil {
		return nil, err
	}
	learner, err := NewLearner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &P2PService{
		logger:   o.logger,
		h:        h,
		snapshot: snapshot,
		teacher:  teacher,
		learner:  learner,
	}, nil
}

// Start begins serving reconnect sessions.
func (s *P2PService) Start() {
	s.start.Do(func() {
		s.mu.Lock()
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.running = true
		s.mu.Unlock()
		s.h.SetStreamHandler(protocol.ID(Protocol), s.handle)
	})
}

// Stop stops serving and waits for the running sessions to end.
func (s *P2PService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	s.h.RemoveStreamHandler(protocol.ID(Protocol))
	s.cancel()
	s.wg.Wait()
}

func (s *P2PService) handle(stream network.Stream) {
	// sessions are only added while running, so Stop waits for all of them
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		stream.Reset()
		return
	}
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()
	defer s.wg.Done()
	logger := s.logger.With(zap.Stringer("peer", stream.Conn().RemotePeer()))
	snap, err := s.snapshot()
	if err != nil {
		logger.Error("failed to get tree snapshot", zap.Error(err))
		stream.Reset()
		return
	}
	defer snap.Release()
	if err := s.teacher.Serve(ctx, stream, snap); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("reconnect session with learner failed", zap.Error(err))
		stream.Reset()
	}
}

// Reconnect runs a learner's session against the peer, which must already be
// connected.
func (s *P2PService) Reconnect(
	ctx context.Context,
	pid peer.ID,
	original vtree.RecordAccessor,
	listener HashListener,
) (*Result, error) {
	stream, err := s.h.NewStream(network.WithNoDial(ctx, "existing connection"), pid, protocol.ID(Protocol))
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", pid, err)
	}
	res, err := s.learner.Run(ctx, stream, original, listener)
	if err != nil {
		stream.Reset()
		return nil, err
	}
	return res, nil
}
