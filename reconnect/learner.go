package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
	"github.com/spacemeshos/go-vreconnect/vtree"
)

// LearnerView applies the teacher's responses to the learner's tree.
type LearnerView struct {
	logger    *zap.Logger
	original  vtree.RecordAccessor
	remover   *NodeRemover
	order     traversal.Order
	listener  HashListener
	stats     nodeStats
	leafBytes atomic.Int64
	state     sessionState
	// newState is written before rootReceived is closed.
	newState     vtree.TreeState
	rootReceived chan struct{}
}

// NewLearnerView creates a view that compares the original tree with the
// teacher's tree. The original tree must not change during the session.
func NewLearnerView(
	logger *zap.Logger,
	original vtree.RecordAccessor,
	order traversal.Order,
	listener HashListener,
) *LearnerView {
	return &LearnerView{
		logger:       logger,
		original:     original,
		remover:      NewNodeRemover(logger, original),
		order:        order,
		listener:     listener,
		newState:     vtree.EmptyTreeState,
		rootReceived: make(chan struct{}),
	}
}

// State returns the stage of the session.
func (v *LearnerView) State() SessionState {
	return v.state.get()
}

// RootReceived returns a channel that is closed once the root response is
// processed.
func (v *LearnerView) RootReceived() <-chan struct{} {
	return v.rootReceived
}

// ExpectedHash returns the learner's hash of the node at p. Nodes missing in
// the original tree have the null hash, which never matches.
func (v *LearnerView) ExpectedHash(p vtree.Path) (vtree.Hash, error) {
	if !v.original.State().Contains(p) {
		return vtree.NullHash, nil
	}
	h, err := v.original.FindHash(p)
	switch {
	case errors.Is(err, vtree.ErrNotFound):
		return vtree.NullHash, nil
	case err != nil:
		return vtree.NullHash, fmt.Errorf("original hash at %d: %w", p, err)
	}
	return h, nil
}

// HandleResponse processes a response from the teacher.
func (v *LearnerView) HandleResponse(ctx context.Context, resp *Response) error {
	switch v.state.get() {
	case StateAwaitRoot:
		if resp.Path != vtree.RootPath {
			return protocolViolation("response for %d before root", resp.Path)
		}
		return v.handleRoot(ctx, resp)
	case StateDone:
		return protocolViolation("response for %d after terminator", resp.Path)
	}
	if resp.IsTerminator() {
		if !v.state.advance(StateDraining, StateDone) {
			return protocolViolation("unexpected terminator response")
		}
		return nil
	}
	p := resp.Path
	switch {
	case p == vtree.RootPath || !v.newState.Contains(p):
		return protocolViolation("unexpected response for %d", p)
	case resp.Root != nil:
		return protocolViolation("tree state in response for %d", p)
	case v.newState.IsLeaf(p) && !resp.IsClean && resp.Leaf == nil:
		return protocolViolation("no leaf in response for dirty leaf %d", p)
	case (resp.IsClean || !v.newState.IsLeaf(p)) && resp.Leaf != nil:
		return protocolViolation("unexpected leaf in response for %d", p)
	}
	v.order.NodeReceived(p, resp.IsClean)
	switch {
	case resp.IsClean:
		return nil
	case resp.Leaf != nil:
		if err := v.remover.NewLeafNode(p, resp.Leaf.Key); err != nil {
			return err
		}
		n := int64(len(resp.Leaf.Key) + len(resp.Leaf.Value))
		v.leafBytes.Add(n)
		metricLeafBytes.Add(float64(n))
		return v.listener.OnLeaf(ctx, &vtree.LeafRecord{
			Path:  p,
			Key:   resp.Leaf.Key,
			Value: resp.Leaf.Value,
		})
	default:
		v.listener.OnInternal(p)
		return nil
	}
}

func (v *LearnerView) handleRoot(ctx context.Context, resp *Response) error {
	if resp.Root == nil {
		return protocolViolation("no tree state in root response")
	}
	if resp.Leaf != nil {
		return protocolViolation("leaf in root response")
	}
	state := *resp.Root
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	v.logger.Debug("received root",
		zap.Bool("clean", resp.IsClean),
		zap.Object("old_state", v.original.State()),
		zap.Object("new_state", state))
	v.newState = state
	if err := v.remover.SetPathInformation(state); err != nil {
		return err
	}
	if err := v.listener.Prepare(ctx, state, v.remover); err != nil {
		return fmt.Errorf("prepare listener: %w", err)
	}
	v.order.Start(state, &v.stats)
	v.order.NodeReceived(vtree.RootPath, resp.IsClean)
	if !resp.IsClean && state.IsInternal(vtree.RootPath) {
		v.listener.OnInternal(vtree.RootPath)
	}
	if !v.state.advance(StateAwaitRoot, StateSteady) {
		panic("BUG: root handled twice")
	}
	close(v.rootReceived)
	return nil
}

// Finish marks the original leaves past the end of the new tree as stale
// and completes the reconstruction.
func (v *LearnerView) Finish(ctx context.Context) (vtree.Hash, error) {
	if v.state.get() != StateDone {
		panic("BUG: finishing an incomplete session")
	}
	if err := v.remover.AllNodesReceived(); err != nil {
		return vtree.NullHash, err
	}
	return v.listener.Finish(ctx)
}

// Stats returns the session statistics.
func (v *LearnerView) Stats() Stats {
	return Stats{
		Leaves:            v.stats.Leaves.Load(),
		RedundantLeaves:   v.stats.RedundantLeaves.Load(),
		Internal:          v.stats.Internal.Load(),
		RedundantInternal: v.stats.RedundantInternal.Load(),
		LeafBytes:         v.leafBytes.Load(),
		StaleRecords:      v.remover.Marked(),
	}
}

// Result is the outcome of a learner's session.
type Result struct {
	State    vtree.TreeState
	RootHash vtree.Hash
	Stats    Stats
}

// Learner reconnects a stale tree to a teacher.
type Learner struct {
	logger *zap.Logger
	clock  clockwork.Clock
	cfg    Config
}

// NewLearner creates a learner.
func NewLearner(cfg Config, opts ...Opt) (*Learner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Learner{logger: o.logger, clock: o.clock, cfg: cfg}, nil
}

// Run requests the nodes of the teacher's tree that differ from the original
// tree over the stream and hands them to the listener. The stream is closed
// when Run returns.
func (l *Learner) Run(
	ctx context.Context,
	stream Stream,
	original vtree.RecordAccessor,
	listener HashListener,
) (*Result, error) {
	start := time.Now()
	logger := l.logger.With(
		zap.String("role", string(RoleLearner)),
		zap.String("order", string(l.cfg.TraversalOrder)))
	metricSessions.WithLabelValues(string(RoleLearner)).Inc()
	c := newConduit(stream, l.cfg.BufferSize)
	order, err := traversal.New(l.cfg.TraversalOrder,
		traversal.WithLogger(logger),
		traversal.WithChunkRank(l.cfg.ChunkRank),
		traversal.WithBackoff(l.cfg.backoff()),
		traversal.WithClock(l.clock),
		traversal.WithWaitHook(func() {
			if err := c.flush(); err != nil {
				logger.Debug("flush failed", zap.Error(err))
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	view := NewLearnerView(logger, original, order, listener)
	s := &learnerSession{
		cfg:  &l.cfg,
		view: view,
		c:    c,
		sem:  semaphore.NewWeighted(int64(l.cfg.MaxInFlightRequests)),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(egCtx, func() { stream.Close() })
	defer stop()
	eg.Go(func() error { return s.sendTask(egCtx, l.clock, order) })
	eg.Go(func() error { return s.receiveTask(egCtx) })
	err = eg.Wait()

	var root vtree.Hash
	if err == nil {
		root, err = view.Finish(ctx)
	} else {
		listener.Abort()
	}
	stats := view.Stats()
	stats.Requests = s.requests.Load()
	metricResponses.WithLabelValues(string(RoleLearner)).Add(float64(s.responses.Load()))
	metricStaleRecords.Add(float64(stats.StaleRecords))
	took := time.Since(start)
	switch {
	case err == nil:
		metricSessionDuration.WithLabelValues(string(RoleLearner), resultOK).Observe(took.Seconds())
		logger.Info("reconnect complete",
			zap.Object("state", view.newState),
			zap.Stringer("root", root),
			zap.Object("stats", stats),
			zap.Duration("duration", took))
		return &Result{State: view.newState, RootHash: root, Stats: stats}, nil
	case ctx.Err() != nil:
		metricSessionDuration.WithLabelValues(string(RoleLearner), resultCanceled).Observe(took.Seconds())
		logger.Debug("reconnect interrupted", zap.Stringer("state", view.State()), zap.Error(err))
		return nil, ctx.Err()
	default:
		metricSessionDuration.WithLabelValues(string(RoleLearner), resultFailed).Observe(took.Seconds())
		logger.Warn("reconnect failed",
			zap.Stringer("state", view.State()),
			zap.Object("stats", stats),
			zap.Error(err))
		return nil, &SessionError{Role: RoleLearner, Err: err}
	}
}

// learnerSession holds what the learner's send and receive tasks share.
type learnerSession struct {
	cfg       *Config
	view      *LearnerView
	c         *conduit
	sem       *semaphore.Weighted
	requests  atomic.Int64
	responses atomic.Int64
}

func (s *learnerSession) send(ctx context.Context, req *Request) error {
	if !s.sem.TryAcquire(1) {
		// the responses we wait for may be stuck in the buffer
		if err := s.c.flush(); err != nil {
			return fmt.Errorf("flush requests: %w", err)
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	metricInFlight.Inc()
	s.requests.Add(1)
	if err := s.c.send(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

func (s *learnerSession) request(ctx context.Context, p vtree.Path) error {
	h, err := s.view.ExpectedHash(p)
	if err != nil {
		return err
	}
	return s.send(ctx, &Request{Path: p, Hash: &h})
}

func (s *learnerSession) sendTask(ctx context.Context, clock clockwork.Clock, order traversal.Order) error {
	if err := s.request(ctx, vtree.RootPath); err != nil {
		return err
	}
	if err := s.c.flush(); err != nil {
		return fmt.Errorf("flush root request: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(s.cfg.RootResponseTimeout):
		return fmt.Errorf("%w after %v", ErrRootTimeout, s.cfg.RootResponseTimeout)
	case <-s.view.RootReceived():
	}

	senders := 1
	if order.Concurrent() {
		senders = s.cfg.SenderCount
	}
	var eg errgroup.Group
	for range senders {
		eg.Go(func() error {
			for {
				p, err := order.NextPathToSend(ctx)
				switch {
				case err != nil:
					return err
				case p == vtree.InvalidPath:
					return nil
				}
				if err := s.request(ctx, p); err != nil {
					return err
				}
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if !s.view.state.advance(StateSteady, StateDraining) {
		panic("BUG: sender finished outside of steady state")
	}
	if err := s.send(ctx, &Request{Path: vtree.InvalidPath}); err != nil {
		return err
	}
	if err := s.c.closeWrite(); err != nil {
		return fmt.Errorf("close requests: %w", err)
	}
	return nil
}

func (s *learnerSession) receiveTask(ctx context.Context) error {
	for {
		resp, err := s.c.nextResponse()
		if err != nil {
			return err
		}
		if s.responses.Add(1) > s.requests.Load() {
			return protocolViolation("response for %d without a request", resp.Path)
		}
		if err := s.view.HandleResponse(ctx, resp); err != nil {
			return err
		}
		s.sem.Release(1)
		metricInFlight.Dec()
		if s.view.State() == StateDone {
			return nil
		}
	}
}
