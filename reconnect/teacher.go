package reconnect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// TeacherView answers requests from an immutable view of the teacher's tree.
type TeacherView struct {
	accessor vtree.RecordAccessor
	state    vtree.TreeState
	rootSent bool
}

// NewTeacherView creates a view over the snapshot. The snapshot must not
// change while the view is in use.
func NewTeacherView(snapshot vtree.RecordAccessor, cacheSize int) (*TeacherView, error) {
	cached, err := vtree.NewCachedAccessor(snapshot, cacheSize)
	if err != nil {
		return nil, err
	}
	return &TeacherView{accessor: cached, state: snapshot.State()}, nil
}

// State returns the state of the teacher's tree.
func (v *TeacherView) State() vtree.TreeState {
	return v.state
}

// LoadHash returns the hash of the node at p. The null hash is only returned
// for the root of an empty tree.
func (v *TeacherView) LoadHash(p vtree.Path) (vtree.Hash, error) {
	if !v.state.Contains(p) {
		return vtree.NullHash, protocolViolation("path %d outside of tree %s", p, v.state)
	}
	h, err := v.accessor.FindHash(p)
	if err != nil {
		return vtree.NullHash, fmt.Errorf("load hash %d: %w", p, err)
	}
	if h.IsNull() && !(p == vtree.RootPath && v.state.IsEmpty()) {
		return vtree.NullHash, fmt.Errorf("null hash at %d in tree %s", p, v.state)
	}
	return h, nil
}

// HandleRequest checks the learner's hash against the teacher's and builds
// the response.
func (v *TeacherView) HandleRequest(req *Request) (*Response, error) {
	switch {
	case req.IsTerminator():
		if !v.rootSent {
			return nil, protocolViolation("terminator before root request")
		}
		return &Response{Path: vtree.InvalidPath}, nil
	case req.Path < vtree.InvalidPath:
		return nil, protocolViolation("bad path %d", req.Path)
	case req.Hash == nil:
		return nil, protocolViolation("no hash in request for %d", req.Path)
	case !v.rootSent && req.Path != vtree.RootPath:
		return nil, protocolViolation("request for %d before root", req.Path)
	case v.rootSent && req.Path == vtree.RootPath:
		return nil, protocolViolation("root requested twice")
	}
	h, err := v.LoadHash(req.Path)
	if err != nil {
		return nil, err
	}
	return v.WriteNode(req.Path, h == *req.Hash)
}

// WriteNode builds the response for the node at p. The root response carries
// the tree state and a dirty leaf response carries the leaf.
func (v *TeacherView) WriteNode(p vtree.Path, clean bool) (*Response, error) {
	resp := &Response{Path: p, IsClean: clean}
	switch {
	case p == vtree.RootPath:
		state := v.state
		resp.Root = &state
		v.rootSent = true
	case !clean && v.state.IsLeaf(p):
		rec, err := v.accessor.FindLeafRecord(p)
		if err != nil {
			return nil, fmt.Errorf("load leaf %d: %w", p, err)
		}
		resp.Leaf = &LeafPayload{Key: rec.Key, Value: rec.Value}
	}
	return resp, nil
}

// Teacher serves reconnect sessions.
type Teacher struct {
	logger *zap.Logger
	cfg    Config
}

// NewTeacher creates a teacher.
func NewTeacher(cfg Config, opts ...Opt) (*Teacher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Teacher{logger: o.logger, cfg: cfg}, nil
}

// Serve runs a session for a learner connected over the stream, answering
// requests from the snapshot until the learner's terminator request. The
// stream is closed when Serve returns.
func (t *Teacher) Serve(ctx context.Context, stream Stream, snapshot vtree.RecordAccessor) error {
	start := time.Now()
	view, err := NewTeacherView(snapshot, t.cfg.CacheSize)
	if err != nil {
		return err
	}
	logger := t.logger.With(zap.String("role", string(RoleTeacher)), zap.Object("state", view.State()))
	logger.Debug("serving reconnect")
	metricSessions.WithLabelValues(string(RoleTeacher)).Inc()

	c := newConduit(stream, t.cfg.BufferSize)
	responses := make(chan *Response, t.cfg.ResponseQueueSize)
	var limiter *rate.Limiter
	if t.cfg.MaxResponsesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(t.cfg.MaxResponsesPerSecond), t.cfg.MaxResponsesPerSecond)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(egCtx, func() { stream.Close() })
	defer stop()
	var served int
	eg.Go(func() error {
		defer close(responses)
		for {
			req, err := c.nextRequest()
			if err != nil {
				return err
			}
			resp, err := view.HandleRequest(req)
			if err != nil {
				return err
			}
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			case responses <- resp:
			}
			if req.IsTerminator() {
				return nil
			}
		}
	})
	eg.Go(func() error {
		for resp := range responses {
			if limiter != nil {
				if err := limiter.Wait(egCtx); err != nil {
					return err
				}
			}
			if err := c.send(resp); err != nil {
				return fmt.Errorf("send response: %w", err)
			}
			served++
			if resp.IsTerminator() {
				return c.closeWrite()
			}
			if len(responses) == 0 {
				if err := c.flush(); err != nil {
					return fmt.Errorf("flush responses: %w", err)
				}
			}
		}
		return nil
	})
	err = eg.Wait()
	metricResponses.WithLabelValues(string(RoleTeacher)).Add(float64(served))
	switch {
	case err == nil:
		metricSessionDuration.WithLabelValues(string(RoleTeacher), resultOK).Observe(time.Since(start).Seconds())
		logger.Debug("reconnect served",
			zap.Int("responses", served),
			zap.Duration("duration", time.Since(start)))
		return nil
	case ctx.Err() != nil:
		logger.Debug("reconnect interrupted", zap.Error(err))
		metricSessionDuration.WithLabelValues(string(RoleTeacher), resultCanceled).Observe(time.Since(start).Seconds())
		return ctx.Err()
	default:
		metricSessionDuration.WithLabelValues(string(RoleTeacher), resultFailed).Observe(time.Since(start).Seconds())
		logger.Warn("reconnect session failed", zap.Error(err))
		return &SessionError{Role: RoleTeacher, Err: err}
	}
}
