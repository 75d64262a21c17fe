package reconnect

import (
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SessionState is the stage of a learner's session.
type SessionState int32

const (
	// StateAwaitRoot is the initial state: the root is requested and no
	// other request may be sent until its response arrives.
	StateAwaitRoot SessionState = iota
	// StateSteady is the state where requests and responses flow freely.
	StateSteady
	// StateDraining begins once the terminator request is sent.
	StateDraining
	// StateDone is reached when the terminator response is received.
	StateDone
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitRoot:
		return "await-root"
	case StateSteady:
		return "steady"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// sessionState tracks the stage of a session. Transitions only go forward.
type sessionState struct {
	v atomic.Int32
}

func (s *sessionState) get() SessionState {
	return SessionState(s.v.Load())
}

// advance moves the state from one stage to the next one and reports
// whether the session was in the expected stage.
func (s *sessionState) advance(from, to SessionState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

// Opt modifies a Teacher or a Learner.
type Opt func(*options)

type options struct {
	logger *zap.Logger
	clock  clockwork.Clock
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for timeouts.
func WithClock(clock clockwork.Clock) Opt {
	return func(o *options) {
		o.clock = clock
	}
}

// Stats summarizes a learner's session.
type Stats struct {
	Leaves            int64
	RedundantLeaves   int64
	Internal          int64
	RedundantInternal int64
	LeafBytes         int64
	Requests          int64
	StaleRecords      int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("leaves", s.Leaves)
	enc.AddInt64("redundant_leaves", s.RedundantLeaves)
	enc.AddInt64("internal", s.Internal)
	enc.AddInt64("redundant_internal", s.RedundantInternal)
	enc.AddInt64("leaf_bytes", s.LeafBytes)
	enc.AddInt64("requests", s.Requests)
	enc.AddInt("stale_records", s.StaleRecords)
	return nil
}
