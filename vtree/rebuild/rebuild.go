// Package rebuild reconstructs a learner's tree in the store from the nodes
// received during a reconnect session.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/reconnect/queue"
	"github.com/spacemeshos/go-vreconnect/vtree"
	"github.com/spacemeshos/go-vreconnect/vtree/vtreedb"
)

// ErrStalled is returned when leaves can't be handed to the store writer in
// time.
var ErrStalled = errors.New("tree rebuild stalled")

// Config holds the rebuild parameters.
type Config struct {
	// BufferSize is the number of received leaves that may wait to be written.
	BufferSize int `mapstructure:"buffer-size"`
	// FirstSupplyTimeout bounds the wait for buffer space for the first leaf.
	FirstSupplyTimeout time.Duration `mapstructure:"first-supply-timeout"`
	// SupplyTimeout bounds the wait for buffer space for subsequent leaves.
	SupplyTimeout time.Duration `mapstructure:"supply-timeout"`
	// FlushBatchSize is the number of leaves written in a single batch.
	FlushBatchSize int `mapstructure:"flush-batch-size"`
}

// DefaultConfig returns the default rebuild configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:         1 << 20,
		FirstSupplyTimeout: 10 * time.Minute,
		SupplyTimeout:      time.Minute,
		FlushBatchSize:     1 << 14,
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	switch {
	case cfg.BufferSize < 1:
		return fmt.Errorf("rebuild buffer size must be positive, got %d", cfg.BufferSize)
	case cfg.FlushBatchSize < 1:
		return fmt.Errorf("rebuild flush batch size must be positive, got %d", cfg.FlushBatchSize)
	case cfg.FirstSupplyTimeout <= 0 || cfg.SupplyTimeout <= 0:
		return errors.New("rebuild supply timeouts must be positive")
	}
	return nil
}

// Opt modifies a Rebuilder.
type Opt func(*Rebuilder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(r *Rebuilder) {
		r.logger = logger
	}
}

// WithClock sets the clock used for supply timeouts.
func WithClock(clock clockwork.Clock) Opt {
	return func(r *Rebuilder) {
		r.clock = clock
	}
}

// Rebuilder writes received leaves to the store in batches on a separate
// goroutine, deleting stale records with every batch. When the session is
// complete, it rehashes the internal nodes that differed from the teacher's.
type Rebuilder struct {
	logger *zap.Logger
	clock  clockwork.Clock
	db     *vtreedb.DB
	cfg    Config

	state    vtree.TreeState
	stale    vtree.StaleRecordSource
	leaves   *queue.BlockingIterator[*vtree.LeafRecord]
	supplied int
	dirty    *bitset.BitSet
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	err     error
	written int
	deleted int
}

// New creates a Rebuilder writing to the store.
func New(db *vtreedb.DB, cfg Config, opts ...Opt) (*Rebuilder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Rebuilder{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		db:     db,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Prepare starts the store writer for a tree with the given state.
func (r *Rebuilder) Prepare(ctx context.Context, state vtree.TreeState, stale vtree.StaleRecordSource) error {
	if r.done != nil {
		return errors.New("rebuild already started")
	}
	leaves, err := queue.NewBlockingIterator[*vtree.LeafRecord](r.cfg.BufferSize, queue.WithClock(r.clock))
	if err != nil {
		return err
	}
	r.state = state
	r.stale = stale
	r.leaves = leaves
	r.dirty = bitset.New(uint(max(state.FirstLeafPath, 0)))
	r.done = make(chan struct{})
	// the writer outlives the session's context, it stops in Finish or Abort
	var writerCtx context.Context
	writerCtx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		defer close(r.done)
		if err := r.write(writerCtx); err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			leaves.Close()
		}
	}()
	r.logger.Debug("rebuild started", zap.Object("state", state))
	return nil
}

func (r *Rebuilder) writerErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// OnLeaf queues the leaf for writing.
func (r *Rebuilder) OnLeaf(ctx context.Context, rec *vtree.LeafRecord) error {
	timeout := r.cfg.SupplyTimeout
	if r.supplied == 0 {
		timeout = r.cfg.FirstSupplyTimeout
	}
	ok, err := r.leaves.Supply(ctx, rec, timeout)
	switch {
	case errors.Is(err, queue.ErrClosed):
		if werr := r.writerErr(); werr != nil {
			return werr
		}
		return err
	case err != nil:
		return err
	case !ok:
		return fmt.Errorf("%w: no room for leaf %d after %v", ErrStalled, rec.Path, timeout)
	}
	r.supplied++
	return nil
}

// OnInternal marks the internal node for rehashing.
func (r *Rebuilder) OnInternal(p vtree.Path) {
	if !r.state.IsInternal(p) {
		return
	}
	r.dirty.Set(uint(p))
}

func (r *Rebuilder) write(ctx context.Context) error {
	batch := r.db.NewBatch()
	for {
		rec, ok, err := r.leaves.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch.PutLeaf(rec)
		if batch.Leaves() >= r.cfg.FlushBatchSize {
			if err := r.flush(batch); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	return r.flush(batch)
}

func (r *Rebuilder) flush(batch *vtreedb.Batch) error {
	n, err := r.db.Flush(batch, r.stale.RecordsToDelete())
	if err != nil {
		return fmt.Errorf("flush rebuild batch: %w", err)
	}
	r.mu.Lock()
	if batch != nil {
		r.written += batch.Leaves()
	}
	r.deleted += n
	r.mu.Unlock()
	return nil
}

// Finish writes the remaining leaves, deletes the remaining stale records,
// stores the new tree state and rehashes the internal nodes marked dirty. It
// returns the new root hash.
func (r *Rebuilder) Finish(ctx context.Context) (vtree.Hash, error) {
	if r.done == nil {
		return vtree.NullHash, errors.New("rebuild not started")
	}
	r.leaves.Close()
	select {
	case <-ctx.Done():
		r.cancel()
		<-r.done
		return vtree.NullHash, ctx.Err()
	case <-r.done:
	}
	r.cancel()
	if err := r.writerErr(); err != nil {
		return vtree.NullHash, err
	}
	// records marked once all nodes were received
	if err := r.flush(nil); err != nil {
		return vtree.NullHash, err
	}
	if err := r.db.SetState(r.state); err != nil {
		return vtree.NullHash, fmt.Errorf("set tree state: %w", err)
	}
	if err := r.db.PruneHashesAfter(r.state.LastLeafPath); err != nil {
		return vtree.NullHash, err
	}
	paths := make([]vtree.Path, 0, r.dirty.Count())
	for i, ok := r.dirty.NextSet(0); ok; i, ok = r.dirty.NextSet(i + 1) {
		paths = append(paths, vtree.Path(i))
	}
	root, err := r.db.Rehash(paths)
	if err != nil {
		return vtree.NullHash, fmt.Errorf("rehash: %w", err)
	}
	r.mu.Lock()
	written, deleted := r.written, r.deleted
	r.mu.Unlock()
	r.logger.Info("tree rebuilt",
		zap.Object("state", r.state),
		zap.Stringer("root", root),
		zap.Int("leaves_written", written),
		zap.Int("records_deleted", deleted),
		zap.Int("rehashed", len(paths)))
	return root, nil
}

// Abort stops the store writer. Whatever was written so far stays in the
// store.
func (r *Rebuilder) Abort() {
	if r.done == nil {
		return
	}
	r.cancel()
	r.leaves.Close()
	<-r.done
}

// Written returns the number of leaves written and stale records deleted.
func (r *Rebuilder) Written() (leaves, deleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.deleted
}
