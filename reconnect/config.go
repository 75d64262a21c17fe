package reconnect

import (
	"fmt"
	"slices"
	"time"

	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
)

// Config holds reconnect session parameters.
type Config struct {
	// TraversalOrder selects the order in which the learner requests nodes.
	TraversalOrder traversal.Kind `mapstructure:"traversal-order"`
	// ChunkRank is the rank of subtree roots for chunked traversal orders.
	ChunkRank int `mapstructure:"chunk-rank"`
	// SenderCount is the number of learner send tasks for orders that support
	// concurrent senders.
	SenderCount int `mapstructure:"sender-count"`
	// MaxInFlightRequests bounds the number of requests without a response.
	MaxInFlightRequests int `mapstructure:"max-in-flight-requests"`
	// RootResponseTimeout bounds the wait for the teacher's root response.
	RootResponseTimeout time.Duration `mapstructure:"root-response-timeout"`
	// MaxResponsesPerSecond throttles the teacher. Zero disables throttling.
	MaxResponsesPerSecond int `mapstructure:"max-responses-per-second"`
	// ResponseQueueSize is the size of the queue between the teacher's
	// receive and send tasks.
	ResponseQueueSize int `mapstructure:"response-queue-size"`
	// BufferSize is the size of stream read and write buffers.
	BufferSize int `mapstructure:"buffer-size"`
	// CacheSize is the number of hashes and leaves cached by the teacher.
	CacheSize int `mapstructure:"cache-size"`

	BackoffSpins    int           `mapstructure:"backoff-spins"`
	BackoffMinSleep time.Duration `mapstructure:"backoff-min-sleep"`
	BackoffMaxSleep time.Duration `mapstructure:"backoff-max-sleep"`
}

// DefaultConfig returns the default reconnect configuration.
func DefaultConfig() Config {
	b := traversal.DefaultBackoff()
	return Config{
		TraversalOrder:        traversal.KindTwoPhasePessimistic,
		ChunkRank:             traversal.DefaultChunkRank,
		SenderCount:           4,
		MaxInFlightRequests:   1 << 16,
		RootResponseTimeout:   time.Minute,
		MaxResponsesPerSecond: 0,
		ResponseQueueSize:     1 << 12,
		BufferSize:            1 << 16,
		CacheSize:             1 << 16,
		BackoffSpins:          b.Spins,
		BackoffMinSleep:       b.MinSleep,
		BackoffMaxSleep:       b.MaxSleep,
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	switch {
	case !slices.Contains(traversal.Kinds, cfg.TraversalOrder):
		return fmt.Errorf("%w: unknown traversal order %q", ErrBadConfig, cfg.TraversalOrder)
	case cfg.ChunkRank < 1 || cfg.ChunkRank > traversal.MaxChunkRank:
		return fmt.Errorf("%w: chunk rank %d out of range [1, %d]", ErrBadConfig, cfg.ChunkRank, traversal.MaxChunkRank)
	case cfg.SenderCount < 1:
		return fmt.Errorf("%w: sender count must be positive", ErrBadConfig)
	case cfg.MaxInFlightRequests < 1:
		return fmt.Errorf("%w: max in-flight requests must be positive", ErrBadConfig)
	case cfg.RootResponseTimeout <= 0:
		return fmt.Errorf("%w: root response timeout must be positive", ErrBadConfig)
	case cfg.MaxResponsesPerSecond < 0:
		return fmt.Errorf("%w: negative max responses per second", ErrBadConfig)
	case cfg.ResponseQueueSize < 1:
		return fmt.Errorf("%w: response queue size must be positive", ErrBadConfig)
	case cfg.BufferSize < 1:
		return fmt.Errorf("%w: buffer size must be positive", ErrBadConfig)
	case cfg.CacheSize < 1:
		return fmt.Errorf("%w: cache size must be positive", ErrBadConfig)
	case cfg.BackoffSpins < 0 || cfg.BackoffMinSleep <= 0 || cfg.BackoffMaxSleep < cfg.BackoffMinSleep:
		return fmt.Errorf("%w: bad backoff %d/%v/%v",
			ErrBadConfig, cfg.BackoffSpins, cfg.BackoffMinSleep, cfg.BackoffMaxSleep)
	}
	return nil
}

func (cfg *Config) backoff() traversal.Backoff {
	return traversal.Backoff{
		Spins:    cfg.BackoffSpins,
		MinSleep: cfg.BackoffMinSleep,
		MaxSleep: cfg.BackoffMaxSleep,
	}
}
