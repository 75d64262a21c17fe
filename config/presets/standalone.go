package presets

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spacemeshos/go-vreconnect/config"
	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
)

func init() {
	register("standalone", standalone())
}

// standalone is a small setup for running the tool on a developer machine.
func standalone() config.Config {
	conf := config.DefaultConfig()
	conf.DataDir = filepath.Join(os.TempDir(), "vreconnect-standalone")

	conf.Reconnect.TraversalOrder = traversal.KindTwoPhase
	conf.Reconnect.ChunkRank = 2
	conf.Reconnect.SenderCount = 2
	conf.Reconnect.MaxInFlightRequests = 1 << 10
	conf.Reconnect.RootResponseTimeout = 5 * time.Second

	conf.Rebuild.BufferSize = 1 << 10
	conf.Rebuild.FlushBatchSize = 1 << 8

	conf.Store.CacheMiB = 16
	conf.Store.Handles = 16

	conf.Bench.Leaves = 1 << 10
	conf.Bench.Updated = 16
	conf.Bench.Removed = 8
	conf.Bench.Added = 8
	conf.Bench.Moved = 4

	conf.Logging.ReconnectLevel = "debug"
	return conf
}
