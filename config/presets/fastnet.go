package presets

import (
	"time"

	"github.com/spacemeshos/go-vreconnect/config"
	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
)

func init() {
	register("fastnet", fastnet())
}

func fastnet() config.Config {
	conf := config.DefaultConfig()

	conf.Reconnect.TraversalOrder = traversal.KindParallel
	conf.Reconnect.SenderCount = 8
	conf.Reconnect.ChunkRank = 6
	conf.Reconnect.MaxInFlightRequests = 1 << 18
	conf.Reconnect.RootResponseTimeout = 10 * time.Second
	conf.Reconnect.BackoffSpins = 1000

	conf.Rebuild.FirstSupplyTimeout = time.Minute
	conf.Rebuild.SupplyTimeout = 10 * time.Second
	conf.Rebuild.FlushBatchSize = 1 << 16

	conf.Store.CacheMiB = 512
	conf.Store.Handles = 512

	conf.Bench.Leaves = 1 << 20

	return conf
}
