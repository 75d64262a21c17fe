// vreconnect generates virtual trees and benchmarks reconnect sessions
// between them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/config"
	"github.com/spacemeshos/go-vreconnect/config/presets"
	"github.com/spacemeshos/go-vreconnect/log"
	"github.com/spacemeshos/go-vreconnect/metrics"
	"github.com/spacemeshos/go-vreconnect/vtree/vtreedb"
)

var (
	version string
	commit  string
	branch  string
)

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"data-folder":     "main.data-folder",
	"metrics":         "main.metrics",
	"metrics-port":    "main.metrics-port",
	"log-encoder":     "logging.log-encoder",
	"log-level":       "logging.app",
	"traversal-order": "reconnect.traversal-order",
	"chunk-rank":      "reconnect.chunk-rank",
	"senders":         "reconnect.sender-count",
	"max-in-flight":   "reconnect.max-in-flight-requests",
	"throttle":        "reconnect.max-responses-per-second",
	"leaves":          "bench.leaves",
	"value-size":      "bench.value-size",
	"seed":            "bench.seed",
	"updated":         "bench.updated",
	"removed":         "bench.removed",
	"added":           "bench.added",
	"moved":           "bench.moved",
	"teacher-dir":     "bench.teacher-dir",
	"learner-dir":     "bench.learner-dir",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	conf    config.Config
	preset  string
	cfgFile string
	modules *log.Modules
	logger  *zap.Logger
	metrics *metrics.Server
}

func rootCmd() *cobra.Command {
	a := &app{conf: config.DefaultConfig()}
	cmd := &cobra.Command{
		Use:               "vreconnect",
		Short:             "Generate virtual trees and reconnect them",
		Version:           fmt.Sprintf("%s+%s+%s", version, commit, branch),
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	def := a.conf
	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.preset, "preset", "p", "",
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))
	flags.StringVarP(&a.cfgFile, "config", "c", "", "load configuration from file")
	flags.String("data-folder", def.DataDir, "directory for tree stores")
	flags.Bool("metrics", def.CollectMetrics, "serve prometheus metrics")
	flags.Int("metrics-port", def.MetricsPort, "metrics server port")
	flags.String("log-encoder", def.Logging.Encoder, "log encoder, console or json")
	flags.String("log-level", def.Logging.AppLoggerLevel, "default log level")
	flags.String("traversal-order", string(def.Reconnect.TraversalOrder), "order in which the learner requests nodes")
	flags.Int("chunk-rank", def.Reconnect.ChunkRank, "rank of subtree roots for chunked orders")
	flags.Int("senders", def.Reconnect.SenderCount, "number of learner send tasks for concurrent orders")
	flags.Int("max-in-flight", def.Reconnect.MaxInFlightRequests, "max requests without a response")
	flags.Int("throttle", def.Reconnect.MaxResponsesPerSecond, "max teacher responses per second, 0 for no limit")
	flags.Int("leaves", def.Bench.Leaves, "number of leaves in a generated tree")
	flags.Int("value-size", def.Bench.ValueSize, "size of generated leaf values")
	flags.Uint64("seed", def.Bench.Seed, "seed of generated trees")

	cmd.AddCommand(genCmd(a), benchCmd(a))
	return cmd
}

// load applies the preset, the config file and the flags that were set, in
// that order.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if a.preset != "" {
		preset, err := presets.Get(a.preset)
		if err != nil {
			return err
		}
		a.conf = preset
	}
	vip := viper.New()
	if err := config.LoadConfig(afero.NewOsFs(), a.cfgFile, vip); err != nil {
		return err
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			vip.Set(key, f.Value.String())
		}
	})
	if err := config.Unmarshal(vip, &a.conf); err != nil {
		return err
	}
	a.conf.ConfigFile = a.cfgFile
	if err := a.conf.Validate(); err != nil {
		return err
	}
	modules, err := a.conf.Logging.Modules()
	if err != nil {
		return err
	}
	a.modules = modules
	a.logger = modules.Root()
	if a.conf.CollectMetrics {
		a.metrics = metrics.NewServer(a.logger.Named("metrics"), a.conf.MetricsPort)
		a.metrics.Start()
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return a.metrics.Stop(ctx)
}

func (a *app) openStore(dir string) (*vtreedb.DB, error) {
	return vtreedb.Open(dir,
		vtreedb.WithLogger(a.modules.Get("store").With(zap.String("dir", dir))),
		vtreedb.WithCache(a.conf.Store.CacheMiB, a.conf.Store.Handles))
}
