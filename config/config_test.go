package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
)

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/vreconnect.toml", []byte(`
[main]
metrics = true

[reconnect]
traversal-order = "parallel"
chunk-rank = 6
root-response-timeout = "5s"

[rebuild]
flush-batch-size = 128

[bench]
leaves = 1000
teacher-dir = "/data/teacher"

[logging]
traversal = "debug"
`), 0o600))

	vip := viper.New()
	require.NoError(t, LoadConfig(fs, "/etc/vreconnect.toml", vip))
	cfg := DefaultConfig()
	require.NoError(t, Unmarshal(vip, &cfg))
	require.NoError(t, cfg.Validate())

	require.True(t, cfg.CollectMetrics)
	require.Equal(t, traversal.KindParallel, cfg.Reconnect.TraversalOrder)
	require.Equal(t, 6, cfg.Reconnect.ChunkRank)
	require.Equal(t, 5*time.Second, cfg.Reconnect.RootResponseTimeout)
	require.Equal(t, DefaultConfig().Reconnect.SenderCount, cfg.Reconnect.SenderCount)
	require.Equal(t, 128, cfg.Rebuild.FlushBatchSize)
	require.Equal(t, 1000, cfg.Bench.Leaves)
	require.Equal(t, "/data/teacher", cfg.Bench.TeacherDir)
	require.Equal(t, "debug", cfg.Logging.TraversalLevel)

	modules, err := cfg.Logging.Modules()
	require.NoError(t, err)
	require.NotNil(t, modules.Get("traversal"))
}

func TestLoadConfigMissingFile(t *testing.T) {
	vip := viper.New()
	require.NoError(t, LoadConfig(afero.NewMemMapFs(), "", vip))
	err := LoadConfig(afero.NewMemMapFs(), "/nope.toml", vip)
	require.ErrorContains(t, err, "/nope.toml")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Reconnect.TraversalOrder = "zigzag"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Rebuild.BufferSize = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Bench.Moved = -1
	require.Error(t, cfg.Validate())
}
