// Package config contains the configuration of the vreconnect tool
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/spacemeshos/go-vreconnect/reconnect"
	"github.com/spacemeshos/go-vreconnect/vtree/rebuild"
)

const defaultDataDirName = "vreconnect"

// Config defines the top level configuration.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Reconnect  reconnect.Config `mapstructure:"reconnect"`
	Rebuild    rebuild.Config   `mapstructure:"rebuild"`
	Store      StoreConfig      `mapstructure:"store"`
	Bench      BenchConfig      `mapstructure:"bench"`
	Logging    LoggerConfig     `mapstructure:"logging"`
}

// BaseConfig holds the options shared by all commands.
type BaseConfig struct {
	DataDir    string `mapstructure:"data-folder"`
	ConfigFile string `mapstructure:"config"`

	CollectMetrics bool `mapstructure:"metrics"`
	MetricsPort    int  `mapstructure:"metrics-port"`
}

// StoreConfig configures the leveldb tree stores.
type StoreConfig struct {
	CacheMiB int `mapstructure:"cache-mib"`
	Handles  int `mapstructure:"handles"`
}

// BenchConfig describes the trees used by the bench command. When
// TeacherDir or LearnerDir is set, the existing store is used instead of a
// generated one.
type BenchConfig struct {
	Leaves    int    `mapstructure:"leaves"`
	ValueSize int    `mapstructure:"value-size"`
	Seed      uint64 `mapstructure:"seed"`

	Updated int `mapstructure:"updated"`
	Removed int `mapstructure:"removed"`
	Added   int `mapstructure:"added"`
	Moved   int `mapstructure:"moved"`

	TeacherDir string `mapstructure:"teacher-dir"`
	LearnerDir string `mapstructure:"learner-dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseConfig: BaseConfig{
			DataDir:     filepath.Join(os.TempDir(), defaultDataDirName),
			MetricsPort: 1010,
		},
		Reconnect: reconnect.DefaultConfig(),
		Rebuild:   rebuild.DefaultConfig(),
		Store: StoreConfig{
			CacheMiB: 64,
			Handles:  64,
		},
		Bench: BenchConfig{
			Leaves:    1 << 16,
			ValueSize: 32,
			Seed:      1,
			Updated:   1 << 8,
			Removed:   1 << 6,
			Added:     1 << 6,
			Moved:     1 << 4,
		},
		Logging: defaultLoggingConfig(),
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if err := cfg.Reconnect.Validate(); err != nil {
		return err
	}
	if err := cfg.Rebuild.Validate(); err != nil {
		return err
	}
	switch {
	case cfg.Bench.Leaves < 0:
		return errors.New("bench leaves must not be negative")
	case cfg.Bench.ValueSize < 0:
		return errors.New("bench value size must not be negative")
	case cfg.Bench.Updated < 0 || cfg.Bench.Removed < 0 || cfg.Bench.Added < 0 || cfg.Bench.Moved < 0:
		return errors.New("bench mutation counts must not be negative")
	}
	return nil
}

// LoadConfig reads the config file into vip. An empty file name leaves vip
// untouched.
func LoadConfig(fs afero.Fs, file string, vip *viper.Viper) error {
	if file == "" {
		return nil
	}
	vip.SetFs(fs)
	vip.SetConfigFile(file)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", file, err)
	}
	return nil
}

// Unmarshal decodes the settings in vip on top of cfg.
func Unmarshal(vip *viper.Viper, cfg *Config) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := vip.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
