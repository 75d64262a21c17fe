package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-vreconnect/log"
)

const defaultLoggingLevel = zapcore.InfoLevel

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder        log.Encoder `mapstructure:"log-encoder"`
	AppLoggerLevel string      `mapstructure:"app"`
	ReconnectLevel string      `mapstructure:"reconnect"`
	TraversalLevel string      `mapstructure:"traversal"`
	StoreLevel     string      `mapstructure:"store"`
	RebuildLevel   string      `mapstructure:"rebuild"`
	P2PLevel       string      `mapstructure:"p2p"`
}

func defaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:        log.ConsoleEncoder,
		AppLoggerLevel: defaultLoggingLevel.String(),
		ReconnectLevel: defaultLoggingLevel.String(),
		TraversalLevel: zapcore.WarnLevel.String(),
		StoreLevel:     zapcore.WarnLevel.String(),
		RebuildLevel:   defaultLoggingLevel.String(),
		P2PLevel:       defaultLoggingLevel.String(),
	}
}

// Modules builds the per-module loggers.
func (c *LoggerConfig) Modules() (*log.Modules, error) {
	return log.NewModules(c.Encoder, c.AppLoggerLevel, map[string]string{
		"reconnect": c.ReconnectLevel,
		"traversal": c.TraversalLevel,
		"store":     c.StoreLevel,
		"rebuild":   c.RebuildLevel,
		"p2p":       c.P2PLevel,
	})
}
