// Package log builds the zap loggers used by the reconnect tooling.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoder defines a log encoder kind.
type Encoder = string

const (
	// ConsoleEncoder represents logging with plain text.
	ConsoleEncoder Encoder = "console"
	// JSONEncoder represents logging with JSON.
	JSONEncoder Encoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// NewWithLevel creates a named logger with a fixed level.
func NewWithLevel(module string, level zap.AtomicLevel, encoder Encoder, hooks ...func(zapcore.Entry) error) *zap.Logger {
	var enc zapcore.Encoder
	switch encoder {
	case JSONEncoder:
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(logWriter), level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(module)
}

// Modules hands out per-module loggers that share the encoder of the root logger
// but carry individually configured levels.
type Modules struct {
	encoder Encoder
	levels  map[string]zap.AtomicLevel
	root    *zap.Logger
}

// NewModules parses the module levels. Modules without a configured level
// inherit defaultLevel.
func NewModules(encoder Encoder, defaultLevel string, levels map[string]string) (*Modules, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(defaultLevel))
	if err != nil {
		return nil, fmt.Errorf("parse default log level %q: %w", defaultLevel, err)
	}
	m := &Modules{
		encoder: encoder,
		levels:  map[string]zap.AtomicLevel{"": lvl},
	}
	for name, l := range levels {
		parsed, err := zap.ParseAtomicLevel(strings.ToLower(l))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q for %s: %w", l, name, err)
		}
		m.levels[name] = parsed
	}
	m.root = NewWithLevel("", lvl, encoder)
	return m, nil
}

// Root returns the application logger.
func (m *Modules) Root() *zap.Logger {
	return m.root
}

// Get returns the logger for the module.
func (m *Modules) Get(module string) *zap.Logger {
	lvl, ok := m.levels[module]
	if !ok {
		return m.root.Named(module)
	}
	return NewWithLevel(module, lvl, m.encoder)
}
