package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func captureOutput(tb testing.TB) *bytes.Buffer {
	var buf bytes.Buffer
	prev := logWriter
	logWriter = &buf
	tb.Cleanup(func() { logWriter = prev })
	return &buf
}

func TestModulesLevels(t *testing.T) {
	buf := captureOutput(t)
	m, err := NewModules(JSONEncoder, "warn", map[string]string{"learner": "debug"})
	require.NoError(t, err)

	m.Get("learner").Debug("learner debug")
	m.Get("teacher").Debug("teacher debug")
	m.Root().Info("root info")
	m.Root().Warn("root warn", zap.Int("n", 1))

	out := buf.String()
	require.Contains(t, out, "learner debug")
	require.NotContains(t, out, "teacher debug")
	require.NotContains(t, out, "root info")
	require.Contains(t, out, `"n":1`)
}

func TestModulesBadLevel(t *testing.T) {
	_, err := NewModules(ConsoleEncoder, "loud", nil)
	require.Error(t, err)
	_, err = NewModules(ConsoleEncoder, "info", map[string]string{"x": "loud"})
	require.Error(t, err)
}
