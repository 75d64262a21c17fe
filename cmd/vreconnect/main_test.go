package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(tb testing.TB, args ...string) (string, error) {
	tb.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBench(t *testing.T) {
	for _, order := range []string{"top-to-bottom", "bottom-up", "parallel", "two-phase", "two-phase-pessimistic"} {
		t.Run(order, func(t *testing.T) {
			out, err := execute(t, "bench",
				"--traversal-order", order,
				"--chunk-rank", "2",
				"--leaves", "300",
				"--value-size", "8",
				"--updated", "7",
				"--removed", "5",
				"--added", "9",
				"--moved", "3")
			require.NoError(t, err)
			require.Contains(t, out, "order:            "+order)
			require.Contains(t, out, "root:")
		})
	}
}

func TestGenThenBench(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "gen", "teacher",
		"--data-folder", dir,
		"--leaves", "100",
		"--seed", "9")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, filepath.Join(dir, "teacher")))

	out, err = execute(t, "bench",
		"--preset", "standalone",
		"--teacher-dir", filepath.Join(dir, "teacher"),
		"--leaves", "100",
		"--seed", "9",
		"--removed", "20")
	require.NoError(t, err)
	require.Contains(t, out, "root:")
}

func TestBadArguments(t *testing.T) {
	_, err := execute(t, "bench", "--preset", "mainnet")
	require.ErrorContains(t, err, "mainnet")

	_, err = execute(t, "bench", "--traversal-order", "random")
	require.Error(t, err)

	_, err = execute(t, "bench", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestBenchLearnerDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "learner")
	args := []string{"bench",
		"--learner-dir", dir,
		"--leaves", "64",
		"--value-size", "8",
		"--seed", "3",
	}
	out, err := execute(t, args...)
	require.NoError(t, err)
	require.Contains(t, out, "leaves written:   64\n")

	// the learner's store already holds the teacher's tree
	out, err = execute(t, args...)
	require.NoError(t, err)
	require.Contains(t, out, "leaves written:   0\n")
	require.Contains(t, out, "records deleted:  0\n")
}
