package main

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-vreconnect/vtree/vtreedb"
)

func genCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gen [name]",
		Short: "Generate a tree of random leaves in the data folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "tree"
			if len(args) > 0 {
				name = args[0]
			}
			return a.gen(cmd, filepath.Join(a.conf.DataDir, name))
		},
	}
}

func (a *app) gen(cmd *cobra.Command, dir string) error {
	bench := a.conf.Bench
	db, err := a.openStore(dir)
	if err != nil {
		return err
	}
	defer db.Close()
	rng := rand.New(rand.NewPCG(bench.Seed, bench.Seed))
	root, err := db.Build(vtreedb.GenerateKeyValues(rng, bench.Leaves, bench.ValueSize))
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	a.logger.Info("tree generated",
		zap.String("dir", dir),
		zap.Int("leaves", bench.Leaves),
		zap.Object("state", db.State()),
		zap.Stringer("root", root))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", dir, db.State(), root)
	return nil
}
