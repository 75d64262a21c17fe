package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-vreconnect/reconnect"
	"github.com/spacemeshos/go-vreconnect/vtree"
	"github.com/spacemeshos/go-vreconnect/vtree/rebuild"
	"github.com/spacemeshos/go-vreconnect/vtree/vtreedb"
)

var errRootMismatch = errors.New("reconnected root differs from teacher's root")

func benchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Reconnect a stale tree to a teacher's tree in process and report session stats",
		Args:  cobra.NoArgs,
		RunE:  a.bench,
	}
	def := a.conf.Bench
	flags := cmd.Flags()
	flags.Int("updated", def.Updated, "number of learner leaves with a changed value")
	flags.Int("removed", def.Removed, "number of teacher leaves missing from the learner")
	flags.Int("added", def.Added, "number of learner leaves missing from the teacher")
	flags.Int("moved", def.Moved, "number of learner leaves moved to another position")
	flags.String("teacher-dir", def.TeacherDir, "use an existing teacher store")
	flags.String("learner-dir", def.LearnerDir, "use an existing learner store")
	return cmd
}

// trees opens the stores named in the config, or generates a teacher tree
// and a mutated copy of it for the learner in memory.
func (a *app) trees() (teacher, learner *vtreedb.DB, err error) {
	bench := a.conf.Bench
	rng := rand.New(rand.NewPCG(bench.Seed, bench.Seed))
	kvs := vtreedb.GenerateKeyValues(rng, bench.Leaves, bench.ValueSize)
	open := func(dir string, kvs []vtreedb.KeyValue) (*vtreedb.DB, error) {
		if dir != "" {
			return a.openStore(dir)
		}
		db := vtreedb.InMemory(vtreedb.WithLogger(a.modules.Get("store")))
		if _, err := db.Build(kvs); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	teacher, err = open(bench.TeacherDir, kvs)
	if err != nil {
		return nil, nil, fmt.Errorf("teacher tree: %w", err)
	}
	mutation := vtreedb.Mutation{
		Updated: bench.Updated,
		Removed: bench.Removed,
		Added:   bench.Added,
		Moved:   bench.Moved,
	}
	learner, err = open(bench.LearnerDir, vtreedb.Mutate(rng, kvs, mutation, bench.ValueSize))
	if err != nil {
		teacher.Close()
		return nil, nil, fmt.Errorf("learner tree: %w", err)
	}
	return teacher, learner, nil
}

func (a *app) bench(cmd *cobra.Command, _ []string) error {
	teacherDB, learnerDB, err := a.trees()
	if err != nil {
		return err
	}
	defer teacherDB.Close()
	defer learnerDB.Close()

	snapshot, err := teacherDB.Snapshot()
	if err != nil {
		return err
	}
	defer snapshot.Release()
	// the rebuilder writes to the learner's store while the session reads
	// the original tree
	original, err := learnerDB.Snapshot()
	if err != nil {
		return err
	}
	defer original.Release()
	expected, err := snapshot.FindHash(vtree.RootPath)
	if err != nil {
		return err
	}

	logger := a.modules.Get("reconnect")
	teacher, err := reconnect.NewTeacher(a.conf.Reconnect, reconnect.WithLogger(logger))
	if err != nil {
		return err
	}
	learner, err := reconnect.NewLearner(a.conf.Reconnect, reconnect.WithLogger(logger))
	if err != nil {
		return err
	}
	rebuilder, err := rebuild.New(learnerDB, a.conf.Rebuild, rebuild.WithLogger(a.modules.Get("rebuild")))
	if err != nil {
		return err
	}

	start := time.Now()
	tconn, lconn := net.Pipe()
	var result *reconnect.Result
	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.Go(func() error {
		return teacher.Serve(ctx, tconn, snapshot)
	})
	eg.Go(func() error {
		var err error
		result, err = learner.Run(ctx, lconn, original, rebuilder)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	took := time.Since(start)

	written, deleted := rebuilder.Written()
	a.logger.Info("bench complete",
		zap.String("order", string(a.conf.Reconnect.TraversalOrder)),
		zap.Object("state", result.State),
		zap.Object("stats", result.Stats),
		zap.Int("leaves_written", written),
		zap.Int("records_deleted", deleted),
		zap.Duration("duration", took))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "order:            %s\n", a.conf.Reconnect.TraversalOrder)
	fmt.Fprintf(out, "tree:             %s\n", result.State)
	fmt.Fprintf(out, "requests:         %d\n", result.Stats.Requests)
	fmt.Fprintf(out, "leaves received:  %d (%d redundant)\n", result.Stats.Leaves, result.Stats.RedundantLeaves)
	fmt.Fprintf(out, "internal changed: %d\n", result.Stats.Internal)
	fmt.Fprintf(out, "leaves written:   %d\n", written)
	fmt.Fprintf(out, "records deleted:  %d\n", deleted)
	fmt.Fprintf(out, "duration:         %v\n", took)
	if result.RootHash != expected {
		return fmt.Errorf("%w: %s != %s", errRootMismatch, result.RootHash, expected)
	}
	fmt.Fprintf(out, "root:             %s\n", result.RootHash)
	return nil
}
