package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"mvdb/config"
	"mvdb/engine"
	"mvdb/engine/expr"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var counterSchema = tuple.NewSchema(
	tuple.Column{Name: "id", Kind: tuple.KindInteger},
	tuple.Column{Name: "value", Kind: tuple.KindInteger},
)

type benchResult struct {
	committed atomic.Int64
	conflicts atomic.Int64
	aborted   atomic.Int64
}

func newBenchCommand() *cobra.Command {
	var (
		workers      int
		transactions int
		rows         int
		isolation    string
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent increments against a counter table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Bench.Workers = workers
			}
			if flags.Changed("transactions") {
				cfg.Bench.Transactions = transactions
			}
			if flags.Changed("rows") {
				cfg.Bench.Rows = rows
			}
			if flags.Changed("isolation") {
				cfg.Bench.Isolation = isolation
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runBench(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers")
	cmd.Flags().IntVarP(&transactions, "transactions", "n", 0, "transactions per worker")
	cmd.Flags().IntVar(&rows, "rows", 0, "counter rows")
	cmd.Flags().StringVar(&isolation, "isolation", "", "snapshot or serializable")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func runBench(ctx context.Context, cfg config.Config) error {
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	isolationLevel, _ := tx.ParseIsolationLevel(cfg.Bench.Isolation)
	e := engine.New(table.NewCatalog(cfg.PageCapacity), cfg.ManagerOptions())
	if _, err := e.CreateTable("counters", counterSchema); err != nil {
		return err
	}
	if err := seedCounters(e, cfg.Bench.Rows); err != nil {
		return err
	}

	vacuumer := engine.NewVacuumer(e.Manager(), cfg.GCInterval)
	vacuumer.Start(ctx)
	defer vacuumer.Stop()

	var result benchResult
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Bench.Workers; w++ {
		rng := rand.New(rand.NewSource(int64(w) + 1))
		g.Go(func() error {
			for i := 0; i < cfg.Bench.Transactions; i++ {
				if ctx.Err() != nil {
					return nil
				}
				if err := increment(e, isolationLevel, rng.Int63n(int64(cfg.Bench.Rows)), &result); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total, err := sumCounters(e)
	if err != nil {
		return err
	}
	stats := vacuumer.Vacuum()

	fmt.Printf("workers=%d transactions=%d isolation=%s elapsed=%s\n",
		cfg.Bench.Workers, cfg.Bench.Workers*cfg.Bench.Transactions, isolationLevel, elapsed)
	fmt.Printf("committed=%d conflicts=%d aborted=%d sum=%d\n",
		result.committed.Load(), result.conflicts.Load(), result.aborted.Load(), total)
	fmt.Printf("gc: watermark=%s erased=%d pruned=%d truncated=%d repaired=%d registry=%d\n",
		stats.Watermark, stats.ErasedTxns, stats.PrunedChains, stats.TruncatedChains, stats.RepairedRows,
		len(e.Manager().Transactions()))

	if total != result.committed.Load() {
		return errors.Errorf("bench: lost updates, sum %d != committed %d", total, result.committed.Load())
	}
	return nil
}

func seedCounters(e *engine.Engine, rows int) error {
	txn, err := e.Begin(tx.SnapshotIsolation)
	if err != nil {
		return err
	}

	for id := 0; id < rows; id++ {
		if _, err := e.Insert(txn, "counters", tuple.New(tuple.Integer(int64(id)), tuple.Integer(0))); err != nil {
			return err
		}
	}
	return e.Commit(txn)
}

func increment(e *engine.Engine, isolation tx.IsolationLevel, id int64, result *benchResult) error {
	txn, err := e.Begin(isolation)
	if errors.Is(err, tx.ErrMaxActiveTransactionsExceeded) {
		result.aborted.Add(1)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = e.Update(txn, "counters", expr.ColumnCompare(0, expr.Equals, tuple.Integer(id)), func(t tuple.Tuple) tuple.Tuple {
		return t.With(1, tuple.Integer(t.Value(1).AsInteger()+1))
	})
	if err != nil {
		if !errors.Is(err, tx.ErrConflict) {
			return err
		}
		result.conflicts.Add(1)
		return e.Abort(txn)
	}

	if err := e.Commit(txn); err != nil {
		if !errors.Is(err, tx.ErrConflict) {
			return err
		}
		result.conflicts.Add(1)
		return nil
	}

	result.committed.Add(1)
	return nil
}

func sumCounters(e *engine.Engine) (int64, error) {
	txn, err := e.Begin(tx.SnapshotIsolation)
	if err != nil {
		return 0, err
	}
	defer func() { _ = e.Commit(txn) }()

	rows, err := e.Scan(txn, "counters", nil)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range rows {
		total += row.Tuple.Value(1).AsInteger()
	}
	return total, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("mvdb: metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("mvdb: serving metrics")
}
