package main

import (
	"io"

	"mvdb/engine"
	"mvdb/engine/expr"
	"mvdb/engine/mvcc"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"

	"github.com/spf13/cobra"
)

func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Replay a snapshot isolation scenario and dump the version chains",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			e := engine.New(table.NewCatalog(cfg.PageCapacity), cfg.ManagerOptions())
			return runDemo(cmd.OutOrStdout(), e)
		},
	}
}

// runDemo inserts (1, 0), opens a reader, then commits an update to (1, 1)
// and leaves a second update uncommitted.
func runDemo(w io.Writer, e *engine.Engine) error {
	schema := tuple.NewSchema(
		tuple.Column{Name: "a", Kind: tuple.KindInteger},
		tuple.Column{Name: "b", Kind: tuple.KindInteger},
	)
	info, err := e.CreateTable("demo", schema)
	if err != nil {
		return err
	}

	dump := func(msg string) {
		mvcc.TxnMgrDbg(w, msg, e.Manager(), info.Name, info.Schema, info.Heap)
	}

	txnA, err := e.Begin(tx.SnapshotIsolation)
	if err != nil {
		return err
	}
	if _, err := e.Insert(txnA, info.Name, tuple.New(tuple.Integer(1), tuple.Integer(0))); err != nil {
		return err
	}
	if err := e.Commit(txnA); err != nil {
		return err
	}
	dump("after insert")

	txnB, err := e.Begin(tx.SnapshotIsolation)
	if err != nil {
		return err
	}

	setB := func(v int64) func(tuple.Tuple) tuple.Tuple {
		return func(t tuple.Tuple) tuple.Tuple { return t.With(1, tuple.Integer(v)) }
	}

	txnC, err := e.Begin(tx.SnapshotIsolation)
	if err != nil {
		return err
	}
	if _, err := e.Update(txnC, info.Name, expr.True(), setB(1)); err != nil {
		return err
	}
	if err := e.Commit(txnC); err != nil {
		return err
	}
	dump("after committed update")

	txnD, err := e.Begin(tx.SnapshotIsolation)
	if err != nil {
		return err
	}
	if _, err := e.Update(txnD, info.Name, expr.True(), setB(2)); err != nil {
		return err
	}
	dump("with uncommitted update")

	if err := e.Abort(txnD); err != nil {
		return err
	}
	if err := e.Commit(txnB); err != nil {
		return err
	}
	e.Manager().GarbageCollection()
	dump("after abort and garbage collection")
	return nil
}
