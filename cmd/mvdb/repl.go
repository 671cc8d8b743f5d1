package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"mvdb/engine"
	"mvdb/engine/mvcc"
	"mvdb/engine/table"
	"mvdb/engine/tx"
	"mvdb/query"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errNoTransaction = errors.New("no active transaction")

func newReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Run statements interactively against an in-memory engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			e := engine.New(table.NewCatalog(cfg.PageCapacity), cfg.ManagerOptions())
			vacuumer := engine.NewVacuumer(e.Manager(), cfg.GCInterval)

			fmt.Fprintln(cmd.OutOrStdout(), "mvdb started. Type commands (or 'HELP' for help):")
			return startRepl(os.Stdin, cmd.OutOrStdout(), e, vacuumer)
		},
	}
}

type session struct {
	out      io.Writer
	engine   *engine.Engine
	vacuumer *engine.Vacuumer
	current  *tx.Transaction
}

func startRepl(in io.Reader, out io.Writer, e *engine.Engine, vacuumer *engine.Vacuumer) error {
	reader := bufio.NewScanner(in)
	s := &session{out: out, engine: e, vacuumer: vacuumer}

	for {
		fmt.Fprint(out, "> ")

		if !reader.Scan() {
			return reader.Err()
		}

		cmd, err := query.Parse(reader.Text())
		if err != nil {
			fmt.Fprintln(out, "ERR:", err)
			continue
		}

		if cmd.Type == query.CommandExit {
			if s.current != nil {
				_ = e.Abort(s.current)
			}
			return nil
		}

		if err := s.execute(cmd); err != nil {
			fmt.Fprintln(out, "ERR:", err)
		}
	}
}

func (s *session) execute(cmd *query.Command) error {
	switch cmd.Type {
	case query.CommandHelp:
		printHelp(s.out)
		return nil

	case query.CommandBegin:
		if s.current != nil {
			return errors.New("transaction already active")
		}

		isolation := tx.SnapshotIsolation
		if cmd.Isolation != "" {
			level, ok := tx.ParseIsolationLevel(cmd.Isolation)
			if !ok {
				return errors.Errorf("unknown isolation level %q", cmd.Isolation)
			}
			isolation = level
		}

		txn, err := s.engine.Begin(isolation)
		if err != nil {
			return err
		}

		s.current = txn
		fmt.Fprintf(s.out, "OK (%s started, read_ts=%s)\n", txn.ID(), txn.ReadTS())
		return nil

	case query.CommandCommit:
		txn, err := s.take()
		if err != nil {
			return err
		}

		if err := s.engine.Commit(txn); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "OK (commit_ts=%s)\n", txn.CommitTS())
		return nil

	case query.CommandAbort:
		txn, err := s.take()
		if err != nil {
			return err
		}

		if err := s.engine.Abort(txn); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "OK")
		return nil

	case query.CommandVacuum:
		stats := s.vacuumer.Vacuum()
		fmt.Fprintf(s.out, "OK (watermark=%s erased=%d pruned=%d truncated=%d repaired=%d)\n",
			stats.Watermark, stats.ErasedTxns, stats.PrunedChains, stats.TruncatedChains, stats.RepairedRows)
		return nil

	case query.CommandCreate:
		schema, err := cmd.Schema()
		if err != nil {
			return err
		}

		if _, err := s.engine.CreateTable(cmd.Table, schema); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "OK")
		return nil

	case query.CommandDebug:
		info, err := s.table(cmd.Table)
		if err != nil {
			return err
		}

		mvcc.TxnMgrDbg(s.out, "DEBUG "+cmd.Table, s.engine.Manager(), info.Name, info.Schema, info.Heap)
		return nil
	}

	if s.current == nil {
		return errNoTransaction
	}

	info, err := s.table(cmd.Table)
	if err != nil {
		return err
	}

	switch cmd.Type {
	case query.CommandInsert:
		t, err := cmd.Tuple(info.Schema)
		if err != nil {
			return err
		}

		rid, err := s.engine.Insert(s.current, info.Name, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "OK (rid=%s)\n", rid)
		return nil

	case query.CommandSelect:
		p, err := cmd.Predicate(info.Schema)
		if err != nil {
			return err
		}

		rows, err := s.engine.Scan(s.current, info.Name, p)
		if err != nil {
			return err
		}

		for _, row := range rows {
			fmt.Fprintf(s.out, "%s %s\n", row.RID, row.Tuple)
		}
		fmt.Fprintf(s.out, "(%d rows)\n", len(rows))
		return nil

	case query.CommandUpdate:
		p, err := cmd.Predicate(info.Schema)
		if err != nil {
			return err
		}

		assign, err := cmd.Assign(info.Schema)
		if err != nil {
			return err
		}

		n, err := s.engine.Update(s.current, info.Name, p, assign)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "OK (%d rows)\n", n)
		return nil

	case query.CommandDelete:
		p, err := cmd.Predicate(info.Schema)
		if err != nil {
			return err
		}

		n, err := s.engine.Delete(s.current, info.Name, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "OK (%d rows)\n", n)
		return nil

	default:
		return errors.New("unsupported command")
	}
}

// take detaches the current transaction from the session.
func (s *session) take() (*tx.Transaction, error) {
	if s.current == nil {
		return nil, errNoTransaction
	}

	txn := s.current
	s.current = nil
	return txn, nil
}

func (s *session) table(name string) (*table.Info, error) {
	info, ok := s.engine.Manager().Catalog().TableByName(name)
	if !ok {
		return nil, errors.Wrapf(table.ErrTableNotFound, "table %q", name)
	}
	return info, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "AVAILABLE COMMANDS")
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────────────────────────────────")
	fmt.Fprintf(out, "  %-24s | %-44s | %s\n", "Name", "Usage", "Description")
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────────────────────────────────")

	order := []query.CommandType{
		query.CommandBegin,
		query.CommandCommit,
		query.CommandAbort,
		query.CommandCreate,
		query.CommandInsert,
		query.CommandSelect,
		query.CommandUpdate,
		query.CommandDelete,
		query.CommandDebug,
		query.CommandVacuum,
		query.CommandHelp,
		query.CommandExit,
	}

	for _, cmdType := range order {
		meta := query.CommandRegistry[cmdType]
		fmt.Fprintf(out, "- %-25s %-46s %s\n", meta.Name, meta.Usage, meta.Description)
	}

	fmt.Fprintln(out)
}
