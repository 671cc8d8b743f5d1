package mvcc

import (
	"fmt"
	"io"
	"strings"

	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"
)

// TxnMgrDbg writes every row of a table followed by its undo chain, oldest
// row first and each chain newest to oldest:
//
//	RID=0/0 ts=3 (1, 1)
//	  txn2@0 (_, 0) ts=1
//
// Deleted versions print as <del>. Rows the heap cannot read are reported
// inline and skipped.
func TxnMgrDbg(w io.Writer, info string, mgr *tx.Manager, tableName string, schema *tuple.Schema, heap table.Heap) {
	fmt.Fprintf(w, "debug_hook: %s\n", info)
	fmt.Fprintf(w, "table %s %s watermark=%s last_commit=%s\n", tableName, schema, mgr.Watermark(), mgr.LastCommitTS())

	for _, rid := range table.AllRIDs(heap) {
		meta, base, head, _, err := GetTupleAndUndoLink(mgr, heap, rid)
		if err != nil {
			fmt.Fprintf(w, "RID=%s error=%v\n", rid, err)
			continue
		}

		fmt.Fprintf(w, "RID=%s ts=%s %s\n", rid, meta.TS, formatVersion(meta.IsDeleted, base))

		for link := head; link.IsValid(); {
			undo, ok := mgr.GetUndoLogOptional(link)
			if !ok {
				fmt.Fprintf(w, "  %s <reclaimed>\n", link)
				break
			}

			fmt.Fprintf(w, "  %s %s ts=%s\n", link, formatPartial(schema, undo), undo.TS)
			link = undo.PrevVersion
		}
	}
}

func formatVersion(deleted bool, t tuple.Tuple) string {
	if deleted {
		return "<del>"
	}
	return t.String()
}

func formatPartial(schema *tuple.Schema, undo tx.UndoLog) string {
	if undo.IsDeleted {
		return "<del>"
	}

	parts := make([]string, schema.ColumnCount())
	next := 0
	for i := range parts {
		if i < len(undo.ModifiedFields) && undo.ModifiedFields[i] && next < undo.Tuple.Len() {
			parts[i] = undo.Tuple.Value(next).String()
			next++
			continue
		}
		parts[i] = "_"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
