package mvcc

import (
	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"

	"github.com/rs/zerolog/log"
)

// ReconstructTuple applies logs, newest first, to the base version. It
// returns false when the resulting version does not exist.
func ReconstructTuple(schema *tuple.Schema, base tuple.Tuple, baseMeta table.TupleMeta, logs []tx.UndoLog) (tuple.Tuple, bool) {
	current := base
	deleted := baseMeta.IsDeleted

	for _, undo := range logs {
		if undo.IsDeleted {
			deleted = true
			continue
		}
		deleted = false
		current = undo.ApplyTo(current)
	}

	if deleted {
		return tuple.Tuple{}, false
	}
	return fit(schema, current), true
}

// fit pads or trims t to the schema width. A base that never held values
// is padded with typed nulls.
func fit(schema *tuple.Schema, t tuple.Tuple) tuple.Tuple {
	n := schema.ColumnCount()
	if t.Len() == n {
		return t
	}

	values := t.Values()
	if len(values) > n {
		return tuple.New(values[:n]...)
	}
	for i := len(values); i < n; i++ {
		values = append(values, tuple.Null(schema.Column(i).Kind))
	}
	return tuple.New(values...)
}

// CollectUndoLogs gathers the logs needed to rebuild the version of rid that
// reader sees, newest first. An empty result means the base is visible;
// false means no visible version survives in the chain.
func CollectUndoLogs(rid primitives.RID, baseMeta table.TupleMeta, base tuple.Tuple, head tx.UndoLink, reader *tx.Transaction, mgr *tx.Manager) ([]tx.UndoLog, bool) {
	if IsVisible(baseMeta.TS, reader) {
		return []tx.UndoLog{}, true
	}

	var logs []tx.UndoLog
	for link := head; link.IsValid(); {
		undo, ok := mgr.GetUndoLogOptional(link)
		if !ok {
			log.Debug().Stringer("rid", rid).Stringer("link", link).Msg("mvcc: chain ends at a reclaimed log")
			return nil, false
		}

		logs = append(logs, undo)
		if IsVisible(undo.TS, reader) {
			return logs, true
		}
		link = undo.PrevVersion
	}

	return nil, false
}
