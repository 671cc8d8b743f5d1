package tx

type State int32

const (
	Running State = iota
	Tainted
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Tainted:
		return "TAINTED"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == Committed || s == Aborted
}

type IsolationLevel int

const (
	SnapshotIsolation IsolationLevel = iota
	Serializable
)

func (l IsolationLevel) String() string {
	switch l {
	case SnapshotIsolation:
		return "SNAPSHOT_ISOLATION"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "UNKNOWN"
	}
}

// ParseIsolationLevel accepts the names printed by String, plus "si".
func ParseIsolationLevel(s string) (IsolationLevel, bool) {
	switch s {
	case "SNAPSHOT_ISOLATION", "snapshot", "si":
		return SnapshotIsolation, true
	case "SERIALIZABLE", "serializable":
		return Serializable, true
	default:
		return SnapshotIsolation, false
	}
}
