package query

type CommandType uint8

const (
	CommandCreate CommandType = iota
	CommandInsert
	CommandSelect
	CommandUpdate
	CommandDelete

	CommandBegin
	CommandCommit
	CommandAbort

	CommandDebug
	CommandVacuum

	CommandExit
	CommandHelp
)

const (
	CREATE      = "CREATE"
	INSERT      = "INSERT"
	SELECT      = "SELECT"
	UPDATE      = "UPDATE"
	DELETE      = "DELETE"
	WHERE       = "WHERE"
	SET         = "SET"
	TRANSACTION = "TRANSACTION"
	BEGIN       = "BEGIN"
	COMMIT      = "COMMIT"
	ABORT       = "ABORT"
	DEBUG       = "DEBUG"
	VACUUM      = "VACUUM"
	EXIT        = "EXIT"
	HELP        = "HELP"
)

// ColumnDef is a `name:type` pair from CREATE.
type ColumnDef struct {
	Name string
	Type string
}

// Condition is a single `column op literal` filter.
type Condition struct {
	Column string
	Op     string
	Value  string
}

// Assignment is a `SET column literal` clause.
type Assignment struct {
	Column string
	Value  string
}

// Command is a parsed statement. Literals stay raw until they are bound to a
// table schema.
type Command struct {
	Type      CommandType
	Table     string
	Columns   []ColumnDef
	Values    []string
	Set       *Assignment
	Where     *Condition
	Isolation string
}

type CommandMeta struct {
	Name        string
	Usage       string
	Description string
}

var CommandRegistry = map[CommandType]CommandMeta{
	CommandBegin: {
		Name:        "TRANSACTION BEGIN",
		Usage:       "TRANSACTION BEGIN [SERIALIZABLE]",
		Description: "Start a new transaction",
	},
	CommandCommit: {
		Name:        "TRANSACTION COMMIT",
		Usage:       "TRANSACTION COMMIT",
		Description: "Commit current transaction",
	},
	CommandAbort: {
		Name:        "TRANSACTION ABORT",
		Usage:       "TRANSACTION ABORT",
		Description: "Abort current transaction",
	},
	CommandCreate: {
		Name:        "CREATE",
		Usage:       "CREATE <table> <col:type>...",
		Description: "Create a table (integer, varchar, boolean)",
	},
	CommandInsert: {
		Name:        "INSERT",
		Usage:       "INSERT <table> <value>...",
		Description: "Insert a row",
	},
	CommandSelect: {
		Name:        "SELECT",
		Usage:       "SELECT <table> [WHERE <col> <op> <value>]",
		Description: "Print visible rows",
	},
	CommandUpdate: {
		Name:        "UPDATE",
		Usage:       "UPDATE <table> SET <col> <value> [WHERE ...]",
		Description: "Change one column of matching rows",
	},
	CommandDelete: {
		Name:        "DELETE",
		Usage:       "DELETE <table> [WHERE ...]",
		Description: "Delete matching rows",
	},
	CommandDebug: {
		Name:        "DEBUG",
		Usage:       "DEBUG <table>",
		Description: "Dump rows with their version chains",
	},
	CommandVacuum: {
		Name:        "VACUUM",
		Usage:       "VACUUM",
		Description: "Run garbage collection",
	},
	CommandHelp: {
		Name:        "HELP",
		Usage:       "HELP",
		Description: "Show help message",
	},
	CommandExit: {
		Name:        "EXIT",
		Usage:       "EXIT",
		Description: "Exit the REPL",
	},
}
