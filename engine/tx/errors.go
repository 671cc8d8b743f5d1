package tx

import "github.com/pkg/errors"

// ErrConflict is the root of every failure caused by a concurrent modification.
var ErrConflict = errors.New("tx: concurrent modification")

var (
	ErrTransactionTainted   = errors.WithMessage(ErrConflict, "tx: transaction is tainted")
	ErrSerializationFailure = errors.WithMessage(ErrConflict, "tx: serializable validation failed")
)

var (
	ErrTransactionNotRunning         = errors.New("tx: transaction is not running")
	ErrMaxActiveTransactionsExceeded = errors.New("tx: max active transactions reached")
	ErrInvariantViolation            = errors.New("tx: invariant violation")
)
