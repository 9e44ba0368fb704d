package checkout

import "fmt"

// Commit steps reported by CommitError.
const (
	OpInsertSale   = "insert sale"
	OpInsertItems  = "insert items"
	OpAppendOutbox = "append outbox"
	OpTransaction  = "transaction"
)

// CommitError is a persistence failure that aborted a sale. Nothing from
// the sale was stored. Document failures are reported as
// *fiscal.SigningError instead.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to commit sale (%s): %v", e.Op, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
