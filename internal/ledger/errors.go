package ledger

import "errors"

var (
	// ErrNotFound means the referenced record id is absent from the
	// collection. Mutations that return it leave the collection untouched.
	ErrNotFound = errors.New("record not found")

	// ErrState means the operation is defined only for records in a
	// different lifecycle state, e.g. merging two inventory records.
	ErrState = errors.New("record state does not allow this operation")

	// ErrConfirmRequired means a destructive operation was requested
	// without the explicit confirmation flag.
	ErrConfirmRequired = errors.New("confirmation required")

	// ErrInvalidPayload means an import payload contained no usable
	// record array.
	ErrInvalidPayload = errors.New("invalid import payload")
)
