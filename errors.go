// Package vellum implements the storage kernel of a version-controlled,
// document-oriented record store: an append-only write ledger backed by
// immutable on-disk segments, with snapshot-isolated transactions layered
// on top via just-in-time locking.
//
// Writes flow client -> Engine -> Ledger (durable on return). A background
// task drains Ledger pages into Segments. Reads merge the Ledger and the
// Database of sealed Segments using an XOR-parity rule: a value is present
// for (record, key) iff it has been added an odd number of times.
package vellum

import "errors"

// Sentinel errors returned by kernel operations. Callers compare with
// errors.Is; wrapped forms add an operation prefix via fmt.Errorf("%w").
var (
	// ErrNotFound is returned when a record, key, or label has no data.
	ErrNotFound = errors.New("not found")

	// ErrAtomicState is returned when a read or write is attempted on an
	// AtomicOperation that is not OPEN.
	ErrAtomicState = errors.New("atomic operation is not open")

	// ErrTransactionState is returned when commit/abort is attempted on a
	// Transaction that has already committed or aborted.
	ErrTransactionState = errors.New("transaction is not open")

	// ErrCapacity is returned internally when a Ledger page cannot hold
	// another write; callers never see it, it triggers page rotation.
	ErrCapacity = errors.New("page capacity exceeded")

	// ErrSegmentLoading is returned when a segment file's signature,
	// schema version, or chunk lengths fail validation on load.
	ErrSegmentLoading = errors.New("segment failed to load")

	// ErrBackupCorruption is returned when a transaction backup file
	// cannot be parsed during crash recovery, and wraps the failure when
	// Transaction.Commit cannot write its backup file.
	ErrBackupCorruption = errors.New("transaction backup is corrupt")

	// ErrUnsupportedOperation is returned for operator/call-site
	// combinations that cannot apply, e.g. a range query against the
	// corpus chunk.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrRangeBlocked is not a failure: it signals that a range lock
	// acquisition must wait or that the caller's atomic operation
	// should abort and retry.
	ErrRangeBlocked = errors.New("range lock blocked")

	// ErrClosed is returned by Engine.Add and Engine.Remove once the
	// Engine refuses further writes after an unrecoverable Ledger
	// transport error.
	ErrClosed = errors.New("closed")

	// ErrCorruptWrite is returned when a Write cannot be decoded from
	// its binary encoding.
	ErrCorruptWrite = errors.New("corrupt write encoding")

	// ErrCorruptHeader is returned when a segment header cannot be
	// parsed.
	ErrCorruptHeader = errors.New("corrupt segment header")

	// ErrInvalidKey is returned for an empty or otherwise invalid key.
	ErrInvalidKey = errors.New("invalid key")
)
