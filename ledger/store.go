/*
Package ledger adapts the engine to its host: a peer-executed,
transactionally-committed key/value ledger.

PURPOSE:
  The contract code does not own its storage. Every invocation reads a
  versioned snapshot of world state, buffers its writes, and the host either
  commits the whole buffer atomically or discards it when the invocation
  returns an error. This package pins the Go contracts for that model:

  - RecordStore:  what an invocation sees (snapshot reads, buffered writes)
  - Backend:      committed world state (memory or sqlite implementations)
  - Host:         runs an invocation and commits or discards its write-set
  - Invocation:   authenticated caller, tx id, logical timestamp
  - CompositeKey: the host's zero-byte-separated key encoding

NOT-FOUND AS CONTROL FLOW:
  Several engine call sites treat the absence of an administrative record
  (schedule, currency, exemption) as an in-band configuration signal rather
  than a failure. Get therefore returns ErrNotFound for absence, and callers
  branch with IsNotFound; any other error is fatal and propagates unmodified.

SEE ALSO:
  - host.go:         invocation transaction implementation
  - store/memory.go: in-memory Backend
  - store/sqlite:    persistent Backend
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by RecordStore.Get when no record exists at the
	// key. Callers distinguish this from every other failure.
	ErrNotFound = errors.New("record not found")

	// ErrWriteConflict is returned at commit time when another transaction
	// committed a write to a key this transaction read or wrote. The losing
	// invocation's writes never apply.
	ErrWriteConflict = errors.New("write conflict detected at commit")
)

// NotFoundError carries the record kind and key of a failed lookup.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// =============================================================================
// RECORD STORE - What one invocation sees
// =============================================================================

// RecordStore is the view of world state inside one invocation.
//
// INVARIANTS:
//   - Get reads the snapshot taken at invocation start, overlaid with this
//     invocation's own buffered writes (read-your-writes).
//   - Put never touches committed state directly; it is buffered until the
//     invocation returns nil.
//   - Scan visits keys with the given prefix in ascending byte order.
//
// Records are JSON-encoded. Get decodes into out; Put encodes rec.
type RecordStore interface {
	Get(ctx context.Context, key string, out any) error
	Put(ctx context.Context, key string, rec any) error
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}

// =============================================================================
// BACKEND - Committed world state
// =============================================================================

// Versioned pairs a committed value with its per-key version counter.
// Versions drive the host's optimistic commit-time conflict check.
type Versioned struct {
	Value   []byte
	Version uint64
}

// Backend is committed world state. Implementations: store.Memory (tests,
// dev) and sqlite.Store (persistent dev host).
type Backend interface {
	// GetState returns the committed value at key, or ok=false if absent.
	GetState(key string) (Versioned, bool, error)

	// ScanState visits committed keys with the prefix in ascending order.
	ScanState(prefix string, fn func(key string, v Versioned) error) error

	// ApplyBatch commits a write-set atomically, bumping each key's version.
	// Either every write in the batch becomes visible or none does.
	ApplyBatch(writes map[string][]byte) error
}
