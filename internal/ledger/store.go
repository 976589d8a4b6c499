// Package ledger persists the files and transfer batches handoffd tracks,
// realizing the two-table-plus-association schema from spec.md §6. The
// Store interface is what Tracker and Recorder depend on; MySQLStore is the
// one physical embodiment this repository ships (spec.md §1 treats the
// schema's embodiment as a narrow external contract — "any ordered-row
// store suffices" — so Store is deliberately small enough that a different
// engine could implement it too).
package ledger

import (
	"context"
	"time"

	"github.com/artemis/handoffd/internal/model"
)

// Store is the ledger's contract with the rest of the pipeline. Tracker and
// Recorder are the only callers; Porter workers never touch it (spec.md
// §5's "ledger session ... never concurrently" rule holds trivially because
// the supervisor is the only goroutine that calls into Store).
type Store interface {
	// Init creates the files/transfer_batches/file_transfer_attempts tables.
	Init(ctx context.Context) error
	// Drop removes them.
	Drop(ctx context.Context) error

	// FindFile looks up the FileRow identified by (tail, name, checksum).
	// A nil row with a nil error means no match was found.
	FindFile(ctx context.Context, tail, name, checksum string) (*model.FileRow, error)

	// InsertFiles inserts a batch of new FileRows atomically: either every
	// row is committed, or none is.
	InsertFiles(ctx context.Context, rows []model.FileRow) error

	// RecordBatch persists one TransferRecord as a BatchRow and associates
	// it with the FileRows matching the record's Files by (tail, name). ok
	// is false when none of the record's files are tracked — the record is
	// discarded by the caller in that case, per spec.md §4.4.
	RecordBatch(ctx context.Context, rec model.TransferRecord) (ok bool, err error)

	// UpdateHeld sets held_on on the latest FileRow matching (tail, name).
	UpdateHeld(ctx context.Context, tail, name string, heldOn time.Time) error

	Close() error
}
