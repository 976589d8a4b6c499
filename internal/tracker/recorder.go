package tracker

import (
	"context"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
	"go.uber.org/zap"
)

// Recorder persists completed transfer attempts as ledger batch rows and
// forwards the files of successful batches onward for relocation, the Go
// rendering of manager.py's _add_transfers.
type Recorder struct {
	tracker *Tracker
}

// NewRecorder builds a Recorder sharing a Tracker's store, chunk size and
// logger.
func NewRecorder(t *Tracker) *Recorder {
	return &Recorder{tracker: t}
}

// Record drains in in chunks, persists each TransferRecord via RecordBatch,
// and forwards a model.FileItem per file of every successfully transferred
// (model.StatusOK) batch that the ledger actually associated with tracked
// rows. A batch RecordBatch reports unassociated (ok=false, because none of
// its files are tracked) is discarded rather than retried, matching
// manager.py's "if not records: continue".
func (r *Recorder) Record(ctx context.Context, in *queue.Queue[model.TransferRecord], out *queue.Queue[model.FileItem]) error {
	t := r.tracker
	for !in.Empty() {
		chunk := in.Drain(t.chunkSize())

		for _, rec := range chunk {
			ok, err := t.Store.RecordBatch(ctx, rec)
			if err != nil {
				t.Logger.Error("adding new transfer batch failed", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			if !rec.Succeeded() {
				continue
			}
			for _, ref := range rec.Files {
				out.Put(model.FileItem{Head: ref.Head, Tail: ref.Tail, Name: ref.Name})
			}
		}
	}
	return nil
}
