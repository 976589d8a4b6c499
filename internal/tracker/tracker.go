// Package tracker reconciles files discovered by the Finder against the
// ledger and records when a file's held time has been updated after a
// successful move, the Go rendering of manager.py's _add_files/_update_files
// chunk loops.
package tracker

import (
	"context"

	"github.com/artemis/handoffd/internal/checksum"
	"github.com/artemis/handoffd/internal/ledger"
	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
	"go.uber.org/zap"
)

// Tracker reconciles file items against the ledger and timestamps held
// files once they have been moved into the holding area.
type Tracker struct {
	Store     ledger.Store
	ChunkSize int
	Method    string // checksum algorithm name, see internal/checksum
	BlockSize int
	Logger    *zap.Logger
}

// New builds a Tracker with sane defaults (chunk size 10, per spec.md §6).
func New(store ledger.Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{Store: store, ChunkSize: 10, Method: checksum.Blake2b, Logger: logger}
}

// Reconcile drains in in chunks, checksums each item, looks it up in the
// ledger, and inserts rows for anything new. Previously-tracked items are
// always forwarded to out. Newly-tracked items are forwarded only if the
// chunk's insert commits; if it fails they are left off this cycle (the
// Finder will rediscover them from disk on the next scan) rather than being
// forwarded without a ledger row — this mirrors manager.py's _add_files,
// where committed untracked items are merged into tracked right before the
// output queue is populated, and a failed commit leaves them out.
func (t *Tracker) Reconcile(ctx context.Context, in, out *queue.Queue[model.FileItem]) error {
	for !in.Empty() {
		chunk := in.Drain(t.chunkSize())

		var tracked, untracked []model.FileItem
		var newRows []model.FileRow

		for _, item := range chunk {
			sum, err := checksum.File(item.Path(), t.Method, t.BlockSize)
			if err != nil {
				t.Logger.Error("computing checksum failed", zap.String("path", item.Path()), zap.Error(err))
				continue
			}

			row, err := t.Store.FindFile(ctx, item.Tail, item.Name, sum)
			if err != nil {
				t.Logger.Error("checking if file is tracked failed", zap.Error(err))
				continue
			}
			if row != nil {
				tracked = append(tracked, item)
				continue
			}

			untracked = append(untracked, item)
			newRows = append(newRows, model.FileRow{
				Tail:      item.Tail,
				Name:      item.Name,
				Checksum:  sum,
				SizeBytes: item.Size,
				CreatedOn: item.Timestamp,
			})
		}

		if len(untracked) > 0 {
			if err := t.Store.InsertFiles(ctx, newRows); err != nil {
				t.Logger.Error("adding new files failed", zap.Error(err))
			} else {
				tracked = append(tracked, untracked...)
			}
		}

		for _, item := range tracked {
			out.Put(item)
		}
	}
	return nil
}

// Update drains in in chunks and stamps held_on for each file's latest
// ledger row, the rendering of manager.py's _update_files.
func (t *Tracker) Update(ctx context.Context, in *queue.Queue[model.FileItem]) error {
	for !in.Empty() {
		chunk := in.Drain(t.chunkSize())
		for _, item := range chunk {
			if err := t.Store.UpdateHeld(ctx, item.Tail, item.Name, item.Timestamp); err != nil {
				t.Logger.Error("updating file's held time failed", zap.Error(err))
			}
		}
	}
	return nil
}

func (t *Tracker) chunkSize() int {
	if t.ChunkSize <= 0 {
		return 10
	}
	return t.ChunkSize
}
