package tracker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
)

// fakeStore is an in-memory ledger.Store used to exercise Tracker without a
// running MySQL instance.
type fakeStore struct {
	rows       []model.FileRow
	failInsert bool
	nextID     int64
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }
func (f *fakeStore) Drop(ctx context.Context) error  { return nil }

func (f *fakeStore) FindFile(ctx context.Context, tail, name, checksum string) (*model.FileRow, error) {
	for i := range f.rows {
		r := f.rows[i]
		if r.Tail == tail && r.Name == name && r.Checksum == checksum {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertFiles(ctx context.Context, rows []model.FileRow) error {
	if f.failInsert {
		return fmt.Errorf("fakeStore: simulated insert failure")
	}
	for _, r := range rows {
		f.nextID++
		r.ID = f.nextID
		f.rows = append(f.rows, r)
	}
	return nil
}

func (f *fakeStore) RecordBatch(ctx context.Context, rec model.TransferRecord) (bool, error) {
	return true, nil
}

func (f *fakeStore) UpdateHeld(ctx context.Context, tail, name string, heldOn time.Time) error {
	for i := range f.rows {
		if f.rows[i].Tail == tail && f.rows[i].Name == name {
			f.rows[i].HeldOn = &heldOn
			return nil
		}
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func writeTempFile(t *testing.T, dir, name, content string) model.FileItem {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return model.FileItem{Head: dir, Name: name, Size: int64(len(content)), Timestamp: time.Now()}
}

func TestReconcileForwardsNewAndTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	item := writeTempFile(t, dir, "a.dat", "hello")

	store := &fakeStore{}
	tr := New(store, nil)

	in := queue.New[model.FileItem]()
	out := queue.New[model.FileItem]()
	in.Put(item)

	if err := tr.Reconcile(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}

	forwarded := out.Drain(10)
	if len(forwarded) != 1 {
		t.Fatalf("want 1 forwarded item, got %d", len(forwarded))
	}
	if len(store.rows) != 1 {
		t.Fatalf("want 1 ledger row, got %d", len(store.rows))
	}

	// Second pass over the same file: it's now tracked, still forwarded.
	in.Put(item)
	if err := tr.Reconcile(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}
	if forwarded := out.Drain(10); len(forwarded) != 1 {
		t.Fatalf("want tracked file forwarded again, got %d", len(forwarded))
	}
	if len(store.rows) != 1 {
		t.Fatalf("want no duplicate row inserted, got %d", len(store.rows))
	}
}

func TestReconcileDropsUntrackedOnInsertFailure(t *testing.T) {
	dir := t.TempDir()
	item := writeTempFile(t, dir, "b.dat", "world")

	store := &fakeStore{failInsert: true}
	tr := New(store, nil)

	in := queue.New[model.FileItem]()
	out := queue.New[model.FileItem]()
	in.Put(item)

	if err := tr.Reconcile(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}

	if forwarded := out.Drain(10); len(forwarded) != 0 {
		t.Fatalf("want new file withheld on insert failure, got %d", len(forwarded))
	}
	if len(store.rows) != 0 {
		t.Fatalf("want no rows committed, got %d", len(store.rows))
	}
}

func TestUpdateStampsHeldTime(t *testing.T) {
	store := &fakeStore{rows: []model.FileRow{{ID: 1, Tail: "", Name: "c.dat"}}}
	tr := New(store, nil)

	in := queue.New[model.FileItem]()
	in.Put(model.FileItem{Name: "c.dat", Timestamp: time.Unix(1000, 0)})

	if err := tr.Update(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if store.rows[0].HeldOn == nil {
		t.Fatal("want held_on stamped")
	}
}
