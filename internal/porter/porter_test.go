package porter

import (
	"context"
	"testing"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
)

func testConfig(transfer string) Config {
	return Config{
		User:   "me",
		Host:   "endpoint",
		Buffer: "/remote/buffer",
		Commands: map[string]string{
			"remote":   "true {command}",
			"transfer": transfer,
		},
	}
}

func TestNewDetectsBatchMode(t *testing.T) {
	p, err := New(testConfig("true {batch} {dest}"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !p.batchMode {
		t.Fatal("want batch mode detected from {batch} placeholder")
	}

	p, err = New(testConfig("true {file} {dest}"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.batchMode {
		t.Fatal("want file mode, not batch mode")
	}
}

func TestNewRejectsUndeclaredPlaceholder(t *testing.T) {
	if _, err := New(testConfig("true {file} {dest} {mystery}"), nil); err == nil {
		t.Fatal("want error for undeclared placeholder")
	}
}

func TestNewRejectsTransferMissingBatchAndFile(t *testing.T) {
	if _, err := New(testConfig("true {dest}"), nil); err == nil {
		t.Fatal("want error when transfer template has neither {batch} nor {file}")
	}
}

func TestNewRejectsTransferWithBothBatchAndFile(t *testing.T) {
	if _, err := New(testConfig("true {batch} {file} {dest}"), nil); err == nil {
		t.Fatal("want error when transfer template has both {batch} and {file}")
	}
}

func TestNewRejectsTransferMissingDest(t *testing.T) {
	if _, err := New(testConfig("true {file}"), nil); err == nil {
		t.Fatal("want error when transfer template is missing {dest}")
	}
}

func TestNewRejectsRemoteMissingCommand(t *testing.T) {
	cfg := testConfig("true {file} {dest}")
	cfg.Commands["remote"] = "true"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("want error when remote template is missing {command}")
	}
}

func TestNewRequiresRequiredKeys(t *testing.T) {
	cfg := testConfig("true {file}")
	cfg.User = ""
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("want error when user is missing")
	}
}

func TestRunTransfersDirectlyWhenNoStaging(t *testing.T) {
	cfg := testConfig("true {file} {dest}")
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := queue.New[model.FileItem]()
	out := queue.New[model.TransferRecord]()
	in.Put(model.FileItem{Head: "/local/buffer", Tail: "raw", Name: "img.fits", Size: 10})

	if err := p.Run(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}

	recs := out.Drain(10)
	if len(recs) != 1 {
		t.Fatalf("want 1 transfer record, got %d", len(recs))
	}
	if !recs[0].Succeeded() {
		t.Fatalf("want successful transfer, got status %v error %q", recs[0].Status, recs[0].Error)
	}
	if recs[0].Rate == nil {
		t.Fatal("want transfer rate set on success")
	}
}

func TestRunFlushesFailedPreTransfer(t *testing.T) {
	cfg := testConfig("true {file} {dest}")
	cfg.Commands["remote"] = "false {command}"
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := queue.New[model.FileItem]()
	out := queue.New[model.TransferRecord]()
	in.Put(model.FileItem{Head: "/local/buffer", Tail: "raw", Name: "img.fits", Size: 10})

	if err := p.Run(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}

	recs := out.Drain(10)
	if len(recs) != 1 {
		t.Fatalf("want 1 transfer record, got %d", len(recs))
	}
	if recs[0].Succeeded() {
		t.Fatal("want failed pre-transfer to produce a failed record")
	}
}

func TestRunFlushesOnPreTransferParseError(t *testing.T) {
	cfg := testConfig("true {file} {dest}")
	// An unbalanced quote makes the rendered command unparseable by
	// shellwords, exercising shell.Run's err != nil path rather than a
	// merely-nonzero exit.
	cfg.Commands["remote"] = "true {command} '"
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := queue.New[model.FileItem]()
	out := queue.New[model.TransferRecord]()
	in.Put(model.FileItem{Head: "/local/buffer", Tail: "raw", Name: "img.fits", Size: 10})

	if err := p.Run(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}

	recs := out.Drain(10)
	if len(recs) != 1 {
		t.Fatalf("want the record still flushed despite the parse error, got %d", len(recs))
	}
	if recs[0].Succeeded() {
		t.Fatal("want a parse error recorded as a failure, not silently dropped")
	}
	if recs[0].Error == "" {
		t.Fatal("want the parse error message recorded")
	}
}

func TestRunPromotesThroughStaging(t *testing.T) {
	cfg := testConfig("true {file} {dest}")
	cfg.Staging = "/remote/staging"
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := queue.New[model.FileItem]()
	out := queue.New[model.TransferRecord]()
	in.Put(model.FileItem{Head: "/local/buffer", Tail: "raw", Name: "img.fits", Size: 10})

	if err := p.Run(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}

	recs := out.Drain(10)
	if len(recs) != 1 {
		t.Fatalf("want 1 transfer record, got %d", len(recs))
	}
	rec := recs[0]
	if !rec.Succeeded() {
		t.Fatalf("want successful promoted transfer, got status %v", rec.Status)
	}
	if rec.PreStart == nil || rec.TransStart == nil || rec.PostStart == nil {
		t.Fatalf("want all three phases stamped, got %+v", rec)
	}
}

func TestWiperNoopWithoutStaging(t *testing.T) {
	w, err := NewWiper(testConfig("true {file}"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}
