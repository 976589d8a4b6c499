package shell

import (
	"context"
	"testing"
	"time"

	"github.com/artemis/handoffd/internal/model"
)

func TestNewTemplateRejectsUndeclaredPlaceholder(t *testing.T) {
	_, err := NewTemplate("mv {src} {dest}", map[string]bool{"src": true})
	if err == nil {
		t.Fatal("want error for undeclared {dest} placeholder")
	}
}

func TestNewTemplateAcceptsDeclaredPlaceholders(t *testing.T) {
	tpl, err := NewTemplate("mv {src} {dest}", map[string]bool{"src": true, "dest": true})
	if err != nil {
		t.Fatal(err)
	}
	if !tpl.Has("src") || !tpl.Has("dest") {
		t.Fatal("want both placeholders recognized")
	}
	if tpl.Has("other") {
		t.Fatal("want unreferenced name not recognized")
	}
}

func TestTemplateRender(t *testing.T) {
	tpl, err := NewTemplate("cp {src} {dest}", map[string]bool{"src": true, "dest": true})
	if err != nil {
		t.Fatal(err)
	}
	got := tpl.Render(map[string]string{"src": "/a", "dest": "/b"})
	if got != "cp /a /b" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestTemplateRenderMissingParamIsEmpty(t *testing.T) {
	tpl, err := NewTemplate("cp {src} {dest}", map[string]bool{"src": true, "dest": true})
	if err != nil {
		t.Fatal(err)
	}
	got := tpl.Render(map[string]string{"src": "/a"})
	if got != "cp /a " {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRunSuccess(t *testing.T) {
	res, err := Run(context.Background(), "true", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusOK {
		t.Fatalf("want StatusOK, got %v", res.Status)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), "false", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusRemoteIO {
		t.Fatalf("want StatusRemoteIO, got %v", res.Status)
	}
}

func TestRunTimeout(t *testing.T) {
	res, err := Run(context.Background(), "sleep 1", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusTimeout {
		t.Fatalf("want StatusTimeout, got %v", res.Status)
	}
}

func TestRunEmptyCommandErrors(t *testing.T) {
	if _, err := Run(context.Background(), "", 0); err == nil {
		t.Fatal("want error for empty command")
	}
}
