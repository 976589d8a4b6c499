package model

import "testing"

func TestFileItemPath(t *testing.T) {
	cases := []struct {
		item FileItem
		want string
	}{
		{FileItem{Head: "/buf", Tail: "", Name: "a.dat"}, "/buf/a.dat"},
		{FileItem{Head: "/buf", Tail: "x/y", Name: "a.dat"}, "/buf/x/y/a.dat"},
	}
	for _, c := range cases {
		if got := c.item.Path(); got != c.want {
			t.Errorf("Path() = %q, want %q", got, c.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusOK:            "ok",
		StatusRemoteIO:      "remote-io",
		StatusTimeout:       "timeout",
		StatusGenericFailure: "failure",
		Status(99):          "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestTransferRecordSucceeded(t *testing.T) {
	ok := &TransferRecord{Status: StatusOK}
	if !ok.Succeeded() {
		t.Error("want StatusOK to report succeeded")
	}
	fail := &TransferRecord{Status: StatusRemoteIO}
	if fail.Succeeded() {
		t.Error("want non-OK status to report not succeeded")
	}
}
