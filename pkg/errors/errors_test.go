package errors

import (
	"io"
	"testing"
)

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := Wrapf(nil, "context %d", 1); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrap_KeepsChain(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, "read marker")
	if err.Error() != "read marker: unexpected EOF" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !Is(err, io.ErrUnexpectedEOF) {
		t.Error("wrapped error should match its cause")
	}

	err = Wrapf(err, "run %s", "abc")
	if err.Error() != "run abc: read marker: unexpected EOF" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !Is(err, io.ErrUnexpectedEOF) {
		t.Error("double-wrapped error should match its cause")
	}
}
