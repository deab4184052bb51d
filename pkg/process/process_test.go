package process

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doomdumper/doomdumper/pkg/console"
)

// scriptedFinder reports the process as running from the nth scan on.
type scriptedFinder struct {
	foundAt int
	scans   int
	err     error
}

func (f *scriptedFinder) Find(ctx context.Context, name string) (Handle, bool, error) {
	f.scans++
	if f.foundAt > 0 && f.scans >= f.foundAt {
		return Handle{PID: 4242, Name: name}, true, nil
	}
	return Handle{}, false, f.err
}

func TestLocate_RetriesUntilFound(t *testing.T) {
	finder := &scriptedFinder{foundAt: 3}
	var out bytes.Buffer
	loc := NewLocator(finder, console.Script("", "", ""), console.NewReporter(&out, true), "DOOM Eternal")

	h, err := loc.Locate(context.Background(), "DOOMEternalx64vk.exe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.PID != 4242 || h.Name != "DOOMEternalx64vk.exe" {
		t.Errorf("unexpected handle %+v", h)
	}
	if finder.scans != 3 {
		t.Errorf("expected 3 scans, got %d", finder.scans)
	}
	if got := strings.Count(out.String(), "is not running. Trying again."); got != 2 {
		t.Errorf("expected 2 retry notices, got %d", got)
	}
	if !strings.Contains(out.String(), "process detected!") {
		t.Errorf("missing detection notice in %q", out.String())
	}
}

func TestLocate_ScanErrorsAreRetried(t *testing.T) {
	finder := &scriptedFinder{foundAt: 2, err: errors.New("access denied")}
	loc := NewLocator(finder, console.Script("", ""), console.Discard(), "DOOM Eternal")

	if _, err := loc.Locate(context.Background(), "game.exe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.scans != 2 {
		t.Errorf("expected 2 scans, got %d", finder.scans)
	}
}

func TestLocate_InterruptStopsLoop(t *testing.T) {
	finder := &scriptedFinder{}
	loc := NewLocator(finder, console.Script("", ""), console.Discard(), "DOOM Eternal")

	_, err := loc.Locate(context.Background(), "game.exe")
	if !errors.Is(err, console.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if finder.scans != 2 {
		t.Errorf("expected 2 scans before input ran out, got %d", finder.scans)
	}
}

func TestLocate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finder := &scriptedFinder{foundAt: 1}
	_, err := NewLocator(finder, console.Script(""), console.Discard(), "x").Locate(ctx, "game.exe")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if finder.scans != 0 {
		t.Errorf("expected no scans, got %d", finder.scans)
	}
}

func TestHandleString(t *testing.T) {
	if got := (Handle{PID: 7, Name: "a.exe"}).String(); got != "a.exe (pid 7)" {
		t.Errorf("got %q", got)
	}
}
