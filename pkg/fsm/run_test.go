package fsm

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/doomdumper/doomdumper/pkg/workflow"
)

// lockedBuffer is written from FSM goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureStderr redirects os.Stderr for the duration of fn and returns what
// was written to it.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	orig := os.Stderr
	os.Stderr = f
	defer func() { os.Stderr = orig }()

	fn()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("failed to rewind: %v", err)
	}
	out, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("failed to read stderr: %v", err)
	}
	return string(out)
}

func TestRun_JournalsToItsLoggerOnly(t *testing.T) {
	tests := []struct {
		name string
		log  *lockedBuffer
	}{
		{name: "file logger", log: &lockedBuffer{}},
		{name: "no logger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stepper := &scriptedStepper{next: []workflow.State{
				workflow.AlreadyUnlocked{Location: "/games/doom/"},
				workflow.Finished{Location: "/games/doom/"},
			}}

			var final workflow.State
			var runErr error
			stderr := captureStderr(t, func() {
				if tt.log != nil {
					final, runErr = Run(context.Background(), t.TempDir(), "run-1", stepper, NewLogger(tt.log, slog.LevelInfo))
				} else {
					final, runErr = Run(context.Background(), t.TempDir(), "run-1", stepper, nil)
				}
			})

			if runErr != nil {
				t.Fatalf("unexpected error: %v", runErr)
			}
			if final.Kind() != workflow.KindFinished {
				t.Errorf("expected finished, got %s", final.Kind())
			}
			if stderr != "" {
				t.Errorf("expected nothing on stderr, got:\n%s", stderr)
			}
			if tt.log == nil {
				return
			}

			logs := tt.log.String()
			if !strings.Contains(logs, "transition="+StateExtract) {
				t.Errorf("expected the extract transition in the journal log, got:\n%s", logs)
			}
			if !strings.Contains(logs, "transition="+StateDone) {
				t.Errorf("expected the run to end at %q, got:\n%s", StateDone, logs)
			}
			if strings.Contains(logs, "transition=failed") {
				t.Errorf("a finished run must not end in a failed transition:\n%s", logs)
			}
		})
	}
}
