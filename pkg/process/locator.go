package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doomdumper/doomdumper/pkg/console"
)

// Acknowledger blocks until the operator says to go on.
type Acknowledger interface {
	Acknowledge(prompt string) error
}

// Locator waits for the operator to start the game.
type Locator struct {
	finder   Finder
	prompt   Acknowledger
	reporter *console.Reporter
	title    string
}

// NewLocator returns a Locator. title is the application name shown to the
// operator.
func NewLocator(finder Finder, prompt Acknowledger, reporter *console.Reporter, title string) *Locator {
	return &Locator{finder: finder, prompt: prompt, reporter: reporter, title: title}
}

// Locate asks the operator to launch the application and scans for it, as
// many times as it takes. There is no attempt limit; the loop ends when the
// process shows up, the prompt fails, or ctx is done.
func (l *Locator) Locate(ctx context.Context, name string) (Handle, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Handle{}, err
		}
		if err := l.prompt.Acknowledge(fmt.Sprintf("Please launch %s, then press enter . . .", l.title)); err != nil {
			return Handle{}, err
		}

		h, ok, err := l.finder.Find(ctx, name)
		if err != nil {
			slog.Warn("process_scan_failed", "process_name", name, "attempt", attempt, "error", err)
		}
		if ok {
			slog.Info("process_located", "process_name", name, "pid", h.PID, "attempt", attempt)
			l.reporter.Info("%s process detected!", l.title)
			l.reporter.Warn("Please do NOT close %s.", l.title)
			l.reporter.Blank()
			return h, nil
		}

		l.reporter.Warn("%s is not running. Trying again.", l.title)
		l.reporter.Blank()
	}
}
