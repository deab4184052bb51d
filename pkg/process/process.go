// Package process finds and stops the running game.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v4/process"

	apperrors "github.com/doomdumper/doomdumper/pkg/errors"
)

// Handle identifies a running process. It is acquired by a Locator and
// released by whoever terminates the process.
type Handle struct {
	PID  int32
	Name string
}

func (h Handle) String() string {
	return fmt.Sprintf("%s (pid %d)", h.Name, h.PID)
}

// Finder enumerates running processes once.
type Finder interface {
	// Find returns the first process named name. ok is false when none is
	// running.
	Find(ctx context.Context, name string) (h Handle, ok bool, err error)
}

// Terminator stops a process.
type Terminator interface {
	Terminate(ctx context.Context, h Handle) error
}

// System is the host process table.
type System struct{}

var (
	_ Finder     = System{}
	_ Terminator = System{}
)

// Find walks the process table. Processes that exit while being inspected
// are skipped; their errors only surface if nothing matched.
func (System) Find(ctx context.Context, name string) (Handle, bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return Handle{}, false, apperrors.Wrap(err, "failed to list processes")
	}

	var errs *multierror.Error
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("pid %d: %w", p.Pid, err))
			continue
		}
		if strings.EqualFold(n, name) {
			return Handle{PID: p.Pid, Name: n}, true, nil
		}
	}

	if errs != nil {
		slog.Debug("process_scan_partial", "process_name", name, "scanned", len(procs), "unreadable", errs.Len())
		if errs.Len() == len(procs) {
			return Handle{}, false, apperrors.Wrap(errs.ErrorOrNil(), "failed to inspect processes")
		}
	}
	return Handle{}, false, nil
}

// Terminate asks the process to exit.
func (System) Terminate(ctx context.Context, h Handle) error {
	p, err := process.NewProcessWithContext(ctx, h.PID)
	if err != nil {
		return apperrors.Wrapf(err, "failed to open %s", h)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return apperrors.Wrapf(err, "failed to terminate %s", h)
	}
	slog.Info("process_terminated", "pid", h.PID, "process_name", h.Name)
	return nil
}
