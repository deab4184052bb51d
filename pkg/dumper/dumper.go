// Package dumper runs the external dump tool against the running game and
// marks the destination once the dump has completed.
package dumper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/afero"

	"github.com/doomdumper/doomdumper/pkg/console"
	apperrors "github.com/doomdumper/doomdumper/pkg/errors"
	"github.com/doomdumper/doomdumper/pkg/pathcheck"
	"github.com/doomdumper/doomdumper/pkg/process"
)

// DefaultTool is the dump executable, looked up on PATH or in the working
// directory.
const DefaultTool = "UWPInjector.exe"

// ErrDumpFailed is returned when the dump tool does not exit cleanly.
var ErrDumpFailed = errors.New("dump failed")

// Runner starts a command and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs the tool with its output attached to Stdout and Stderr.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// Orchestrator owns the dump step.
type Orchestrator struct {
	fs       afero.Fs
	runner   Runner
	term     process.Terminator
	reporter *console.Reporter
	tool     string
}

// New returns an Orchestrator invoking tool through runner.
func New(fs afero.Fs, runner Runner, term process.Terminator, reporter *console.Reporter, tool string) *Orchestrator {
	if tool == "" {
		tool = DefaultTool
	}
	return &Orchestrator{fs: fs, runner: runner, term: term, reporter: reporter, tool: tool}
}

// Args is the dump tool command line for h and dst.
func (o *Orchestrator) Args(h process.Handle, dst pathcheck.ValidatedPath) []string {
	return []string{o.tool, "-p", strconv.Itoa(int(h.PID)), "-d", dst.Dir()}
}

// Dump copies the running game into dst. It blocks until the tool exits and
// is never retried.
//
// Only a clean exit leads to the side effects, in order: the game process is
// terminated, then the completion sentinel is written. A failed or killed
// dump leaves dst without a sentinel, so it will not be mistaken for a
// resumable dump.
func (o *Orchestrator) Dump(ctx context.Context, h process.Handle, dst pathcheck.ValidatedPath) error {
	args := o.Args(h, dst)
	slog.Info("dump_started", "command", shellquote.Join(args...), "pid", h.PID, "destination", dst.String())

	o.reporter.Info("Copying game to new installation directory: %q", dst.String())
	o.reporter.Important("STARTING DUMP. DO NOT CLOSE THIS APPLICATION")
	o.reporter.Rule(44)

	start := time.Now()
	if err := o.runner.Run(ctx, args[0], args[1:]...); err != nil {
		slog.Error("dump_failed", "pid", h.PID, "destination", dst.String(), "duration", time.Since(start), "error", err)
		o.reporter.Rule(44)
		return fmt.Errorf("%w: %s exited with: %v", ErrDumpFailed, o.tool, err)
	}

	o.reporter.Rule(44)
	o.reporter.Important("               DUMP COMPLETE                ")
	slog.Info("dump_completed", "pid", h.PID, "destination", dst.String(), "duration", time.Since(start))

	// The game may already be gone; the copy is complete either way.
	if err := o.term.Terminate(ctx, h); err != nil {
		slog.Warn("dump_terminate_failed", "pid", h.PID, "error", err)
	}

	if err := afero.WriteFile(o.fs, dst.SentinelPath(), nil, 0o644); err != nil {
		return apperrors.Wrap(err, "failed to write dump completion marker")
	}
	slog.Info("dump_sentinel_written", "sentinel", dst.SentinelPath())
	return nil
}
