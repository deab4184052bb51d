package fsm

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/superfly/fsm"

	"github.com/doomdumper/doomdumper/pkg/errors"
	"github.com/doomdumper/doomdumper/pkg/workflow"
)

// NewLogger returns the logger the FSM manager writes its own records with.
func NewLogger(w io.Writer, level slog.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	switch {
	case level <= slog.LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case level <= slog.LevelInfo:
		l.SetLevel(logrus.InfoLevel)
	case level <= slog.LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	default:
		l.SetLevel(logrus.ErrorLevel)
	}
	return l
}

// Run journals one workflow run under dbPath and returns the state it ended
// in. An error means the journal could not be used; the workflow did not
// start in that case unless the returned state says otherwise. The manager
// logs to log, or nowhere when log is nil.
func Run(ctx context.Context, dbPath, runID string, driver Stepper, log logrus.FieldLogger) (workflow.State, error) {
	if log == nil {
		log = NewLogger(io.Discard, slog.LevelError)
	}
	manager, err := fsm.New(fsm.Config{DBPath: dbPath, Logger: log})
	if err != nil {
		return nil, errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := NewMachine(driver)
	machine.Bind(ctx)

	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return nil, err
	}

	version, err := start(ctx, runID, fsm.NewRequest(&RunRequest{RunID: runID}, &RunResponse{}))
	if err != nil {
		return nil, errors.Wrap(err, "FSM start failed")
	}
	slog.Info("fsm_started", "run_id", runID, "version", version)

	if err := manager.Wait(ctx, version); err != nil {
		out := machine.Outcome()
		if out.Kind() != workflow.KindStart {
			// The workflow ran; report where it got to.
			slog.Warn("fsm_wait_failed", "run_id", runID, "state", out.Kind(), "error", err)
			return out, nil
		}
		return nil, errors.Wrap(err, "FSM execution failed")
	}

	out := machine.Outcome()
	slog.Info("fsm_complete", "run_id", runID, "state", out.Kind())
	return out, nil
}
