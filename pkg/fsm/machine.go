// Package fsm journals a migration run with the superfly/fsm library. Each
// workflow phase is one FSM transition; the workflow itself stays in
// pkg/workflow and is only stepped from here.
package fsm

import (
	"context"
	"sync"

	"github.com/superfly/fsm"

	"github.com/doomdumper/doomdumper/pkg/errors"
	"github.com/doomdumper/doomdumper/pkg/workflow"
)

// Stepper advances a workflow by one transition.
type Stepper interface {
	Step(ctx context.Context, s workflow.State) workflow.State
}

// Machine holds the live workflow state of a single run.
type Machine struct {
	driver Stepper

	mu     sync.Mutex
	state  workflow.State
	parent context.Context
}

// NewMachine creates a machine starting at workflow.Start.
func NewMachine(driver Stepper) *Machine {
	return &Machine{driver: driver, state: workflow.Start{}, parent: context.Background()}
}

// Register registers the run FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[RunRequest, RunResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[RunRequest, RunResponse](manager, "doomdumper-run").
		Start(StateProbe, m.handler(StateProbe)).
		To(StatePrepare, m.handler(StatePrepare)).
		To(StateLocate, m.handler(StateLocate)).
		To(StateDump, m.handler(StateDump)).
		To(StateRegister, m.handler(StateRegister)).
		To(StateExtract, m.handler(StateExtract)).
		End(StateDone).
		Build(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}
	return start, resume, nil
}

// Outcome is the state the run reached.
func (m *Machine) Outcome() workflow.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Bind makes ctx the parent of every handler, so an interrupt of the session
// reaches a workflow step running on an FSM goroutine.
func (m *Machine) Bind(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parent = ctx
}

func (m *Machine) handler(phase string) func(context.Context, *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	return func(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
		m.mu.Lock()
		parent := m.parent
		m.mu.Unlock()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(parent, cancel)
		defer stop()

		resp := req.W.Msg
		if resp == nil {
			resp = &RunResponse{}
		}
		*resp = m.advance(ctx, phase)
		return fsm.NewResponse(resp), nil
	}
}

// advance steps the workflow when its current state belongs to phase.
// Phases that do not apply to this run (a resumed run has nothing to dump)
// pass the state through unchanged.
func (m *Machine) advance(ctx context.Context, phase string) RunResponse {
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()

	if workflow.Phase(s) == phase {
		s = m.driver.Step(ctx, s)
		m.mu.Lock()
		m.state = s
		m.mu.Unlock()
	}

	snap := workflow.Describe(s)
	return RunResponse{State: string(snap.Kind), Phase: phase, Path: snap.Path, PID: snap.PID, Detail: snap.Detail}
}
