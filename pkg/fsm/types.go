package fsm

// RunRequest is the FSM input
type RunRequest struct {
	RunID string
}

// RunResponse is the FSM output, updated after every phase with the state
// the workflow reached.
type RunResponse struct {
	State  string
	Phase  string
	Path   string
	PID    int32
	Detail string
}

// State names, one per workflow phase
const (
	StateProbe    = "probe"
	StatePrepare  = "prepare"
	StateLocate   = "locate"
	StateDump     = "dump"
	StateRegister = "register"
	StateExtract  = "extract"
	StateDone     = "done"
)
