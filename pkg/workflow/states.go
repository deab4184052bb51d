package workflow

import (
	"github.com/doomdumper/doomdumper/pkg/pathcheck"
	"github.com/doomdumper/doomdumper/pkg/process"
)

// Kind tags a State.
type Kind string

const (
	KindStart           Kind = "start"
	KindFresh           Kind = "fresh"
	KindResuming        Kind = "resuming"
	KindAlreadyUnlocked Kind = "already_unlocked"
	KindPrepared        Kind = "prepared"
	KindLocated         Kind = "located"
	KindDumped          Kind = "dumped"
	KindCommitted       Kind = "committed"
	KindDeferred        Kind = "deferred"
	KindHalted          Kind = "halted"
	KindFinished        Kind = "finished"
)

// State is one point of a migration. The concrete types below are the only
// implementations.
type State interface {
	Kind() Kind
}

// Start is before anything has been probed.
type Start struct{}

// Fresh needs a destination, a dump and a registration.
type Fresh struct{}

// Resuming holds a completed dump whose registration an earlier run deferred.
type Resuming struct {
	Path pathcheck.ValidatedPath
}

// AlreadyUnlocked means the installed package is sideloaded already; only
// the companion archive is missing.
type AlreadyUnlocked struct {
	Location string
}

// Prepared has a validated, confirmed destination.
type Prepared struct {
	Path pathcheck.ValidatedPath
}

// Located has found the running game.
type Located struct {
	Path    pathcheck.ValidatedPath
	Process process.Handle
}

// Dumped holds a completed dump that is not registered yet.
type Dumped struct {
	Path pathcheck.ValidatedPath
}

// Committed has the dump registered in place of the store package.
type Committed struct {
	Path pathcheck.ValidatedPath
}

// Deferred stopped before the uninstall at the operator's request. The path
// is in the recovery ledger.
type Deferred struct {
	Path pathcheck.ValidatedPath
}

// Halted stopped early. Err is set for failures, nil for stops such as a
// busy installation.
type Halted struct {
	Reason Reason
	Err    error
}

// Finished extracted the companion archive into Location.
type Finished struct {
	Location string
	// Migrated is true when this run registered a dump, false when the game
	// was already unlocked.
	Migrated bool
}

func (Start) Kind() Kind           { return KindStart }
func (Fresh) Kind() Kind           { return KindFresh }
func (Resuming) Kind() Kind        { return KindResuming }
func (AlreadyUnlocked) Kind() Kind { return KindAlreadyUnlocked }
func (Prepared) Kind() Kind        { return KindPrepared }
func (Located) Kind() Kind         { return KindLocated }
func (Dumped) Kind() Kind          { return KindDumped }
func (Committed) Kind() Kind       { return KindCommitted }
func (Deferred) Kind() Kind        { return KindDeferred }
func (Halted) Kind() Kind          { return KindHalted }
func (Finished) Kind() Kind        { return KindFinished }

// Reason says why a run halted.
type Reason string

const (
	ReasonNotInstalled    Reason = "not_installed"
	ReasonBusy            Reason = "busy"
	ReasonVersionMismatch Reason = "version_mismatch"
	ReasonInterrupted     Reason = "interrupted"
	ReasonDumpFailed      Reason = "dump_failed"
	ReasonIrrecoverable   Reason = "irrecoverable"
	ReasonFailed          Reason = "failed"
)

// Terminal reports whether s has no successor.
func Terminal(s State) bool {
	switch s.(type) {
	case Halted, Deferred, Finished:
		return true
	}
	return false
}

// Phase names the step that leaves s. Terminal states have none.
func Phase(s State) string {
	switch s.(type) {
	case Start:
		return "probe"
	case Fresh:
		return "prepare"
	case Prepared:
		return "locate"
	case Located:
		return "dump"
	case Dumped, Resuming:
		return "register"
	case Committed, AlreadyUnlocked:
		return "extract"
	}
	return ""
}

// Snapshot is a flat, serializable view of a State.
type Snapshot struct {
	Kind   Kind   `json:"kind"`
	Phase  string `json:"phase,omitempty"`
	Path   string `json:"path,omitempty"`
	PID    int32  `json:"pid,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Describe flattens s.
func Describe(s State) Snapshot {
	snap := Snapshot{Kind: s.Kind(), Phase: Phase(s)}
	switch s := s.(type) {
	case Resuming:
		snap.Path = s.Path.String()
	case AlreadyUnlocked:
		snap.Path = s.Location
	case Prepared:
		snap.Path = s.Path.String()
	case Located:
		snap.Path = s.Path.String()
		snap.PID = s.Process.PID
	case Dumped:
		snap.Path = s.Path.String()
	case Committed:
		snap.Path = s.Path.String()
	case Deferred:
		snap.Path = s.Path.String()
	case Halted:
		snap.Detail = string(s.Reason)
		if s.Err != nil {
			snap.Detail += ": " + s.Err.Error()
		}
	case Finished:
		snap.Path = s.Location
	}
	return snap
}
