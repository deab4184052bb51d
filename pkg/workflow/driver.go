// Package workflow composes the migration steps into an explicit state
// machine. Next is the whole transition function; Run drives it to a
// terminal state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doomdumper/doomdumper/pkg/appx"
	"github.com/doomdumper/doomdumper/pkg/console"
	"github.com/doomdumper/doomdumper/pkg/pathcheck"
	"github.com/doomdumper/doomdumper/pkg/process"
	"github.com/doomdumper/doomdumper/pkg/registration"
)

// ErrNoInstallLocation means an unlocked game reported no install location,
// so there is nowhere to extract to.
var ErrNoInstallLocation = errors.New("the game's install location is unknown")

// Prober classifies the installation.
type Prober interface {
	Probe(ctx context.Context) (appx.Verdict, error)
}

// Ledger is the recovery marker store.
type Ledger interface {
	Consume() (pathcheck.ValidatedPath, bool, error)
	Clear() error
}

// PathValidator admits destination directories.
type PathValidator interface {
	Validate(ctx context.Context, raw string) (pathcheck.ValidatedPath, error)
}

// Locator waits for the game process.
type Locator interface {
	Locate(ctx context.Context, name string) (process.Handle, error)
}

// Dumper copies the running game.
type Dumper interface {
	Dump(ctx context.Context, h process.Handle, dst pathcheck.ValidatedPath) error
}

// Registrar replaces the store package with the dump.
type Registrar interface {
	Register(ctx context.Context, p pathcheck.ValidatedPath) (registration.Outcome, error)
}

// Extractor unpacks the companion archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, dir string) error
}

// StoreLinks are the store pages for the campaign and DLC licenses, which a
// sideloaded copy has to acquire again.
var StoreLinks = []string{
	"ms-windows-store://pdp/?productId=9PC4V8W0VCWT",
	"ms-windows-store://pdp/?productId=9P2MSCGJPKJC",
	"ms-windows-store://pdp/?productId=9NB788JLSR97",
}

// Deps are the collaborators of a Driver. All are required except
// OnTransition.
type Deps struct {
	Probe       Prober
	Ledger      Ledger
	Validator   PathValidator
	Locator     Locator
	Dumper      Dumper
	Registrar   Registrar
	Extractor   Extractor
	Prompt      console.Prompter
	Reporter    *console.Reporter
	ProcessName string
	// OnTransition observes every step taken through Step.
	OnTransition func(from, to State)
}

// Driver runs the migration.
type Driver struct {
	Deps
}

// NewDriver returns a Driver over d.
func NewDriver(d Deps) *Driver {
	return &Driver{Deps: d}
}

// Run steps from s until a terminal state.
func (d *Driver) Run(ctx context.Context, s State) State {
	for !Terminal(s) {
		s = d.Step(ctx, s)
	}
	return s
}

// Step is Next followed by the transition observer.
func (d *Driver) Step(ctx context.Context, s State) State {
	next := d.Next(ctx, s)
	slog.Info("workflow_transition", "from", s.Kind(), "to", next.Kind(), "phase", Phase(s))
	if d.OnTransition != nil {
		d.OnTransition(s, next)
	}
	return next
}

// Next performs the single step that leaves s. Failures become Halted
// states; a terminal s is returned unchanged.
func (d *Driver) Next(ctx context.Context, s State) State {
	if Terminal(s) {
		return s
	}
	if err := ctx.Err(); err != nil {
		return halt(err)
	}

	switch s := s.(type) {
	case Start:
		return d.probe(ctx)
	case Fresh:
		return d.prepare(ctx)
	case Prepared:
		h, err := d.Locator.Locate(ctx, d.ProcessName)
		if err != nil {
			return halt(err)
		}
		return Located{Path: s.Path, Process: h}
	case Located:
		return d.dump(ctx, s)
	case Resuming:
		return d.register(ctx, s.Path)
	case Dumped:
		return d.register(ctx, s.Path)
	case Committed:
		return d.extract(ctx, s.Path.String(), true)
	case AlreadyUnlocked:
		if s.Location == "" {
			d.Reporter.Error("Your game is already moddable, but its install location is unknown. EternalModInjector was not extracted.")
			return Halted{Reason: ReasonFailed, Err: ErrNoInstallLocation}
		}
		d.Reporter.Info("Your game is already moddable; the included version of EternalModInjector is being extracted")
		return d.extract(ctx, s.Location, false)
	}
	return Halted{Reason: ReasonFailed, Err: fmt.Errorf("unknown workflow state %T", s)}
}

func (d *Driver) probe(ctx context.Context) State {
	d.Reporter.Info("Checking if DOOM Eternal is already 'moddable'...")

	v, err := d.Probe.Probe(ctx)
	if err != nil {
		d.Reporter.Error("Couldn't check the installation status: %v", err)
		return halt(err)
	}

	switch v.Kind {
	case appx.NotInstalled:
		d.Reporter.Error("%s", v.Message())
		return Halted{Reason: ReasonNotInstalled}
	case appx.Busy:
		d.Reporter.Error("%s", v.Message())
		return Halted{Reason: ReasonBusy}
	case appx.VersionMismatch:
		d.Reporter.Error("%s", v.Message())
		return Halted{Reason: ReasonVersionMismatch}
	case appx.AlreadyUnlocked:
		d.Reporter.Info("%s", v.Message())
		return AlreadyUnlocked{Location: v.Status.InstallLocation}
	}

	d.Reporter.Info("%s", v.Message())
	p, ok, err := d.Ledger.Consume()
	if err != nil {
		return halt(err)
	}
	if !ok {
		return Fresh{}
	}

	d.Reporter.Info("Last time you ran this, you cancelled the re-installation process.")
	if err := d.Prompt.Acknowledge("Press enter to resume this process, or CTRL+C to exit . . . "); err != nil {
		return halt(err)
	}
	return Resuming{Path: p}
}

// prepare asks for a destination until one validates and is confirmed.
func (d *Driver) prepare(ctx context.Context) State {
	for {
		raw, err := d.Prompt.Line("Please enter the path to where you would like to move your game to")
		if err != nil {
			return halt(err)
		}

		p, err := d.Validator.Validate(ctx, raw)
		var verr *pathcheck.ValidationError
		if errors.As(err, &verr) {
			d.Reporter.Warn("%s", verr.Error())
			d.Reporter.Blank()
			continue
		}
		if err != nil {
			return halt(err)
		}

		ok, err := d.Prompt.Confirm(fmt.Sprintf("Are you sure you want to install your game to %q, with %s free?", p.String(), p.FreeSpace()))
		if err != nil {
			return halt(err)
		}
		if ok {
			return Prepared{Path: p}
		}
		d.Reporter.Blank()
	}
}

func (d *Driver) dump(ctx context.Context, s Located) State {
	d.Reporter.Info("About to dump game. This can take 20-40 minutes depending on if you have a HDD or SSD")
	if err := d.Prompt.Acknowledge("Press enter to proceed to dumping, or 'CTRL+C' to cancel . . ."); err != nil {
		return halt(err)
	}

	if err := d.Dumper.Dump(ctx, s.Process, s.Path); err != nil {
		if ctx.Err() != nil {
			return halt(ctx.Err())
		}
		d.Reporter.Error("%v", err)
		d.Reporter.Warn("The partial copy in %q will not be reused. Run this again to start over.", s.Path.String())
		return Halted{Reason: ReasonDumpFailed, Err: err}
	}
	return Dumped{Path: s.Path}
}

func (d *Driver) register(ctx context.Context, p pathcheck.ValidatedPath) State {
	out, err := d.Registrar.Register(ctx, p)
	if errors.Is(err, registration.ErrIrrecoverable) {
		d.Reporter.Important("MANUAL ACTION REQUIRED")
		d.Reporter.Error("%v", err)
		return Halted{Reason: ReasonIrrecoverable, Err: err}
	}
	if err != nil {
		d.Reporter.Error("%v", err)
		return halt(err)
	}

	if out == registration.Deferred {
		return Deferred{Path: p}
	}

	// A resumed run leaves its marker behind otherwise.
	if err := d.Ledger.Clear(); err != nil {
		slog.Warn("ledger_clear_failed", "error", err)
	}
	return Committed{Path: p}
}

func (d *Driver) extract(ctx context.Context, dir string, migrated bool) State {
	if err := d.Extractor.Extract(ctx, dir); err != nil {
		d.Reporter.Error("Couldn't extract EternalModInjector to %q: %v", dir, err)
		return halt(err)
	}

	if migrated {
		d.Reporter.Success("Complete! Your game is installed at %q, alongside EternalModInjector", dir)
		d.Reporter.Warn("One last step. You need to install the main campaign/dlc licenses from the Store:")
		for _, link := range StoreLinks {
			d.Reporter.Info("  %s", link)
		}
	}
	return Finished{Location: dir, Migrated: migrated}
}

// halt classifies an error that ends the run.
func halt(err error) State {
	if errors.Is(err, console.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return Halted{Reason: ReasonInterrupted, Err: err}
	}
	return Halted{Reason: ReasonFailed, Err: err}
}
