// Package registration swaps the store installation for the dumped copy.
//
// The swap has one irreversible step: once the old package is removed, the
// dumped copy must register or the operator is left without a game. The
// recovery ledger covers the other way out, where the operator is not ready
// to remove the old package yet.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doomdumper/doomdumper/pkg/appx"
	"github.com/doomdumper/doomdumper/pkg/console"
	apperrors "github.com/doomdumper/doomdumper/pkg/errors"
	"github.com/doomdumper/doomdumper/pkg/pathcheck"
)

// ErrIrrecoverable means the old package was removed but the new one did not
// register. Nothing is rolled back; the operator has to register the
// manifest by hand.
var ErrIrrecoverable = errors.New("old installation removed but the new one failed to register")

// Outcome is how a registration attempt ended.
type Outcome string

const (
	// Committed means the dumped copy is now the registered package.
	Committed Outcome = "committed"
	// Deferred means the operator declined; the path was recorded for a later
	// run.
	Deferred Outcome = "deferred"
)

// Recorder persists a deferred registration.
type Recorder interface {
	Record(p pathcheck.ValidatedPath) error
}

// Coordinator sequences confirm, remove and register.
type Coordinator struct {
	pm        appx.PackageManager
	packageID string
	ledger    Recorder
	prompt    console.Prompter
	reporter  *console.Reporter
}

// NewCoordinator returns a Coordinator replacing the package packageID.
func NewCoordinator(pm appx.PackageManager, packageID string, ledger Recorder, prompt console.Prompter, reporter *console.Reporter) *Coordinator {
	return &Coordinator{pm: pm, packageID: packageID, ledger: ledger, prompt: prompt, reporter: reporter}
}

// ManualCommand is what the operator runs to finish by hand.
func ManualCommand(p pathcheck.ValidatedPath) string {
	return fmt.Sprintf("Add-AppxPackage -Register '%s'", p.ManifestPath())
}

// Register asks before removing the old installation. A decline records p in
// the ledger and returns Deferred with a nil error.
func (c *Coordinator) Register(ctx context.Context, p pathcheck.ValidatedPath) (Outcome, error) {
	ok, err := c.prompt.Confirm("Your old DOOM Eternal is about to be uninstalled; the new copy will be kept. Continue?")
	if err != nil {
		return "", err
	}

	if !ok {
		if err := c.ledger.Record(p); err != nil {
			return "", apperrors.Wrap(err, "failed to record deferred registration")
		}
		slog.Info("registration_deferred", "path", p.String())
		c.reporter.Warn("Your original game was not uninstalled.")
		c.reporter.Warn("You can run this again to complete the process or delete the new copy %q", p.String())
		return Deferred, nil
	}

	if err := c.pm.Remove(ctx, c.packageID); err != nil {
		// The old package is still in place; nothing is lost.
		return "", err
	}
	c.reporter.Info("Old installation removed")

	c.reporter.Info("Setting up your new game installation")
	if err := c.pm.Register(ctx, p.ManifestPath()); err != nil {
		slog.Error("registration_irrecoverable", "path", p.String(), "error", err)
		return "", fmt.Errorf("%w: %v; register it manually with: %s", ErrIrrecoverable, err, ManualCommand(p))
	}

	slog.Info("registration_committed", "path", p.String())
	return Committed, nil
}
