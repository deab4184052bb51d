// Package appx talks to the host package manager and classifies the state of
// the installed game package.
package appx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/doomdumper/doomdumper/pkg/errors"
)

// ErrNotInstalled is returned by Query when no package matches.
var ErrNotInstalled = errors.New("package is not installed")

// Package is the subset of a package record the workflow needs.
type Package struct {
	Name            string `json:"Name"`
	PackageFullName string `json:"PackageFullName"`
	// Status is 0 when the package is idle; anything else means an update
	// or repair is in progress.
	Status  int    `json:"Status"`
	Version string `json:"Version"`
	// SignatureKind is 0 for a developer-mode sideloaded package.
	SignatureKind   int    `json:"SignatureKind"`
	InstallLocation string `json:"InstallLocation"`
}

// PackageManager is the host package manager.
type PackageManager interface {
	Query(ctx context.Context, id string) (*Package, error)
	Remove(ctx context.Context, id string) error
	Register(ctx context.Context, manifestPath string) error
}

// PowerShell drives the Appx cmdlets through powershell.exe.
type PowerShell struct {
	runner Runner
	binary string
}

// NewPowerShell returns a PackageManager using runner to start binary
// (normally "powershell.exe").
func NewPowerShell(runner Runner, binary string) *PowerShell {
	if binary == "" {
		binary = "powershell.exe"
	}
	return &PowerShell{runner: runner, binary: binary}
}

func (p *PowerShell) run(ctx context.Context, script string) ([]byte, error) {
	return p.runner.Run(ctx, p.binary, "-NoProfile", "-NonInteractive", "-Command", script)
}

// Query looks the package up for all users by identifier.
func (p *PowerShell) Query(ctx context.Context, id string) (*Package, error) {
	slog.Info("appx_query", "package_id", id)

	out, err := p.run(ctx, fmt.Sprintf("Get-AppxPackage -AllUsers %s | ConvertTo-Json", psWildcard(id)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query package")
	}

	pkg, err := decodePackage(out)
	if err != nil {
		return nil, err
	}
	slog.Info("appx_found", "package_id", id, "version", pkg.Version, "status", pkg.Status, "signature_kind", pkg.SignatureKind)
	return pkg, nil
}

// Remove uninstalls every package matching id for all users.
func (p *PowerShell) Remove(ctx context.Context, id string) error {
	slog.Info("appx_remove", "package_id", id)

	if _, err := p.run(ctx, fmt.Sprintf("Get-AppxPackage -AllUsers %s | Remove-AppxPackage", psWildcard(id))); err != nil {
		return apperrors.Wrap(err, "failed to remove package")
	}
	slog.Info("appx_removed", "package_id", id)
	return nil
}

// Register installs the package described by manifestPath in development
// mode.
func (p *PowerShell) Register(ctx context.Context, manifestPath string) error {
	slog.Info("appx_register", "manifest", manifestPath)

	if _, err := p.run(ctx, fmt.Sprintf("Add-AppxPackage -Register %s", psQuote(manifestPath))); err != nil {
		return apperrors.Wrap(err, "failed to register package")
	}
	slog.Info("appx_registered", "manifest", manifestPath)
	return nil
}

// decodePackage reads ConvertTo-Json output, which is empty for no match, an
// object for one match and an array for several.
func decodePackage(out []byte) (*Package, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, ErrNotInstalled
	}

	if out[0] == '[' {
		var pkgs []Package
		if err := json.Unmarshal(out, &pkgs); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode package list")
		}
		if len(pkgs) == 0 {
			return nil, ErrNotInstalled
		}
		return &pkgs[0], nil
	}

	var pkg Package
	if err := json.Unmarshal(out, &pkg); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode package")
	}
	return &pkg, nil
}

// psWildcard matches any package whose full name contains id.
func psWildcard(id string) string {
	return psQuote("*" + id + "*")
}

// psQuote makes s a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
