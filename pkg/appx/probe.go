package appx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// UpdateState of an installed package.
type UpdateState string

const (
	Idle     UpdateState = "idle"
	Updating UpdateState = "updating"
)

// SignatureKind of an installed package.
type SignatureKind string

const (
	Sideloaded  SignatureKind = "sideloaded"
	StoreSigned SignatureKind = "store_signed"
)

// InstallationStatus is queried fresh on every probe and never cached.
type InstallationStatus struct {
	UpdateState      UpdateState
	InstalledVersion string
	SignatureKind    SignatureKind
	InstallLocation  string
}

// StatusOf converts a package record.
func StatusOf(pkg *Package) InstallationStatus {
	st := InstallationStatus{
		UpdateState:      Idle,
		InstalledVersion: pkg.Version,
		SignatureKind:    StoreSigned,
		InstallLocation:  pkg.InstallLocation,
	}
	if pkg.Status != 0 {
		st.UpdateState = Updating
	}
	if pkg.SignatureKind == 0 {
		st.SignatureKind = Sideloaded
	}
	return st
}

// VerdictKind is the probe's classification.
type VerdictKind string

const (
	NotInstalled    VerdictKind = "not_installed"
	Busy            VerdictKind = "busy"
	VersionMismatch VerdictKind = "version_mismatch"
	AlreadyUnlocked VerdictKind = "already_unlocked"
	NeedsDump       VerdictKind = "needs_dump"
)

// Verdict is what the workflow branches on.
type Verdict struct {
	Kind   VerdictKind
	Status InstallationStatus
	// WantVersion is the supported version, set for VersionMismatch.
	WantVersion string
}

// Message is the operator-facing explanation of the verdict.
func (v Verdict) Message() string {
	switch v.Kind {
	case NotInstalled:
		return "Couldn't find the game installation. Is it not installed?"
	case Busy:
		return "An update is in progress for the game. Please let it finish first."
	case VersionMismatch:
		return fmt.Sprintf("The installed version of the game (%s) is not compatible with this tool, which supports version %s.",
			v.Status.InstalledVersion, v.WantVersion)
	case AlreadyUnlocked:
		return "Game is already 'moddable'. The game does NOT need to be dumped."
	case NeedsDump:
		return "Game is not 'moddable' yet. Proceeding."
	}
	return string(v.Kind)
}

// Probe classifies the current installation.
type Probe struct {
	pm            PackageManager
	packageID     string
	targetVersion string
}

// NewProbe returns a probe for packageID that accepts only targetVersion.
func NewProbe(pm PackageManager, packageID, targetVersion string) *Probe {
	return &Probe{pm: pm, packageID: packageID, targetVersion: targetVersion}
}

// Probe queries the package manager and classifies the result. Only a failed
// query is an error; every classification is a Verdict.
func (p *Probe) Probe(ctx context.Context) (Verdict, error) {
	pkg, err := p.pm.Query(ctx, p.packageID)
	if errors.Is(err, ErrNotInstalled) {
		slog.Warn("probe_not_installed", "package_id", p.packageID)
		return Verdict{Kind: NotInstalled}, nil
	}
	if err != nil {
		return Verdict{}, err
	}

	v := Classify(StatusOf(pkg), p.targetVersion)
	slog.Info("probe_verdict", "package_id", p.packageID, "verdict", v.Kind, "version", v.Status.InstalledVersion)
	return v, nil
}

// Classify applies the checks in order: busy, version, signature.
func Classify(st InstallationStatus, targetVersion string) Verdict {
	switch {
	case st.UpdateState == Updating:
		return Verdict{Kind: Busy, Status: st}
	case st.InstalledVersion != targetVersion:
		return Verdict{Kind: VersionMismatch, Status: st, WantVersion: targetVersion}
	case st.SignatureKind == Sideloaded:
		return Verdict{Kind: AlreadyUnlocked, Status: st}
	default:
		return Verdict{Kind: NeedsDump, Status: st}
	}
}
