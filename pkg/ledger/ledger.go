// Package ledger keeps the single recovery marker that lets a later run pick
// up a dump whose registration was deferred.
//
// The marker is a plain file whose entire content is the pending destination
// path. Its presence, together with the dump-completion sentinel inside that
// destination, means no further dump is needed.
package ledger

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/doomdumper/doomdumper/pkg/pathcheck"
	apperrors "github.com/doomdumper/doomdumper/pkg/errors"
)

// DefaultPath is the marker location relative to the working directory.
const DefaultPath = "aborted"

// Ledger is a single-slot, single-writer record.
type Ledger struct {
	fs   afero.Fs
	path string
}

// New returns a ledger stored at path on fs.
func New(fs afero.Fs, path string) *Ledger {
	return &Ledger{fs: fs, path: path}
}

// Path returns the marker file location.
func (l *Ledger) Path() string {
	return l.path
}

// Record replaces the marker with one pointing at p. The write goes through a
// temporary file and a rename so a crash never leaves a torn marker.
func (l *Ledger) Record(p pathcheck.ValidatedPath) error {
	dir := filepath.Dir(l.path)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, "failed to create ledger directory")
	}

	tmp, err := afero.TempFile(l.fs, dir, "."+filepath.Base(l.path)+"-*")
	if err != nil {
		return apperrors.Wrap(err, "failed to create ledger temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(p.String()); err != nil {
		tmp.Close()
		l.fs.Remove(tmpName)
		return apperrors.Wrap(err, "failed to write ledger")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		l.fs.Remove(tmpName)
		return apperrors.Wrap(err, "failed to sync ledger")
	}
	if err := tmp.Close(); err != nil {
		l.fs.Remove(tmpName)
		return apperrors.Wrap(err, "failed to close ledger")
	}
	if err := l.fs.Rename(tmpName, l.path); err != nil {
		l.fs.Remove(tmpName)
		return apperrors.Wrap(err, "failed to commit ledger")
	}

	slog.Info("ledger_recorded", "ledger", l.path, "pending_path", p.String())
	return nil
}

// Pending returns the raw path in the marker without checking it.
func (l *Ledger) Pending() (string, bool, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Wrap(err, "failed to read ledger")
	}
	raw := strings.TrimSpace(string(data))
	return raw, raw != "", nil
}

// Consume returns the pending path when the marker exists and its
// destination still holds a completed dump. A marker whose destination lost
// its sentinel is discarded and reported as nothing pending.
func (l *Ledger) Consume() (pathcheck.ValidatedPath, bool, error) {
	raw, ok, err := l.Pending()
	if err != nil || !ok {
		if err == nil {
			l.discardEmpty()
		}
		return pathcheck.ValidatedPath{}, false, err
	}

	p, valid := pathcheck.Recover(l.fs, raw)
	if !valid {
		slog.Warn("ledger_stale", "ledger", l.path, "pending_path", raw)
		if err := l.Clear(); err != nil {
			return pathcheck.ValidatedPath{}, false, err
		}
		return pathcheck.ValidatedPath{}, false, nil
	}

	slog.Info("ledger_pending", "ledger", l.path, "pending_path", p.String())
	return p, true, nil
}

// Clear removes the marker. Clearing an absent marker is not an error.
func (l *Ledger) Clear() error {
	err := l.fs.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(err, "failed to remove ledger")
	}
	if err == nil {
		slog.Info("ledger_cleared", "ledger", l.path)
	}
	return nil
}

// discardEmpty drops a marker file that exists but names no path.
func (l *Ledger) discardEmpty() {
	if ok, _ := afero.Exists(l.fs, l.path); ok {
		_ = l.Clear()
	}
}
