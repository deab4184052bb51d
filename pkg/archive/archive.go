// Package archive unpacks the companion tooling bundle into a game directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/doomdumper/doomdumper/pkg/console"
	apperrors "github.com/doomdumper/doomdumper/pkg/errors"
	"github.com/doomdumper/doomdumper/pkg/security"
	"github.com/doomdumper/doomdumper/pkg/storage"
)

// DefaultBundle is the archive shipped next to the executable.
const DefaultBundle = "EternalModInjector-UWP.zip"

// ErrBundleMissing means the archive is neither on disk nor downloadable.
var ErrBundleMissing = errors.New("companion archive not found")

// Downloader fetches the bundle when it is not on disk.
type Downloader interface {
	Download(ctx context.Context, key, localPath, wantSHA256 string) (*storage.DownloadResult, error)
}

// Remote describes where to download the bundle from.
type Remote struct {
	Downloader Downloader
	Key        string
	SHA256     string
	// CacheDir receives the downloaded bundle.
	CacheDir string
}

// Extractor unpacks one bundle, always overwriting what is already there.
type Extractor struct {
	fs        afero.Fs
	bundle    string
	validator *security.Validator
	remote    *Remote
	reporter  *console.Reporter
}

// NewExtractor returns an Extractor for the bundle at path. remote may be nil.
func NewExtractor(fs afero.Fs, path string, validator *security.Validator, remote *Remote, reporter *console.Reporter) *Extractor {
	if path == "" {
		path = DefaultBundle
	}
	return &Extractor{fs: fs, bundle: path, validator: validator, remote: remote, reporter: reporter}
}

// Extract unpacks the bundle into dir.
func (e *Extractor) Extract(ctx context.Context, dir string) error {
	bundle, err := e.resolve(ctx)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(bundle), filepath.Ext(bundle))
	name = strings.TrimSuffix(name, ".tar")
	e.reporter.Info("Extracting %s to %q", name, dir)
	slog.Info("archive_extract_start", "bundle", bundle, "destination", dir)

	fi, err := e.fs.Stat(bundle)
	if err != nil {
		return apperrors.Wrap(err, "failed to stat archive")
	}
	e.validator.Begin(fi.Size())
	switch {
	case strings.HasSuffix(strings.ToLower(bundle), ".zip"):
		err = e.extractZip(bundle, dir)
	case strings.HasSuffix(strings.ToLower(bundle), ".tar.xz"), strings.HasSuffix(strings.ToLower(bundle), ".txz"):
		err = e.extractTarXz(bundle, dir)
	default:
		err = fmt.Errorf("unsupported archive format: %s", bundle)
	}
	if err != nil {
		slog.Error("archive_extract_failed", "bundle", bundle, "destination", dir, "error", err)
		return err
	}

	slog.Info("archive_extract_complete", "bundle", bundle, "destination", dir, "bytes", e.validator.Total())
	return nil
}

// resolve finds the bundle on disk, in the download cache, or downloads it.
func (e *Extractor) resolve(ctx context.Context) (string, error) {
	if ok, _ := afero.Exists(e.fs, e.bundle); ok {
		return e.bundle, nil
	}
	if e.remote == nil || e.remote.Downloader == nil || e.remote.Key == "" {
		return "", fmt.Errorf("%w: %s", ErrBundleMissing, e.bundle)
	}

	cached := filepath.Join(e.remote.CacheDir, filepath.Base(e.remote.Key))
	if ok, _ := afero.Exists(e.fs, cached); ok {
		slog.Info("archive_cache_hit", "path", cached)
		return cached, nil
	}

	e.reporter.Info("Downloading %s", filepath.Base(e.remote.Key))
	res, err := e.remote.Downloader.Download(ctx, e.remote.Key, cached, e.remote.SHA256)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to download companion archive")
	}
	return res.LocalPath, nil
}

// create opens target for writing, replacing any existing file.
func (e *Extractor) create(target string, mode os.FileMode) (afero.File, error) {
	if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent dir: %w", err)
	}
	if mode&0o600 == 0 {
		mode = 0o644
	}
	f, err := e.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return f, nil
}

// link creates a symlink when the filesystem supports it and skips it
// otherwise.
func (e *Extractor) link(name, target, linkname string) error {
	if err := e.validator.CheckLink(name, linkname); err != nil {
		return fmt.Errorf("invalid symlink target: %w", err)
	}
	l, ok := e.fs.(afero.Linker)
	if !ok {
		slog.Warn("archive_symlink_skipped", "entry", name, "target", linkname)
		return nil
	}
	e.fs.Remove(target)
	if err := l.SymlinkIfPossible(linkname, target); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}
