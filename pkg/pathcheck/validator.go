// Package pathcheck validates and prepares the destination directory of a
// dump. A directory is only handed to the dump or registration steps as a
// ValidatedPath.
package pathcheck

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// DefaultMinFreeBytes is the free space a dump needs (75 GiB).
const DefaultMinFreeBytes = 75 * humanize.GiByte

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Validator checks raw operator input against the destination rules.
type Validator struct {
	fs           afero.Fs
	confirm      Confirmer
	volume       VolumeFunc
	freeSpace    SpaceFunc
	minFreeBytes uint64
}

// Option customizes a Validator.
type Option func(*Validator)

// WithVolumeFunc overrides how the volume root is extracted.
func WithVolumeFunc(f VolumeFunc) Option {
	return func(v *Validator) { v.volume = f }
}

// WithSpaceFunc overrides how free space is measured.
func WithSpaceFunc(f SpaceFunc) Option {
	return func(v *Validator) { v.freeSpace = f }
}

// WithMinFreeBytes overrides the free space requirement.
func WithMinFreeBytes(n uint64) Option {
	return func(v *Validator) { v.minFreeBytes = n }
}

// NewValidator creates a validator working on fs. confirm is asked before an
// earlier dump is deleted.
func NewValidator(fs afero.Fs, confirm Confirmer, opts ...Option) *Validator {
	v := &Validator{
		fs:           fs,
		confirm:      confirm,
		volume:       HostVolume,
		freeSpace:    HostFreeSpace,
		minFreeBytes: DefaultMinFreeBytes,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate normalizes raw, prepares the directory and checks free space.
// Rejections are *ValidationError; errors from the confirmation prompt pass
// through unchanged.
func (v *Validator) Validate(ctx context.Context, raw string) (ValidatedPath, error) {
	dir := Normalize(raw)

	if strings.ContainsFunc(dir, isSpace) {
		slog.Warn("path_rejected", "path", dir, "reason", InvalidCharacters)
		return ValidatedPath{}, reject(InvalidCharacters, dir, "Please enter a path with NO spaces: %q", dir)
	}

	root := v.volume(dir)
	if root == "" {
		slog.Warn("path_rejected", "path", dir, "reason", NotAbsolute)
		return ValidatedPath{}, reject(NotAbsolute, dir, "No drive letter specified: %q is not an absolute path", dir)
	}
	if ok, err := afero.DirExists(v.fs, root); err != nil || !ok {
		slog.Warn("path_rejected", "path", dir, "volume", root, "reason", VolumeNotFound)
		return ValidatedPath{}, reject(VolumeNotFound, dir, "Invalid Path: the drive given does not exist: %q", root)
	}

	if err := v.prepare(dir); err != nil {
		return ValidatedPath{}, err
	}

	free, err := v.freeSpace(ctx, dir)
	if err != nil {
		slog.Error("free_space_query_failed", "path", dir, "error", err)
		return ValidatedPath{}, &ValidationError{Kind: Unusable, Path: dir, Detail: "could not determine free space of " + root, Err: err}
	}
	if free < v.minFreeBytes {
		slog.Warn("path_rejected", "path", dir, "reason", InsufficientSpace, "free_bytes", free, "required_bytes", v.minFreeBytes)
		return ValidatedPath{}, reject(InsufficientSpace, dir,
			"Not enough space in %q (%s free, %s required, %s missing)",
			dir, humanize.IBytes(free), humanize.IBytes(v.minFreeBytes), humanize.IBytes(v.minFreeBytes-free))
	}

	slog.Info("path_validated", "path", dir, "free_bytes", free)
	return ValidatedPath{dir: dir, free: free}, nil
}

// prepare creates dir, or empties it when it holds an earlier dump and the
// operator agrees. A foreign non-empty directory is never touched.
func (v *Validator) prepare(dir string) error {
	info, err := v.fs.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			slog.Error("path_create_failed", "path", dir, "error", err)
			return &ValidationError{Kind: Unusable, Path: dir, Detail: "could not create " + dir, Err: err}
		}
		slog.Info("path_created", "path", dir)
		return nil
	}
	if err != nil {
		return &ValidationError{Kind: Unusable, Path: dir, Detail: "could not inspect " + dir, Err: err}
	}
	if !info.IsDir() {
		return reject(NotADirectory, dir, "The path given is a file, not a directory: %q", dir)
	}

	empty, err := afero.IsEmpty(v.fs, dir)
	if err != nil {
		return &ValidationError{Kind: Unusable, Path: dir, Detail: "could not list " + dir, Err: err}
	}
	if empty {
		return nil
	}

	if !HasSentinel(v.fs, dir) {
		slog.Warn("path_rejected", "path", dir, "reason", DirectoryNotEmpty)
		return reject(DirectoryNotEmpty, dir, "The path given is not empty and was not created by this tool: %q", dir)
	}

	ok, err := v.confirm.Confirm("The game is already dumped in the given directory. Do you want to delete it in order to proceed?")
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("path_overwrite_declined", "path", dir)
		return reject(UserDeclinedOverwrite, dir, "Kept the existing dump in %q; choose another directory", dir)
	}

	slog.Warn("path_overwrite", "path", dir)
	if err := v.fs.RemoveAll(dir); err != nil {
		return &ValidationError{Kind: Unusable, Path: dir, Detail: "could not delete " + dir, Err: err}
	}
	if err := v.fs.MkdirAll(dir, 0o755); err != nil {
		return &ValidationError{Kind: Unusable, Path: dir, Detail: "could not recreate " + dir, Err: err}
	}
	return nil
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
