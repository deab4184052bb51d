package pathcheck

import (
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// SentinelName is the zero-byte file written at the root of a destination
// once a dump into it has completed.
const SentinelName = "doom_dumper"

// ManifestName is the package manifest registered from a dumped directory.
const ManifestName = "AppxManifest.xml"

// ValidatedPath is a destination directory that passed validation. The zero
// value is not valid; values only come from this package.
type ValidatedPath struct {
	dir  string
	free uint64
}

// String returns the normalized directory with its trailing separator.
func (p ValidatedPath) String() string {
	return p.dir
}

// Dir returns the directory without its trailing separator, the form the
// dump tool expects.
func (p ValidatedPath) Dir() string {
	return strings.TrimSuffix(p.dir, string(filepath.Separator))
}

// IsZero reports whether p was never validated.
func (p ValidatedPath) IsZero() bool {
	return p.dir == ""
}

// FreeBytes is the free space observed at validation time (zero for a
// recovered path).
func (p ValidatedPath) FreeBytes() uint64 {
	return p.free
}

// FreeSpace is FreeBytes for display.
func (p ValidatedPath) FreeSpace() string {
	return humanize.IBytes(p.free)
}

// SentinelPath is where the dump-completion sentinel lives.
func (p ValidatedPath) SentinelPath() string {
	return p.dir + SentinelName
}

// ManifestPath is the manifest to register.
func (p ValidatedPath) ManifestPath() string {
	return p.dir + ManifestName
}

// Normalize converts separators and appends a trailing separator.
func Normalize(raw string) string {
	p := filepath.FromSlash(raw)
	if !strings.HasSuffix(p, string(filepath.Separator)) {
		p += string(filepath.Separator)
	}
	return p
}

// HasSentinel reports whether dir holds a completed dump.
func HasSentinel(fs afero.Fs, dir string) bool {
	ok, err := afero.Exists(fs, Normalize(dir)+SentinelName)
	return err == nil && ok
}

// Recover re-admits a directory that already holds a completed dump. It is
// how a path recorded by an earlier run becomes usable again without the
// emptiness and free-space checks, which no longer apply.
func Recover(fs afero.Fs, raw string) (ValidatedPath, bool) {
	dir := Normalize(raw)
	if strings.ContainsFunc(dir, isSpace) || !HasSentinel(fs, dir) {
		return ValidatedPath{}, false
	}
	return ValidatedPath{dir: dir}, true
}
