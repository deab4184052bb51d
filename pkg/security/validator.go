// Package security guards archive extraction against entries that escape the
// destination and against decompression bombs.
package security

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// Limits bound what a single extraction may write.
type Limits struct {
	MaxFileSize         int64
	MaxTotalSize        int64
	MaxCompressionRatio float64
}

// Validator checks archive entries against Limits and keeps a running total
// of extracted bytes.
type Validator struct {
	limits Limits

	mu         sync.Mutex
	total      int64
	compressed int64
}

// NewValidator returns a Validator enforcing l.
func NewValidator(l Limits) *Validator {
	slog.Debug("security_validator_init",
		"max_file_size", humanize.IBytes(uint64(l.MaxFileSize)),
		"max_total_size", humanize.IBytes(uint64(l.MaxTotalSize)),
		"max_compression_ratio", l.MaxCompressionRatio)
	return &Validator{limits: l}
}

// CheckName rejects entry names that are absolute, carry a drive letter, or
// climb out of the destination.
func (v *Validator) CheckName(name string) error {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" || hasDrive(slashed) {
		slog.Error("security_entry_rejected", "entry", name, "reason", "absolute_path")
		return fmt.Errorf("security: absolute path not allowed: %s", name)
	}
	if clean := path.Clean(slashed); clean == ".." || strings.HasPrefix(clean, "../") {
		slog.Error("security_entry_rejected", "entry", name, "reason", "path_traversal")
		return fmt.Errorf("security: path traversal detected: %s", name)
	}
	return nil
}

// CheckLink rejects a symlink at name whose target resolves outside the
// destination. Absolute targets are always rejected; the destination is a
// game directory, not a root filesystem.
func (v *Validator) CheckLink(name, target string) error {
	slashed := strings.ReplaceAll(target, `\`, "/")
	if strings.HasPrefix(slashed, "/") || hasDrive(slashed) {
		slog.Error("security_link_rejected", "entry", name, "target", target, "reason", "absolute_target")
		return fmt.Errorf("security: absolute link target not allowed: %s -> %s", name, target)
	}

	resolved := path.Join(path.Dir(strings.ReplaceAll(name, `\`, "/")), slashed)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		slog.Error("security_link_rejected", "entry", name, "target", target, "resolved", resolved, "reason", "path_traversal")
		return fmt.Errorf("security: path traversal detected: link %s -> %s resolves to %s", name, target, resolved)
	}
	return nil
}

// CheckSize rejects a single entry larger than MaxFileSize.
func (v *Validator) CheckSize(size int64) error {
	if size > v.limits.MaxFileSize {
		slog.Error("security_file_size_exceeded", "size", size, "max", v.limits.MaxFileSize)
		return fmt.Errorf("security: entry size %s exceeds max %s",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(v.limits.MaxFileSize)))
	}
	return nil
}

// Account adds n extracted bytes to the running total and fails once the
// total passes MaxTotalSize, or passes MaxCompressionRatio times the archive
// size given to Begin.
func (v *Validator) Account(n int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.total += n
	if v.total > v.limits.MaxTotalSize {
		slog.Error("security_total_size_exceeded", "total", v.total, "max", v.limits.MaxTotalSize)
		return fmt.Errorf("security: total extracted size %s exceeds max %s",
			humanize.IBytes(uint64(v.total)), humanize.IBytes(uint64(v.limits.MaxTotalSize)))
	}
	if v.compressed > 0 {
		return v.CheckRatio(v.compressed, v.total)
	}
	return nil
}

// Guard wraps w so every write is accounted before it reaches w. A write that
// would break a limit is refused whole.
func (v *Validator) Guard(w io.Writer) io.Writer {
	return &guardedWriter{v: v, w: w}
}

type guardedWriter struct {
	v *Validator
	w io.Writer
}

func (g *guardedWriter) Write(p []byte) (int, error) {
	if err := g.v.Account(int64(len(p))); err != nil {
		return 0, err
	}
	return g.w.Write(p)
}

// CheckRatio rejects an archive whose expanded size is too large relative to
// its size on disk.
func (v *Validator) CheckRatio(compressed, uncompressed int64) error {
	if compressed <= 0 {
		return fmt.Errorf("security: compressed size must be positive, got %d", compressed)
	}

	ratio := float64(uncompressed) / float64(compressed)
	if ratio > v.limits.MaxCompressionRatio {
		slog.Error("security_compression_bomb_detected", "ratio", ratio, "max_ratio", v.limits.MaxCompressionRatio)
		return fmt.Errorf("security: compression ratio %.2f exceeds max %.2f (compressed: %d, uncompressed: %d)",
			ratio, v.limits.MaxCompressionRatio, compressed, uncompressed)
	}
	slog.Debug("security_compression_validated", "ratio", ratio)
	return nil
}

// Begin starts a new extraction of an archive that is compressed bytes on
// disk. A non-positive size disables the ratio check.
func (v *Validator) Begin(compressed int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.total = 0
	v.compressed = compressed
}

// Total is the number of bytes accounted since the last Begin.
func (v *Validator) Total() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total
}

// hasDrive matches a leading "C:" in a slash-separated name.
func hasDrive(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		(('a' <= name[0] && name[0] <= 'z') || ('A' <= name[0] && name[0] <= 'Z'))
}
