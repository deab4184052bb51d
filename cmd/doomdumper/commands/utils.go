package commands

import (
	"os"
	"path/filepath"

	"github.com/doomdumper/doomdumper/pkg/errors"
)

// ensureDirectories creates the parent directory of every file path and
// every directory path given. Empty entries are skipped.
func ensureDirectories(files []string, dirs []string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", f)
		}
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", d)
		}
	}
	return nil
}
