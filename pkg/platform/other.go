//go:build !windows

package platform

import (
	"log/slog"
	"os"
)

// IsElevated reports whether the process runs as root.
func IsElevated() bool {
	return os.Geteuid() == 0
}

// EnableDeveloperMode is a Windows registry switch; elsewhere it only
// reports ErrUnsupported.
func EnableDeveloperMode() error {
	slog.Warn("developer_mode_unavailable", "reason", "stub_platform")
	return ErrUnsupported
}
