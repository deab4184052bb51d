//go:build windows

package platform

import (
	"log/slog"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/doomdumper/doomdumper/pkg/errors"
)

// IsElevated reports whether the process token is elevated.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// EnableDeveloperMode allows sideloaded packages to be registered.
func EnableDeveloperMode() error {
	key, _, err := registry.CreateKey(registry.LOCAL_MACHINE, AppModelUnlockKey, registry.SET_VALUE)
	if err != nil {
		return errors.Wrap(err, "failed to open AppModelUnlock key")
	}
	defer key.Close()

	if err := key.SetDWordValue(AllowDevelopmentValue, 1); err != nil {
		return errors.Wrap(err, "failed to enable developer mode")
	}
	slog.Info("developer_mode_enabled")
	return nil
}
