// Package platform holds the two host preconditions of a session: running
// elevated and having developer mode enabled for sideloading.
package platform

import "errors"

// ErrUnsupported is returned by operations that only exist on Windows.
var ErrUnsupported = errors.New("not supported on this platform")

// AppModelUnlockKey is the HKLM key holding the developer mode switch.
const AppModelUnlockKey = `SOFTWARE\Microsoft\Windows\CurrentVersion\AppModelUnlock`

// AllowDevelopmentValue is the DWORD under AppModelUnlockKey that permits
// sideloading without a developer license.
const AllowDevelopmentValue = "AllowDevelopmentWithoutDevLicense"
