//go:build !windows

package platform

import (
	"errors"
	"os"
	"testing"
)

func TestEnableDeveloperMode_Unsupported(t *testing.T) {
	if err := EnableDeveloperMode(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestIsElevated_MatchesEffectiveUser(t *testing.T) {
	if got, want := IsElevated(), os.Geteuid() == 0; got != want {
		t.Errorf("IsElevated() = %v, want %v", got, want)
	}
}
