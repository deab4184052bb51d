package pathcheck

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/shirou/gopsutil/v4/disk"
)

// VolumeFunc extracts the volume root of a normalized path, or "" when the
// path has none.
type VolumeFunc func(path string) string

// SpaceFunc reports the free bytes available at path.
type SpaceFunc func(ctx context.Context, path string) (uint64, error)

// HostVolume is the VolumeFunc for the running OS: the drive root on
// Windows, "/" for absolute paths elsewhere.
func HostVolume(path string) string {
	if !filepath.IsAbs(path) {
		return ""
	}
	if runtime.GOOS == "windows" {
		vol := filepath.VolumeName(path)
		if vol == "" {
			return ""
		}
		return vol + string(filepath.Separator)
	}
	return string(filepath.Separator)
}

// HostFreeSpace queries the free space of the volume holding path.
func HostFreeSpace(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
