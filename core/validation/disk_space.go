package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lulu_studio/core"
)

// MinFreeBytes is the free space below which the data directory check warns.
// A history of 50 inline 4K images is a few hundred megabytes.
const MinFreeBytes int64 = 500 * core.BytesPerMB

// DiskUsage is the size of the filesystem holding a directory.
type DiskUsage struct {
	// Dir is the existing directory that was measured.
	Dir   string
	Total int64
	// Free is the space available to the current user.
	Free int64
}

// UsedPercent returns the used share of the filesystem, 0-100.
func (u DiskUsage) UsedPercent() float64 {
	if u.Total <= 0 {
		return 0
	}
	return float64(u.Total-u.Free) / float64(u.Total) * 100
}

func (u DiskUsage) String() string {
	return fmt.Sprintf("%s free of %s", core.FormatBytes(u.Free), core.FormatBytes(u.Total))
}

// DiskSpaceError indicates there is not enough free space.
type DiskSpaceError struct {
	Usage    DiskUsage
	Required int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Usage.Dir, core.FormatBytes(e.Required), core.FormatBytes(e.Usage.Free))
}

// MeasureDisk measures the filesystem that holds path. The data directory
// may not exist before the first run, so the nearest existing ancestor is
// measured instead.
func MeasureDisk(path string) (DiskUsage, error) {
	dir, err := existingDir(path)
	if err != nil {
		return DiskUsage{}, err
	}
	total, free, err := getDiskSpace(dir)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("read disk space for %s: %w", dir, err)
	}
	return DiskUsage{Dir: dir, Total: total, Free: free}, nil
}

// CheckDiskSpace measures path and returns a *DiskSpaceError along with
// the usage when less than requiredBytes is free.
func CheckDiskSpace(path string, requiredBytes int64) (DiskUsage, error) {
	usage, err := MeasureDisk(path)
	if err != nil {
		return DiskUsage{}, err
	}
	if usage.Free < requiredBytes {
		return usage, &DiskSpaceError{Usage: usage, Required: requiredBytes}
	}
	return usage, nil
}

func existingDir(path string) (string, error) {
	p := filepath.Clean(path)
	for {
		info, err := os.Stat(p)
		switch {
		case err == nil && info.IsDir():
			return p, nil
		case err == nil:
			return filepath.Dir(p), nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("cannot access %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing directory above %s", path)
		}
		p = parent
	}
}
