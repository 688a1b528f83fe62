package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// SourceState describes a configuration file on disk.
type SourceState int

const (
	// SourceMissing means there is no file at the path. Config files are optional.
	SourceMissing SourceState = iota
	// SourcePresent means the file exists and can be opened.
	SourcePresent
	// SourceUnreadable means something is at the path but cannot be used.
	SourceUnreadable
)

// ProbeSourceFile reports whether path holds a usable configuration file.
// The error explains a SourceUnreadable result.
func ProbeSourceFile(path string) (SourceState, error) {
	if path == "" {
		return SourceMissing, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SourceMissing, nil
		}
		return SourceUnreadable, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return SourceUnreadable, err
	}
	if info.IsDir() {
		return SourceUnreadable, fmt.Errorf("%s is a directory", path)
	}
	return SourcePresent, nil
}
