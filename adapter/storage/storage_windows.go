//go:build windows

package storage

import (
	"os"
	"path/filepath"
)

func init() {
	// volume roots cannot be created
	osSpecificEnsureDir = func(o fileSystem, dir string, mode os.FileMode) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		if abs == filepath.VolumeName(abs)+string(os.PathSeparator) {
			return nil
		}
		return o.MkdirAll(abs, mode)
	}

	// directories cannot be flushed on windows
	osSpecificSync = func(f *os.File, isDir bool) error {
		if isDir {
			return nil
		}
		return f.Sync()
	}
}
