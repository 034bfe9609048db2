// Package storage writes snapshot files so that a crash never leaves a
// partially written file in place.
//
// A new version of a file is written to the same name with a "~" suffix,
// flushed, and renamed over the old one. Opening a file whose rename never
// happened recovers the complete temporary copy.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644

	tempSuffix = "~"
)

// ErrFileName is returned for file names ending with the suffix reserved for
// temporary copies.
var ErrFileName = errors.New("file name cannot end with '~', reserved for crash-safe writes")

// ErrFlushToStorage is returned when a file or directory cannot be flushed to
// disk.
type ErrFlushToStorage struct {
	ErrorOnFsync error
	ErrorOnClose error
}

// Error implements [error].
func (e ErrFlushToStorage) Error() string {
	if e.ErrorOnFsync != nil {
		return fmt.Sprintf("failed to flush to storage: %s", e.ErrorOnFsync)
	}
	return fmt.Sprintf("failed to close after flushing to storage: %s", e.ErrorOnClose)
}

// Unwrap returns the underlying errors.
func (e ErrFlushToStorage) Unwrap() []error {
	return []error{e.ErrorOnFsync, e.ErrorOnClose}
}

// fileSystem holds the os calls made by [Storage], replaced in tests.
type fileSystem interface {
	IsNotExist(err error) bool
	MkdirAll(path string, perm os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Rename(oldpath string, newpath string) error
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
}

type osFS struct{}

func (osFS) IsNotExist(err error) bool                    { return os.IsNotExist(err) }
func (osFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (osFS) Remove(name string) error                     { return os.Remove(name) }
func (osFS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }

func (osFS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

var (
	osSpecificEnsureDir = func(o fileSystem, dir string, mode os.FileMode) error {
		return o.MkdirAll(dir, mode)
	}
	osSpecificSync = func(f *os.File, isDir bool) error {
		return f.Sync()
	}
)

// Storage reads and writes snapshot files.
type Storage struct {
	os       fileSystem
	dirMode  os.FileMode
	fileMode os.FileMode
}

// NewStorage returns a new [Storage].
func NewStorage(options ...Option) *Storage {
	s := Storage{
		os:       osFS{},
		dirMode:  DefaultDirMode,
		fileMode: DefaultFileMode,
	}
	for _, option := range options {
		option(&s)
	}
	return &s
}

func checkName(filename string) error {
	if filename == "" || strings.HasSuffix(filename, tempSuffix) {
		return fmt.Errorf("%w: %q", ErrFileName, filename)
	}
	return nil
}

// Exists reports whether filename exists.
func (s *Storage) Exists(filename string) (bool, error) {
	_, err := s.os.Stat(filename)
	if err != nil {
		if s.os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WriteFile replaces the content of filename with whatever fn writes. The
// parent directory is created if needed. If fn fails, filename is left
// untouched.
func (s *Storage) WriteFile(filename string, fn func(io.Writer) error) error {
	if err := checkName(filename); err != nil {
		return err
	}
	tempFilename := filename + tempSuffix
	dir := filepath.Dir(filename)

	if err := osSpecificEnsureDir(s.os, dir, s.dirMode); err != nil {
		return err
	}

	f, err := s.os.OpenFile(tempFilename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return errors.Join(err, s.os.Remove(tempFilename))
	}
	if err := osSpecificSync(f, false); err != nil {
		f.Close()
		return ErrFlushToStorage{ErrorOnFsync: err}
	}
	if err := f.Close(); err != nil {
		return ErrFlushToStorage{ErrorOnClose: err}
	}

	if err := s.os.Rename(tempFilename, filename); err != nil {
		return err
	}
	return s.flush(dir, true)
}

func (s *Storage) flush(filename string, isDir bool) error {
	flags := os.O_RDWR
	if isDir {
		flags = os.O_RDONLY
	}

	fileHandle, err := s.os.OpenFile(filename, flags, s.fileMode)
	if err != nil {
		return ErrFlushToStorage{ErrorOnFsync: err}
	}

	if err := osSpecificSync(fileHandle, isDir); err != nil {
		fileHandle.Close()
		return ErrFlushToStorage{ErrorOnFsync: err}
	}

	if err := fileHandle.Close(); err != nil {
		return ErrFlushToStorage{ErrorOnClose: err}
	}

	return nil
}

// Open opens filename for reading. If it is missing but a complete temporary
// copy exists, the copy is moved in place first. When neither exists the
// error satisfies errors.Is(err, os.ErrNotExist).
func (s *Storage) Open(filename string) (io.ReadCloser, error) {
	if err := checkName(filename); err != nil {
		return nil, err
	}
	if err := s.ensureIntegrity(filename); err != nil {
		return nil, err
	}
	return s.os.OpenFile(filename, os.O_RDONLY, s.fileMode)
}

func (s *Storage) ensureIntegrity(filename string) error {
	exists, err := s.Exists(filename)
	if err != nil || exists {
		return err
	}
	tempExists, err := s.Exists(filename + tempSuffix)
	if err != nil || !tempExists {
		return err
	}
	return s.os.Rename(filename+tempSuffix, filename)
}
