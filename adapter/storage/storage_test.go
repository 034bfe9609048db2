package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const testLine = "some data\n"

// renameMock fails renames and delegates everything else to the os.
type renameMock struct {
	osFS
	mock.Mock
}

// Rename implements fileSystem.
func (o *renameMock) Rename(oldpath string, newpath string) error {
	return o.Called(oldpath, newpath).Error(0)
}

type StorageTestSuite struct {
	suite.Suite
	dir string
	s   *Storage
}

func (s *StorageTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.s = NewStorage()
}

func (s *StorageTestSuite) read(name string) string {
	b, err := os.ReadFile(name)
	s.Require().NoError(err)
	return string(b)
}

func (s *StorageTestSuite) write(data string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, data)
		return err
	}
}

func (s *StorageTestSuite) TestWriteFile() {
	name := filepath.Join(s.dir, "nested", "dir", "snap.db")
	s.NoError(s.s.WriteFile(name, s.write(testLine)))
	s.Equal(testLine, s.read(name))

	s.NoError(s.s.WriteFile(name, s.write("other\n")))
	s.Equal("other\n", s.read(name))

	exists, err := s.s.Exists(name + "~")
	s.NoError(err)
	s.False(exists)
}

func (s *StorageTestSuite) TestFileMode() {
	st := NewStorage(WithFileMode(0o600), WithDirMode(0o700))
	name := filepath.Join(s.dir, "private", "snap.db")
	s.NoError(st.WriteFile(name, s.write(testLine)))

	info, err := os.Stat(name)
	s.NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm())
}

func (s *StorageTestSuite) TestFailedWriteKeepsOldFile() {
	name := filepath.Join(s.dir, "snap.db")
	s.NoError(s.s.WriteFile(name, s.write(testLine)))

	fail := errors.New("fail")
	err := s.s.WriteFile(name, func(w io.Writer) error {
		_, _ = io.WriteString(w, "half")
		return fail
	})
	s.ErrorIs(err, fail)
	s.Equal(testLine, s.read(name))

	exists, err := s.s.Exists(name + "~")
	s.NoError(err)
	s.False(exists)
}

func (s *StorageTestSuite) TestRecoversInterruptedWrite() {
	o := new(renameMock)
	o.On("Rename", mock.Anything, mock.Anything).Return(errors.New("crash")).Once()
	s.s.os = o

	name := filepath.Join(s.dir, "snap.db")
	s.Error(s.s.WriteFile(name, s.write(testLine)))
	o.AssertExpectations(s.T())

	exists, err := s.s.Exists(name)
	s.NoError(err)
	s.False(exists)

	s.s.os = osFS{}
	f, err := s.s.Open(name)
	s.Require().NoError(err)
	defer f.Close()
	b, err := io.ReadAll(f)
	s.NoError(err)
	s.Equal(testLine, string(b))
}

func (s *StorageTestSuite) TestOpenMissing() {
	_, err := s.s.Open(filepath.Join(s.dir, "missing.db"))
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *StorageTestSuite) TestReservedName() {
	s.ErrorIs(s.s.WriteFile(filepath.Join(s.dir, "snap~"), s.write("")), ErrFileName)
	_, err := s.s.Open("")
	s.ErrorIs(err, ErrFileName)
}

func (s *StorageTestSuite) TestFlushError() {
	err := s.s.flush(filepath.Join(s.dir, "missing"), false)
	e := ErrFlushToStorage{}
	s.ErrorAs(err, &e)
	s.ErrorIs(err, os.ErrNotExist)
	s.Contains(err.Error(), "failed to flush")
}

func TestStorageTestSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}
