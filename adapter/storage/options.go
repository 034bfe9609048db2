package storage

import "os"

// WithDirMode sets the permissions of created directories.
func WithDirMode(m os.FileMode) Option {
	return func(s *Storage) {
		s.dirMode = m
	}
}

// WithFileMode sets the permissions of written files.
func WithFileMode(m os.FileMode) Option {
	return func(s *Storage) {
		s.fileMode = m
	}
}

// Option configures a [Storage] through the functional options pattern.
type Option func(*Storage)
