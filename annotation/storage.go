package annotation

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/google/uuid"
)

// SaveStore reads and rewrites session files inside the annotations directory
type SaveStore struct {
	FS billy.Filesystem
}

// NewDirSaveStore roots a SaveStore at dir, creating it with its parents
func NewDirSaveStore(dir string) (*SaveStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("while creating annotations directory '%s': %w", dir, err)
	}
	return &SaveStore{FS: osfs.New(dir)}, nil
}

// Exists reports whether the session file is present
func (s *SaveStore) Exists(name string) (bool, error) {
	_, err := s.FS.Stat(name)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Open returns the session file for reading
func (s *SaveStore) Open(name string) (io.ReadCloser, error) {
	return s.FS.Open(name)
}

// Path is the full location of a session file, for messages
func (s *SaveStore) Path(name string) string {
	return s.FS.Join(s.FS.Root(), name)
}

// Write replaces the session file as a whole: the content goes to a
// uniquely named temporary file first which is then renamed over the target.
func (s *SaveStore) Write(name string, write func(w io.Writer) error) error {
	tempFile := fmt.Sprintf(".%s.%s.tmp", name, uuid.New())
	f, err := s.FS.Create(tempFile)
	if err != nil {
		return fmt.Errorf("while creating '%s': %w", tempFile, err)
	}
	if err := write(f); err != nil {
		f.Close()
		s.FS.Remove(tempFile)
		return err
	}
	if err := f.Close(); err != nil {
		s.FS.Remove(tempFile)
		return err
	}
	if err := s.FS.Rename(tempFile, name); err != nil {
		s.FS.Remove(tempFile)
		return fmt.Errorf("while replacing '%s': %w", name, err)
	}
	return nil
}
