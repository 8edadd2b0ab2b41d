package pagefile

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// storage is the raw byte-addressable backing for a paged file. It is
// deliberately narrow: absolute-offset reads and writes only, the file
// position is never assumed to carry meaning between calls.
//
// Two implementations exist: a real file on disk, and an in-memory buffer
// used by tests that don't want filesystem fixtures (mirrors the split
// chirst-cdb's pager/storage.go makes between its file and memory storage).
type storage interface {
	ReadAt(b []byte, off int64) (int, error)
	WriteAt(b []byte, off int64) (int, error)
	Close() error
}

// fileStorage backs a paged file with a real os.File.
type fileStorage struct {
	f *os.File
}

func createFileStorage(name string) (*fileStorage, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileStorage{f: f}, nil
}

func openFileStorage(name string) (*fileStorage, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileStorage{f: f}, nil
}

func (s *fileStorage) ReadAt(b []byte, off int64) (int, error) {
	n, err := s.f.ReadAt(b, off)
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, nil
}

func (s *fileStorage) WriteAt(b []byte, off int64) (int, error) {
	return s.f.WriteAt(b, off)
}

func (s *fileStorage) Close() error {
	if err := s.f.Sync(); err != nil {
		return errors.Wrap(err, "sync before close")
	}
	return s.f.Close()
}

// memStorage backs a paged file with an in-memory byte slice. Used only by
// tests; never exposed through the public File API.
type memStorage struct {
	buf []byte
}

func newMemStorage() *memStorage {
	return &memStorage{}
}

func (s *memStorage) ReadAt(b []byte, off int64) (int, error) {
	if off >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(b, s.buf[off:])
	return n, nil
}

func (s *memStorage) WriteAt(b []byte, off int64) (int, error) {
	end := off + int64(len(b))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	n := copy(s.buf[off:end], b)
	return n, nil
}

func (s *memStorage) Close() error { return nil }
