// Package pagefile implements the paged-file abstraction (L1): fixed
// 4096-byte page I/O against a single backing file, with a small file
// header tracking read/write/append counters and the page count.
//
// A File is exclusive to its owning caller. There is no support for
// concurrent opens of the same path; behavior across handles to the same
// file is undefined rather than coordinated.
package pagefile

import (
	"encoding/binary"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/malzahar-project/dbstorage/dberr"
)

// PageSize is the fixed size of every page, including page 0 (reserved for
// whatever layer owns the file).
const PageSize = 4096

// headerFields is the count of uint32 counters in the file header:
// reads, writes, appends, page-count, dir-count.
const headerFields = 5
const headerSize = headerFields * 4

const (
	fieldReads = iota
	fieldWrites
	fieldAppends
	fieldPageCount
	fieldDirCount
)

// Counters reports the number of logical read/write/append calls a File has
// served since it was created. Incremented once per call, never per retry.
type Counters struct {
	Reads   uint32
	Writes  uint32
	Appends uint32
}

// File is an open handle to a paged file. Not safe for concurrent use by
// multiple goroutines without external synchronization of the handle
// itself; the storage core is single-threaded cooperative by design.
type File struct {
	store     storage
	pageCount uint32
	dirCount  uint32
	counters  Counters
	log       *logrus.Entry
}

// Create makes a new paged file. It fails if name already exists.
func Create(name string) (*File, error) {
	s, err := createFileStorage(name)
	if err != nil {
		if os.IsExist(err) {
			return nil, dberr.Wrap(dberr.BadArgument, err, "paged file already exists")
		}
		return nil, dberr.Wrap(dberr.Io, err, "create paged file")
	}
	f := &File{store: s, log: logrus.WithField("component", "pagefile").WithField("file", name)}
	if err := f.writeHeader(); err != nil {
		s.Close()
		return nil, err
	}
	f.log.Debug("created paged file")
	return f, nil
}

// Open opens an existing paged file. It fails if name is missing.
func Open(name string) (*File, error) {
	s, err := openFileStorage(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.Wrap(dberr.Io, err, "open paged file")
		}
		return nil, dberr.Wrap(dberr.Io, err, "open paged file")
	}
	f := &File{store: s, log: logrus.WithField("component", "pagefile").WithField("file", name)}
	if err := f.readHeader(); err != nil {
		s.Close()
		return nil, err
	}
	f.log.Debug("opened paged file")
	return f, nil
}

// Destroy removes the named paged file from disk.
func Destroy(name string) error {
	if err := os.Remove(name); err != nil {
		if os.IsNotExist(err) {
			return dberr.Wrap(dberr.Io, err, "destroy paged file")
		}
		return dberr.Wrap(dberr.Io, err, "destroy paged file")
	}
	return nil
}

// openInMemory opens a handle backed by an in-memory buffer instead of a
// real file. Exposed only to tests in this package; the public contract is
// file-backed by definition.
func openInMemory() *File {
	f := &File{store: newMemStorage(), log: logrus.WithField("component", "pagefile").WithField("file", "<memory>")}
	f.writeHeader()
	return f
}

func (f *File) writeHeader() error {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[fieldReads*4:], f.counters.Reads)
	binary.LittleEndian.PutUint32(b[fieldWrites*4:], f.counters.Writes)
	binary.LittleEndian.PutUint32(b[fieldAppends*4:], f.counters.Appends)
	binary.LittleEndian.PutUint32(b[fieldPageCount*4:], f.pageCount)
	binary.LittleEndian.PutUint32(b[fieldDirCount*4:], f.dirCount)
	if _, err := f.store.WriteAt(b, 0); err != nil {
		return dberr.Wrap(dberr.Io, err, "write paged file header")
	}
	return nil
}

func (f *File) readHeader() error {
	b := make([]byte, headerSize)
	n, err := f.store.ReadAt(b, 0)
	if err != nil {
		return dberr.Wrap(dberr.Io, err, "read paged file header")
	}
	if n < headerSize {
		return dberr.New(dberr.Corrupt, "paged file header truncated")
	}
	f.counters.Reads = binary.LittleEndian.Uint32(b[fieldReads*4:])
	f.counters.Writes = binary.LittleEndian.Uint32(b[fieldWrites*4:])
	f.counters.Appends = binary.LittleEndian.Uint32(b[fieldAppends*4:])
	f.pageCount = binary.LittleEndian.Uint32(b[fieldPageCount*4:])
	f.dirCount = binary.LittleEndian.Uint32(b[fieldDirCount*4:])
	return nil
}

// pageOffset returns the absolute byte offset of page n within the backing
// store, accounting for the fixed header.
func pageOffset(n uint32) int64 {
	return int64(headerSize) + int64(n)*int64(PageSize)
}

// Close flushes the header (counters and page count) and releases the
// backing file descriptor.
func (f *File) Close() error {
	if err := f.writeHeader(); err != nil {
		f.store.Close()
		return err
	}
	if err := f.store.Close(); err != nil {
		return dberr.Wrap(dberr.Io, err, "close paged file")
	}
	f.log.Debug("closed paged file")
	return nil
}

// PageCount returns the number of pages currently allocated in the file.
func (f *File) PageCount() uint32 {
	return f.pageCount
}

// CounterSnapshot returns a copy of the current read/write/append counters.
func (f *File) CounterSnapshot() Counters {
	return f.counters
}

// ReadPage reads page n into buf, which must be at least PageSize bytes.
// Fails with dberr.BadArgument when n >= PageCount().
func (f *File) ReadPage(n uint32, buf []byte) error {
	if n >= f.pageCount {
		return dberr.New(dberr.BadArgument, "read page out of range")
	}
	if len(buf) < PageSize {
		return dberr.New(dberr.BadArgument, "read buffer smaller than page size")
	}
	if _, err := f.store.ReadAt(buf[:PageSize], pageOffset(n)); err != nil {
		return dberr.Wrap(dberr.Io, err, "read page")
	}
	f.counters.Reads++
	return nil
}

// WritePage writes buf (at least PageSize bytes) to page n. Fails with
// dberr.BadArgument when n >= PageCount().
func (f *File) WritePage(n uint32, buf []byte) error {
	if n >= f.pageCount {
		return dberr.New(dberr.BadArgument, "write page out of range")
	}
	if len(buf) < PageSize {
		return dberr.New(dberr.BadArgument, "write buffer smaller than page size")
	}
	if _, err := f.store.WriteAt(buf[:PageSize], pageOffset(n)); err != nil {
		return dberr.Wrap(dberr.Io, err, "write page")
	}
	f.counters.Writes++
	return nil
}

// AppendPage appends buf as a new page and returns its page index. Always
// succeeds on a writable file.
func (f *File) AppendPage(buf []byte) (uint32, error) {
	if len(buf) < PageSize {
		return 0, dberr.New(dberr.BadArgument, "append buffer smaller than page size")
	}
	n := f.pageCount
	if _, err := f.store.WriteAt(buf[:PageSize], pageOffset(n)); err != nil {
		return 0, dberr.Wrap(dberr.Io, err, "append page")
	}
	f.pageCount++
	f.counters.Appends++
	return n, nil
}
