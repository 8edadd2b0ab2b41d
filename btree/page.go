package btree

import (
	"encoding/binary"

	"github.com/malzahar-project/dbstorage/dberr"
	"github.com/malzahar-project/dbstorage/pagefile"
	"github.com/malzahar-project/dbstorage/record"
)

const metaTag = "META_PAGE:  "
const metaTrailer = "META_PAGE_END"

// metaPage is the fixed page 0 of every index file: which page is the
// root, and whether that root is a leaf.
type metaPage struct {
	RootPage   uint32
	RootIsLeaf bool
}

func encodeMeta(m metaPage) []byte {
	buf := make([]byte, pagefile.PageSize)
	off := 0
	copy(buf[off:], metaTag)
	off += len(metaTag)
	binary.LittleEndian.PutUint32(buf[off:], m.RootPage)
	off += 4
	if m.RootIsLeaf {
		binary.LittleEndian.PutUint32(buf[off:], 1)
	}
	off += 4
	copy(buf[off:], metaTrailer)
	return buf
}

func decodeMeta(buf []byte) (metaPage, error) {
	off := 0
	if string(buf[off:off+len(metaTag)]) != metaTag {
		return metaPage{}, dberr.New(dberr.Corrupt, "index meta page missing tag")
	}
	off += len(metaTag)
	root := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	isLeaf := binary.LittleEndian.Uint32(buf[off:]) != 0
	off += 4
	if string(buf[off:off+len(metaTrailer)]) != metaTrailer {
		return metaPage{}, dberr.New(dberr.Corrupt, "index meta page missing trailer")
	}
	return metaPage{RootPage: root, RootIsLeaf: isLeaf}, nil
}

const (
	pageKindLeaf     uint32 = 1
	pageKindInternal uint32 = 0
)

const internalHeaderSize = 4 + 4 + 4 // is-leaf, parent, entry-count
const leafHeaderSize = 4 + 4 + 4 + 4 // is-leaf, parent, next-leaf, entry-count

// internalEntry is one (separator key, child page) pair following the
// sentinel in an internal page.
type internalEntry struct {
	Key   record.Value
	Child uint32
}

// internalPage is an internal node: a parent pointer, a sentinel child with
// no key (the leftmost subtree), and sorted separator entries.
type internalPage struct {
	ParentPage    uint32
	SentinelChild uint32
	Entries       []internalEntry
}

func (p internalPage) encodedSize(kt KeyType) int {
	size := internalHeaderSize + 4 // sentinel child pointer
	for _, e := range p.Entries {
		size += len(encodeKey(kt, e.Key)) + 4
	}
	return size
}

func encodeInternalPage(kt KeyType, p internalPage) ([]byte, error) {
	size := p.encodedSize(kt)
	if size > pagefile.PageSize {
		return nil, dberr.New(dberr.OutOfSpace, "internal page entries do not fit on one page")
	}
	buf := make([]byte, pagefile.PageSize)
	binary.LittleEndian.PutUint32(buf, pageKindInternal)
	off := 4
	binary.LittleEndian.PutUint32(buf[off:], p.ParentPage)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(p.Entries)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.SentinelChild)
	off += 4
	for _, e := range p.Entries {
		kb := encodeKey(kt, e.Key)
		copy(buf[off:], kb)
		off += len(kb)
		binary.LittleEndian.PutUint32(buf[off:], e.Child)
		off += 4
	}
	return buf, nil
}

func decodeInternalPage(kt KeyType, buf []byte) (internalPage, error) {
	if len(buf) < internalHeaderSize || binary.LittleEndian.Uint32(buf) != pageKindInternal {
		return internalPage{}, dberr.New(dberr.Corrupt, "not an internal page")
	}
	off := 4
	parent := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	count := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if count == 0 {
		return internalPage{}, dberr.New(dberr.Corrupt, "internal page has no separator entries")
	}
	if off+4 > len(buf) {
		return internalPage{}, dberr.New(dberr.Corrupt, "internal page sentinel truncated")
	}
	sentinel := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	entries := make([]internalEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		v, n, err := decodeKey(kt, buf[off:])
		if err != nil {
			return internalPage{}, err
		}
		off += n
		if off+4 > len(buf) {
			return internalPage{}, dberr.New(dberr.Corrupt, "internal page child pointer truncated")
		}
		child := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		entries = append(entries, internalEntry{Key: v, Child: child})
	}
	return internalPage{ParentPage: parent, SentinelChild: sentinel, Entries: entries}, nil
}

// leafEntry is one (key, RID, deleted) entry of a leaf page.
type leafEntry struct {
	Key     record.Value
	RID     record.RID
	Deleted bool
}

// leafPage is a leaf node: a parent pointer, the next-leaf chain pointer
// used by range scans, and sorted key entries.
type leafPage struct {
	ParentPage uint32
	NextLeaf   uint32
	Entries    []leafEntry
}

const noPage uint32 = 0xFFFFFFFF

// noLeaf is the sentinel NextLeaf value for the rightmost leaf. Page 0 is
// always the meta page and never a leaf, so 0 is safe to use here.
const noLeaf uint32 = 0

func (p leafPage) encodedSize(kt KeyType) int {
	size := leafHeaderSize
	for _, e := range p.Entries {
		size += len(encodeKey(kt, e.Key)) + 4 + 4 + 4
	}
	return size
}

func encodeLeafPage(kt KeyType, p leafPage) ([]byte, error) {
	size := p.encodedSize(kt)
	if size > pagefile.PageSize {
		return nil, dberr.New(dberr.OutOfSpace, "leaf page entries do not fit on one page")
	}
	buf := make([]byte, pagefile.PageSize)
	binary.LittleEndian.PutUint32(buf, pageKindLeaf)
	off := 4
	binary.LittleEndian.PutUint32(buf[off:], p.ParentPage)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.NextLeaf)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(p.Entries)))
	off += 4
	for _, e := range p.Entries {
		kb := encodeKey(kt, e.Key)
		copy(buf[off:], kb)
		off += len(kb)
		binary.LittleEndian.PutUint32(buf[off:], e.RID.Page)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], e.RID.Slot)
		off += 4
		if e.Deleted {
			binary.LittleEndian.PutUint32(buf[off:], 1)
		}
		off += 4
	}
	return buf, nil
}

func decodeLeafPage(kt KeyType, buf []byte) (leafPage, error) {
	if len(buf) < leafHeaderSize || binary.LittleEndian.Uint32(buf) != pageKindLeaf {
		return leafPage{}, dberr.New(dberr.Corrupt, "not a leaf page")
	}
	off := 4
	parent := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	next := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	count := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	entries := make([]leafEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		v, n, err := decodeKey(kt, buf[off:])
		if err != nil {
			return leafPage{}, err
		}
		off += n
		if off+12 > len(buf) {
			return leafPage{}, dberr.New(dberr.Corrupt, "leaf page entry truncated")
		}
		ridPage := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		ridSlot := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		deleted := binary.LittleEndian.Uint32(buf[off:]) != 0
		off += 4
		entries = append(entries, leafEntry{Key: v, RID: record.RID{Page: ridPage, Slot: ridSlot}, Deleted: deleted})
	}
	return leafPage{ParentPage: parent, NextLeaf: next, Entries: entries}, nil
}

// pageKind peeks at a raw page buffer's i32 discriminator without fully
// decoding it.
func pageKind(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}
