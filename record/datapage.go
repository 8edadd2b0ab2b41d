package record

import (
	"encoding/binary"

	"github.com/malzahar-project/dbstorage/dberr"
	"github.com/malzahar-project/dbstorage/pagefile"
)

// RID (Record IDentifier) locates a record on a data page. It is stable
// until the record is deleted; a tombstoned slot reissues the same RID if
// its position is later reused by an insert.
type RID struct {
	Page uint32
	Slot uint32
}

const recMarker = "Rec:"

const (
	flagLive      int32 = 0
	flagForwarded int32 = 1
	flagTombstone int32 = 2
)

// recHeaderSize is the fixed per-record header: 4-byte marker, 4-byte flag,
// 4+4 byte RID.
const recHeaderSize = 4 + 4 + 4 + 4

// dataPageHeaderSize is the page-level header: used-byte count, record count.
const dataPageHeaderSize = 4 + 4

// slotRecord is one decoded entry on a data page, live or tombstoned.
type slotRecord struct {
	Flag    int32
	RID     RID
	Payload []byte // nil for tombstoned slots
}

func (r slotRecord) live() bool { return r.Flag == flagLive }

// encodedSize is the number of bytes r occupies within a data page: the
// fixed header plus, for live records, the payload.
func (r slotRecord) encodedSize() int {
	return recHeaderSize + len(r.Payload)
}

// decodeDataPage parses a page buffer into its slot records. schema is
// needed to determine where one record's payload ends and the next
// record's header begins, since payloads are not separately length-
// prefixed: they are self-delimiting given the schema.
func decodeDataPage(schema Schema, buf []byte) ([]slotRecord, error) {
	if len(buf) < dataPageHeaderSize {
		return nil, dberr.New(dberr.Corrupt, "data page shorter than header")
	}
	count := binary.LittleEndian.Uint32(buf[4:8])
	off := dataPageHeaderSize
	records := make([]slotRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+recHeaderSize > len(buf) {
			return nil, dberr.New(dberr.Corrupt, "data page record header truncated")
		}
		if string(buf[off:off+4]) != recMarker {
			return nil, dberr.New(dberr.Corrupt, "data page record missing marker")
		}
		off += 4
		flag := int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		rid := RID{
			Page: binary.LittleEndian.Uint32(buf[off:]),
			Slot: binary.LittleEndian.Uint32(buf[off+4:]),
		}
		off += 8

		switch flag {
		case flagTombstone:
			records = append(records, slotRecord{Flag: flag, RID: rid})
		case flagLive:
			n, err := payloadSize(schema, buf[off:])
			if err != nil {
				return nil, err
			}
			if off+n > len(buf) {
				return nil, dberr.New(dberr.Corrupt, "data page payload truncated")
			}
			payload := append([]byte{}, buf[off:off+n]...)
			off += n
			records = append(records, slotRecord{Flag: flag, RID: rid, Payload: payload})
		case flagForwarded:
			return nil, dberr.New(dberr.Corrupt, "forwarded records are not supported by this store")
		default:
			return nil, dberr.New(dberr.Corrupt, "unknown record flag")
		}
	}
	if int(binary.LittleEndian.Uint32(buf[0:4])) != off {
		return nil, dberr.New(dberr.Corrupt, "data page used-byte count does not match decoded records")
	}
	return records, nil
}

// encodeDataPage serializes records back into a fixed PageSize buffer.
func encodeDataPage(records []slotRecord) ([]byte, error) {
	used := dataPageHeaderSize
	for _, r := range records {
		used += r.encodedSize()
	}
	if used > pagefile.PageSize {
		return nil, dberr.New(dberr.OutOfSpace, "records do not fit on one page")
	}
	buf := make([]byte, pagefile.PageSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(used))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(records)))
	off := dataPageHeaderSize
	for _, r := range records {
		copy(buf[off:], recMarker)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(r.Flag))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], r.RID.Page)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], r.RID.Slot)
		off += 4
		if r.Flag == flagLive {
			copy(buf[off:], r.Payload)
			off += len(r.Payload)
		}
	}
	return buf, nil
}

// usedBytesOf returns the denormalized occupied-byte count of an encoded page,
// i.e. the value an insert fit-check should compare against PageSize.
func usedBytesOf(records []slotRecord) int {
	used := dataPageHeaderSize
	for _, r := range records {
		used += r.encodedSize()
	}
	return used
}

// payloadSize computes the byte length of one encoded record payload
// starting at buf, without allocating decoded values.
func payloadSize(s Schema, buf []byte) (int, error) {
	bmSize := NullBitmapSize(len(s.Attrs))
	if len(buf) < bmSize {
		return 0, dberr.New(dberr.Corrupt, "record payload shorter than null bitmap")
	}
	bitmap := buf[:bmSize]
	off := bmSize
	for i, a := range s.Attrs {
		if bitmap[i/8]&(1<<uint(7-i%8)) != 0 {
			continue
		}
		switch a.Type {
		case Int, Real:
			if off+4 > len(buf) {
				return 0, dberr.New(dberr.Corrupt, "record payload truncated reading fixed value")
			}
			off += 4
		case VarChar:
			if off+4 > len(buf) {
				return 0, dberr.New(dberr.Corrupt, "record payload truncated reading varchar length")
			}
			n := int(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
			if off+n > len(buf) {
				return 0, dberr.New(dberr.Corrupt, "record payload truncated reading varchar bytes")
			}
			off += n
		default:
			return 0, dberr.New(dberr.Corrupt, "unknown attribute type in schema")
		}
	}
	return off, nil
}
