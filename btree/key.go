// Package btree implements the disk-resident B+-Tree index (L3): an
// ordered index over (key, RID) pairs stored as internal and leaf pages on
// top of a pagefile.File, sharing its key comparison semantics with the
// record store (record.AttrType / record.Value).
package btree

import (
	"encoding/binary"

	"github.com/malzahar-project/dbstorage/dberr"
	"github.com/malzahar-project/dbstorage/record"
)

// KeyType identifies how index keys are encoded and compared. It mirrors
// record.AttrType since an index keys on one attribute of a record schema.
type KeyType = record.AttrType

const (
	IntKey     = record.Int
	RealKey    = record.Real
	VarCharKey = record.VarChar
)

// encodeKey serializes a key value to its on-disk form: 4 bytes for
// Int/Real, a 4-byte length prefix plus bytes for VarChar.
func encodeKey(kt KeyType, v record.Value) []byte {
	switch kt {
	case record.Int, record.Real:
		b := make([]byte, 4)
		copy(b, v.Data)
		return b
	case record.VarChar:
		b := make([]byte, 4+len(v.Data))
		binary.LittleEndian.PutUint32(b, uint32(len(v.Data)))
		copy(b[4:], v.Data)
		return b
	default:
		return nil
	}
}

// keySize returns the encoded byte length of one key starting at buf,
// without decoding it.
func keySize(kt KeyType, buf []byte) (int, error) {
	switch kt {
	case record.Int, record.Real:
		if len(buf) < 4 {
			return 0, dberr.New(dberr.Corrupt, "index key truncated")
		}
		return 4, nil
	case record.VarChar:
		if len(buf) < 4 {
			return 0, dberr.New(dberr.Corrupt, "index varchar key length truncated")
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if len(buf) < 4+n {
			return 0, dberr.New(dberr.Corrupt, "index varchar key bytes truncated")
		}
		return 4 + n, nil
	default:
		return 0, dberr.New(dberr.Corrupt, "unknown index key type")
	}
}

// decodeKey reads one key from buf and returns its record.Value along with
// the number of bytes consumed.
func decodeKey(kt KeyType, buf []byte) (record.Value, int, error) {
	n, err := keySize(kt, buf)
	if err != nil {
		return record.Value{}, 0, err
	}
	switch kt {
	case record.Int, record.Real:
		return record.Value{Data: append([]byte{}, buf[:4]...)}, n, nil
	case record.VarChar:
		return record.Value{Data: append([]byte{}, buf[4:n]...)}, n, nil
	default:
		return record.Value{}, 0, dberr.New(dberr.Corrupt, "unknown index key type")
	}
}

// compareKeys orders two key values of the index's KeyType.
func compareKeys(kt KeyType, a, b record.Value) int {
	return record.Compare(kt, a, b)
}
