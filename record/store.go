// Package record implements the record store (L2): slotted, variable-length
// typed records living on top of a pagefile.File. The schema is supplied by
// the caller at Create/Open time rather than persisted in the file — schema
// and attribute bookkeeping belong to the relation/catalog layer this core
// does not implement — so data pages start at page 0.
package record

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/malzahar-project/dbstorage/dberr"
	"github.com/malzahar-project/dbstorage/pagefile"
)

// Store is a handle to one record store file: a typed schema plus the data
// pages holding its records.
type Store struct {
	file   *pagefile.File
	schema Schema
	log    *logrus.Entry
}

// Create makes a new record store file. schema describes the typed
// attributes of every record that will live in it; the caller (the
// relation/catalog layer) owns and supplies it on every open, the same way
// rbfm's insertRecord/createFile take a record descriptor per call rather
// than persisting one in the file.
func Create(path string, schema Schema) (*Store, error) {
	f, err := pagefile.Create(path)
	if err != nil {
		return nil, err
	}
	return &Store{file: f, schema: schema, log: logrus.WithField("component", "record")}, nil
}

// Open opens an existing record store file. schema must match the one it
// was created with; the file carries no schema of its own to recover.
func Open(path string, schema Schema) (*Store, error) {
	f, err := pagefile.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{file: f, schema: schema, log: logrus.WithField("component", "record")}, nil
}

// Destroy removes a record store file from disk.
func Destroy(path string) error {
	return pagefile.Destroy(path)
}

// Close flushes and releases the underlying paged file.
func (st *Store) Close() error {
	return st.file.Close()
}

// Schema returns the store's attribute schema.
func (st *Store) Schema() Schema {
	return st.schema
}

func (st *Store) readDataPage(pn uint32) ([]slotRecord, error) {
	buf := make([]byte, pagefile.PageSize)
	if err := st.file.ReadPage(pn, buf); err != nil {
		return nil, err
	}
	return decodeDataPage(st.schema, buf)
}

func (st *Store) writeDataPage(pn uint32, records []slotRecord) error {
	buf, err := encodeDataPage(records)
	if err != nil {
		return err
	}
	return st.file.WritePage(pn, buf)
}

// InsertRecord encodes values per the store's schema and places the record
// on a data page: it first tries the most recently appended data page, then
// scans earlier pages linearly, reusing the first tombstoned slot found on
// whichever page fits; only once no existing page has room does it append a
// brand-new page.
func (st *Store) InsertRecord(values []Value) (RID, error) {
	payload, err := EncodeRecord(st.schema, values)
	if err != nil {
		return RID{}, err
	}
	if dataPageHeaderSize+recHeaderSize+len(payload) > pagefile.PageSize {
		return RID{}, dberr.New(dberr.OutOfSpace, "record too large for an empty page")
	}

	pageCount := st.file.PageCount()
	if pageCount >= 1 {
		if rid, ok, err := st.tryInsertOnPage(pageCount-1, payload); err != nil {
			return RID{}, err
		} else if ok {
			return rid, nil
		}
		for pn := uint32(0); pn < pageCount-1; pn++ {
			rid, ok, err := st.tryInsertOnPage(pn, payload)
			if err != nil {
				return RID{}, err
			}
			if ok {
				return rid, nil
			}
		}
	}

	rid := RID{Page: pageCount, Slot: 0}
	buf, err := encodeDataPage([]slotRecord{{Flag: flagLive, RID: rid, Payload: payload}})
	if err != nil {
		return RID{}, err
	}
	newPn, err := st.file.AppendPage(buf)
	if err != nil {
		return RID{}, err
	}
	rid.Page = newPn
	return rid, nil
}

func (st *Store) tryInsertOnPage(pn uint32, payload []byte) (RID, bool, error) {
	records, err := st.readDataPage(pn)
	if err != nil {
		return RID{}, false, err
	}
	used := usedBytesOf(records)

	for i, r := range records {
		if r.Flag != flagTombstone {
			continue
		}
		if used+len(payload) > pagefile.PageSize {
			continue
		}
		rid := RID{Page: pn, Slot: uint32(i)}
		records[i] = slotRecord{Flag: flagLive, RID: rid, Payload: payload}
		if err := st.writeDataPage(pn, records); err != nil {
			return RID{}, false, err
		}
		return rid, true, nil
	}

	if used+recHeaderSize+len(payload) <= pagefile.PageSize {
		rid := RID{Page: pn, Slot: uint32(len(records))}
		records = append(records, slotRecord{Flag: flagLive, RID: rid, Payload: payload})
		if err := st.writeDataPage(pn, records); err != nil {
			return RID{}, false, err
		}
		return rid, true, nil
	}
	return RID{}, false, nil
}

func (st *Store) slotAt(rid RID) ([]slotRecord, *slotRecord, error) {
	if rid.Page >= st.file.PageCount() {
		return nil, nil, dberr.New(dberr.NotFound, "rid references a page outside the data region")
	}
	records, err := st.readDataPage(rid.Page)
	if err != nil {
		return nil, nil, err
	}
	if int(rid.Slot) >= len(records) {
		return nil, nil, dberr.New(dberr.NotFound, "rid slot out of range")
	}
	return records, &records[rid.Slot], nil
}

// ReadRecord returns the decoded attribute values for a live record.
// Fails with dberr.NotFound if rid is tombstoned or never existed.
func (st *Store) ReadRecord(rid RID) ([]Value, error) {
	_, rec, err := st.slotAt(rid)
	if err != nil {
		return nil, err
	}
	if !rec.live() {
		return nil, dberr.New(dberr.NotFound, "record has been deleted")
	}
	return DecodeRecord(st.schema, rec.Payload)
}

// ReadAttribute decodes only the named attribute of a live record.
func (st *Store) ReadAttribute(rid RID, attrName string) (Value, error) {
	idx := st.schema.IndexOf(attrName)
	if idx < 0 {
		return Value{}, dberr.New(dberr.BadArgument, "unknown attribute: "+attrName)
	}
	values, err := st.ReadRecord(rid)
	if err != nil {
		return Value{}, err
	}
	return values[idx], nil
}

// DeleteRecord soft-deletes a live record by marking its slot tombstoned.
// The RID becomes invalid for Read but may be reissued by a future insert
// that reuses the slot.
func (st *Store) DeleteRecord(rid RID) error {
	records, rec, err := st.slotAt(rid)
	if err != nil {
		return err
	}
	if !rec.live() {
		return dberr.New(dberr.NotFound, "record already deleted")
	}
	records[rid.Slot] = slotRecord{Flag: flagTombstone, RID: rid}
	return st.writeDataPage(rid.Page, records)
}

// SprintRecord renders a live record as a human-readable "name: value, ..."
// line, for diagnostics and the demo CLI.
func (st *Store) SprintRecord(rid RID) (string, error) {
	values, err := st.ReadRecord(rid)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, a := range st.schema.Attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		v := values[i]
		b.WriteString(a.Name)
		b.WriteString(": ")
		if v.Null {
			b.WriteString("NULL")
			continue
		}
		switch a.Type {
		case Int:
			fmt.Fprintf(&b, "%d", v.AsInt())
		case Real:
			fmt.Fprintf(&b, "%g", v.AsReal())
		case VarChar:
			b.WriteString(v.AsString())
		}
	}
	return b.String(), nil
}
