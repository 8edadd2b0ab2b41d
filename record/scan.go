package record

import (
	"github.com/malzahar-project/dbstorage/dberr"
)

// Projection selects which attributes a Scan yields. A nil or empty Attrs
// means "every attribute". Preserving controls the shape of the projected
// record: Preserving keeps the full schema's arity, nulling out the
// attributes that weren't selected, so the result still lines up
// positionally with the original schema (useful for index maintenance,
// which expects a stable key position); non-preserving ("compressed")
// produces a narrower record containing only the selected attributes, in
// the order requested.
type Projection struct {
	Attrs      []string
	Preserving bool
}

// Condition is a single-attribute scan predicate: attrName Op value. NoOp
// (the zero value) matches every record and ignores Attr; with any other Op,
// Attr must name a schema attribute or Scan fails with BadArgument.
type Condition struct {
	Attr  string
	Op    Op
	Value Value
}

// Scanner iterates the live, matching, projected records of a Store in
// page/slot order. It is forward-only and tombstone-skipping.
type Scanner struct {
	store     *Store
	condIdx   int // -1 when Condition.Op == NoOp
	cond      Condition
	proj      Projection
	projIdx   []int
	projAttrs []AttrDescriptor

	pageCount uint32
	nextPage  uint32 // next data page to load; data pages run 0..pageCount-1
	curSlots  []slotRecord
	slotPos   int

	curRID     RID
	curPayload []byte
}

// Scan opens a new scanner over the store. cond.Op == NoOp (the zero value)
// means "match everything".
func (st *Store) Scan(cond Condition, proj Projection) (*Scanner, error) {
	condIdx := -1
	if cond.Op != NoOp {
		condIdx = st.schema.IndexOf(cond.Attr)
		if condIdx < 0 {
			return nil, dberr.New(dberr.BadArgument, "unknown scan attribute: "+cond.Attr)
		}
	}

	var projIdx []int
	var projAttrs []AttrDescriptor
	if len(proj.Attrs) == 0 {
		for i, a := range st.schema.Attrs {
			projIdx = append(projIdx, i)
			projAttrs = append(projAttrs, a)
		}
	} else {
		for _, name := range proj.Attrs {
			i := st.schema.IndexOf(name)
			if i < 0 {
				return nil, dberr.New(dberr.BadArgument, "unknown projected attribute: "+name)
			}
			projIdx = append(projIdx, i)
			projAttrs = append(projAttrs, st.schema.Attrs[i])
		}
	}

	return &Scanner{
		store:     st,
		condIdx:   condIdx,
		cond:      cond,
		proj:      proj,
		projIdx:   projIdx,
		projAttrs: projAttrs,
		pageCount: st.file.PageCount(),
	}, nil
}

// Next advances the scanner to the next matching record. Returns false once
// the store is exhausted.
func (s *Scanner) Next() (bool, error) {
	for {
		if s.slotPos >= len(s.curSlots) {
			ok, err := s.advancePage()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			continue
		}
		rec := s.curSlots[s.slotPos]
		s.slotPos++
		if rec.Flag != flagLive {
			continue
		}
		values, err := DecodeRecord(s.store.schema, rec.Payload)
		if err != nil {
			return false, err
		}
		if s.condIdx >= 0 {
			v := values[s.condIdx]
			if v.Null {
				continue
			}
			cmp := compareValues(s.store.schema.Attrs[s.condIdx].Type, v, s.cond.Value)
			if !satisfies(s.cond.Op, cmp, false) {
				continue
			}
		}
		_, payload, err := s.project(values)
		if err != nil {
			return false, err
		}
		s.curRID = rec.RID
		s.curPayload = payload
		return true, nil
	}
}

// advancePage loads the next data page's slots. Returns false once the
// store has no more data pages (page indices 0..pageCount-1).
func (s *Scanner) advancePage() (bool, error) {
	if s.nextPage >= s.pageCount {
		return false, nil
	}
	slots, err := s.store.readDataPage(s.nextPage)
	if err != nil {
		return false, err
	}
	s.nextPage++
	s.curSlots = slots
	s.slotPos = 0
	return true, nil
}

func (s *Scanner) project(values []Value) (Schema, []byte, error) {
	if s.proj.Preserving {
		out := make([]Value, len(s.store.schema.Attrs))
		for i := range out {
			out[i] = Value{Null: true}
		}
		for _, i := range s.projIdx {
			out[i] = values[i]
		}
		payload, err := EncodeRecord(s.store.schema, out)
		return s.store.schema, payload, err
	}
	out := make([]Value, len(s.projIdx))
	for j, i := range s.projIdx {
		out[j] = values[i]
	}
	schema := Schema{Attrs: s.projAttrs}
	payload, err := EncodeRecord(schema, out)
	return schema, payload, err
}

// RID returns the RID of the current record.
func (s *Scanner) RID() RID { return s.curRID }

// Payload returns the projected record's external wire form, encoded
// against ProjectedSchema.
func (s *Scanner) Payload() []byte { return s.curPayload }

// ProjectedSchema returns the schema the current Payload is encoded
// against: the full store schema when Preserving, or a narrower schema
// listing only the selected attributes otherwise.
func (s *Scanner) ProjectedSchema() Schema {
	if s.proj.Preserving {
		return s.store.schema
	}
	return Schema{Attrs: s.projAttrs}
}

// Values decodes the current projected record.
func (s *Scanner) Values() ([]Value, error) {
	return DecodeRecord(s.ProjectedSchema(), s.curPayload)
}
