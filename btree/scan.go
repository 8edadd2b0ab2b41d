package btree

import (
	"github.com/malzahar-project/dbstorage/record"
)

// Bound is one side of a range scan: a key and whether it is inclusive.
type Bound struct {
	Key       record.Value
	Inclusive bool
}

// Scanner walks live (non-deleted) index entries in ascending key order
// within an optional [lo, hi] range, following the leaf chain's next-leaf
// pointers. It never visits internal pages once positioned on the first
// leaf — a queue-free linear walk, since the leaf chain already gives
// ascending order.
type Scanner struct {
	tree *Tree
	hi   *Bound

	curLeafPN uint32
	nextLeaf  uint32
	entries   []leafEntry
	pos       int
	exhausted bool

	curKey record.Value
	curRID record.RID
}

// Scan opens a range scanner. A nil lo starts at the leftmost leaf; a nil
// hi never stops on the upper bound.
func (t *Tree) Scan(lo, hi *Bound) (*Scanner, error) {
	var leafPN uint32
	var err error
	if lo == nil {
		leafPN, err = t.beginLeaf()
	} else {
		leafPN, err = t.findLeaf(lo.Key)
	}
	if err != nil {
		return nil, err
	}
	leaf, err := t.loadLeaf(leafPN)
	if err != nil {
		return nil, err
	}
	pos := 0
	if lo != nil {
		for pos < len(leaf.Entries) {
			cmp := compareKeys(t.keyType, leaf.Entries[pos].Key, lo.Key)
			if cmp > 0 || (cmp == 0 && lo.Inclusive) {
				break
			}
			pos++
		}
	}
	return &Scanner{
		tree:      t,
		hi:        hi,
		curLeafPN: leafPN,
		nextLeaf:  leaf.NextLeaf,
		entries:   leaf.Entries,
		pos:       pos,
	}, nil
}

// Next advances to the next live, in-range entry. Returns false once the
// scan is exhausted or the upper bound has been passed.
func (s *Scanner) Next() (bool, error) {
	if s.exhausted {
		return false, nil
	}
	for {
		if s.pos >= len(s.entries) {
			if s.nextLeaf == noLeaf {
				s.exhausted = true
				return false, nil
			}
			s.curLeafPN = s.nextLeaf
			next, err := s.tree.loadLeaf(s.curLeafPN)
			if err != nil {
				return false, err
			}
			s.entries = next.Entries
			s.nextLeaf = next.NextLeaf
			s.pos = 0
			continue
		}
		e := s.entries[s.pos]
		s.pos++
		if e.Deleted {
			continue
		}
		if s.hi != nil {
			cmp := compareKeys(s.tree.keyType, e.Key, s.hi.Key)
			if cmp > 0 || (cmp == 0 && !s.hi.Inclusive) {
				s.exhausted = true
				return false, nil
			}
		}
		s.curKey = e.Key
		s.curRID = e.RID
		return true, nil
	}
}

// Key returns the current entry's key.
func (s *Scanner) Key() record.Value { return s.curKey }

// RID returns the current entry's RID.
func (s *Scanner) RID() record.RID { return s.curRID }
