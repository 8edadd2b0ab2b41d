package main

import (
	"os"

	"github.com/malzahar-project/dbstorage/btree"
	"github.com/malzahar-project/dbstorage/record"
)

// idIndex is a thin single-attribute B+-Tree index over the demo schema's
// id column, keeping insert/lookup/delete in one place instead of
// scattering key encoding across main.go.
type idIndex struct {
	tree *btree.Tree
}

func openOrCreateIndex(path string) (*idIndex, error) {
	if _, err := os.Stat(path); err == nil {
		tr, err := btree.Open(path, record.Int)
		if err != nil {
			return nil, err
		}
		return &idIndex{tree: tr}, nil
	}
	tr, err := btree.Create(path, record.Int)
	if err != nil {
		return nil, err
	}
	return &idIndex{tree: tr}, nil
}

func (x *idIndex) insert(id int32, rid record.RID) error {
	return x.tree.Insert(record.IntValue(id), rid)
}

func (x *idIndex) delete(id int32, rid record.RID) error {
	return x.tree.Delete(record.IntValue(id), rid)
}

// lookup returns the first live RID for id, if any.
func (x *idIndex) lookup(id int32) (record.RID, bool, error) {
	key := record.IntValue(id)
	sc, err := x.tree.Scan(&btree.Bound{Key: key, Inclusive: true}, &btree.Bound{Key: key, Inclusive: true})
	if err != nil {
		return record.RID{}, false, err
	}
	ok, err := sc.Next()
	if err != nil {
		return record.RID{}, false, err
	}
	if !ok {
		return record.RID{}, false, nil
	}
	return sc.RID(), true, nil
}
