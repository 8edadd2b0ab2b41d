package btree

import (
	"path/filepath"
	"testing"

	"github.com/malzahar-project/dbstorage/dberr"
	"github.com/malzahar-project/dbstorage/record"
)

func mustCreate(t *testing.T, kt KeyType) (*Tree, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idx.db")
	tr, err := Create(path, kt)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tr, path
}

func TestInsertFindSingleEntry(t *testing.T) {
	tr, _ := mustCreate(t, record.Int)
	defer tr.Close()

	rid := record.RID{Page: 1, Slot: 0}
	if err := tr.Insert(record.IntValue(42), rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	sc, err := tr.Scan(&Bound{Key: record.IntValue(42), Inclusive: true}, &Bound{Key: record.IntValue(42), Inclusive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	ok, err := sc.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if sc.RID() != rid {
		t.Fatalf("RID = %+v, want %+v", sc.RID(), rid)
	}
	ok, err = sc.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected only one matching entry")
	}
}

func TestInsertManyForcesSplitsAndScanIsOrdered(t *testing.T) {
	tr, _ := mustCreate(t, record.Int)
	defer tr.Close()

	const n = 800
	for i := int32(n - 1); i >= 0; i-- {
		rid := record.RID{Page: uint32(i) + 1, Slot: 0}
		if err := tr.Insert(record.IntValue(i), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	sc, err := tr.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var last int32 = -1
	count := 0
	for {
		ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		k := sc.Key().AsInt()
		if k <= last {
			t.Fatalf("scan not ascending: %d after %d", k, last)
		}
		last = k
		count++
	}
	if count != n {
		t.Fatalf("scanned %d entries, want %d", count, n)
	}
}

func TestRangeScanBounds(t *testing.T) {
	tr, _ := mustCreate(t, record.Int)
	defer tr.Close()

	for i := int32(0); i < 100; i++ {
		if err := tr.Insert(record.IntValue(i), record.RID{Page: uint32(i) + 1, Slot: 0}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	sc, err := tr.Scan(&Bound{Key: record.IntValue(10), Inclusive: true}, &Bound{Key: record.IntValue(20), Inclusive: false})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []int32
	for {
		ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, sc.Key().AsInt())
	}
	if len(got) != 10 {
		t.Fatalf("got %d entries, want 10: %v", len(got), got)
	}
	if got[0] != 10 || got[len(got)-1] != 19 {
		t.Fatalf("range mismatch: %v", got)
	}
}

func TestDeleteIsLazyAndSkippedByScan(t *testing.T) {
	tr, _ := mustCreate(t, record.Int)
	defer tr.Close()

	rid := record.RID{Page: 5, Slot: 2}
	if err := tr.Insert(record.IntValue(7), rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(record.IntValue(8), record.RID{Page: 5, Slot: 3}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Delete(record.IntValue(7), rid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tr.Delete(record.IntValue(7), rid); !dberr.Is(err, dberr.NotFound) {
		t.Fatalf("double delete = %v, want NotFound", err)
	}

	sc, err := tr.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	count := 0
	for {
		ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if sc.Key().AsInt() == 7 {
			t.Fatalf("deleted key 7 should not appear in scan")
		}
		count++
	}
	if count != 1 {
		t.Fatalf("scan count = %d, want 1", count)
	}
}

func TestVarCharKeys(t *testing.T) {
	tr, _ := mustCreate(t, record.VarChar)
	defer tr.Close()

	words := []string{"pear", "apple", "banana", "kiwi", "grape"}
	for i, w := range words {
		if err := tr.Insert(record.VarCharValue(w), record.RID{Page: uint32(i) + 1, Slot: 0}); err != nil {
			t.Fatalf("Insert(%q): %v", w, err)
		}
	}

	sc, err := tr.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []string
	for {
		ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, sc.Key().AsString())
	}
	want := []string{"apple", "banana", "grape", "kiwi", "pear"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOpenRecoversRoot(t *testing.T) {
	tr, path := mustCreate(t, record.Int)
	if err := tr.Insert(record.IntValue(1), record.RID{Page: 1, Slot: 0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, record.Int)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	sc, err := reopened.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	ok, err := sc.Next()
	if err != nil || !ok {
		t.Fatalf("Next after reopen: ok=%v err=%v", ok, err)
	}
	if sc.Key().AsInt() != 1 {
		t.Fatalf("unexpected key after reopen: %d", sc.Key().AsInt())
	}
}

func TestToStringProducesNonEmptyDump(t *testing.T) {
	tr, _ := mustCreate(t, record.Int)
	defer tr.Close()

	for i := int32(0); i < 50; i++ {
		if err := tr.Insert(record.IntValue(i), record.RID{Page: uint32(i) + 1, Slot: 0}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	s, err := tr.ToString()
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if s == "" {
		t.Fatalf("ToString returned empty dump")
	}
}
