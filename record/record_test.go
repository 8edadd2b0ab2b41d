package record

import (
	"path/filepath"
	"testing"

	"github.com/malzahar-project/dbstorage/dberr"
)

func testSchema() Schema {
	return Schema{Attrs: []AttrDescriptor{
		{Name: "id", Type: Int},
		{Name: "score", Type: Real},
		{Name: "name", Type: VarChar, Length: 64},
	}}
}

func mustCreate(t *testing.T, schema Schema) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recs.db")
	st, err := Create(path, schema)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return st, path
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := testSchema()
	values := []Value{IntValue(42), RealValue(3.5), VarCharValue("hello")}
	payload, err := EncodeRecord(s, values)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	got, err := DecodeRecord(s, payload)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if got[0].AsInt() != 42 || got[1].AsReal() != 3.5 || got[2].AsString() != "hello" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEncodeDecodeWithNulls(t *testing.T) {
	s := testSchema()
	values := []Value{IntValue(1), NullValue(), VarCharValue("")}
	payload, err := EncodeRecord(s, values)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	got, err := DecodeRecord(s, payload)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if got[0].AsInt() != 1 {
		t.Fatalf("attr 0 mismatch")
	}
	if !got[1].Null {
		t.Fatalf("attr 1 should be null")
	}
	if got[2].Null || got[2].AsString() != "" {
		t.Fatalf("attr 2 should be non-null empty string, got %+v", got[2])
	}
}

func TestInsertReadDelete(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	rid, err := st.InsertRecord([]Value{IntValue(7), RealValue(1.25), VarCharValue("abc")})
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if rid.Page != 0 || rid.Slot != 0 {
		t.Fatalf("first insert into a fresh store = %+v, want (0,0)", rid)
	}

	values, err := st.ReadRecord(rid)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if values[0].AsInt() != 7 || values[2].AsString() != "abc" {
		t.Fatalf("unexpected values: %+v", values)
	}

	if err := st.DeleteRecord(rid); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, err := st.ReadRecord(rid); !dberr.Is(err, dberr.NotFound) {
		t.Fatalf("ReadRecord after delete = %v, want NotFound", err)
	}
	if err := st.DeleteRecord(rid); !dberr.Is(err, dberr.NotFound) {
		t.Fatalf("double delete = %v, want NotFound", err)
	}
}

func TestInsertReusesTombstonedSlot(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	rid1, err := st.InsertRecord([]Value{IntValue(1), RealValue(0), VarCharValue("x")})
	if err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if err := st.DeleteRecord(rid1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rid2, err := st.InsertRecord([]Value{IntValue(2), RealValue(0), VarCharValue("y")})
	if err != nil {
		t.Fatalf("insert 2: %v", err)
	}
	if rid2.Page != rid1.Page || rid2.Slot != rid1.Slot {
		t.Fatalf("expected tombstoned slot reuse, got rid1=%+v rid2=%+v", rid1, rid2)
	}
	got, err := st.ReadRecord(rid2)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got[0].AsInt() != 2 {
		t.Fatalf("reused slot did not carry the new value")
	}
}

func TestReadAttributeAndSprintRecord(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	rid, err := st.InsertRecord([]Value{IntValue(9), RealValue(2.5), VarCharValue("zz")})
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	v, err := st.ReadAttribute(rid, "name")
	if err != nil {
		t.Fatalf("ReadAttribute: %v", err)
	}
	if v.AsString() != "zz" {
		t.Fatalf("ReadAttribute = %q, want zz", v.AsString())
	}
	if _, err := st.ReadAttribute(rid, "nope"); !dberr.Is(err, dberr.BadArgument) {
		t.Fatalf("ReadAttribute(unknown) = %v, want BadArgument", err)
	}

	s, err := st.SprintRecord(rid)
	if err != nil {
		t.Fatalf("SprintRecord: %v", err)
	}
	if s == "" {
		t.Fatalf("SprintRecord returned empty string")
	}
}

func TestScanWithCondition(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	for i := int32(0); i < 5; i++ {
		if _, err := st.InsertRecord([]Value{IntValue(i), RealValue(0), VarCharValue("r")}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	sc, err := st.Scan(Condition{Attr: "id", Op: Gt, Value: IntValue(2)}, Projection{})
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
		values, err := sc.Values()
		if err != nil {
			t.Fatalf("Values: %v", err)
		}
		if values[0].AsInt() <= 2 {
			t.Fatalf("predicate violated: got id=%d", values[0].AsInt())
		}
		count++
	}
	if count != 2 {
		t.Fatalf("matched %d records, want 2", count)
	}
}

func TestScanProjectionPreservingVsCompressed(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	if _, err := st.InsertRecord([]Value{IntValue(11), RealValue(1), VarCharValue("p")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	preserving, err := st.Scan(Condition{}, Projection{Attrs: []string{"id"}, Preserving: true})
	if err != nil {
		t.Fatalf("Scan preserving: %v", err)
	}
	ok, err := preserving.Next()
	if err != nil || !ok {
		t.Fatalf("Next preserving: ok=%v err=%v", ok, err)
	}
	pv, err := preserving.Values()
	if err != nil {
		t.Fatalf("Values preserving: %v", err)
	}
	if len(pv) != 3 {
		t.Fatalf("preserving projection changed arity: got %d, want 3", len(pv))
	}
	if pv[0].AsInt() != 11 || !pv[1].Null || !pv[2].Null {
		t.Fatalf("preserving projection mismatch: %+v", pv)
	}

	compressed, err := st.Scan(Condition{}, Projection{Attrs: []string{"id"}})
	if err != nil {
		t.Fatalf("Scan compressed: %v", err)
	}
	ok, err = compressed.Next()
	if err != nil || !ok {
		t.Fatalf("Next compressed: ok=%v err=%v", ok, err)
	}
	cv, err := compressed.Values()
	if err != nil {
		t.Fatalf("Values compressed: %v", err)
	}
	if len(cv) != 1 || cv[0].AsInt() != 11 {
		t.Fatalf("compressed projection mismatch: %+v", cv)
	}
}

func TestScanSkipsTombstones(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	rid, err := st.InsertRecord([]Value{IntValue(1), RealValue(0), VarCharValue("a")})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.InsertRecord([]Value{IntValue(2), RealValue(0), VarCharValue("b")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.DeleteRecord(rid); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sc, err := st.Scan(Condition{}, Projection{})
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
		count++
	}
	if count != 1 {
		t.Fatalf("scan returned %d records, want 1 (tombstone should be skipped)", count)
	}
}

func TestRealComparisonUsesTolerance(t *testing.T) {
	a := RealValue(1.0001)
	b := RealValue(1.0002)
	if compareValues(Real, a, b) != 0 {
		t.Fatalf("values within tolerance should compare equal")
	}
	c := RealValue(1.1)
	if compareValues(Real, a, c) == 0 {
		t.Fatalf("values outside tolerance should not compare equal")
	}
}

func TestVarCharComparisonIsLexicographic(t *testing.T) {
	if compareValues(VarChar, VarCharValue(""), VarCharValue("a")) >= 0 {
		t.Fatalf("empty string should sort before non-empty")
	}
	if compareValues(VarChar, VarCharValue("abc"), VarCharValue("abd")) >= 0 {
		t.Fatalf("abc should sort before abd")
	}
	if compareValues(VarChar, VarCharValue("abc"), VarCharValue("abc")) != 0 {
		t.Fatalf("identical strings should compare equal")
	}
}

func TestOpenWithCallerSuppliedSchema(t *testing.T) {
	st, path := mustCreate(t, testSchema())
	rid, err := st.InsertRecord([]Value{IntValue(5), RealValue(0.5), VarCharValue("reopen")})
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, testSchema())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	if len(reopened.Schema().Attrs) != 3 {
		t.Fatalf("schema has %d attrs, want 3", len(reopened.Schema().Attrs))
	}
	values, err := reopened.ReadRecord(rid)
	if err != nil {
		t.Fatalf("ReadRecord after reopen: %v", err)
	}
	if values[2].AsString() != "reopen" {
		t.Fatalf("ReadRecord after reopen mismatch: %+v", values)
	}
}

func TestInsertRecordTooLargeFails(t *testing.T) {
	st, _ := mustCreate(t, testSchema())
	defer st.Close()

	huge := make([]byte, 8192)
	for i := range huge {
		huge[i] = 'x'
	}
	_, err := st.InsertRecord([]Value{IntValue(1), RealValue(0), VarCharValue(string(huge))})
	if !dberr.Is(err, dberr.OutOfSpace) {
		t.Fatalf("InsertRecord(huge) = %v, want OutOfSpace", err)
	}
}
