package btree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/malzahar-project/dbstorage/record"
)

// ToString renders the tree as a pre-order JSON-like dump: each internal
// page prints its separator keys and then recurses into each child
// (sentinel first), each leaf prints its entries (including deleted ones,
// which scans suppress but printing does not) with their RIDs. Used for
// diagnostics and as a structural fingerprint in tests.
func (t *Tree) ToString() (string, error) {
	meta, err := t.readMeta()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.dumpNode(&b, meta.RootPage, meta.RootIsLeaf); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (t *Tree) dumpNode(b *strings.Builder, pn uint32, isLeaf bool) error {
	if isLeaf {
		leaf, err := t.loadLeaf(pn)
		if err != nil {
			return err
		}
		b.WriteString(`{"keys":[`)
		for i, e := range leaf.Entries {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(formatKeyJSON(t.keyType, e.Key))
		}
		b.WriteString(`],"rids":[`)
		for i, e := range leaf.Entries {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(b, "[%d,%d]", e.RID.Page, e.RID.Slot)
		}
		b.WriteString(`],"deleted":[`)
		for i, e := range leaf.Entries {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(b, "%t", e.Deleted)
		}
		b.WriteString("]}")
		return nil
	}

	node, err := t.loadInternal(pn)
	if err != nil {
		return err
	}
	b.WriteString(`{"keys":[`)
	for i, e := range node.Entries {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(formatKeyJSON(t.keyType, e.Key))
	}
	b.WriteString(`],"children":[`)
	childIsLeaf, err := t.childIsLeaf(node.SentinelChild)
	if err != nil {
		return err
	}
	if err := t.dumpNode(b, node.SentinelChild, childIsLeaf); err != nil {
		return err
	}
	for _, e := range node.Entries {
		b.WriteString(",")
		childIsLeaf, err := t.childIsLeaf(e.Child)
		if err != nil {
			return err
		}
		if err := t.dumpNode(b, e.Child, childIsLeaf); err != nil {
			return err
		}
	}
	b.WriteString("]}")
	return nil
}

func (t *Tree) childIsLeaf(pn uint32) (bool, error) {
	buf, err := t.readRaw(pn)
	if err != nil {
		return false, err
	}
	return pageKind(buf) == pageKindLeaf, nil
}

// formatKeyJSON renders a key as a JSON scalar: a bare number for Int/Real,
// a quoted string for VarChar.
func formatKeyJSON(kt KeyType, v record.Value) string {
	switch kt {
	case record.Int:
		return fmt.Sprintf("%d", v.AsInt())
	case record.Real:
		return fmt.Sprintf("%g", v.AsReal())
	case record.VarChar:
		return strconv.Quote(v.AsString())
	default:
		return "null"
	}
}
