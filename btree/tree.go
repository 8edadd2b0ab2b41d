package btree

import (
	"github.com/sirupsen/logrus"

	"github.com/malzahar-project/dbstorage/dberr"
	"github.com/malzahar-project/dbstorage/pagefile"
	"github.com/malzahar-project/dbstorage/record"
)

// Tree is a handle to one B+-Tree index file. Page 0 holds the meta page;
// every other page is either an internal or a leaf node, self-describing
// via its 4-byte is-leaf field, so the tree never needs a separate directory
// of node kinds.
type Tree struct {
	file    *pagefile.File
	keyType KeyType
	log     *logrus.Entry
}

// Create makes a new, empty index file keying on values of keyType. The
// root starts out as a single empty leaf.
func Create(path string, keyType KeyType) (*Tree, error) {
	f, err := pagefile.Create(path)
	if err != nil {
		return nil, err
	}
	t := &Tree{file: f, keyType: keyType, log: logrus.WithField("component", "btree")}

	if _, err := f.AppendPage(make([]byte, pagefile.PageSize)); err != nil {
		f.Close()
		return nil, err
	}
	rootBuf, err := encodeLeafPage(keyType, leafPage{ParentPage: noPage, NextLeaf: noLeaf})
	if err != nil {
		f.Close()
		return nil, err
	}
	rootPN, err := f.AppendPage(rootBuf)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := t.writeMeta(metaPage{RootPage: rootPN, RootIsLeaf: true}); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// Open opens an existing index file. keyType must match the type it was
// created with; the index has no catalog of its own to recover this from.
func Open(path string, keyType KeyType) (*Tree, error) {
	f, err := pagefile.Open(path)
	if err != nil {
		return nil, err
	}
	t := &Tree{file: f, keyType: keyType, log: logrus.WithField("component", "btree")}
	if _, err := t.readMeta(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// Destroy removes an index file from disk.
func Destroy(path string) error {
	return pagefile.Destroy(path)
}

// Close flushes and releases the underlying paged file.
func (t *Tree) Close() error {
	return t.file.Close()
}

func (t *Tree) readMeta() (metaPage, error) {
	buf := make([]byte, pagefile.PageSize)
	if err := t.file.ReadPage(0, buf); err != nil {
		return metaPage{}, err
	}
	return decodeMeta(buf)
}

func (t *Tree) writeMeta(m metaPage) error {
	return t.file.WritePage(0, encodeMeta(m))
}

func (t *Tree) readRaw(pn uint32) ([]byte, error) {
	buf := make([]byte, pagefile.PageSize)
	if err := t.file.ReadPage(pn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Tree) loadInternal(pn uint32) (internalPage, error) {
	buf, err := t.readRaw(pn)
	if err != nil {
		return internalPage{}, err
	}
	return decodeInternalPage(t.keyType, buf)
}

func (t *Tree) loadLeaf(pn uint32) (leafPage, error) {
	buf, err := t.readRaw(pn)
	if err != nil {
		return leafPage{}, err
	}
	return decodeLeafPage(t.keyType, buf)
}

func (t *Tree) writeInternal(pn uint32, p internalPage) error {
	buf, err := encodeInternalPage(t.keyType, p)
	if err != nil {
		return err
	}
	return t.file.WritePage(pn, buf)
}

func (t *Tree) writeLeaf(pn uint32, p leafPage) error {
	buf, err := encodeLeafPage(t.keyType, p)
	if err != nil {
		return err
	}
	return t.file.WritePage(pn, buf)
}

func (t *Tree) appendInternal(p internalPage) (uint32, error) {
	buf, err := encodeInternalPage(t.keyType, p)
	if err != nil {
		return 0, err
	}
	return t.file.AppendPage(buf)
}

func (t *Tree) appendLeaf(p leafPage) (uint32, error) {
	buf, err := encodeLeafPage(t.keyType, p)
	if err != nil {
		return 0, err
	}
	return t.file.AppendPage(buf)
}

// setParent updates the parent pointer stored on whichever kind of node pn
// happens to be, used after a split re-parents a subtree under a new page.
func (t *Tree) setParent(pn uint32, parentPN uint32) error {
	buf, err := t.readRaw(pn)
	if err != nil {
		return err
	}
	if pageKind(buf) == pageKindLeaf {
		leaf, err := decodeLeafPage(t.keyType, buf)
		if err != nil {
			return err
		}
		leaf.ParentPage = parentPN
		return t.writeLeaf(pn, leaf)
	}
	node, err := decodeInternalPage(t.keyType, buf)
	if err != nil {
		return err
	}
	node.ParentPage = parentPN
	return t.writeInternal(pn, node)
}

// findLeaf descends from the root to the leaf that would contain key.
func (t *Tree) findLeaf(key record.Value) (uint32, error) {
	meta, err := t.readMeta()
	if err != nil {
		return 0, err
	}
	cur := meta.RootPage
	isLeaf := meta.RootIsLeaf
	for !isLeaf {
		node, err := t.loadInternal(cur)
		if err != nil {
			return 0, err
		}
		child := node.SentinelChild
		for _, e := range node.Entries {
			if compareKeys(t.keyType, key, e.Key) >= 0 {
				child = e.Child
			} else {
				break
			}
		}
		cur = child
		buf, err := t.readRaw(cur)
		if err != nil {
			return 0, err
		}
		isLeaf = pageKind(buf) == pageKindLeaf
	}
	return cur, nil
}

// beginLeaf descends from the root always taking the sentinel (leftmost)
// child, locating the leftmost leaf of the tree.
func (t *Tree) beginLeaf() (uint32, error) {
	meta, err := t.readMeta()
	if err != nil {
		return 0, err
	}
	cur := meta.RootPage
	isLeaf := meta.RootIsLeaf
	for !isLeaf {
		node, err := t.loadInternal(cur)
		if err != nil {
			return 0, err
		}
		cur = node.SentinelChild
		buf, err := t.readRaw(cur)
		if err != nil {
			return 0, err
		}
		isLeaf = pageKind(buf) == pageKindLeaf
	}
	return cur, nil
}

// Insert adds a (key, rid) entry, splitting leaves and internal nodes as
// needed and propagating a new root upward when the tree grows taller.
func (t *Tree) Insert(key record.Value, rid record.RID) error {
	leafPN, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	leaf, err := t.loadLeaf(leafPN)
	if err != nil {
		return err
	}

	idx := 0
	for idx < len(leaf.Entries) && compareKeys(t.keyType, leaf.Entries[idx].Key, key) < 0 {
		idx++
	}
	entries := make([]leafEntry, 0, len(leaf.Entries)+1)
	entries = append(entries, leaf.Entries[:idx]...)
	entries = append(entries, leafEntry{Key: key, RID: rid})
	entries = append(entries, leaf.Entries[idx:]...)
	leaf.Entries = entries

	if leaf.encodedSize(t.keyType) <= pagefile.PageSize {
		return t.writeLeaf(leafPN, leaf)
	}

	n := len(leaf.Entries)
	mid := (n + 1) / 2
	leftEntries := leaf.Entries[:mid]
	rightEntries := leaf.Entries[mid:]

	rightPN, err := t.appendLeaf(leafPage{ParentPage: leaf.ParentPage, NextLeaf: leaf.NextLeaf, Entries: rightEntries})
	if err != nil {
		return err
	}
	leaf.Entries = leftEntries
	leaf.NextLeaf = rightPN
	if err := t.writeLeaf(leafPN, leaf); err != nil {
		return err
	}

	return t.insertToParent(leafPN, leaf.ParentPage, rightEntries[0].Key, rightPN)
}

// insertToParent propagates a newly split-off right sibling (keyed by
// sepKey) into leftParentPN, recursively splitting internal nodes and
// growing the tree's root when necessary.
func (t *Tree) insertToParent(leftPN, leftParentPN uint32, sepKey record.Value, rightPN uint32) error {
	if leftParentPN == noPage {
		newRoot := internalPage{
			ParentPage:    noPage,
			SentinelChild: leftPN,
			Entries:       []internalEntry{{Key: sepKey, Child: rightPN}},
		}
		newRootPN, err := t.appendInternal(newRoot)
		if err != nil {
			return err
		}
		if err := t.setParent(leftPN, newRootPN); err != nil {
			return err
		}
		if err := t.setParent(rightPN, newRootPN); err != nil {
			return err
		}
		return t.writeMeta(metaPage{RootPage: newRootPN, RootIsLeaf: false})
	}

	parent, err := t.loadInternal(leftParentPN)
	if err != nil {
		return err
	}
	idx := 0
	for idx < len(parent.Entries) && compareKeys(t.keyType, parent.Entries[idx].Key, sepKey) < 0 {
		idx++
	}
	newEntries := make([]internalEntry, 0, len(parent.Entries)+1)
	newEntries = append(newEntries, parent.Entries[:idx]...)
	newEntries = append(newEntries, internalEntry{Key: sepKey, Child: rightPN})
	newEntries = append(newEntries, parent.Entries[idx:]...)
	parent.Entries = newEntries

	if err := t.setParent(rightPN, leftParentPN); err != nil {
		return err
	}

	if parent.encodedSize(t.keyType) <= pagefile.PageSize {
		return t.writeInternal(leftParentPN, parent)
	}

	m := len(parent.Entries)
	mid := (m + 1) / 2
	leftEntries := parent.Entries[:mid]
	rightHalf := parent.Entries[mid:]
	promoteKey := rightHalf[0].Key
	rightSentinel := rightHalf[0].Child
	rightEntries := rightHalf[1:]

	grandParentPN := parent.ParentPage
	newRight := internalPage{ParentPage: grandParentPN, SentinelChild: rightSentinel, Entries: rightEntries}
	newRightPN, err := t.appendInternal(newRight)
	if err != nil {
		return err
	}
	if err := t.setParent(rightSentinel, newRightPN); err != nil {
		return err
	}
	for _, e := range rightEntries {
		if err := t.setParent(e.Child, newRightPN); err != nil {
			return err
		}
	}

	parent.Entries = leftEntries
	if err := t.writeInternal(leftParentPN, parent); err != nil {
		return err
	}

	return t.insertToParent(leftParentPN, grandParentPN, promoteKey, newRightPN)
}

// Delete lazily removes a (key, rid) entry: the slot is marked deleted, no
// rebalancing or merging ever runs. Fails with dberr.NotFound if no
// matching live entry exists.
func (t *Tree) Delete(key record.Value, rid record.RID) error {
	leafPN, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	leaf, err := t.loadLeaf(leafPN)
	if err != nil {
		return err
	}
	for i := range leaf.Entries {
		e := &leaf.Entries[i]
		if e.Deleted {
			continue
		}
		if compareKeys(t.keyType, e.Key, key) == 0 && e.RID == rid {
			e.Deleted = true
			return t.writeLeaf(leafPN, leaf)
		}
	}
	return dberr.New(dberr.NotFound, "no matching index entry")
}
