// Package index adapts internal/btree into the byte-string keyed ordered
// map spec.md §4.2 describes: point lookup, upsert, delete, and an
// inclusive, optionally-open-ended range scan over raw []byte keys.
package index

import (
	"github.com/bobboyms/kvstore/internal/btree"
	"github.com/bobboyms/kvstore/internal/btreekey"
)

// DefaultDegree is the B+ tree minimum degree used by Index. 64 keeps
// leaves and internal nodes a handful of cache lines wide for typical
// short command-line keys, well inside the 32-128 range spec.md recommends.
const DefaultDegree = 64

// Index is the in-memory ordered map of live keys to their current value.
type Index struct {
	tree *btree.BPlusTree
}

func New() *Index {
	return &Index{tree: btree.New(DefaultDegree)}
}

func (ix *Index) Get(key []byte) ([]byte, bool) {
	return ix.tree.Get(btreekey.Bytes(key))
}

func (ix *Index) Put(key, value []byte) {
	ix.tree.Put(btreekey.Bytes(key), value)
}

func (ix *Index) Delete(key []byte) bool {
	return ix.tree.Delete(btreekey.Bytes(key))
}

// Range returns a Cursor positioned at the first live key >= lo (or the
// very first key if lo is nil). The caller drives iteration with Next and
// must stop once Valid() is false or the key exceeds hi.
func (ix *Index) Range(lo []byte) *Cursor {
	c := &Cursor{tree: ix.tree}
	c.seek(lo)
	return c
}

// Cursor walks the leaf linked list in ascending key order, skipping
// exhausted leaves. It has no notion of "hi" itself — the caller (engine)
// stops advancing once the key is out of range, since spec.md's range
// bound may need expiry materialization before the comparison is final.
type Cursor struct {
	tree *btree.BPlusTree
	node *btree.Node
	idx  int
}

func (c *Cursor) seek(lo []byte) {
	var key btreekey.Comparable
	if lo != nil {
		key = btreekey.Bytes(lo)
	}

	leaf, idx := c.tree.FindLeafLowerBound(key)
	for leaf != nil && idx >= leaf.N {
		leaf = leaf.Next
		idx = 0
	}
	c.node = leaf
	c.idx = idx
}

// Valid reports whether the cursor currently sits on a live entry.
func (c *Cursor) Valid() bool {
	return c.node != nil && c.idx < c.node.N
}

// Key returns the key at the cursor. Only valid while Valid() is true.
func (c *Cursor) Key() []byte {
	return []byte(c.node.Keys[c.idx].(btreekey.Bytes))
}

// Value returns the value at the cursor. Only valid while Valid() is true.
func (c *Cursor) Value() []byte {
	return c.node.Values[c.idx]
}

// Next advances the cursor to the next live entry, returning false once
// the leaf chain is exhausted.
func (c *Cursor) Next() bool {
	if c.node == nil {
		return false
	}

	if c.idx+1 < c.node.N {
		c.idx++
		return true
	}

	c.node = c.node.Next
	c.idx = 0
	for c.node != nil && c.node.N == 0 {
		c.node = c.node.Next
	}

	return c.node != nil
}
