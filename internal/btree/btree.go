// Package btree implements an in-memory B+ tree: all values live in
// leaves, and leaves are chained in key order so a range scan is a single
// descent followed by a linear walk of the leaf list.
//
// This engine is single-threaded by contract (see spec §5), so unlike the
// teacher's latch-crabbing B+ tree, no node carries its own lock; the
// caller (internal/engine) never calls into the tree concurrently.
package btree

import (
	"github.com/bobboyms/kvstore/internal/btreekey"
)

// BPlusTree is an ordered map from btreekey.Comparable to []byte.
type BPlusTree struct {
	T    int
	Root *Node
}

// New creates a tree with minimum degree t (recommended 32-128).
func New(t int) *BPlusTree {
	return &BPlusTree{
		T:    t,
		Root: NewNode(t, true),
	}
}

// Put inserts or overwrites key with value.
func (b *BPlusTree) Put(key btreekey.Comparable, value []byte) {
	_ = b.Upsert(key, func(_ []byte, _ bool) ([]byte, error) {
		return value, nil
	})
}

// Upsert runs fn against the key's current value (if any) and stores the result.
// The callback sees the previous value and whether the key existed.
func (b *BPlusTree) Upsert(key btreekey.Comparable, fn func(oldValue []byte, exists bool) (newValue []byte, err error)) error {
	root := b.Root

	if root.IsFull() {
		newRoot := NewNode(b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		return b.upsertTopDown(newRoot, key, fn)
	}

	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends to the owning leaf, splitting any full child it
// passes through (preventive splitting), then applies fn at the leaf.
func (b *BPlusTree) upsertTopDown(curr *Node, key btreekey.Comparable, fn func(oldValue []byte, exists bool) (newValue []byte, err error)) error {
	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		if child.IsFull() {
			curr.SplitChild(i)
			if key.Compare(curr.Keys[i]) >= 0 {
				child = curr.Children[i+1]
			}
		}
		curr = child
	}

	return curr.UpsertNonFull(key, fn)
}

// Get returns the value for key, if present.
func (b *BPlusTree) Get(key btreekey.Comparable) ([]byte, bool) {
	curr := b.Root
	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		curr = curr.Children[i]
	}

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return nil, false
}

// Delete removes key, reporting whether it was present. Underflowing
// leaves merge or redistribute with a sibling; the root shrinks only when
// it becomes empty.
func (b *BPlusTree) Delete(key btreekey.Comparable) bool {
	removed := b.Root.Remove(key)
	if !b.Root.Leaf && b.Root.N == 0 {
		b.Root = b.Root.Children[0]
	}
	return removed
}

// FindLeafLowerBound returns the leaf and in-leaf index of the first key
// >= key (or the first live entry overall if key is nil). The leaf is nil
// when no such key exists.
func (b *BPlusTree) FindLeafLowerBound(key btreekey.Comparable) (*Node, int) {
	return b.Root.findLeafLowerBound(key)
}
