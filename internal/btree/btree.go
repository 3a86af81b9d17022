package btree

import (
	"sort"
)

// Tree is a persistent B+tree over string keys: all (key, entry) pairs live
// in leaves, which are chained for in-order scans; internal nodes hold only
// separator keys and child offsets. Keys compare as raw UTF-8 bytes (Go's
// native string ordering) — no locale-aware collation.
type Tree struct {
	cache *nodeCache
	root  uint32 // NoOffset means the tree has never been written to
}

// Open attaches a Tree to storage that already contains a root node at
// rootOffset (or NoOffset for a brand-new, empty tree).
func Open(io PageIO, rootOffset uint32, cacheSize int) *Tree {
	return &Tree{cache: newNodeCache(io, cacheSize), root: rootOffset}
}

// Root returns the current root node's offset, NoOffset if the tree is
// empty. Callers persist this in their own file header.
func (t *Tree) Root() uint32 { return t.root }

// Sync flushes every dirty cached node to the underlying PageIO.
func (t *Tree) Sync() error { return t.cache.flush() }

// Find returns the leaf entry for key, if present.
func (t *Tree) Find(key string) (LeafEntry, bool, error) {
	if t.root == NoOffset {
		return LeafEntry{}, false, nil
	}
	leaf, err := t.descendToLeaf(key)
	if err != nil {
		return LeafEntry{}, false, err
	}
	idx, found := searchLeaf(leaf, key)
	if !found {
		return LeafEntry{}, false, nil
	}
	return leaf.Entries[idx], true, nil
}

// descendToLeaf walks from the root to the leaf that would hold key.
func (t *Tree) descendToLeaf(key string) (*Node, error) {
	offset := t.root
	for {
		n, err := t.cache.get(offset)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf {
			return n, nil
		}
		offset = n.Children[childIndex(n.Keys, key)]
	}
}

// childIndex returns the index of the child to descend into for key: the
// first i with key < keys[i], or len(keys) (rightmost child) if none.
func childIndex(keys []string, key string) int {
	return sort.Search(len(keys), func(i int) bool { return key < keys[i] })
}

// searchLeaf returns the index of key in a leaf's sorted key slice.
func searchLeaf(n *Node, key string) (int, bool) {
	i := sort.Search(len(n.Keys), func(i int) bool { return n.Keys[i] >= key })
	if i < len(n.Keys) && n.Keys[i] == key {
		return i, true
	}
	return i, false
}

// Insert writes (key, entry), creating the tree's first node if empty,
// upserting in place if key already exists, and splitting nodes (bottom up)
// on overflow.
func (t *Tree) Insert(key string, entry LeafEntry) error {
	if t.root == NoOffset {
		offset, err := t.cache.alloc()
		if err != nil {
			return err
		}
		leaf := &Node{Self: offset, IsLeaf: true, Parent: NoOffset, NextLeaf: NoOffset,
			Keys: []string{key}, Entries: []LeafEntry{entry}}
		t.cache.put(leaf)
		t.root = offset
		return nil
	}

	path, err := t.descendWithPath(key)
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]

	idx, found := searchLeaf(leaf, key)
	if found {
		leaf.Entries[idx] = entry
		t.cache.put(leaf)
		return nil
	}
	leaf.Keys = insertStringAt(leaf.Keys, idx, key)
	leaf.Entries = insertEntryAt(leaf.Entries, idx, entry)
	t.cache.put(leaf)

	if len(leaf.Keys) <= MaxKeys {
		return nil
	}
	return t.splitUp(path)
}

// descendWithPath walks root-to-leaf for key, returning every node visited
// (root first, leaf last), all pinned in the cache.
func (t *Tree) descendWithPath(key string) ([]*Node, error) {
	var path []*Node
	offset := t.root
	for {
		n, err := t.cache.get(offset)
		if err != nil {
			return nil, err
		}
		path = append(path, n)
		if n.IsLeaf {
			return path, nil
		}
		offset = n.Children[childIndex(n.Keys, key)]
	}
}

// splitUp splits the overflowing node at the end of path and propagates the
// resulting (separator key, new right sibling) pair up through its
// ancestors, creating a new root if the split reaches the top.
func (t *Tree) splitUp(path []*Node) error {
	node := path[len(path)-1]

	rightOffset, err := t.cache.alloc()
	if err != nil {
		return err
	}

	var promoted string
	var right *Node

	if node.IsLeaf {
		mid := len(node.Keys) / 2
		right = &Node{
			Self: rightOffset, IsLeaf: true, Parent: node.Parent,
			Keys:     append([]string{}, node.Keys[mid:]...),
			Entries:  append([]LeafEntry{}, node.Entries[mid:]...),
			NextLeaf: node.NextLeaf,
		}
		node.Keys = node.Keys[:mid]
		node.Entries = node.Entries[:mid]
		node.NextLeaf = rightOffset
		promoted = right.Keys[0]
	} else {
		mid := len(node.Keys) / 2
		promoted = node.Keys[mid]
		right = &Node{
			Self: rightOffset, IsLeaf: false, Parent: node.Parent,
			Keys:     append([]string{}, node.Keys[mid+1:]...),
			Children: append([]uint32{}, node.Children[mid+1:]...),
		}
		node.Keys = node.Keys[:mid]
		node.Children = node.Children[:mid+1]
		if err := t.reparent(right.Children, rightOffset); err != nil {
			return err
		}
	}

	t.cache.put(node)
	t.cache.put(right)

	if len(path) == 1 {
		// node was the root: grow a new root above both halves.
		newRootOffset, err := t.cache.alloc()
		if err != nil {
			return err
		}
		newRoot := &Node{
			Self: newRootOffset, IsLeaf: false, Parent: NoOffset,
			Keys:     []string{promoted},
			Children: []uint32{node.Self, right.Self},
		}
		node.Parent = newRootOffset
		right.Parent = newRootOffset
		t.cache.put(node)
		t.cache.put(right)
		t.cache.put(newRoot)
		t.root = newRootOffset
		return nil
	}

	parent := path[len(path)-2]
	idx := childPosition(parent, node.Self)
	parent.Keys = insertStringAt(parent.Keys, idx, promoted)
	parent.Children = insertU32At(parent.Children, idx+1, right.Self)
	t.cache.put(parent)

	if len(parent.Keys) <= MaxKeys {
		return nil
	}
	return t.splitUp(path[:len(path)-1])
}

// reparent updates the Parent field of every child offset in children to
// newParent, persisting the change.
func (t *Tree) reparent(children []uint32, newParent uint32) error {
	for _, childOffset := range children {
		child, err := t.cache.get(childOffset)
		if err != nil {
			return err
		}
		child.Parent = newParent
		t.cache.put(child)
	}
	return nil
}

// childPosition finds the index of childSelf within parent.Children.
func childPosition(parent *Node, childSelf uint32) int {
	for i, c := range parent.Children {
		if c == childSelf {
			return i
		}
	}
	return -1
}

func insertStringAt(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertEntryAt(s []LeafEntry, i int, v LeafEntry) []LeafEntry {
	s = append(s, LeafEntry{})
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertU32At(s []uint32, i int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Remove deletes key, if present; removing an absent key is a no-op.
func (t *Tree) Remove(key string) error {
	if t.root == NoOffset {
		return nil
	}
	path, err := t.descendWithPath(key)
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]
	idx, found := searchLeaf(leaf, key)
	if !found {
		return nil
	}
	leaf.Keys = append(leaf.Keys[:idx], leaf.Keys[idx+1:]...)
	leaf.Entries = append(leaf.Entries[:idx], leaf.Entries[idx+1:]...)
	t.cache.put(leaf)

	return t.rebalanceUp(path)
}

// rebalanceUp restores the min-keys invariant from the leaf at the end of
// path upward, borrowing from a sibling or merging as needed.
func (t *Tree) rebalanceUp(path []*Node) error {
	node := path[len(path)-1]

	if len(path) == 1 {
		// Root: no min-keys constraint, but collapse a single-child
		// internal root.
		if !node.IsLeaf && len(node.Children) == 1 {
			onlyChild, err := t.cache.get(node.Children[0])
			if err != nil {
				return err
			}
			onlyChild.Parent = NoOffset
			t.cache.put(onlyChild)
			t.cache.release(node.Self)
			t.root = onlyChild.Self
		}
		return nil
	}

	if len(node.Keys) >= MinKeys {
		return nil
	}

	parent := path[len(path)-2]
	idx := childPosition(parent, node.Self)

	// Prefer borrowing from / merging with the left sibling when one
	// exists, else the right.
	if idx > 0 {
		leftOffset := parent.Children[idx-1]
		left, err := t.cache.get(leftOffset)
		if err != nil {
			return err
		}
		if len(left.Keys) > MinKeys {
			return t.borrowFromLeft(parent, idx, left, node)
		}
		if err := t.mergeWithLeft(parent, idx, left, node); err != nil {
			return err
		}
		return t.rebalanceUp(path[:len(path)-1])
	}

	rightOffset := parent.Children[idx+1]
	right, err := t.cache.get(rightOffset)
	if err != nil {
		return err
	}
	if len(right.Keys) > MinKeys {
		return t.borrowFromRight(parent, idx, node, right)
	}
	if err := t.mergeWithLeft(parent, idx+1, node, right); err != nil {
		return err
	}
	return t.rebalanceUp(path[:len(path)-1])
}

// borrowFromLeft moves left's last key/child into node (at parent index
// idx, so node is parent.Children[idx] and left is parent.Children[idx-1]).
func (t *Tree) borrowFromLeft(parent *Node, idx int, left, node *Node) error {
	if node.IsLeaf {
		lastKey := left.Keys[len(left.Keys)-1]
		lastEntry := left.Entries[len(left.Entries)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.Entries = left.Entries[:len(left.Entries)-1]
		node.Keys = insertStringAt(node.Keys, 0, lastKey)
		node.Entries = insertEntryAt(node.Entries, 0, lastEntry)
		parent.Keys[idx-1] = node.Keys[0]
	} else {
		borrowedKey := left.Keys[len(left.Keys)-1]
		borrowedChild := left.Children[len(left.Children)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.Children = left.Children[:len(left.Children)-1]

		node.Keys = insertStringAt(node.Keys, 0, parent.Keys[idx-1])
		node.Children = insertU32At(node.Children, 0, borrowedChild)
		parent.Keys[idx-1] = borrowedKey

		child, err := t.cache.get(borrowedChild)
		if err != nil {
			return err
		}
		child.Parent = node.Self
		t.cache.put(child)
	}
	t.cache.put(left)
	t.cache.put(node)
	t.cache.put(parent)
	return nil
}

// borrowFromRight moves right's first key/child into node (node is
// parent.Children[idx], right is parent.Children[idx+1]).
func (t *Tree) borrowFromRight(parent *Node, idx int, node, right *Node) error {
	if node.IsLeaf {
		firstKey := right.Keys[0]
		firstEntry := right.Entries[0]
		right.Keys = right.Keys[1:]
		right.Entries = right.Entries[1:]
		node.Keys = append(node.Keys, firstKey)
		node.Entries = append(node.Entries, firstEntry)
		parent.Keys[idx] = right.Keys[0]
	} else {
		borrowedKey := right.Keys[0]
		borrowedChild := right.Children[0]
		right.Keys = right.Keys[1:]
		right.Children = right.Children[1:]

		node.Keys = append(node.Keys, parent.Keys[idx])
		node.Children = append(node.Children, borrowedChild)
		parent.Keys[idx] = borrowedKey

		child, err := t.cache.get(borrowedChild)
		if err != nil {
			return err
		}
		child.Parent = node.Self
		t.cache.put(child)
	}
	t.cache.put(right)
	t.cache.put(node)
	t.cache.put(parent)
	return nil
}

// mergeWithLeft absorbs parent.Children[rightIdx] into
// parent.Children[rightIdx-1] ("left"), removing the separator key and the
// right child pointer from parent.
func (t *Tree) mergeWithLeft(parent *Node, rightIdx int, left, right *Node) error {
	if left.IsLeaf {
		left.Keys = append(left.Keys, right.Keys...)
		left.Entries = append(left.Entries, right.Entries...)
		left.NextLeaf = right.NextLeaf
	} else {
		left.Keys = append(left.Keys, parent.Keys[rightIdx-1])
		left.Keys = append(left.Keys, right.Keys...)
		left.Children = append(left.Children, right.Children...)
		if err := t.reparent(right.Children, left.Self); err != nil {
			return err
		}
	}
	parent.Keys = append(parent.Keys[:rightIdx-1], parent.Keys[rightIdx:]...)
	parent.Children = append(parent.Children[:rightIdx], parent.Children[rightIdx+1:]...)

	t.cache.put(left)
	t.cache.put(parent)
	t.cache.release(right.Self)
	return nil
}

// BulkInsert sorts pairs by key and inserts each; pairs need not be
// pre-sorted. Simpler than a dedicated leaf-streaming bulk loader, and
// still linear-ish in practice since each insert lands near the previous
// one once pairs are sorted.
func (t *Tree) BulkInsert(pairs map[string]LeafEntry) error {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := t.Insert(k, pairs[k]); err != nil {
			return err
		}
	}
	return nil
}

// BulkRemove deletes every key in keys (absent keys are no-ops).
func (t *Tree) BulkRemove(keys []string) error {
	sorted := append([]string{}, keys...)
	sort.Strings(sorted)
	for _, k := range sorted {
		if err := t.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// Scan walks every (key, entry) pair in ascending lexicographic key order
// via leftmost-leaf descent and leaf chaining.
func (t *Tree) Scan() ([]string, []LeafEntry, error) {
	var keys []string
	var entries []LeafEntry
	if t.root == NoOffset {
		return keys, entries, nil
	}

	offset := t.root
	for {
		n, err := t.cache.get(offset)
		if err != nil {
			return nil, nil, err
		}
		if n.IsLeaf {
			break
		}
		offset = n.Children[0]
	}

	for offset != NoOffset {
		n, err := t.cache.get(offset)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, n.Keys...)
		entries = append(entries, n.Entries...)
		offset = n.NextLeaf
	}
	return keys, entries, nil
}

// ScanRange walks the leaf chain from the first key >= lo, stopping before
// any key > hi (or hi=="" for unbounded), enabling range bulk-reads that
// exploit leaf chaining for sequential I/O.
func (t *Tree) ScanRange(lo, hi string) ([]string, []LeafEntry, error) {
	if t.root == NoOffset {
		return nil, nil, nil
	}
	leaf, err := t.descendToLeaf(lo)
	if err != nil {
		return nil, nil, err
	}

	var keys []string
	var entries []LeafEntry
	offset := leaf.Self
	for offset != NoOffset {
		n, err := t.cache.get(offset)
		if err != nil {
			return nil, nil, err
		}
		for i, k := range n.Keys {
			if k < lo {
				continue
			}
			if hi != "" && k > hi {
				return keys, entries, nil
			}
			keys = append(keys, k)
			entries = append(entries, n.Entries[i])
		}
		offset = n.NextLeaf
	}
	return keys, entries, nil
}
