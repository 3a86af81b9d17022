// Package btree implements a persistent B+tree: fixed 1024-byte nodes
// (order 16, 7 <= keys <= 15), string keys compared as raw UTF-8 bytes,
// leaf values pointing at (offset, length) spans in an external document
// area, and leaves chained for sequential scans. The tree never touches a
// file directly — it calls an injected read(offset)/write(offset, bytes)
// pair, so the same code serves the binary file store in production and
// an in-memory byte slice in tests.
package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
)

const (
	// NodeSize is the fixed on-disk size of every node.
	NodeSize = 1024
	// Order is the B-tree order.
	Order = 16
	// MinKeys is the minimum key count a non-root node may hold before
	// rebalancing is required.
	MinKeys = 7
	// MaxKeys is the maximum key count a node may hold before it splits.
	MaxKeys = 15

	headerSize = 11 // isLeaf(1) + keyCount(2) + parentOffset(4) + nextLeaf(4)

	// NoOffset is the sentinel for "no parent" / "no next leaf" / "no
	// child" in an unsigned 32-bit field.
	NoOffset uint32 = 0xFFFFFFFF
)

// LeafEntry is a (offset, length) span into the document area.
type LeafEntry struct {
	Offset uint32
	Length uint32
}

// Node is the in-memory representation of one on-disk B-tree node.
type Node struct {
	Self   uint32 // this node's own file offset
	IsLeaf bool
	Parent uint32 // NoOffset if root
	Keys   []string

	// Leaf-only.
	Entries  []LeafEntry
	NextLeaf uint32 // NoOffset if this is the last leaf

	// Internal-only: len(Children) == len(Keys)+1.
	Children []uint32
}

// Serialize encodes n into a fixed NodeSize-byte buffer.
func Serialize(n *Node) ([]byte, error) {
	if !n.IsLeaf && len(n.Children) != len(n.Keys)+1 {
		return nil, &dberrors.Corruption{
			Where:  "btree.Serialize",
			Detail: fmt.Sprintf("internal node invariant violated: %d children, %d keys", len(n.Children), len(n.Keys)),
		}
	}

	buf := make([]byte, 0, NodeSize)
	if n.IsLeaf {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU16(buf, uint16(len(n.Keys)))
	buf = appendU32(buf, n.Parent)
	buf = appendU32(buf, n.NextLeaf)

	for i, key := range n.Keys {
		if len(key) > 0xFFFF {
			return nil, &dberrors.Unsupported{Detail: "btree key exceeds 65535 bytes"}
		}
		buf = appendU16(buf, uint16(len(key)))
		buf = append(buf, key...)
		if n.IsLeaf {
			buf = appendU32(buf, n.Entries[i].Offset)
			buf = appendU32(buf, n.Entries[i].Length)
		} else {
			buf = appendU32(buf, n.Children[i])
		}
	}
	if !n.IsLeaf {
		buf = appendU32(buf, n.Children[len(n.Children)-1])
	}

	if len(buf) > NodeSize {
		return nil, &dberrors.Corruption{
			Where:  "btree.Serialize",
			Detail: fmt.Sprintf("node overflowed fixed %d-byte layout (%d bytes needed)", NodeSize, len(buf)),
		}
	}
	out := make([]byte, NodeSize)
	copy(out, buf)
	return out, nil
}

// Deserialize decodes a NodeSize-byte buffer (as produced by Serialize)
// back into a Node. self is the file offset the buffer was read from.
func Deserialize(self uint32, raw []byte) (*Node, error) {
	if len(raw) < headerSize {
		return nil, &dberrors.Corruption{Where: "btree.Deserialize", Detail: "buffer shorter than node header"}
	}
	n := &Node{Self: self}
	n.IsLeaf = raw[0] == 1
	pos := 1
	keyCount := int(binary.BigEndian.Uint16(raw[pos:]))
	pos += 2
	n.Parent = binary.BigEndian.Uint32(raw[pos:])
	pos += 4
	n.NextLeaf = binary.BigEndian.Uint32(raw[pos:])
	pos += 4

	n.Keys = make([]string, keyCount)
	if n.IsLeaf {
		n.Entries = make([]LeafEntry, keyCount)
	} else {
		n.Children = make([]uint32, 0, keyCount+1)
	}

	for i := 0; i < keyCount; i++ {
		if pos+2 > len(raw) {
			return nil, &dberrors.Corruption{Where: "btree.Deserialize", Detail: "truncated key length"}
		}
		keyLen := int(binary.BigEndian.Uint16(raw[pos:]))
		pos += 2
		if pos+keyLen > len(raw) {
			return nil, &dberrors.Corruption{Where: "btree.Deserialize", Detail: "truncated key bytes"}
		}
		n.Keys[i] = string(raw[pos : pos+keyLen])
		pos += keyLen

		if n.IsLeaf {
			if pos+8 > len(raw) {
				return nil, &dberrors.Corruption{Where: "btree.Deserialize", Detail: "truncated leaf payload"}
			}
			n.Entries[i] = LeafEntry{
				Offset: binary.BigEndian.Uint32(raw[pos:]),
				Length: binary.BigEndian.Uint32(raw[pos+4:]),
			}
			pos += 8
		} else {
			if pos+4 > len(raw) {
				return nil, &dberrors.Corruption{Where: "btree.Deserialize", Detail: "truncated child offset"}
			}
			n.Children = append(n.Children, binary.BigEndian.Uint32(raw[pos:]))
			pos += 4
		}
	}
	if !n.IsLeaf {
		if pos+4 > len(raw) {
			return nil, &dberrors.Corruption{Where: "btree.Deserialize", Detail: "truncated trailing child offset"}
		}
		n.Children = append(n.Children, binary.BigEndian.Uint32(raw[pos:]))
	}

	return n, nil
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
