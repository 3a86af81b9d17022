// Package filestore implements the single-file binary document store: a
// fixed header, a fixed-size B-tree node area, and a variable-length
// document area, all addressed through a chunked read/write cache so
// repeated small accesses amortize into page-sized syscalls.
package filestore

import (
	"encoding/binary"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
)

const (
	// Magic identifies a bmdb file on disk.
	Magic = "BMDB"

	// FormatVersion is the on-disk layout version this package writes and
	// the newest version it can read (files with a higher version are
	// rejected).
	FormatVersion uint32 = 1

	// HeaderSize is the fixed byte size of the file header.
	HeaderSize = 32

	// BTreeAreaSize is the fixed size of the B-tree node area immediately
	// following the header.
	BTreeAreaSize = 1 << 20 // 1 MiB

	// DocAreaStart is the file offset where the document area begins.
	DocAreaStart = HeaderSize + BTreeAreaSize
)

// Header is the file's fixed 32-byte preamble.
type Header struct {
	Version         uint32
	RootOffset      uint32 // btree.NoOffset if the tree is empty
	NextNodeOffset  uint32 // next unused offset within the node area
	DocCount        uint32
	FreeSpaceOffset uint32 // next unused offset within the document area
}

// encodeHeader serializes h into a HeaderSize-byte buffer, magic first.
func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.RootOffset)
	binary.BigEndian.PutUint32(buf[12:16], h.NextNodeOffset)
	binary.BigEndian.PutUint32(buf[16:20], h.DocCount)
	binary.BigEndian.PutUint32(buf[20:24], h.FreeSpaceOffset)
	// buf[24:32] reserved, left zero.
	return buf
}

// decodeHeader validates and parses a HeaderSize-byte buffer.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, &dberrors.Corruption{Where: "filestore.decodeHeader", Detail: "buffer shorter than header"}
	}
	if string(buf[0:4]) != Magic {
		return Header{}, &dberrors.Corruption{Where: "filestore.decodeHeader", Detail: "bad magic"}
	}
	h := Header{
		Version:         binary.BigEndian.Uint32(buf[4:8]),
		RootOffset:      binary.BigEndian.Uint32(buf[8:12]),
		NextNodeOffset:  binary.BigEndian.Uint32(buf[12:16]),
		DocCount:        binary.BigEndian.Uint32(buf[16:20]),
		FreeSpaceOffset: binary.BigEndian.Uint32(buf[20:24]),
	}
	if h.Version > FormatVersion {
		return Header{}, &dberrors.Unsupported{Detail: "filestore: file format version newer than this build supports"}
	}
	return h, nil
}
