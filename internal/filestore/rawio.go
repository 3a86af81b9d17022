package filestore

import "os"

// RawIO is the byte-addressable backing a Store reads and writes through
// its chunk cache. *os.File satisfies it directly; tests use an in-memory
// implementation so no real file ever needs to exist on disk.
type RawIO interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	Truncate(size int64) error
	Size() (int64, error)
	Sync() error
}

// fileRawIO adapts *os.File to RawIO.
type fileRawIO struct{ f *os.File }

// OpenFile opens (creating if absent) path as a RawIO backing store.
func OpenFile(path string) (RawIO, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileRawIO{f: f}, nil
}

func (r *fileRawIO) ReadAt(buf []byte, offset int64) (int, error)  { return r.f.ReadAt(buf, offset) }
func (r *fileRawIO) WriteAt(buf []byte, offset int64) (int, error) { return r.f.WriteAt(buf, offset) }
func (r *fileRawIO) Truncate(size int64) error                     { return r.f.Truncate(size) }
func (r *fileRawIO) Sync() error                                   { return r.f.Sync() }
func (r *fileRawIO) Size() (int64, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
