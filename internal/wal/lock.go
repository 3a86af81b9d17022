package wal

import (
	"context"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
)

// fileLock wraps gofrs/flock with a blocking-with-timeout acquire, shaped
// after internal/embed's FileLock but generalized from a single exclusive
// download lock to reader-shared/writer-exclusive whole-file locking on a
// separate "<wal path>.lock" file.
type fileLock struct {
	path string
	fl   *flock.Flock
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path, fl: flock.New(path)}
}

// lockWrite blocks until the exclusive writer lock is acquired or timeout
// elapses, returning dberrors.LockTimeout on expiry.
func (l *fileLock) lockWrite(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := l.fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return &dberrors.IoError{Op: "wal lock write", Cause: err}
	}
	if !ok {
		return &dberrors.LockTimeout{Path: l.path}
	}
	return nil
}

// lockRead blocks until a shared reader lock is acquired or timeout
// elapses.
func (l *fileLock) lockRead(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := l.fl.TryRLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return &dberrors.IoError{Op: "wal lock read", Cause: err}
	}
	if !ok {
		return &dberrors.LockTimeout{Path: l.path}
	}
	return nil
}

func (l *fileLock) unlock() error {
	return l.fl.Unlock()
}
