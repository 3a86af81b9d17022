package wal

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/bmdb/internal/config"
	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// BaseStore is the document surface a WAL-backed Store replays committed
// writes onto. filestore.Store and memstore.Store both satisfy it.
type BaseStore interface {
	ReadDocument(table string, docID uint32) (value.Value, bool, error)
	WriteDocument(table string, docID uint32, body value.Value) error
	DeleteDocument(table string, docID uint32) error
	Read(table string) (map[uint32]value.Value, error)
}

// version is one entry in a key's MVCC chain: the body committed by txid,
// or a tombstone if deleted is set.
type version struct {
	txid    uint64
	body    value.Value
	deleted bool
}

// op is one buffered write inside an open transaction, recorded in
// program order so replay and conflict checks see them in the order they
// were issued.
type op struct {
	kind   Kind
	table  string
	docID  uint32
	body   value.Value
}

// txn is an open, not-yet-committed transaction's buffered state.
type txn struct {
	id       uint64
	snapshot uint64
	ops      []op
	flushed  int // number of ops already appended to the WAL file
	done     bool
}

// Store layers group-commit WAL batching and per-key MVCC snapshots over a
// BaseStore. Writes inside a transaction are buffered in memory and only
// become visible to ReadDocument/Read once Commit succeeds; the WAL record
// for each buffered op is appended lazily, either when the batch fills up
// (Options.BatchSize) or at Commit time, so a small transaction costs one
// flush instead of one fsync-worthy write per operation.
type Store struct {
	mu sync.Mutex

	base BaseStore
	file *os.File
	lock *fileLock

	chains map[string][]version // docKey(table, docID) -> version chain, oldest first
	keysOf map[uint64][]string // txid -> keys it wrote, pruned at Checkpoint

	nextTxid   uint64
	stableTxid uint64
	seq        uint64
	txns       map[uint64]*txn

	batchSize int
	conflict  config.ConflictPolicy
}

// Options configures a Store opened over a WAL file.
type Options struct {
	BatchSize         int
	BatchTimeoutMs    int
	ConflictDetection config.ConflictPolicy
	LockTimeoutMs     int
}

// OptionsFromConfig derives WAL Options from a layered Config, so callers
// wiring up a table don't have to duplicate the field mapping.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:         cfg.WAL.BatchSize,
		BatchTimeoutMs:    cfg.WAL.BatchTimeoutMs,
		ConflictDetection: cfg.WAL.Conflict,
		LockTimeoutMs:     cfg.LockTimeoutMs,
	}
}

// Open attaches a write-ahead log at path to base, replaying any committed
// transactions left over from an unclean shutdown before returning.
func Open(path string, base BaseStore, opts Options) (*Store, error) {
	lock := newFileLock(path + ".lock")
	if err := lock.lockWrite(durationMs(opts.LockTimeoutMs)); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		lock.unlock()
		return nil, &dberrors.IoError{Op: "wal open", Cause: err}
	}

	s := &Store{
		base:      base,
		file:      f,
		lock:      lock,
		chains:    make(map[string][]version),
		keysOf:    make(map[uint64][]string),
		nextTxid:  1,
		txns:      make(map[uint64]*txn),
		batchSize: opts.BatchSize,
		conflict:  opts.ConflictDetection,
	}
	if s.batchSize <= 0 {
		s.batchSize = 1
	}

	info, err := f.Stat()
	if err != nil {
		return nil, &dberrors.IoError{Op: "wal stat", Cause: err}
	}
	if info.Size() == 0 {
		if err := writeFileHeader(f); err != nil {
			return nil, &dberrors.IoError{Op: "wal write header", Cause: err}
		}
	} else if err := s.recover(); err != nil {
		return nil, err
	}

	if err := s.rewrite(); err != nil {
		return nil, err
	}
	return s, nil
}

func durationMs(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// recover replays every BEGIN..COMMIT span found in the log onto base, in
// commit order, discarding any transaction with no matching COMMIT and any
// truncated trailing record (io.ErrUnexpectedEOF) as an uncommitted crash
// tail rather than corruption.
func (s *Store) recover() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return &dberrors.IoError{Op: "wal seek", Cause: err}
	}
	r := bufio.NewReader(s.file)
	if err := readFileHeader(r); err != nil {
		return err
	}

	pending := make(map[uint64][]record)
	var maxTxid, maxSeq uint64

	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
		if rec.txid > maxTxid {
			maxTxid = rec.txid
		}
		if rec.seq > maxSeq {
			maxSeq = rec.seq
		}

		switch rec.kind {
		case KindBegin:
			pending[rec.txid] = nil
		case KindWrite, KindDelete:
			pending[rec.txid] = append(pending[rec.txid], rec)
		case KindCommit:
			if err := s.applyCommitted(rec.txid, pending[rec.txid]); err != nil {
				return err
			}
			delete(pending, rec.txid)
		case KindAbort:
			delete(pending, rec.txid)
		case KindCheckpoint:
			stable, err := decodeCheckpointPayload(rec.payload)
			if err != nil {
				return err
			}
			s.stableTxid = stable
		}
	}

	s.nextTxid = maxTxid + 1
	s.seq = maxSeq
	return nil
}

// applyCommitted replays one transaction's buffered records onto base and
// into the in-memory chains during recovery.
func (s *Store) applyCommitted(txid uint64, recs []record) error {
	for _, rec := range recs {
		switch rec.kind {
		case KindWrite:
			table, docID, body, err := decodeWritePayload(rec.payload)
			if err != nil {
				return err
			}
			if err := s.base.WriteDocument(table, docID, body); err != nil {
				return err
			}
			key := docKeyOf(table, docID)
			s.chains[key] = append(s.chains[key], version{txid: txid, body: body})
			s.keysOf[txid] = append(s.keysOf[txid], key)
		case KindDelete:
			table, docID, err := decodeDeletePayload(rec.payload)
			if err != nil {
				return err
			}
			if err := s.base.DeleteDocument(table, docID); err != nil {
				return err
			}
			key := docKeyOf(table, docID)
			s.chains[key] = append(s.chains[key], version{txid: txid, deleted: true})
			s.keysOf[txid] = append(s.keysOf[txid], key)
		}
	}
	if txid > s.stableTxid {
		s.stableTxid = txid
	}
	return nil
}

// rewrite replaces the WAL file with a fresh header plus a single
// checkpoint record summarizing everything recovery just applied to base,
// discarding the replayed log tail so the file does not grow without
// bound across restarts.
func (s *Store) rewrite() error {
	if err := s.file.Truncate(0); err != nil {
		return &dberrors.IoError{Op: "wal truncate", Cause: err}
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return &dberrors.IoError{Op: "wal seek", Cause: err}
	}
	if err := writeFileHeader(s.file); err != nil {
		return &dberrors.IoError{Op: "wal write header", Cause: err}
	}
	s.seq++
	rec := record{kind: KindCheckpoint, txid: 0, seq: s.seq, payload: encodeCheckpointPayload(s.stableTxid)}
	if _, err := s.file.Write(encodeRecord(rec)); err != nil {
		return &dberrors.IoError{Op: "wal write checkpoint", Cause: err}
	}
	return s.file.Sync()
}

func docKeyOf(table string, docID uint32) string {
	return table + "\x00" + strconv.FormatUint(uint64(docID), 10)
}

// Begin starts a transaction and returns its id. The transaction's reads
// (via ReadDocument against this snapshot) observe every version with
// txid <= the returned id; writes made under it are invisible to other
// callers until Commit.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextTxid
	s.nextTxid++
	s.txns[id] = &txn{id: id, snapshot: id - 1}
	return id
}

func (s *Store) getTxn(txid uint64) (*txn, error) {
	t, ok := s.txns[txid]
	if !ok || t.done {
		return nil, &dberrors.ValidationError{Path: "txid", Reason: "transaction is not open"}
	}
	return t, nil
}

// WriteInTransaction buffers an upsert under txid, flushing the batch to
// the WAL file once it reaches Options.BatchSize buffered ops.
func (s *Store) WriteInTransaction(txid uint64, table string, docID uint32, body value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTxn(txid)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, op{kind: KindWrite, table: table, docID: docID, body: value.Clone(body)})
	return s.maybeFlush(t)
}

// DeleteInTransaction buffers a delete under txid.
func (s *Store) DeleteInTransaction(txid uint64, table string, docID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTxn(txid)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, op{kind: KindDelete, table: table, docID: docID})
	return s.maybeFlush(t)
}

// maybeFlush appends buffered-but-unflushed ops to the WAL file once the
// batch reaches batchSize; callers hold s.mu.
func (s *Store) maybeFlush(t *txn) error {
	if len(t.ops)-t.flushed < s.batchSize {
		return nil
	}
	return s.flushLocked(t)
}

// ForceBatchFlush appends every buffered-but-unflushed op for txid to the
// WAL file immediately, regardless of batch size. Useful for callers that
// want a crash after this point to still see the transaction's writes on
// the next recovery, short of actually committing.
func (s *Store) ForceBatchFlush(txid uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTxn(txid)
	if err != nil {
		return err
	}
	return s.flushLocked(t)
}

func (s *Store) flushLocked(t *txn) error {
	if t.flushed == 0 {
		s.seq++
		if _, err := s.file.Write(encodeRecord(record{kind: KindBegin, txid: t.id, seq: s.seq})); err != nil {
			return &dberrors.IoError{Op: "wal write begin", Cause: err}
		}
	}
	for ; t.flushed < len(t.ops); t.flushed++ {
		o := t.ops[t.flushed]
		var rec record
		switch o.kind {
		case KindWrite:
			payload, err := encodeWritePayload(o.table, o.docID, o.body)
			if err != nil {
				return err
			}
			s.seq++
			rec = record{kind: KindWrite, txid: t.id, seq: s.seq, payload: payload}
		case KindDelete:
			s.seq++
			rec = record{kind: KindDelete, txid: t.id, seq: s.seq, payload: encodeDeletePayload(o.table, o.docID)}
		}
		if _, err := s.file.Write(encodeRecord(rec)); err != nil {
			return &dberrors.IoError{Op: "wal write op", Cause: err}
		}
	}
	return s.file.Sync()
}

// Commit flushes any remaining buffered ops, appends a COMMIT record,
// applies the transaction's writes to base and to the in-memory MVCC
// chains, and makes them visible to subsequent reads.
//
// Under ConflictOptimisticReject, Commit fails with
// *dberrors.TransactionConflict if any key the transaction wrote has
// acquired a version with a higher txid than this transaction's snapshot
// in the meantime — i.e. another transaction committed against the same
// key after this one began.
func (s *Store) Commit(txid uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTxn(txid)
	if err != nil {
		return err
	}

	if s.conflict == config.ConflictOptimisticReject {
		for _, o := range t.ops {
			key := docKeyOf(o.table, o.docID)
			chain := s.chains[key]
			if len(chain) > 0 && chain[len(chain)-1].txid > t.snapshot {
				return &dberrors.TransactionConflict{TxID: txid, Key: key}
			}
		}
	}

	if err := s.flushLocked(t); err != nil {
		return err
	}
	s.seq++
	if _, err := s.file.Write(encodeRecord(record{kind: KindCommit, txid: txid, seq: s.seq})); err != nil {
		return &dberrors.IoError{Op: "wal write commit", Cause: err}
	}
	if err := s.file.Sync(); err != nil {
		return &dberrors.IoError{Op: "wal sync", Cause: err}
	}

	for _, o := range t.ops {
		key := docKeyOf(o.table, o.docID)
		if o.kind == KindWrite {
			if err := s.base.WriteDocument(o.table, o.docID, o.body); err != nil {
				return err
			}
			s.chains[key] = append(s.chains[key], version{txid: txid, body: o.body})
		} else {
			if err := s.base.DeleteDocument(o.table, o.docID); err != nil {
				return err
			}
			s.chains[key] = append(s.chains[key], version{txid: txid, deleted: true})
		}
		s.keysOf[txid] = append(s.keysOf[txid], key)
	}

	t.done = true
	delete(s.txns, txid)
	return nil
}

// Rollback discards a transaction's buffered writes without applying them.
// If any ops were already flushed to the WAL file, an ABORT record is
// appended so recovery discards them too.
func (s *Store) Rollback(txid uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTxn(txid)
	if err != nil {
		return err
	}
	if t.flushed > 0 {
		s.seq++
		if _, err := s.file.Write(encodeRecord(record{kind: KindAbort, txid: txid, seq: s.seq})); err != nil {
			return &dberrors.IoError{Op: "wal write abort", Cause: err}
		}
		if err := s.file.Sync(); err != nil {
			return &dberrors.IoError{Op: "wal sync", Cause: err}
		}
	}
	t.done = true
	delete(s.txns, txid)
	return nil
}

// ReadDocument returns the most recent committed body for (table, docID),
// falling through to base for keys this Store has never touched. The
// returned value is cloned so callers can mutate it freely.
func (s *Store) ReadDocument(table string, docID uint32) (value.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKeyOf(table, docID)
	chain := s.chains[key]
	if len(chain) == 0 {
		return s.base.ReadDocument(table, docID)
	}
	v := chain[len(chain)-1]
	if v.deleted {
		return value.Value{}, false, nil
	}
	return value.Clone(v.body), true, nil
}

// ReadDocumentInTransaction returns the greatest committed version with
// txid <= the transaction's snapshot (its own uncommitted writes are not
// visible to itself through this call — only WriteInTransaction's buffer
// is). Falls through to base when the key's chain predates this Store or
// holds no version at or below the snapshot.
func (s *Store) ReadDocumentInTransaction(txid uint64, table string, docID uint32) (value.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTxn(txid)
	if err != nil {
		return value.Value{}, false, err
	}

	key := docKeyOf(table, docID)
	chain := s.chains[key]
	var visible *version
	for i := range chain {
		if chain[i].txid > t.snapshot {
			break
		}
		visible = &chain[i]
	}
	if visible == nil {
		return s.base.ReadDocument(table, docID)
	}
	if visible.deleted {
		return value.Value{}, false, nil
	}
	return value.Clone(visible.body), true, nil
}

// WriteDocument is a convenience single-op transaction: begin, write,
// commit.
func (s *Store) WriteDocument(table string, docID uint32, body value.Value) error {
	txid := s.Begin()
	if err := s.WriteInTransaction(txid, table, docID, body); err != nil {
		s.Rollback(txid)
		return err
	}
	return s.Commit(txid)
}

// DeleteDocument is a convenience single-op transaction: begin, delete,
// commit.
func (s *Store) DeleteDocument(table string, docID uint32) error {
	txid := s.Begin()
	if err := s.DeleteInTransaction(txid, table, docID); err != nil {
		s.Rollback(txid)
		return err
	}
	return s.Commit(txid)
}

// Read returns every live document in table, preferring this Store's
// uncheckpointed chain entries over base where a chain exists.
func (s *Store) Read(table string) (map[uint32]value.Value, error) {
	base, err := s.base.Read(table)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, chain := range s.chains {
		t, id, ok := splitDocKeyOf(key)
		if !ok || t != table || len(chain) == 0 {
			continue
		}
		v := chain[len(chain)-1]
		if v.deleted {
			delete(base, id)
		} else {
			base[id] = value.Clone(v.body)
		}
	}
	return base, nil
}

func splitDocKeyOf(key string) (table string, docID uint32, ok bool) {
	i := strings.IndexByte(key, 0)
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(key[i+1:], 10, 32)
	if err != nil {
		return "", 0, false
	}
	return key[:i], uint32(n), true
}

// Checkpoint truncates every key's MVCC chain down to its latest version
// at or below the current stable txid, then writes a fresh CHECKPOINT
// record and compacts the WAL file to just that marker. Open
// transactions with an in-flight snapshot are left alone; their snapshot
// txid never exceeds the stable mark by definition.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// No open transaction may ever need a version above its own snapshot,
	// so the oldest open snapshot bounds how far chains can collapse.
	// With no open transactions, every committed version is stable.
	stable := s.nextTxid - 1
	for _, t := range s.txns {
		if t.snapshot < stable {
			stable = t.snapshot
		}
	}
	s.stableTxid = stable

	for key, chain := range s.chains {
		keepFrom := 0
		for i, v := range chain {
			if v.txid <= stable {
				keepFrom = i
			}
		}
		if keepFrom > 0 {
			s.chains[key] = append([]version(nil), chain[keepFrom:]...)
		}
	}
	for txid := range s.keysOf {
		if txid <= stable {
			delete(s.keysOf, txid)
		}
	}

	return s.rewrite()
}

// Close releases the WAL file and its advisory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return &dberrors.IoError{Op: "wal close", Cause: err}
	}
	return s.lock.unlock()
}
