// Package memstore is the in-memory Store backend. Mutations are applied in
// place and journaled per transaction bracket; the bracket bookkeeping is
// exact so the core's begin/commit discipline can be verified under fault
// injection.
package memstore

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
)

const (
	rootIno   uint32 = 1
	volumeDev uint32 = 1
)

type tagEntry struct {
	ino   uint32
	key   string
	value string
}

func tagLess(a, b tagEntry) bool {
	if a.ino != b.ino {
		return a.ino < b.ino
	}
	return a.key < b.key
}

type txnKey struct{}

// FaultFunc is consulted before every durable mutation; a non-nil return
// aborts that primitive with the given error. Used by tests to force
// failures at each external-call boundary.
type FaultFunc func(op string) error

type Memstore struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	inodes  map[uint32]store.InodeRec
	content map[uint32][]byte
	tags    *btree.BTreeG[tagEntry]
	nextIno uint32
	fault   FaultFunc

	begun     int
	committed int
}

var _ store.Store = (*Memstore)(nil)

// New returns a store holding a single empty volume: a root directory inode
// with no entries yet. The core bootstraps "." and ".." on first mount.
func New() *Memstore {
	s := &Memstore{
		inodes:  make(map[uint32]store.InodeRec),
		content: make(map[uint32][]byte),
		tags:    btree.NewG(2, tagLess),
		nextIno: rootIno + 1,
	}
	s.inodes[rootIno] = store.InodeRec{
		Ino:   rootIno,
		Dev:   volumeDev,
		Kind:  store.KindDir,
		Nlink: 1,
	}
	return s
}

// SetFault installs (or with nil clears) the fault-injection hook.
func (s *Memstore) SetFault(f FaultFunc) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// TxnBalance reports (begun, committed) bracket counts.
func (s *Memstore) TxnBalance() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begun, s.committed
}

func (s *Memstore) WithTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txnKey{}) != nil {
		panic("memstore: nested transaction bracket")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.begun++
	s.mu.Unlock()

	committed := false
	commit := func() {
		if committed {
			panic("memstore: transaction committed twice")
		}
		committed = true
		s.mu.Lock()
		s.committed++
		s.mu.Unlock()
	}
	defer commit()

	return fn(context.WithValue(ctx, txnKey{}, s))
}

func (s *Memstore) checkFault(op string) error {
	if s.fault != nil {
		return s.fault(op)
	}
	return nil
}

func (s *Memstore) AllocInode(ctx context.Context, dev uint32, kind store.InodeKind) (*store.InodeRec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("AllocInode"); err != nil {
		return nil, err
	}
	rec := store.InodeRec{
		Ino:  s.nextIno,
		Dev:  dev,
		Kind: kind,
	}
	s.nextIno++
	s.inodes[rec.Ino] = rec
	return &rec, nil
}

func (s *Memstore) GetInode(ctx context.Context, ino uint32) (*store.InodeRec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.inodes[ino]
	if !ok {
		return nil, kerrors.ErrNoSuchPath
	}
	return &rec, nil
}

func (s *Memstore) PutInode(ctx context.Context, rec *store.InodeRec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("PutInode"); err != nil {
		return err
	}
	if _, ok := s.inodes[rec.Ino]; !ok {
		return kerrors.ErrNoSuchPath
	}
	s.inodes[rec.Ino] = *rec
	return nil
}

func (s *Memstore) FreeInode(ctx context.Context, ino uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("FreeInode"); err != nil {
		return err
	}
	delete(s.inodes, ino)
	delete(s.content, ino)
	for _, e := range s.tagsOf(ino) {
		s.tags.Delete(e)
	}
	return nil
}

// tagsOf collects the tag entries of one inode; caller holds s.mu.
func (s *Memstore) tagsOf(ino uint32) []tagEntry {
	var out []tagEntry
	s.tags.AscendGreaterOrEqual(tagEntry{ino: ino}, func(e tagEntry) bool {
		if e.ino != ino {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

func (s *Memstore) ReadAt(ctx context.Context, ino uint32, p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.content[ino]
	if !ok {
		if _, exists := s.inodes[ino]; !exists {
			return 0, kerrors.ErrNoSuchPath
		}
		return 0, nil
	}
	if off >= int64(len(data)) {
		return 0, nil
	}
	return copy(p, data[off:]), nil
}

func (s *Memstore) WriteAt(ctx context.Context, ino uint32, p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("WriteAt"); err != nil {
		return 0, err
	}
	if _, ok := s.inodes[ino]; !ok {
		return 0, kerrors.ErrNoSuchPath
	}
	data := s.content[ino]
	if want := off + int64(len(p)); want > int64(len(data)) {
		grown := make([]byte, want)
		copy(grown, data)
		data = grown
	}
	copy(data[off:], p)
	s.content[ino] = data
	return len(p), nil
}

func (s *Memstore) SetTag(ctx context.Context, ino uint32, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("SetTag"); err != nil {
		return err
	}
	if _, ok := s.inodes[ino]; !ok {
		return kerrors.ErrNoSuchPath
	}
	s.tags.ReplaceOrInsert(tagEntry{ino: ino, key: key, value: value})
	return nil
}

func (s *Memstore) ClearTag(ctx context.Context, ino uint32, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("ClearTag"); err != nil {
		return err
	}
	if _, ok := s.tags.Delete(tagEntry{ino: ino, key: key}); !ok {
		return kerrors.ErrNoData
	}
	return nil
}

func (s *Memstore) GetTag(ctx context.Context, ino uint32, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tags.Get(tagEntry{ino: ino, key: key})
	if !ok {
		return "", kerrors.ErrNoData
	}
	return e.value, nil
}

func (s *Memstore) RootIno() uint32 {
	return rootIno
}
