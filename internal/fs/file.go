package fs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/osdev-lab/fscore/internal/models"
	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
)

type FileKind int

const (
	FDInode FileKind = iota + 1
	FDPipeRead
	FDPipeWrite
	FDSymlink
)

// File is the reference-counted open-file object bridging descriptors to an
// inode, a pipe endpoint, or a symlink marker. Duplicated descriptors share
// one File, so the cursor is shared too. The access flags are fixed at
// creation and never change.
type File struct {
	kind     FileKind
	ip       *Inode
	pipe     *pipe
	readable bool
	writable bool

	ref atomic.Int32

	mu  sync.Mutex // guards off
	off int64
}

// newFile builds an open-file object owning one reference to ip (may be
// nil for pipe ends). The object starts with a single owner.
func newFile(kind FileKind, ip *Inode, pp *pipe, readable, writable bool) *File {
	f := &File{
		kind:     kind,
		ip:       ip,
		pipe:     pp,
		readable: readable,
		writable: writable,
	}
	f.ref.Store(1)
	return f
}

// dup shares the object with one more descriptor.
func (f *File) dup() *File {
	f.ref.Add(1)
	return f
}

// fileClose drops one descriptor's ownership; the last drop destroys the
// object, closing the pipe end or releasing the inode reference it owns.
func (fs *FS) fileClose(ctx context.Context, f *File) {
	if f.ref.Add(-1) > 0 {
		return
	}
	switch f.kind {
	case FDPipeRead:
		f.pipe.closeEnd(false)
	case FDPipeWrite:
		f.pipe.closeEnd(true)
	}
	if f.ip != nil {
		fs.iput(ctx, f.ip)
	}
}

func (fs *FS) fileRead(ctx context.Context, f *File, buf []byte) (int, error) {
	if !f.readable {
		return 0, kerrors.ErrBadDescriptor
	}
	switch f.kind {
	case FDPipeRead:
		return f.pipe.read(buf)
	case FDInode:
	default:
		return 0, kerrors.ErrInvalidArgument
	}
	if f.ip.Kind == store.KindDevice {
		// Device I/O dispatches to drivers outside this core.
		return 0, kerrors.ErrInvalidArgument
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ip.lock()
	defer f.ip.unlock()

	if f.off >= f.ip.Size {
		return 0, nil
	}
	if max := f.ip.Size - f.off; int64(len(buf)) > max {
		buf = buf[:max]
	}
	n, err := fs.store.ReadAt(ctx, f.ip.Ino, buf, f.off)
	if err != nil {
		return 0, err
	}
	f.off += int64(n)
	return n, nil
}

func (fs *FS) fileWrite(ctx context.Context, f *File, data []byte) (int, error) {
	if !f.writable {
		return 0, kerrors.ErrBadDescriptor
	}
	switch f.kind {
	case FDPipeWrite:
		return f.pipe.write(data)
	case FDInode:
	default:
		return 0, kerrors.ErrInvalidArgument
	}
	if f.ip.Kind == store.KindDevice {
		return 0, kerrors.ErrInvalidArgument
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Content write plus the size update are one compound durable mutation.
	// The bracket is entered before the inode lock, same as every path
	// operation, so lock order stays bracket-then-inode everywhere.
	var n int
	err := fs.store.WithTxn(ctx, func(ctx context.Context) error {
		f.ip.lock()
		defer f.ip.unlock()
		var err error
		n, err = fs.store.WriteAt(ctx, f.ip.Ino, data, f.off)
		if err != nil {
			return err
		}
		if end := f.off + int64(n); end > f.ip.Size {
			f.ip.Size = end
			return f.ip.persist(ctx)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	f.off += int64(n)
	return n, nil
}

func (fs *FS) fileStat(f *File) (*models.Stat, error) {
	if f.ip == nil {
		return nil, kerrors.ErrInvalidArgument
	}
	f.ip.lock()
	defer f.ip.unlock()
	st := f.ip.stat()
	return &st, nil
}
