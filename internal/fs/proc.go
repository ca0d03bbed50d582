package fs

import (
	"context"
	"sync"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
)

// Proc is one process's view of the filesystem: a fixed descriptor table
// and a current directory. Methods on Proc are the syscall surface.
type Proc struct {
	fs *FS

	mu    sync.Mutex
	files [NOFILE]*File
	cwd   *Inode
}

// NewProc creates a process rooted at "/".
func (fs *FS) NewProc(ctx context.Context) (*Proc, error) {
	root, err := fs.iget(ctx, fs.store.RootIno())
	if err != nil {
		return nil, err
	}
	return &Proc{fs: fs, cwd: root}, nil
}

// getFile resolves a descriptor to its open-file object.
func (p *Proc) getFile(fd int) (*File, error) {
	if fd < 0 || fd >= NOFILE {
		return nil, kerrors.ErrBadDescriptor
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.files[fd]
	if f == nil {
		return nil, kerrors.ErrBadDescriptor
	}
	return f, nil
}

// fdAlloc installs f in the lowest free slot.
func (p *Proc) fdAlloc(f *File) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for fd := 0; fd < NOFILE; fd++ {
		if p.files[fd] == nil {
			p.files[fd] = f
			return fd, nil
		}
	}
	return -1, kerrors.ErrNoFreeSlot
}

func (p *Proc) clearFD(fd int) {
	p.mu.Lock()
	p.files[fd] = nil
	p.mu.Unlock()
}

// Release tears the process down: every open descriptor is closed and the
// working-directory reference is dropped.
func (p *Proc) Release(ctx context.Context) {
	p.mu.Lock()
	var open []*File
	for fd := range p.files {
		if p.files[fd] != nil {
			open = append(open, p.files[fd])
			p.files[fd] = nil
		}
	}
	cwd := p.cwd
	p.cwd = nil
	p.mu.Unlock()

	for _, f := range open {
		p.fs.fileClose(ctx, f)
	}
	if cwd != nil {
		p.fs.iput(ctx, cwd)
	}
}
