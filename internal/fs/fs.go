// Package fs implements the file-system syscall core: per-process
// descriptor tables, reference-counted open files, transaction-bracketed
// directory mutation, bounded symlink resolution, and inode tags.
// Durable state lives behind the store boundary.
package fs

import (
	"context"
	"fmt"
	"sync"

	"github.com/osdev-lab/fscore/internal/store"
)

const (
	// NOFILE is the per-process descriptor table capacity.
	NOFILE = 16
	// SYMLOOP bounds symlink chain resolution.
	SYMLOOP = 16
	// MaxLinkName bounds the inline symlink target string.
	MaxLinkName = 64
	// MAXARG bounds exec argument vectors.
	MAXARG = 32
)

// Execer loads a resolved program image into a process. The core validates
// the path and arguments; everything past that is the loader's business.
type Execer interface {
	Exec(ctx context.Context, image []byte, argv []string) (int, error)
}

type FS struct {
	store store.Store
	exec  Execer

	imu  sync.Mutex
	itab map[uint32]*Inode
}

// New mounts the store and bootstraps the root directory's "." and ".."
// entries on a fresh volume.
func New(ctx context.Context, st store.Store) (*FS, error) {
	const op = "fs.New"

	fs := &FS{
		store: st,
		itab:  make(map[uint32]*Inode),
	}

	root, err := fs.iget(ctx, st.RootIno())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	err = st.WithTxn(ctx, func(ctx context.Context) error {
		root.lock()
		defer root.unlock()
		if root.Size != 0 {
			return nil
		}
		if err := fs.dirLink(ctx, root, ".", root.Ino); err != nil {
			return err
		}
		return fs.dirLink(ctx, root, "..", root.Ino)
	})
	fs.iput(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fs, nil
}

// SetExecer installs the program loader used by exec.
func (fs *FS) SetExecer(e Execer) {
	fs.exec = e
}
