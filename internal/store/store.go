// Package store is the durable-storage boundary of the filesystem core:
// inode records, file content bytes, inode tags, and the journal bracket
// that makes compound mutations crash-atomic.
package store

import "context"

type InodeKind int16

const (
	KindFile InodeKind = iota + 1
	KindDir
	KindDevice
)

// InodeRec is the durable form of an inode. When Symlink is set the record
// is a plain file whose content is the inline SymTarget string; Size stays 0.
type InodeRec struct {
	Ino       uint32
	Dev       uint32
	Kind      InodeKind
	Nlink     int16
	Major     int16
	Minor     int16
	Size      int64
	Symlink   bool
	SymTarget string
}

// Store is the set of primitives the kernel core consumes. Implementations
// guarantee that every mutation performed between the begin and commit of
// WithTxn becomes visible atomically after a crash; the core never reasons
// about partial application.
type Store interface {
	// WithTxn runs fn inside a single begin/commit bracket. The bracket is
	// closed exactly once on every path out of fn, including error returns:
	// mutations already performed stay applied, so callers compensate
	// explicitly on their failure paths. Brackets do not nest; a nested
	// call is a programming error and panics.
	WithTxn(ctx context.Context, fn func(ctx context.Context) error) error

	AllocInode(ctx context.Context, dev uint32, kind InodeKind) (*InodeRec, error)
	GetInode(ctx context.Context, ino uint32) (*InodeRec, error)
	PutInode(ctx context.Context, rec *InodeRec) error
	FreeInode(ctx context.Context, ino uint32) error

	ReadAt(ctx context.Context, ino uint32, p []byte, off int64) (int, error)
	WriteAt(ctx context.Context, ino uint32, p []byte, off int64) (int, error)

	SetTag(ctx context.Context, ino uint32, key, value string) error
	ClearTag(ctx context.Context, ino uint32, key string) error
	GetTag(ctx context.Context, ino uint32, key string) (string, error)

	// RootIno reports the inode number of the volume root directory.
	RootIno() uint32
}
