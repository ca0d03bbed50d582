package fs

import (
	"context"
	"sync"

	"github.com/osdev-lab/fscore/internal/models"
	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
)

// Inode is the in-memory handle for a cached inode record. Handles are
// shared: the table hands out one handle per inode number and counts
// references. The embedded record is the authoritative copy while any
// reference is live; persist writes it back through the store.
//
// Lock discipline: the per-inode mutex is exclusive, may block, and is
// never held across a lookup of an unrelated path. A parent's lock is
// released before a child's is (re)acquired.
type Inode struct {
	store.InodeRec

	fs    *FS
	mu    sync.Mutex
	count int // references; guarded by fs.imu
}

// iget returns a referenced, unlocked handle for ino.
func (fs *FS) iget(ctx context.Context, ino uint32) (*Inode, error) {
	fs.imu.Lock()
	if ip, ok := fs.itab[ino]; ok {
		ip.count++
		fs.imu.Unlock()
		return ip, nil
	}
	fs.imu.Unlock()

	rec, err := fs.store.GetInode(ctx, ino)
	if err != nil {
		return nil, err
	}

	fs.imu.Lock()
	defer fs.imu.Unlock()
	if ip, ok := fs.itab[ino]; ok { // raced with another lookup
		ip.count++
		return ip, nil
	}
	ip := &Inode{
		InodeRec: *rec,
		fs:       fs,
		count:    1,
	}
	fs.itab[ino] = ip
	return ip, nil
}

// idup takes an additional reference on an already-held handle.
func (fs *FS) idup(ip *Inode) *Inode {
	fs.imu.Lock()
	ip.count++
	fs.imu.Unlock()
	return ip
}

// iput drops one reference. When the last reference goes and no directory
// entry names the inode anymore, its storage is released.
func (fs *FS) iput(ctx context.Context, ip *Inode) {
	fs.imu.Lock()
	ip.count--
	last := ip.count == 0
	if last {
		delete(fs.itab, ip.Ino)
	}
	fs.imu.Unlock()

	if last && ip.Nlink == 0 {
		// Storage reclaim is a single durable mutation; it needs no bracket
		// of its own and may run outside any caller's bracket.
		_ = fs.store.FreeInode(ctx, ip.Ino)
	}
}

// ialloc allocates a fresh inode of the given kind, returning a referenced,
// unlocked handle.
func (fs *FS) ialloc(ctx context.Context, dev uint32, kind store.InodeKind) (*Inode, error) {
	rec, err := fs.store.AllocInode(ctx, dev, kind)
	if err != nil {
		return nil, kerrors.ErrAllocation
	}
	ip := &Inode{
		InodeRec: *rec,
		fs:       fs,
		count:    1,
	}
	fs.imu.Lock()
	fs.itab[ip.Ino] = ip
	fs.imu.Unlock()
	return ip, nil
}

func (ip *Inode) lock() {
	ip.mu.Lock()
}

func (ip *Inode) unlock() {
	ip.mu.Unlock()
}

// unlockPut is the common "done with a locked handle" exit: unlock, then
// drop the reference.
func (ip *Inode) unlockPut(ctx context.Context) {
	ip.unlock()
	ip.fs.iput(ctx, ip)
}

// persist writes the handle's record back through the store. Caller holds
// the inode lock.
func (ip *Inode) persist(ctx context.Context) error {
	return ip.fs.store.PutInode(ctx, &ip.InodeRec)
}

func (ip *Inode) isDir() bool {
	return ip.Kind == store.KindDir
}

func (ip *Inode) stat() models.Stat {
	return models.Stat{
		Dev:   ip.Dev,
		Ino:   ip.Ino,
		Kind:  int16(ip.Kind),
		Nlink: ip.Nlink,
		Major: ip.Major,
		Minor: ip.Minor,
		Size:  ip.Size,
	}
}
