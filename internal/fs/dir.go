package fs

import (
	"context"
	"encoding/binary"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
)

// Directory content is an array of fixed-width little-endian entries:
// 4 bytes inode number, then a NUL-padded name. Ino 0 marks a free slot;
// slots are zeroed on delete and reused, never compacted. The first two
// slots of every initialized directory are "." and "..".
const (
	// DirNameLen is the maximum directory entry name length.
	DirNameLen = 14
	direntSize = 4 + DirNameLen
)

func encodeDirent(name string, ino uint32) []byte {
	buf := make([]byte, direntSize)
	binary.LittleEndian.PutUint32(buf[0:4], ino)
	copy(buf[4:], name)
	return buf
}

func decodeDirent(buf []byte) (uint32, string) {
	ino := binary.LittleEndian.Uint32(buf[0:4])
	name := buf[4:direntSize]
	for i, c := range name {
		if c == 0 {
			name = name[:i]
			break
		}
	}
	return ino, string(name)
}

// dirLookup scans dp for name. Caller holds dp's lock. Returns the entry's
// inode number and byte offset, or ErrNoSuchPath when absent.
func (fs *FS) dirLookup(ctx context.Context, dp *Inode, name string) (uint32, int64, error) {
	if !dp.isDir() {
		return 0, 0, kerrors.ErrNotDirectory
	}
	buf := make([]byte, direntSize)
	for off := int64(0); off < dp.Size; off += direntSize {
		n, err := fs.store.ReadAt(ctx, dp.Ino, buf, off)
		if err != nil {
			return 0, 0, err
		}
		if n != direntSize {
			return 0, 0, kerrors.ErrInternal
		}
		ino, entName := decodeDirent(buf)
		if ino != 0 && entName == name {
			return ino, off, nil
		}
	}
	return 0, 0, kerrors.ErrNoSuchPath
}

// dirLink inserts {name -> ino} into dp, reusing the first free slot or
// appending. Caller holds dp's lock and an open transaction when this is
// part of a compound mutation. Fails with ErrExists if name is present.
func (fs *FS) dirLink(ctx context.Context, dp *Inode, name string, ino uint32) error {
	if name == "" || len(name) > DirNameLen {
		return kerrors.ErrTooLong
	}

	slot := dp.Size
	buf := make([]byte, direntSize)
	for off := int64(0); off < dp.Size; off += direntSize {
		n, err := fs.store.ReadAt(ctx, dp.Ino, buf, off)
		if err != nil {
			return err
		}
		if n != direntSize {
			return kerrors.ErrInternal
		}
		entIno, entName := decodeDirent(buf)
		if entIno == 0 {
			if slot == dp.Size {
				slot = off
			}
			continue
		}
		if entName == name {
			return kerrors.ErrExists
		}
	}

	if _, err := fs.store.WriteAt(ctx, dp.Ino, encodeDirent(name, ino), slot); err != nil {
		return err
	}
	if slot == dp.Size {
		dp.Size += direntSize
		return dp.persist(ctx)
	}
	return nil
}

// dirUnlink zeroes the entry at off. Caller holds dp's lock and the
// transaction bracket.
func (fs *FS) dirUnlink(ctx context.Context, dp *Inode, off int64) error {
	zero := make([]byte, direntSize)
	n, err := fs.store.WriteAt(ctx, dp.Ino, zero, off)
	if err != nil {
		return err
	}
	if n != direntSize {
		return kerrors.ErrInternal
	}
	return nil
}

// isDirEmpty reports whether dp holds no entries besides "." and "..".
// Caller holds dp's lock.
func (fs *FS) isDirEmpty(ctx context.Context, dp *Inode) (bool, error) {
	buf := make([]byte, direntSize)
	for off := int64(2 * direntSize); off < dp.Size; off += direntSize {
		n, err := fs.store.ReadAt(ctx, dp.Ino, buf, off)
		if err != nil {
			return false, err
		}
		if n != direntSize {
			return false, kerrors.ErrInternal
		}
		if ino, _ := decodeDirent(buf); ino != 0 {
			return false, nil
		}
	}
	return true, nil
}
