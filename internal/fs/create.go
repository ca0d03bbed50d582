package fs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
	"github.com/osdev-lab/fscore/pkg/logging"
	"github.com/osdev-lab/fscore/pkg/logging/slogext"
)

// create makes a new inode of the given kind linked at path, returning it
// locked and referenced. An existing plain file satisfies a plain-file
// request (idempotent open-with-create); any other collision is ErrExists.
// Runs inside the caller's transaction bracket.
func (fs *FS) create(ctx context.Context, p *Proc, path string, kind store.InodeKind, major, minor int16) (*Inode, error) {
	dp, name, err := fs.resolveParent(ctx, p, path)
	if err != nil {
		return nil, err
	}
	dp.lock()

	ino, _, err := fs.dirLookup(ctx, dp, name)
	if err == nil {
		dp.unlockPut(ctx)
		ip, err := fs.iget(ctx, ino)
		if err != nil {
			return nil, err
		}
		ip.lock()
		if kind == store.KindFile && ip.Kind == store.KindFile {
			return ip, nil
		}
		ip.unlockPut(ctx)
		return nil, kerrors.ErrExists
	}
	if !errors.Is(err, kerrors.ErrNoSuchPath) {
		dp.unlockPut(ctx)
		return nil, err
	}

	ip, err := fs.ialloc(ctx, dp.Dev, kind)
	if err != nil {
		dp.unlockPut(ctx)
		return nil, err
	}
	ip.lock()
	ip.Major = major
	ip.Minor = minor
	ip.Nlink = 1
	if err := ip.persist(ctx); err != nil {
		return nil, fs.abortCreate(ctx, dp, ip, err)
	}

	if kind == store.KindDir {
		dp.Nlink++ // the new directory's ".." back-reference
		if err := dp.persist(ctx); err != nil {
			dp.Nlink--
			return nil, fs.abortCreate(ctx, dp, ip, err)
		}
		// No ip.Nlink++ for ".": a self-reference in the count would make
		// the directory uncollectable.
		if err := fs.dirLink(ctx, ip, ".", ip.Ino); err != nil {
			dp.Nlink--
			_ = dp.persist(ctx)
			return nil, fs.abortCreate(ctx, dp, ip, err)
		}
		if err := fs.dirLink(ctx, ip, "..", dp.Ino); err != nil {
			dp.Nlink--
			_ = dp.persist(ctx)
			return nil, fs.abortCreate(ctx, dp, ip, err)
		}
	}

	if err := fs.dirLink(ctx, dp, name, ip.Ino); err != nil {
		if kind == store.KindDir {
			dp.Nlink--
			_ = dp.persist(ctx)
		}
		return nil, fs.abortCreate(ctx, dp, ip, err)
	}

	dp.unlockPut(ctx)
	return ip, nil
}

// abortCreate unwinds a half-made inode: zero its link count so the final
// reference drop reclaims the storage, then release both handles.
func (fs *FS) abortCreate(ctx context.Context, dp, ip *Inode, err error) error {
	ip.Nlink = 0
	_ = ip.persist(ctx)
	ip.unlockPut(ctx)
	dp.unlockPut(ctx)
	return err
}

// Mkdir creates a directory at path.
func (p *Proc) Mkdir(ctx context.Context, path string) error {
	const op = "fs.Mkdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	err := p.fs.store.WithTxn(ctx, func(ctx context.Context) error {
		ip, err := p.fs.create(ctx, p, path, store.KindDir, 0, 0)
		if err != nil {
			return err
		}
		ip.unlockPut(ctx)
		return nil
	})
	if err != nil {
		logger.Debug("mkdir failed", slog.String("path", path), slogext.Err(err))
		return err
	}
	logger.Debug("directory created", slog.String("path", path))
	return nil
}

// Mknod creates a device node at path.
func (p *Proc) Mknod(ctx context.Context, path string, major, minor int16) error {
	const op = "fs.Mknod"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	err := p.fs.store.WithTxn(ctx, func(ctx context.Context) error {
		ip, err := p.fs.create(ctx, p, path, store.KindDevice, major, minor)
		if err != nil {
			return err
		}
		ip.unlockPut(ctx)
		return nil
	})
	if err != nil {
		logger.Debug("mknod failed", slog.String("path", path), slogext.Err(err))
	}
	return err
}

// Link creates newPath as a hard link to the inode at oldPath. The link
// count bump and the directory entry share one transaction; a failure after
// the bump compensates with a decrement inside the same bracket, so a crash
// never leaves a dangling extra count.
func (p *Proc) Link(ctx context.Context, oldPath, newPath string) error {
	const op = "fs.Link"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	fs := p.fs

	ip, err := fs.resolve(ctx, p, oldPath)
	if err != nil {
		return err
	}

	err = fs.store.WithTxn(ctx, func(ctx context.Context) error {
		ip.lock()
		if ip.isDir() {
			// Hard links to directories would let the tree form cycles.
			ip.unlockPut(ctx)
			return kerrors.ErrIsDirectory
		}
		ip.Nlink++
		if err := ip.persist(ctx); err != nil {
			ip.Nlink--
			ip.unlockPut(ctx)
			return err
		}
		ip.unlock()

		bad := func(cause error) error {
			ip.lock()
			ip.Nlink--
			_ = ip.persist(ctx)
			ip.unlockPut(ctx)
			return cause
		}

		dp, name, err := fs.resolveParent(ctx, p, newPath)
		if err != nil {
			return bad(err)
		}
		dp.lock()
		if dp.Dev != ip.Dev {
			dp.unlockPut(ctx)
			return bad(kerrors.ErrCrossDevice)
		}
		if err := fs.dirLink(ctx, dp, name, ip.Ino); err != nil {
			dp.unlockPut(ctx)
			return bad(err)
		}
		dp.unlockPut(ctx)
		fs.iput(ctx, ip)
		return nil
	})
	if err != nil {
		logger.Debug("link failed",
			slog.String("old", oldPath),
			slog.String("new", newPath),
			slogext.Err(err),
		)
		return err
	}
	logger.Debug("link created", slog.String("old", oldPath), slog.String("new", newPath))
	return nil
}

// Unlink removes the directory entry at path. A directory must hold nothing
// besides "." and "..". The entry zeroing and the link count adjustments
// share one transaction.
func (p *Proc) Unlink(ctx context.Context, path string) error {
	const op = "fs.Unlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	fs := p.fs

	dp, name, err := fs.resolveParent(ctx, p, path)
	if err != nil {
		return err
	}

	err = fs.store.WithTxn(ctx, func(ctx context.Context) error {
		dp.lock()
		bad := func(cause error) error {
			dp.unlockPut(ctx)
			return cause
		}

		if name == "." || name == ".." {
			return bad(kerrors.ErrInvalidArgument)
		}
		ino, off, err := fs.dirLookup(ctx, dp, name)
		if err != nil {
			return bad(err)
		}
		ip, err := fs.iget(ctx, ino)
		if err != nil {
			return bad(err)
		}
		ip.lock()
		if ip.Nlink < 1 {
			ip.unlockPut(ctx)
			return bad(kerrors.ErrInternal)
		}
		if ip.isDir() {
			empty, err := fs.isDirEmpty(ctx, ip)
			if err != nil {
				ip.unlockPut(ctx)
				return bad(err)
			}
			if !empty {
				ip.unlockPut(ctx)
				return bad(kerrors.ErrNotEmpty)
			}
		}

		if err := fs.dirUnlink(ctx, dp, off); err != nil {
			ip.unlockPut(ctx)
			return bad(err)
		}

		// The entry is gone but the commit happens regardless of how the
		// callback returns, so every later failure must put it back.
		undo := func(cause error) error {
			_, _ = fs.store.WriteAt(ctx, dp.Ino, encodeDirent(name, ino), off)
			ip.unlockPut(ctx)
			return bad(cause)
		}

		if ip.isDir() {
			dp.Nlink-- // drop the removed directory's ".." back-reference
			if err := dp.persist(ctx); err != nil {
				dp.Nlink++
				return undo(err)
			}
		}

		ip.Nlink--
		if err := ip.persist(ctx); err != nil {
			ip.Nlink++
			if ip.isDir() {
				dp.Nlink++
				_ = dp.persist(ctx)
			}
			return undo(err)
		}
		ip.unlockPut(ctx)
		dp.unlockPut(ctx)
		return nil
	})
	if err != nil {
		logger.Debug("unlink failed", slog.String("path", path), slogext.Err(err))
		return err
	}
	logger.Debug("unlinked", slog.String("path", path))
	return nil
}
