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

// followChain dereferences ip until a non-symlink inode is reached. ip is
// locked and referenced on entry; the result is locked and referenced. The
// previous inode's lock is always released before the next lookup runs, so
// at most one inode lock is held at a time. A chain needing SYMLOOP hops is
// rejected with ErrChainTooLong.
func (fs *FS) followChain(ctx context.Context, p *Proc, ip *Inode) (*Inode, error) {
	for depth := 0; depth < SYMLOOP; depth++ {
		if !ip.Symlink {
			return ip, nil
		}
		target := ip.SymTarget
		ip.unlock()
		next, err := fs.resolve(ctx, p, target)
		fs.iput(ctx, ip)
		if err != nil {
			return nil, err
		}
		next.lock()
		ip = next
	}
	ip.unlockPut(ctx)
	return nil, kerrors.ErrChainTooLong
}

// readTarget resolves path without dereferencing the final component, then
// walks the symlink chain and returns the terminal symlink's target string.
// A target that resolves to nothing is ErrBrokenLink; a non-symlink path is
// ErrNotASymlink. The readlink syscall is a thin bound-copy wrapper over it;
// chdir and exec chase links through followChain instead.
func (fs *FS) readTarget(ctx context.Context, p *Proc, path string) (string, error) {
	ip, err := fs.resolve(ctx, p, path)
	if err != nil {
		return "", err
	}
	ip.lock()
	if !ip.Symlink {
		ip.unlockPut(ctx)
		return "", kerrors.ErrNotASymlink
	}
	target := ip.SymTarget
	ip.unlock()

	for depth := 0; depth < SYMLOOP; depth++ {
		next, err := fs.resolve(ctx, p, target)
		if err != nil {
			fs.iput(ctx, ip)
			if errors.Is(err, kerrors.ErrNoSuchPath) {
				return "", kerrors.ErrBrokenLink
			}
			return "", err
		}
		next.lock()
		if !next.Symlink {
			next.unlockPut(ctx)
			fs.iput(ctx, ip)
			return target, nil
		}
		target = next.SymTarget
		next.unlock()
		fs.iput(ctx, ip)
		ip = next
	}
	fs.iput(ctx, ip)
	return "", kerrors.ErrChainTooLong
}

// Symlink creates a symbolic link at path holding target. The created inode
// is a plain file carrying the inline target instead of content; its size
// stays 0. The create and the target store share one transaction. A
// read-only symlink-marker open file is built over the inode and released
// once the link is durable, since no descriptor is handed out.
func (p *Proc) Symlink(ctx context.Context, target, path string) error {
	const op = "fs.Symlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	fs := p.fs

	if target == "" {
		return kerrors.ErrInvalidArgument
	}
	if len(target) > MaxLinkName {
		return kerrors.ErrTooLong
	}

	var f *File
	err := fs.store.WithTxn(ctx, func(ctx context.Context) error {
		ip, err := fs.create(ctx, p, path, store.KindFile, 0, 0)
		if err != nil {
			return err
		}
		ip.SymTarget = target
		ip.Symlink = true
		ip.Size = 0
		if err := ip.persist(ctx); err != nil {
			ip.Nlink = 0
			_ = ip.persist(ctx)
			ip.unlockPut(ctx)
			return err
		}
		ip.unlock()
		f = newFile(FDSymlink, ip, nil, true, false)
		return nil
	})
	if err != nil {
		logger.Debug("symlink failed",
			slog.String("target", target),
			slog.String("path", path),
			slogext.Err(err),
		)
		return err
	}
	fs.fileClose(ctx, f)
	logger.Debug("symlink created", slog.String("target", target), slog.String("path", path))
	return nil
}

// Readlink returns the terminal target of the symlink chain at path,
// truncated to bufsiz bytes.
func (p *Proc) Readlink(ctx context.Context, path string, bufsiz int) (string, error) {
	if bufsiz <= 0 {
		return "", kerrors.ErrInvalidArgument
	}
	target, err := p.fs.readTarget(ctx, p, path)
	if err != nil {
		return "", err
	}
	if len(target) > bufsiz {
		target = target[:bufsiz]
	}
	return target, nil
}
