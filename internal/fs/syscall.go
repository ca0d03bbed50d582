package fs

import (
	"context"
	"log/slog"

	"github.com/osdev-lab/fscore/internal/models"
	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
	"github.com/osdev-lab/fscore/pkg/logging"
	"github.com/osdev-lab/fscore/pkg/logging/slogext"
)

// Open mode bits.
const (
	ORdonly = 0x000
	OWronly = 0x001
	ORdwr   = 0x002
	OCreate = 0x200
)

// Open resolves path (creating a plain file first under OCreate), follows
// any symlink chain, and installs a new descriptor over the result.
// Directories open read-only.
func (p *Proc) Open(ctx context.Context, path string, mode int) (int, error) {
	const op = "fs.Open"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	fs := p.fs

	var ip *Inode
	if mode&OCreate != 0 {
		err := fs.store.WithTxn(ctx, func(ctx context.Context) error {
			var err error
			ip, err = fs.create(ctx, p, path, store.KindFile, 0, 0)
			return err
		})
		if err != nil {
			logger.Debug("open failed", slog.String("path", path), slogext.Err(err))
			return -1, err
		}
	} else {
		var err error
		ip, err = fs.resolve(ctx, p, path)
		if err != nil {
			logger.Debug("open failed", slog.String("path", path), slogext.Err(err))
			return -1, err
		}
		ip.lock()
	}

	ip, err := fs.followChain(ctx, p, ip)
	if err != nil {
		logger.Debug("open failed", slog.String("path", path), slogext.Err(err))
		return -1, err
	}
	if ip.isDir() && mode != ORdonly {
		ip.unlockPut(ctx)
		return -1, kerrors.ErrIsDirectory
	}

	readable := mode&OWronly == 0
	writable := mode&OWronly != 0 || mode&ORdwr != 0
	f := newFile(FDInode, ip, nil, readable, writable)
	ip.unlock()

	fd, err := p.fdAlloc(f)
	if err != nil {
		fs.fileClose(ctx, f)
		logger.Debug("open failed", slog.String("path", path), slogext.Err(err))
		return -1, err
	}
	logger.Debug("opened", slog.String("path", path), slog.Int("fd", fd))
	return fd, nil
}

// Dup installs a second descriptor over fd's open file. Both descriptors
// share the cursor.
func (p *Proc) Dup(ctx context.Context, fd int) (int, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return -1, err
	}
	nfd, err := p.fdAlloc(f.dup())
	if err != nil {
		p.fs.fileClose(ctx, f)
		return -1, err
	}
	return nfd, nil
}

// Read fills buf from fd's current position and advances the cursor.
func (p *Proc) Read(ctx context.Context, fd int, buf []byte) (int, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return 0, err
	}
	return p.fs.fileRead(ctx, f, buf)
}

// Write stores data at fd's current position and advances the cursor.
func (p *Proc) Write(ctx context.Context, fd int, data []byte) (int, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return 0, err
	}
	return p.fs.fileWrite(ctx, f, data)
}

// Close retires the descriptor; the open file goes when its last
// descriptor does.
func (p *Proc) Close(ctx context.Context, fd int) error {
	f, err := p.getFile(fd)
	if err != nil {
		return err
	}
	p.clearFD(fd)
	p.fs.fileClose(ctx, f)
	return nil
}

// Fstat reports the metadata of the inode behind fd.
func (p *Proc) Fstat(ctx context.Context, fd int) (*models.Stat, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return nil, err
	}
	return p.fs.fileStat(f)
}

// Chdir moves the process's working directory to path, dereferencing a
// symlink chain if path names one.
func (p *Proc) Chdir(ctx context.Context, path string) error {
	const op = "fs.Chdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	fs := p.fs

	ip, err := fs.resolve(ctx, p, path)
	if err != nil {
		logger.Debug("chdir failed", slog.String("path", path), slogext.Err(err))
		return err
	}
	ip.lock()
	ip, err = fs.followChain(ctx, p, ip)
	if err != nil {
		logger.Debug("chdir failed", slog.String("path", path), slogext.Err(err))
		return err
	}
	if !ip.isDir() {
		ip.unlockPut(ctx)
		return kerrors.ErrNotDirectory
	}
	ip.unlock()

	p.mu.Lock()
	old := p.cwd
	p.cwd = ip
	p.mu.Unlock()
	fs.iput(ctx, old)

	logger.Debug("working directory changed", slog.String("path", path))
	return nil
}

// Exec resolves path through any symlink chain, reads the whole program
// image, and hands it to the installed loader. Argument vectors past MAXARG
// entries are rejected before any resolution runs.
func (p *Proc) Exec(ctx context.Context, path string, argv []string) (int, error) {
	const op = "fs.Exec"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	fs := p.fs

	if len(argv) > MAXARG {
		return -1, kerrors.ErrInvalidArgument
	}
	if fs.exec == nil {
		return -1, kerrors.ErrInvalidArgument
	}

	ip, err := fs.resolve(ctx, p, path)
	if err != nil {
		logger.Debug("exec failed", slog.String("path", path), slogext.Err(err))
		return -1, err
	}
	ip.lock()
	ip, err = fs.followChain(ctx, p, ip)
	if err != nil {
		logger.Debug("exec failed", slog.String("path", path), slogext.Err(err))
		return -1, err
	}
	if ip.Kind != store.KindFile {
		ip.unlockPut(ctx)
		return -1, kerrors.ErrInvalidArgument
	}

	image := make([]byte, ip.Size)
	if _, err := fs.store.ReadAt(ctx, ip.Ino, image, 0); err != nil {
		ip.unlockPut(ctx)
		logger.Debug("exec failed", slog.String("path", path), slogext.Err(err))
		return -1, err
	}
	ip.unlockPut(ctx)

	logger.Debug("exec image loaded", slog.String("path", path), slog.Int("bytes", len(image)))
	return fs.exec.Exec(ctx, image, argv)
}

// Pipe installs a connected read/write descriptor pair. Either allocation
// failing rolls the whole call back.
func (p *Proc) Pipe(ctx context.Context) (int, int, error) {
	rf, wf := allocPipe()

	fd0, err := p.fdAlloc(rf)
	if err != nil {
		p.fs.fileClose(ctx, rf)
		p.fs.fileClose(ctx, wf)
		return -1, -1, err
	}
	fd1, err := p.fdAlloc(wf)
	if err != nil {
		p.clearFD(fd0)
		p.fs.fileClose(ctx, rf)
		p.fs.fileClose(ctx, wf)
		return -1, -1, err
	}
	return fd0, fd1, nil
}
