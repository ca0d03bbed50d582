package fs

import (
	"context"
	"log/slog"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/pkg/logging"
	"github.com/osdev-lab/fscore/pkg/logging/slogext"
)

const (
	// MaxTagKey bounds a tag's key length.
	MaxTagKey = 32
	// MaxTagValue bounds a tag's value length.
	MaxTagValue = 128
)

// tagInode resolves fd to an inode-backed open file; pipes carry no tags.
func (p *Proc) tagInode(fd int) (*File, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return nil, err
	}
	if f.ip == nil {
		return nil, kerrors.ErrInvalidArgument
	}
	return f, nil
}

// Ftag attaches key=value metadata to the inode behind fd, replacing any
// previous value for key.
func (p *Proc) Ftag(ctx context.Context, fd int, key, value string) error {
	const op = "fs.Ftag"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if key == "" || len(key) > MaxTagKey {
		return kerrors.ErrInvalidArgument
	}
	if len(value) > MaxTagValue {
		return kerrors.ErrInvalidArgument
	}
	f, err := p.tagInode(fd)
	if err != nil {
		return err
	}

	err = p.fs.store.WithTxn(ctx, func(ctx context.Context) error {
		f.ip.lock()
		defer f.ip.unlock()
		return p.fs.store.SetTag(ctx, f.ip.Ino, key, value)
	})
	if err != nil {
		logger.Debug("ftag failed", slog.String("key", key), slogext.Err(err))
		return err
	}
	logger.Debug("tag set", slog.Int("fd", fd), slog.String("key", key))
	return nil
}

// Funtag removes key's tag from the inode behind fd. A key that was never
// set is ErrNoData.
func (p *Proc) Funtag(ctx context.Context, fd int, key string) error {
	const op = "fs.Funtag"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if key == "" || len(key) > MaxTagKey {
		return kerrors.ErrInvalidArgument
	}
	f, err := p.tagInode(fd)
	if err != nil {
		return err
	}

	err = p.fs.store.WithTxn(ctx, func(ctx context.Context) error {
		f.ip.lock()
		defer f.ip.unlock()
		return p.fs.store.ClearTag(ctx, f.ip.Ino, key)
	})
	if err != nil {
		logger.Debug("funtag failed", slog.String("key", key), slogext.Err(err))
		return err
	}
	logger.Debug("tag cleared", slog.Int("fd", fd), slog.String("key", key))
	return nil
}

// Gettag reads key's tag from the inode behind fd, truncated to bufsiz
// bytes.
func (p *Proc) Gettag(ctx context.Context, fd int, key string, bufsiz int) (string, error) {
	if key == "" || len(key) > MaxTagKey || bufsiz <= 0 {
		return "", kerrors.ErrInvalidArgument
	}
	f, err := p.tagInode(fd)
	if err != nil {
		return "", err
	}

	var value string
	err = p.fs.store.WithTxn(ctx, func(ctx context.Context) error {
		f.ip.lock()
		defer f.ip.unlock()
		value, err = p.fs.store.GetTag(ctx, f.ip.Ino, key)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(value) > bufsiz {
		value = value[:bufsiz]
	}
	return value, nil
}
