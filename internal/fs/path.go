package fs

import (
	"context"
	"errors"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
)

// nextElem peels the first path component off path, skipping slashes.
// Components longer than DirNameLen are truncated.
func nextElem(path string) (elem, rest string) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	path = path[i:]
	if path == "" {
		return "", ""
	}
	i = 0
	for i < len(path) && path[i] != '/' {
		i++
	}
	elem = path[:i]
	for i < len(path) && path[i] == '/' {
		i++
	}
	rest = path[i:]
	if len(elem) > DirNameLen {
		elem = elem[:DirNameLen]
	}
	return elem, rest
}

// namex walks path from the root or p's working directory. With wantParent
// it stops one component early and returns the referenced, unlocked parent
// plus the final name; otherwise it returns the referenced, unlocked target.
func (fs *FS) namex(ctx context.Context, p *Proc, path string, wantParent bool) (*Inode, string, error) {
	if path == "" {
		return nil, "", kerrors.ErrInvalidArgument
	}

	var dp *Inode
	var err error
	if path[0] == '/' {
		dp, err = fs.iget(ctx, fs.store.RootIno())
		if err != nil {
			return nil, "", err
		}
	} else {
		dp = fs.idup(p.cwd)
	}

	for {
		elem, rest := nextElem(path)
		if elem == "" {
			// Path exhausted ("/", ".", trailing slashes).
			if wantParent {
				fs.iput(ctx, dp)
				return nil, "", kerrors.ErrNoSuchParent
			}
			return dp, "", nil
		}

		dp.lock()
		if !dp.isDir() {
			dp.unlockPut(ctx)
			return nil, "", kerrors.ErrNotDirectory
		}
		if wantParent && rest == "" {
			dp.unlock()
			return dp, elem, nil
		}
		ino, _, err := fs.dirLookup(ctx, dp, elem)
		if err != nil {
			dp.unlockPut(ctx)
			if errors.Is(err, kerrors.ErrNoSuchPath) {
				return nil, "", kerrors.ErrNoSuchPath
			}
			return nil, "", err
		}
		dp.unlock()

		next, err := fs.iget(ctx, ino)
		fs.iput(ctx, dp)
		if err != nil {
			return nil, "", err
		}
		if rest == "" {
			return next, "", nil
		}
		dp = next
		path = rest
	}
}

// resolve returns the referenced, unlocked inode at path. The final
// component is not dereferenced if it is a symlink.
func (fs *FS) resolve(ctx context.Context, p *Proc, path string) (*Inode, error) {
	ip, _, err := fs.namex(ctx, p, path, false)
	return ip, err
}

// resolveParent returns the referenced, unlocked parent directory of path
// and the final component name.
func (fs *FS) resolveParent(ctx context.Context, p *Proc, path string) (*Inode, string, error) {
	dp, name, err := fs.namex(ctx, p, path, true)
	if err != nil {
		if errors.Is(err, kerrors.ErrNoSuchPath) {
			return nil, "", kerrors.ErrNoSuchParent
		}
		return nil, "", err
	}
	return dp, name, nil
}
