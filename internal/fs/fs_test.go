package fs_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-lab/fscore/internal/fs"
	"github.com/osdev-lab/fscore/internal/models"
	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store/memstore"
)

func newTestFS(t *testing.T) (*memstore.Memstore, *fs.FS, *fs.Proc) {
	t.Helper()
	ctx := context.Background()

	st := memstore.New()
	fsys, err := fs.New(ctx, st)
	require.NoError(t, err)

	p, err := fsys.NewProc(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { p.Release(ctx) })

	return st, fsys, p
}

func writeFile(t *testing.T, p *fs.Proc, path string, data []byte) {
	t.Helper()
	ctx := context.Background()

	fd, err := p.Open(ctx, path, fs.OCreate|fs.OWronly)
	require.NoError(t, err)
	if len(data) > 0 {
		n, err := p.Write(ctx, fd, data)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
	}
	require.NoError(t, p.Close(ctx, fd))
}

func readFile(t *testing.T, p *fs.Proc, path string) []byte {
	t.Helper()
	ctx := context.Background()

	fd, err := p.Open(ctx, path, fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := p.Read(ctx, fd, buf)
		require.NoError(t, err)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestOpenCreateReadWrite(t *testing.T) {
	_, _, p := newTestFS(t)

	writeFile(t, p, "/hello", []byte("hello, world"))
	assert.Equal(t, []byte("hello, world"), readFile(t, p, "/hello"))
}

func TestOpenCreateIdempotent(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", []byte("payload"))

	// A second create must reuse the inode and keep its content.
	fd, err := p.Open(ctx, "/f", fs.OCreate|fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	st1, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), st1.Size)

	fd2, err := p.Open(ctx, "/f", fs.OCreate|fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd2)

	st2, err := p.Fstat(ctx, fd2)
	require.NoError(t, err)
	assert.Equal(t, st1.Ino, st2.Ino)
}

func TestOpenMissing(t *testing.T) {
	_, _, p := newTestFS(t)

	_, err := p.Open(context.Background(), "/nope", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)
}

func TestOpenDirectoryForWriting(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/d"))

	_, err := p.Open(ctx, "/d", fs.OWronly)
	assert.ErrorIs(t, err, kerrors.ErrIsDirectory)

	fd, err := p.Open(ctx, "/d", fs.ORdonly)
	require.NoError(t, err)
	p.Close(ctx, fd)
}

func TestMkdirBootstrapsDotEntries(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/a"))
	require.NoError(t, p.Mkdir(ctx, "/a/b"))
	writeFile(t, p, "/a/b/f", []byte("x"))

	// "." and ".." resolve as real entries.
	assert.Equal(t, []byte("x"), readFile(t, p, "/a/b/../b/./f"))
	assert.Equal(t, []byte("x"), readFile(t, p, "/a/b/../../a/b/f"))
}

func TestMkdirExisting(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/d"))
	assert.ErrorIs(t, p.Mkdir(ctx, "/d"), kerrors.ErrExists)
}

func TestMkdirMissingParent(t *testing.T) {
	_, _, p := newTestFS(t)

	err := p.Mkdir(context.Background(), "/no/such/dir")
	assert.ErrorIs(t, err, kerrors.ErrNoSuchParent)
}

func TestMknodAndFstat(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mknod(ctx, "/console", 1, 0))

	fd, err := p.Open(ctx, "/console", fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	st, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, models.KindDevice, st.Kind)
	assert.Equal(t, int16(1), st.Major)

	_, err = p.Read(ctx, fd, make([]byte, 4))
	assert.ErrorIs(t, err, kerrors.ErrInvalidArgument)
}

func TestLinkSharesInode(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/a", []byte("shared"))
	require.NoError(t, p.Link(ctx, "/a", "/b"))

	fd, err := p.Open(ctx, "/b", fs.ORdonly)
	require.NoError(t, err)
	st, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	p.Close(ctx, fd)

	assert.Equal(t, int16(2), st.Nlink)
	assert.Equal(t, []byte("shared"), readFile(t, p, "/b"))

	// Dropping one name leaves the other intact.
	require.NoError(t, p.Unlink(ctx, "/a"))
	assert.Equal(t, []byte("shared"), readFile(t, p, "/b"))

	fd, err = p.Open(ctx, "/b", fs.ORdonly)
	require.NoError(t, err)
	st, err = p.Fstat(ctx, fd)
	require.NoError(t, err)
	p.Close(ctx, fd)
	assert.Equal(t, int16(1), st.Nlink)
}

func TestLinkDirectoryRejected(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/d"))
	assert.ErrorIs(t, p.Link(ctx, "/d", "/d2"), kerrors.ErrIsDirectory)
}

func TestLinkExistingName(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/a", nil)
	writeFile(t, p, "/b", nil)
	assert.ErrorIs(t, p.Link(ctx, "/a", "/b"), kerrors.ErrExists)

	// The failed link must not leave the count bumped.
	fd, err := p.Open(ctx, "/a", fs.ORdonly)
	require.NoError(t, err)
	st, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	p.Close(ctx, fd)
	assert.Equal(t, int16(1), st.Nlink)
}

func TestUnlinkNonEmptyDirectory(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/d"))
	writeFile(t, p, "/d/f", nil)

	assert.ErrorIs(t, p.Unlink(ctx, "/d"), kerrors.ErrNotEmpty)

	require.NoError(t, p.Unlink(ctx, "/d/f"))
	require.NoError(t, p.Unlink(ctx, "/d"))
	_, err := p.Open(ctx, "/d", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)
}

func TestUnlinkDotRejected(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/d"))
	assert.ErrorIs(t, p.Unlink(ctx, "/d/."), kerrors.ErrInvalidArgument)
	assert.ErrorIs(t, p.Unlink(ctx, "/d/.."), kerrors.ErrInvalidArgument)
}

func TestSymlinkRoundtrip(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/target", []byte("via link"))
	require.NoError(t, p.Symlink(ctx, "/target", "/ln"))

	assert.Equal(t, []byte("via link"), readFile(t, p, "/ln"))

	got, err := p.Readlink(ctx, "/ln", 128)
	require.NoError(t, err)
	assert.Equal(t, "/target", got)

	// Truncated to the caller's buffer.
	got, err = p.Readlink(ctx, "/ln", 3)
	require.NoError(t, err)
	assert.Equal(t, "/ta", got)
}

func TestSymlinkChainBound(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/t", []byte("end"))
	prev := "/t"
	for i := 1; i <= fs.SYMLOOP; i++ {
		name := fmt.Sprintf("/l%d", i)
		require.NoError(t, p.Symlink(ctx, prev, name))
		prev = name
	}

	// One hop below the bound resolves.
	fd, err := p.Open(ctx, fmt.Sprintf("/l%d", fs.SYMLOOP-1), fs.ORdonly)
	require.NoError(t, err)
	p.Close(ctx, fd)

	// At the bound it does not.
	_, err = p.Open(ctx, fmt.Sprintf("/l%d", fs.SYMLOOP), fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrChainTooLong)
}

func TestSymlinkCycle(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Symlink(ctx, "/b", "/a"))
	require.NoError(t, p.Symlink(ctx, "/a", "/b"))

	_, err := p.Open(ctx, "/a", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrChainTooLong)
}

func TestSymlinkValidation(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	assert.ErrorIs(t, p.Symlink(ctx, "", "/ln"), kerrors.ErrInvalidArgument)
	assert.ErrorIs(t,
		p.Symlink(ctx, strings.Repeat("x", fs.MaxLinkName+1), "/ln"),
		kerrors.ErrTooLong,
	)
}

func TestReadlinkErrors(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/plain", nil)
	_, err := p.Readlink(ctx, "/plain", 64)
	assert.ErrorIs(t, err, kerrors.ErrNotASymlink)

	require.NoError(t, p.Symlink(ctx, "/missing", "/dangling"))
	_, err = p.Readlink(ctx, "/dangling", 64)
	assert.ErrorIs(t, err, kerrors.ErrBrokenLink)

	_, err = p.Readlink(ctx, "/dangling", 0)
	assert.ErrorIs(t, err, kerrors.ErrInvalidArgument)
}

func TestChdirThroughSymlink(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/dir"))
	writeFile(t, p, "/dir/f", []byte("here"))
	require.NoError(t, p.Symlink(ctx, "/dir", "/dlink"))

	require.NoError(t, p.Chdir(ctx, "/dlink"))
	assert.Equal(t, []byte("here"), readFile(t, p, "f"))

	writeFile(t, p, "/plain", nil)
	assert.ErrorIs(t, p.Chdir(ctx, "/plain"), kerrors.ErrNotDirectory)
}

func TestDupSharesCursor(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", []byte("abcdef"))

	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	fd2, err := p.Dup(ctx, fd)
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := p.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	n, err = p.Read(ctx, fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "def", string(buf[:n]))

	// Closing one descriptor leaves the shared object usable.
	require.NoError(t, p.Close(ctx, fd))
	_, err = p.Read(ctx, fd2, buf)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, fd2))

	_, err = p.Read(ctx, fd, buf)
	assert.ErrorIs(t, err, kerrors.ErrBadDescriptor)
}

func TestDescriptorExhaustion(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", nil)

	fds := make([]int, 0, fs.NOFILE)
	for {
		fd, err := p.Open(ctx, "/f", fs.ORdonly)
		if err != nil {
			assert.ErrorIs(t, err, kerrors.ErrNoFreeSlot)
			break
		}
		fds = append(fds, fd)
	}
	assert.Len(t, fds, fs.NOFILE)

	// Freeing one slot makes open work again.
	require.NoError(t, p.Close(ctx, fds[0]))
	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	assert.Equal(t, fds[0], fd)

	for _, old := range append(fds[1:], fd) {
		require.NoError(t, p.Close(ctx, old))
	}
}

func TestPipe(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	fd0, fd1, err := p.Pipe(ctx)
	require.NoError(t, err)

	n, err := p.Write(ctx, fd1, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 16)
	n, err = p.Read(ctx, fd0, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	// Directions are fixed.
	_, err = p.Read(ctx, fd1, buf)
	assert.ErrorIs(t, err, kerrors.ErrBadDescriptor)
	_, err = p.Write(ctx, fd0, []byte("x"))
	assert.ErrorIs(t, err, kerrors.ErrBadDescriptor)

	// EOF after the write end closes.
	require.NoError(t, p.Close(ctx, fd1))
	n, err = p.Read(ctx, fd0, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, p.Close(ctx, fd0))
}

func TestPipeBrokenWrite(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	fd0, fd1, err := p.Pipe(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Close(ctx, fd0))
	_, err = p.Write(ctx, fd1, []byte("lost"))
	assert.ErrorIs(t, err, kerrors.ErrBrokenPipe)
	require.NoError(t, p.Close(ctx, fd1))
}

func TestPipeBlockingReader(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	fd0, fd1, err := p.Pipe(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var got []byte
	go func() {
		defer wg.Done()
		buf := make([]byte, 16)
		n, err := p.Read(ctx, fd0, buf)
		assert.NoError(t, err)
		got = buf[:n]
	}()

	_, err = p.Write(ctx, fd1, []byte("wake"))
	require.NoError(t, err)
	wg.Wait()
	assert.Equal(t, "wake", string(got))

	require.NoError(t, p.Close(ctx, fd0))
	require.NoError(t, p.Close(ctx, fd1))
}

func TestTagLifecycle(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", nil)
	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	require.NoError(t, p.Ftag(ctx, fd, "owner", "alice"))

	got, err := p.Gettag(ctx, fd, "owner", 64)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	// Replace, then truncated read.
	require.NoError(t, p.Ftag(ctx, fd, "owner", "bob-the-builder"))
	got, err = p.Gettag(ctx, fd, "owner", 3)
	require.NoError(t, err)
	assert.Equal(t, "bob", got)

	require.NoError(t, p.Funtag(ctx, fd, "owner"))
	_, err = p.Gettag(ctx, fd, "owner", 64)
	assert.ErrorIs(t, err, kerrors.ErrNoData)
	assert.ErrorIs(t, p.Funtag(ctx, fd, "owner"), kerrors.ErrNoData)
}

func TestTagValidation(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", nil)
	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	assert.ErrorIs(t, p.Ftag(ctx, fd, "", "v"), kerrors.ErrInvalidArgument)
	assert.ErrorIs(t,
		p.Ftag(ctx, fd, strings.Repeat("k", fs.MaxTagKey+1), "v"),
		kerrors.ErrInvalidArgument,
	)
	assert.ErrorIs(t,
		p.Ftag(ctx, fd, "k", strings.Repeat("v", fs.MaxTagValue+1)),
		kerrors.ErrInvalidArgument,
	)

	// Pipe ends carry no tags.
	fd0, fd1, err := p.Pipe(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Ftag(ctx, fd0, "k", "v"), kerrors.ErrInvalidArgument)
	p.Close(ctx, fd0)
	p.Close(ctx, fd1)
}

type stubExecer struct {
	image []byte
	argv  []string
}

func (e *stubExecer) Exec(_ context.Context, image []byte, argv []string) (int, error) {
	e.image = image
	e.argv = argv
	return 0, nil
}

func TestExec(t *testing.T) {
	_, fsys, p := newTestFS(t)
	ctx := context.Background()

	loader := &stubExecer{}
	fsys.SetExecer(loader)

	writeFile(t, p, "/bin", []byte{0x7f, 'E', 'L', 'F'})
	require.NoError(t, p.Symlink(ctx, "/bin", "/blink"))

	status, err := p.Exec(ctx, "/blink", []string{"bin", "-v"})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, loader.image)
	assert.Equal(t, []string{"bin", "-v"}, loader.argv)
}

func TestExecValidation(t *testing.T) {
	_, fsys, p := newTestFS(t)
	ctx := context.Background()

	fsys.SetExecer(&stubExecer{})

	argv := make([]string, fs.MAXARG+1)
	_, err := p.Exec(ctx, "/bin", argv)
	assert.ErrorIs(t, err, kerrors.ErrInvalidArgument)

	require.NoError(t, p.Mkdir(ctx, "/d"))
	_, err = p.Exec(ctx, "/d", nil)
	assert.ErrorIs(t, err, kerrors.ErrInvalidArgument)
}

func TestBracketBalance(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/a", []byte("data"))
	require.NoError(t, p.Mkdir(ctx, "/d"))
	require.NoError(t, p.Link(ctx, "/a", "/d/a"))
	require.NoError(t, p.Unlink(ctx, "/d/a"))
	require.NoError(t, p.Symlink(ctx, "/a", "/ln"))

	begun, committed := st.TxnBalance()
	assert.Equal(t, begun, committed, "every bracket must be committed exactly once")
	assert.Greater(t, begun, 0)
}

func TestLinkFailureCompensates(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/a", nil)

	// Directory entry insertion fails; the link count bump must be undone
	// inside the same bracket.
	st.SetFault(func(op string) error {
		if op == "WriteAt" {
			return kerrors.ErrAllocation
		}
		return nil
	})
	err := p.Link(ctx, "/a", "/b")
	st.SetFault(nil)
	require.Error(t, err)

	begun, committed := st.TxnBalance()
	assert.Equal(t, begun, committed)

	fd, err := p.Open(ctx, "/a", fs.ORdonly)
	require.NoError(t, err)
	stat, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	p.Close(ctx, fd)
	assert.Equal(t, int16(1), stat.Nlink)

	_, err = p.Open(ctx, "/b", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)
}

func TestCreateFailureReclaims(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	fail := errors.New("injected")
	st.SetFault(func(op string) error {
		if op == "WriteAt" {
			return fail
		}
		return nil
	})
	err := p.Mkdir(ctx, "/d")
	st.SetFault(nil)
	require.Error(t, err)

	begun, committed := st.TxnBalance()
	assert.Equal(t, begun, committed)

	_, err = p.Open(ctx, "/d", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)

	// The name is free for reuse.
	require.NoError(t, p.Mkdir(ctx, "/d"))
}

func TestWriteExtendsSize(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	fd, err := p.Open(ctx, "/f", fs.OCreate|fs.ORdwr)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	_, err = p.Write(ctx, fd, []byte("12345678"))
	require.NoError(t, err)

	stat, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stat.Size)

	// Reads past the cursor stop at the size.
	buf := make([]byte, 16)
	n, err := p.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRelativePaths(t *testing.T) {
	_, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/x"))
	require.NoError(t, p.Chdir(ctx, "/x"))
	writeFile(t, p, "rel", []byte("relative"))
	assert.Equal(t, []byte("relative"), readFile(t, p, "/x/rel"))
	assert.Equal(t, []byte("relative"), readFile(t, p, "./rel"))
}

func TestNameTruncation(t *testing.T) {
	_, _, p := newTestFS(t)

	long := "/" + strings.Repeat("n", fs.DirNameLen+5)
	writeFile(t, p, long, []byte("t"))

	// Lookup goes through the same truncation.
	assert.Equal(t, []byte("t"), readFile(t, p, "/"+strings.Repeat("n", fs.DirNameLen)))
}

func TestUnlinkWhileOpen(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", []byte("still here"))

	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	require.NoError(t, p.Unlink(ctx, "/f"))

	// The name is gone but the open descriptor keeps the storage alive.
	_, err = p.Open(ctx, "/f", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)

	stat, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int16(0), stat.Nlink)

	buf := make([]byte, 16)
	n, err := p.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(buf[:n]))

	// Last close reclaims the inode.
	ino := stat.Ino
	require.NoError(t, p.Close(ctx, fd))
	_, err = st.GetInode(ctx, ino)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)
}

func TestGettagBracketed(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", nil)
	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, fd)

	require.NoError(t, p.Ftag(ctx, fd, "owner", "alice"))

	begun, committed := st.TxnBalance()
	got, err := p.Gettag(ctx, fd, "owner", 64)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	// Reads go through the same begin/commit bracket as the mutating
	// tag operations.
	begunAfter, committedAfter := st.TxnBalance()
	assert.Equal(t, begun+1, begunAfter)
	assert.Equal(t, committed+1, committedAfter)
}

func TestUnlinkFailureKeepsEntry(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	writeFile(t, p, "/f", []byte("keep"))

	// The inode write fails after the entry has been zeroed; the entry
	// must be put back inside the same bracket.
	st.SetFault(func(op string) error {
		if op == "PutInode" {
			return kerrors.ErrAllocation
		}
		return nil
	})
	err := p.Unlink(ctx, "/f")
	st.SetFault(nil)
	require.Error(t, err)

	begun, committed := st.TxnBalance()
	assert.Equal(t, begun, committed)

	fd, err := p.Open(ctx, "/f", fs.ORdonly)
	require.NoError(t, err)
	stat, err := p.Fstat(ctx, fd)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, fd))
	assert.Equal(t, int16(1), stat.Nlink)

	require.NoError(t, p.Unlink(ctx, "/f"))
	_, err = p.Open(ctx, "/f", fs.ORdonly)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)
}

func TestUnlinkDirFailureRestoresParent(t *testing.T) {
	st, _, p := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/d"))

	rootFD, err := p.Open(ctx, "/", fs.ORdonly)
	require.NoError(t, err)
	defer p.Close(ctx, rootFD)
	before, err := p.Fstat(ctx, rootFD)
	require.NoError(t, err)

	st.SetFault(func(op string) error {
		if op == "PutInode" {
			return kerrors.ErrAllocation
		}
		return nil
	})
	err = p.Unlink(ctx, "/d")
	st.SetFault(nil)
	require.Error(t, err)

	// The parent keeps its ".." back-reference and the name still resolves.
	after, err := p.Fstat(ctx, rootFD)
	require.NoError(t, err)
	assert.Equal(t, before.Nlink, after.Nlink)
	require.NoError(t, p.Chdir(ctx, "/d"))
	require.NoError(t, p.Chdir(ctx, "/"))

	require.NoError(t, p.Unlink(ctx, "/d"))
	final, err := p.Fstat(ctx, rootFD)
	require.NoError(t, err)
	assert.Equal(t, before.Nlink-1, final.Nlink)
}
