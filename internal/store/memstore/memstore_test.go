package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
)

func TestFreshVolume(t *testing.T) {
	s := New()
	ctx := context.Background()

	root, err := s.GetInode(ctx, s.RootIno())
	require.NoError(t, err)
	assert.Equal(t, store.KindDir, root.Kind)
	assert.Equal(t, int16(1), root.Nlink)
	assert.Equal(t, int64(0), root.Size)
}

func TestAllocAndFree(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec, err := s.AllocInode(ctx, 1, store.KindFile)
	require.NoError(t, err)
	assert.NotEqual(t, s.RootIno(), rec.Ino)

	_, err = s.WriteAt(ctx, rec.Ino, []byte("abc"), 0)
	require.NoError(t, err)
	require.NoError(t, s.SetTag(ctx, rec.Ino, "k", "v"))

	require.NoError(t, s.FreeInode(ctx, rec.Ino))

	_, err = s.GetInode(ctx, rec.Ino)
	assert.ErrorIs(t, err, kerrors.ErrNoSuchPath)
	_, err = s.GetTag(ctx, rec.Ino, "k")
	assert.ErrorIs(t, err, kerrors.ErrNoData)
}

func TestWriteAtGrows(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec, err := s.AllocInode(ctx, 1, store.KindFile)
	require.NoError(t, err)

	n, err := s.WriteAt(ctx, rec.Ino, []byte("xy"), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	buf := make([]byte, 12)
	n, err = s.ReadAt(ctx, rec.Ino, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, "xy", string(buf[10:12]))

	// Overwrite in place keeps the length.
	_, err = s.WriteAt(ctx, rec.Ino, []byte("AB"), 0)
	require.NoError(t, err)
	n, err = s.ReadAt(ctx, rec.Ino, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, "AB", string(buf[:2]))
}

func TestTagReplace(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec, err := s.AllocInode(ctx, 1, store.KindFile)
	require.NoError(t, err)

	require.NoError(t, s.SetTag(ctx, rec.Ino, "k", "v1"))
	require.NoError(t, s.SetTag(ctx, rec.Ino, "k", "v2"))

	v, err := s.GetTag(ctx, rec.Ino, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, s.ClearTag(ctx, rec.Ino, "k"))
	assert.ErrorIs(t, s.ClearTag(ctx, rec.Ino, "k"), kerrors.ErrNoData)
}

func TestBracketCommitsOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	fail := errors.New("inner failure")
	var ino uint32
	err := s.WithTxn(ctx, func(ctx context.Context) error {
		rec, err := s.AllocInode(ctx, 1, store.KindFile)
		require.NoError(t, err)
		ino = rec.Ino
		return fail
	})
	assert.ErrorIs(t, err, fail)

	// Mutations made before the error stay applied.
	_, err = s.GetInode(ctx, ino)
	assert.NoError(t, err)

	begun, committed := s.TxnBalance()
	assert.Equal(t, 1, begun)
	assert.Equal(t, 1, committed)
}

func TestNestedBracketPanics(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithTxn(ctx, func(ctx context.Context) error {
			return s.WithTxn(ctx, func(ctx context.Context) error { return nil })
		})
	})
}

func TestFaultInjection(t *testing.T) {
	s := New()
	ctx := context.Background()

	injected := errors.New("injected")
	s.SetFault(func(op string) error {
		if op == "AllocInode" {
			return injected
		}
		return nil
	})
	_, err := s.AllocInode(ctx, 1, store.KindFile)
	assert.ErrorIs(t, err, injected)

	s.SetFault(nil)
	_, err = s.AllocInode(ctx, 1, store.KindFile)
	assert.NoError(t, err)
}
