// Package pgstore is the PostgreSQL Store backend. Inode records, content
// blobs, and tags live in three tables; the transaction bracket maps onto a
// database transaction carried through context, committed even on error so
// the core's compensation writes stay durable.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/internal/store"
	"github.com/osdev-lab/fscore/pkg/database/postgresql"
)

const (
	rootIno   uint32 = 1
	volumeDev uint32 = 1

	uniqueViolation = "23505"
)

type Pgstore struct {
	db postgresql.Client
}

var _ store.Store = (*Pgstore)(nil)

func New(db postgresql.Client) *Pgstore {
	return &Pgstore{db: db}
}

// Bootstrap ensures the root directory row exists on a fresh volume.
func (s *Pgstore) Bootstrap(ctx context.Context) error {
	const op = "pgstore.Pgstore.Bootstrap"

	query := `
		INSERT INTO inodes (ino, dev, kind, nlink)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (ino) DO NOTHING
	`

	db := postgresql.GetDBClient(ctx, s.db)
	if _, err := db.Exec(ctx, query, rootIno, volumeDev, store.KindDir); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Pgstore) WithTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	if postgresql.InBracket(ctx) {
		panic("pgstore: nested transaction bracket")
	}
	return postgresql.WithBracket(ctx, s.db, fn)
}

func (s *Pgstore) AllocInode(ctx context.Context, dev uint32, kind store.InodeKind) (*store.InodeRec, error) {
	const op = "pgstore.Pgstore.AllocInode"

	query := `
		INSERT INTO inodes (ino, dev, kind, nlink)
		VALUES (nextval('ino_seq'), $1, $2, 0)
		RETURNING ino
	`

	rec := store.InodeRec{Dev: dev, Kind: kind}
	db := postgresql.GetDBClient(ctx, s.db)
	if err := db.QueryRow(ctx, query, dev, kind).Scan(&rec.Ino); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

func (s *Pgstore) GetInode(ctx context.Context, ino uint32) (*store.InodeRec, error) {
	const op = "pgstore.Pgstore.GetInode"

	query := `
		SELECT ino, dev, kind, nlink, major, minor, size, symlink, sym_target
		FROM inodes
		WHERE ino = $1
	`

	var rec store.InodeRec
	db := postgresql.GetDBClient(ctx, s.db)
	err := db.QueryRow(ctx, query, ino).Scan(
		&rec.Ino,
		&rec.Dev,
		&rec.Kind,
		&rec.Nlink,
		&rec.Major,
		&rec.Minor,
		&rec.Size,
		&rec.Symlink,
		&rec.SymTarget,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kerrors.ErrNoSuchPath
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

func (s *Pgstore) PutInode(ctx context.Context, rec *store.InodeRec) error {
	const op = "pgstore.Pgstore.PutInode"

	query := `
		UPDATE inodes
		SET kind = $1, nlink = $2, major = $3, minor = $4, size = $5,
		    symlink = $6, sym_target = $7, updated_at = NOW()
		WHERE ino = $8
	`

	db := postgresql.GetDBClient(ctx, s.db)
	tag, err := db.Exec(ctx, query,
		rec.Kind,
		rec.Nlink,
		rec.Major,
		rec.Minor,
		rec.Size,
		rec.Symlink,
		rec.SymTarget,
		rec.Ino,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return kerrors.ErrNoSuchPath
	}
	return nil
}

func (s *Pgstore) FreeInode(ctx context.Context, ino uint32) error {
	const op = "pgstore.Pgstore.FreeInode"

	// Content and tag rows go via ON DELETE CASCADE.
	query := `DELETE FROM inodes WHERE ino = $1`

	db := postgresql.GetDBClient(ctx, s.db)
	if _, err := db.Exec(ctx, query, ino); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Pgstore) ReadAt(ctx context.Context, ino uint32, p []byte, off int64) (int, error) {
	const op = "pgstore.Pgstore.ReadAt"

	query := `
		SELECT data
		FROM file_contents
		WHERE ino = $1
	`

	var data []byte
	db := postgresql.GetDBClient(ctx, s.db)
	err := db.QueryRow(ctx, query, ino).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if off >= int64(len(data)) {
		return 0, nil
	}
	return copy(p, data[off:]), nil
}

func (s *Pgstore) WriteAt(ctx context.Context, ino uint32, p []byte, off int64) (int, error) {
	const op = "pgstore.Pgstore.WriteAt"

	db := postgresql.GetDBClient(ctx, s.db)

	var data []byte
	err := db.QueryRow(ctx, `SELECT data FROM file_contents WHERE ino = $1`, ino).Scan(&data)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if want := off + int64(len(p)); want > int64(len(data)) {
		grown := make([]byte, want)
		copy(grown, data)
		data = grown
	}
	copy(data[off:], p)

	query := `
		INSERT INTO file_contents (ino, data)
		VALUES ($1, $2)
		ON CONFLICT (ino)
		DO UPDATE SET data = EXCLUDED.data
	`
	if _, err := db.Exec(ctx, query, ino, data); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(p), nil
}

func (s *Pgstore) SetTag(ctx context.Context, ino uint32, key, value string) error {
	const op = "pgstore.Pgstore.SetTag"

	query := `
		INSERT INTO inode_tags (ino, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (ino, key)
		DO UPDATE SET value = EXCLUDED.value
	`

	db := postgresql.GetDBClient(ctx, s.db)
	if _, err := db.Exec(ctx, query, ino, key, value); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return kerrors.ErrExists
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Pgstore) ClearTag(ctx context.Context, ino uint32, key string) error {
	const op = "pgstore.Pgstore.ClearTag"

	query := `DELETE FROM inode_tags WHERE ino = $1 AND key = $2`

	db := postgresql.GetDBClient(ctx, s.db)
	tag, err := db.Exec(ctx, query, ino, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return kerrors.ErrNoData
	}
	return nil
}

func (s *Pgstore) GetTag(ctx context.Context, ino uint32, key string) (string, error) {
	const op = "pgstore.Pgstore.GetTag"

	query := `
		SELECT value
		FROM inode_tags
		WHERE ino = $1 AND key = $2
	`

	var value string
	db := postgresql.GetDBClient(ctx, s.db)
	err := db.QueryRow(ctx, query, ino, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kerrors.ErrNoData
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

func (s *Pgstore) RootIno() uint32 {
	return rootIno
}
