package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the slice of pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps lock records in the shared `locks` table. The steal
// path rides on a single conditional upsert, so concurrent acquires from
// different nodes race inside the database, not in application code.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO locks (name, holder, acquired_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			holder      = excluded.holder,
			acquired_at = excluded.acquired_at
		WHERE locks.acquired_at < now() - $3::interval`,
		name, holder, fmt.Sprintf("%f seconds", ttl.Seconds()))
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	var current string
	err = s.db.QueryRow(ctx,
		`SELECT holder FROM locks WHERE name = $1`, name).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		// The row vanished between the upsert and the verify: another
		// holder won and released in the gap. Not ours this cycle.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify lock %s: %w", name, err)
	}
	return current == holder, nil
}

func (s *PostgresStore) Heartbeat(ctx context.Context, name, holder string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE locks SET acquired_at = now()
		WHERE name = $1 AND holder = $2`,
		name, holder)
	if err != nil {
		return false, fmt.Errorf("heartbeat lock %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Release(ctx context.Context, name, holder string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM locks WHERE name = $1 AND holder = $2`, name, holder); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
