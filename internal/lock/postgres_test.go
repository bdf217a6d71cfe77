package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	holder string
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.holder
	return nil
}

type fakeQuerier struct {
	execTag pgconn.CommandTag
	execErr error
	row     fakeRow
}

func (f *fakeQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return f.execTag, f.execErr
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestPostgresAcquire_RowGoneOnVerifyIsNotAcquired(t *testing.T) {
	// The upsert was a no-op and the previous holder released before the
	// verify read. That is an ordinary lost race, not an error.
	s := &PostgresStore{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	got, err := s.Acquire(context.Background(), "batch", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestPostgresAcquire_VerifyOutcomes(t *testing.T) {
	ctx := context.Background()

	s := &PostgresStore{db: &fakeQuerier{row: fakeRow{holder: "worker-a"}}}
	got, err := s.Acquire(ctx, "batch", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, got)

	s = &PostgresStore{db: &fakeQuerier{row: fakeRow{holder: "worker-b"}}}
	got, err = s.Acquire(ctx, "batch", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestPostgresAcquire_VerifyErrorPropagates(t *testing.T) {
	s := &PostgresStore{db: &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}}

	_, err := s.Acquire(context.Background(), "batch", "worker-a", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify lock")
}

func TestPostgresHeartbeat_RowsAffectedDecides(t *testing.T) {
	ctx := context.Background()

	s := &PostgresStore{db: &fakeQuerier{execTag: pgconn.NewCommandTag("UPDATE 1")}}
	alive, err := s.Heartbeat(ctx, "batch", "worker-a")
	require.NoError(t, err)
	assert.True(t, alive)

	s = &PostgresStore{db: &fakeQuerier{execTag: pgconn.NewCommandTag("UPDATE 0")}}
	alive, err = s.Heartbeat(ctx, "batch", "worker-a")
	require.NoError(t, err)
	assert.False(t, alive, "zero rows updated means the lock was stolen")
}
