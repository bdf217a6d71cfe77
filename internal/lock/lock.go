// Package lock provides single-flight mutual exclusion over a named
// resource, backed by a persistent store so uncoordinated processes can
// share it.
package lock

import (
	"context"
	"time"
)

// Store is the distributed lock contract. A lock is Free, or Held by
// exactly one live holder; a holder whose record is older than the TTL is
// dead and any competitor may steal the lock.
//
// Acquisition failure is not an application error: it means another worker
// already owns the unit of work, and the caller should skip its cycle.
type Store interface {
	// Acquire takes the named lock for holder if it is free or expired.
	// Concurrent acquires against the same backing store must not both
	// succeed while the lock is live.
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)

	// Heartbeat refreshes the acquisition timestamp, but only while the
	// caller is still the recorded holder. A false return means the lock
	// was stolen and the caller must abort its critical section.
	Heartbeat(ctx context.Context, name, holder string) (bool, error)

	// Release deletes the record only if the caller still holds it
	// (compare-and-delete); it never removes another process's lock.
	Release(ctx context.Context, name, holder string) error
}
