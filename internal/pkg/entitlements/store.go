package entitlements

import (
	"context"
	"errors"
)

var ErrStoreUnavailable = errors.New("entitlement store unavailable")

// Store persists one Record per account. Get never reports a missing
// account as an error; it returns DefaultRecord instead. Put overwrites the
// whole record. Persistence failures wrap ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, accountID string) (Record, error)
	Put(ctx context.Context, rec Record) error
	// MarkExpired sets only the status to expired, and only while the stored
	// status, plan and end timestamps still equal those of seen. It reports
	// whether a row changed.
	MarkExpired(ctx context.Context, seen Record) (bool, error)
}
