package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and transaction
// runners return these (optionally wrapped) so services can translate them
// into domain errors.
//
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrStaleVersion: the row changed since it was loaded (optimistic check failed)
// - ErrAlreadyFinalized: a ledger transaction already left PENDING
// - ErrLockNotAcquired: the per-entity lock could not be taken in time
// - ErrUnavailable: collaborator or backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStaleVersion     = errors.New("stale version")
	ErrAlreadyFinalized = errors.New("already finalized")
	ErrLockNotAcquired  = errors.New("lock not acquired")
	ErrUnavailable      = errors.New("unavailable")
)
