package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrExpired: staged transfer passed its deadline
// - ErrAlreadyResolved: staged transfer already left PENDING
// - ErrNotOwner: actor does not own the staged transfer
// - ErrUnavailable: backing store temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
	ErrAlreadyResolved = errors.New("already resolved")
	ErrNotOwner        = errors.New("not owner")
	ErrUnavailable     = errors.New("unavailable")
)
