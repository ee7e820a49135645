package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and backend adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: entity already exists or a uniqueness constraint fired
//   - ErrInvalidState: entity in wrong state for requested operation (e.g.
//     retrying a failed registration that is already terminal)
//   - ErrUnavailable: backend or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
