package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) so
// services can translate them into domain errors:
//   - ErrNotFound: row does not exist, or belongs to another tenant
//   - ErrAlreadyUsed: a unique key (certificate number, setting key) is taken
//   - ErrConflict: a concurrent writer won, or a foreign key still references the row
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrConflict    = errors.New("conflict")
)
