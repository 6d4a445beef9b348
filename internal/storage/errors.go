package storage

import "errors"

// ErrNotFound is returned by lookups that match no row. Callers check it
// with errors.Is; a missing row is expected traffic, not a store failure.
var ErrNotFound = errors.New("storage: not found")
