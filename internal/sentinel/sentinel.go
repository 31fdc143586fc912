package sentinel

import "errors"

// Sentinel dependency errors. Transports and stores should return these
// (optionally wrapped) so services can translate them into domain errors
// exactly once.
var (
	ErrClosed = errors.New("closed")
)
