package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Sources, sinks and config loaders
// return these (optionally wrapped) so callers can branch with errors.Is.
//
// - ErrUnavailable: a collaborator could not be opened or reached
// - ErrTransport: a broker rejected or failed to deliver a message
// - ErrClosed: a collaborator was used after Close and cannot recover
// - ErrInvalidConfig: configuration failed validation
var (
	ErrUnavailable   = errors.New("unavailable")
	ErrTransport     = errors.New("transport failure")
	ErrClosed        = errors.New("closed")
	ErrInvalidConfig = errors.New("invalid configuration")
)
