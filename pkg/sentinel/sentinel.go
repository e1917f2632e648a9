package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Storage and transport layers return
// these (optionally wrapped) so the engine can translate them into user-facing
// outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in storage or on the server
// - ErrUnavailable: remote endpoint unreachable or returned a server error
// - ErrUnsupported: operation not offered by the active persistence variant
//
// For validation errors (insufficient stock, bad input), the owning package
// defines its own error values.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrUnsupported = errors.New("unsupported")
)
