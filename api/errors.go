package api

import (
	"errors"
	"fmt"
)

// TransportError wraps a network or HTTP level failure. Recoverable: the
// caller keeps its last-known-good state and surfaces a retry affordance.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown resource, typically an unknown peer.
// Not fatal: a timeline load for one initializes an empty timeline.
type NotFoundError struct {
	PeerID int64
}

func (e *NotFoundError) Error() string {
	if e.PeerID == 0 {
		return "api: not found"
	}
	return fmt.Sprintf("api: peer %d not found", e.PeerID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
