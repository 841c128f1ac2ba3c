// Package lifecycle implements the guarded state machines for
// listings and tutor applications.  Every operation takes the calling
// principal and checks ownership before delegating the conditional
// transition to the store; the hire transition is deliberately absent
// here — only the payment reconciler performs it.
package lifecycle

import "errors"

// ErrForbidden is returned when the caller is not the owner the
// operation requires (listing student or applying tutor).
var ErrForbidden = errors.New("forbidden")
