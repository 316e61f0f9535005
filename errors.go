package framebridge

import (
	"errors"

	"github.com/gogpu/framebridge/internal/owner"
)

// Protocol misuse. Every error in this group wraps ErrProtocolMisuse.
var (
	ErrProtocolMisuse = owner.ErrProtocolMisuse
	ErrAlreadyLocked  = owner.ErrAlreadyLocked
	ErrNotLocked      = owner.ErrNotLocked
	ErrUnknownStream  = owner.ErrUnknownStream
	ErrStreamAttached = owner.ErrStreamAttached
)

var (
	// ErrContextLost reports that the owner exited or the context failed.
	// It is terminal for the context: tear it down, do not retry.
	ErrContextLost = owner.ErrContextLost

	// ErrFrameUnavailable reports that no frame could be shared this cycle.
	// Skip presenting and try again on the next one.
	ErrFrameUnavailable = owner.ErrFrameUnavailable

	// ErrUnknownContext is returned for a context the bridge does not manage.
	ErrUnknownContext = owner.ErrUnknownContext

	// ErrNilDevice is returned by New when a device is missing.
	ErrNilDevice = errors.New("framebridge: nil device")

	// ErrClosed is returned by operations on a closed bridge.
	ErrClosed = errors.New("framebridge: bridge closed")
)

// IsSkipFrame reports whether err only means the current frame should be
// skipped.
func IsSkipFrame(err error) bool {
	return errors.Is(err, ErrFrameUnavailable)
}

// IsProtocolMisuse reports whether err is a caller contract violation.
func IsProtocolMisuse(err error) bool {
	return errors.Is(err, ErrProtocolMisuse)
}
