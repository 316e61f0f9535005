package owner

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/framebridge/gpucore"
)

// Protocol errors.
var (
	// ErrProtocolMisuse is the parent of every contract violation by a caller.
	ErrProtocolMisuse = errors.New("framebridge: protocol misuse")

	// ErrAlreadyLocked is returned by Lock or OutputLock while a lock is outstanding.
	ErrAlreadyLocked = fmt.Errorf("%w: already locked", ErrProtocolMisuse)

	// ErrNotLocked is returned by Unlock or OutputUnlock without a matching lock.
	ErrNotLocked = fmt.Errorf("%w: not locked", ErrProtocolMisuse)

	// ErrUnknownStream is returned for an output stream that is not attached.
	ErrUnknownStream = fmt.Errorf("%w: unknown output stream", ErrProtocolMisuse)

	// ErrStreamAttached is returned when attaching a stream id that is in use.
	ErrStreamAttached = fmt.Errorf("%w: output stream already attached", ErrProtocolMisuse)

	// ErrUnknownContext is returned for a context id the owner does not manage.
	ErrUnknownContext = errors.New("framebridge: unknown context")

	// ErrContextLost is returned once the owner has exited or the context
	// failed. It is terminal: callers must not retry.
	ErrContextLost = errors.New("framebridge: context lost")

	// ErrFrameUnavailable is returned when no frame can be handed out this
	// cycle (fence or surface creation failed). Callers skip the frame.
	ErrFrameUnavailable = errors.New("framebridge: frame unavailable")
)

// ContextID identifies a rendering context. IDs are unique within the
// process and never reused. Zero is invalid.
type ContextID uint64

var lastContextID atomic.Uint64

func nextContextID() ContextID {
	return ContextID(lastContextID.Add(1))
}

// StreamID identifies an output stream of the reverse hand-off path.
type StreamID uint64

// Mode selects where dispatch turns run.
type Mode int

const (
	// ModeDedicated runs the owner on its own OS thread.
	ModeDedicated Mode = iota

	// ModeInline runs the owner on the host event loop.
	ModeInline
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDedicated:
		return "dedicated"
	case ModeInline:
		return "inline"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Sharing selects how a locked frame is made safe to read on another queue.
type Sharing int

const (
	// SharingFence hands out a fence the consumer waits on.
	SharingFence Sharing = iota

	// SharingSurface hands out a platform surface the consumer binds.
	SharingSurface
)

// String returns the sharing strategy name.
func (s Sharing) String() string {
	switch s {
	case SharingFence:
		return "fence"
	case SharingSurface:
		return "surface"
	default:
		return fmt.Sprintf("Sharing(%d)", int(s))
	}
}

// LockReply describes the current frame of a context.
// Exactly one of Surface and Fence is set, depending on the sharing strategy.
type LockReply struct {
	Texture  gpucore.TextureID
	Size     image.Point
	HasAlpha bool
	Surface  gpucore.SurfaceID
	Fence    gpucore.FenceID
}

// HasFence reports whether the reply carries a fence.
func (r LockReply) HasFence() bool { return r.Fence != gpucore.InvalidID }

// HasSurface reports whether the reply carries a platform surface.
func (r LockReply) HasSurface() bool { return r.Surface != gpucore.InvalidID }

// OutputReply is the frame handed out for an output stream.
type OutputReply struct {
	Texture gpucore.TextureID
	Size    image.Point
}
