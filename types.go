package framebridge

import (
	"fmt"

	"github.com/gogpu/framebridge/gpucore"
	"github.com/gogpu/framebridge/internal/owner"
)

// ContextID identifies a rendering context. IDs are unique within the
// process and never reused.
type ContextID = owner.ContextID

// StreamID identifies an output stream.
type StreamID = owner.StreamID

// TextureID, FenceID and SurfaceID name GPU objects in a gpucore.Device.
type (
	TextureID = gpucore.TextureID
	FenceID   = gpucore.FenceID
	SurfaceID = gpucore.SurfaceID
)

// LockReply describes a locked frame as handed out by the owner.
type LockReply = owner.LockReply

// Mode selects where the owner of the rendering queue runs.
type Mode = owner.Mode

const (
	// ModeDedicated runs the owner on its own OS thread.
	ModeDedicated = owner.ModeDedicated

	// ModeInline runs the owner on the host event loop.
	ModeInline = owner.ModeInline
)

// Sharing selects how frames cross from the rendering queue to the
// compositor's queue.
type Sharing = owner.Sharing

const (
	// SharingFence hands out a fence with each frame.
	SharingFence = owner.SharingFence

	// SharingSurface hands out a platform surface with each frame.
	SharingSurface = owner.SharingSurface
)

// ParseMode parses "inline" or "dedicated".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "inline":
		return ModeInline, nil
	case "dedicated":
		return ModeDedicated, nil
	}
	return 0, fmt.Errorf("framebridge: unknown mode %q", s)
}

// ParseSharing parses "fence" or "surface".
func ParseSharing(s string) (Sharing, error) {
	switch s {
	case "fence":
		return SharingFence, nil
	case "surface":
		return SharingSurface, nil
	}
	return 0, fmt.Errorf("framebridge: unknown sharing strategy %q", s)
}

// Stats counts the objects the bridge holds on the compositor side.
type Stats struct {
	// SurfaceBindings is the number of platform surfaces bound so far.
	SurfaceBindings int

	// OutputFences is the number of output streams currently locked.
	OutputFences int

	// ProviderFrames is the number of frames held through ImageProvider
	// or FenceProvider.
	ProviderFrames int

	// SurfaceHits and SurfaceMisses count surface cache lookups.
	SurfaceHits, SurfaceMisses uint64

	// SurfaceFailures counts misses whose bind failed. Those frames were
	// skipped and the surface is retried on its next lock.
	SurfaceFailures uint64
}
