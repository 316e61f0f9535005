package gpucore

import (
	"errors"
	"image"
)

// Common errors returned by Device implementations.
var (
	// ErrInvalidTexture is returned for an unknown or destroyed texture.
	ErrInvalidTexture = errors.New("gpucore: invalid texture")

	// ErrInvalidFence is returned for an unknown fence, including a fence
	// that was already destroyed.
	ErrInvalidFence = errors.New("gpucore: invalid fence")

	// ErrInvalidSurface is returned when a platform surface cannot be resolved.
	ErrInvalidSurface = errors.New("gpucore: invalid surface")

	// ErrResourceExhausted is returned when the driver cannot allocate
	// another object. Callers treat it as "frame not yet available".
	ErrResourceExhausted = errors.New("gpucore: resource exhausted")

	// ErrDeviceLost is returned once the underlying device is gone.
	ErrDeviceLost = errors.New("gpucore: device lost")

	// ErrSizeMismatch is returned when data or textures do not have the
	// expected dimensions.
	ErrSizeMismatch = errors.New("gpucore: size mismatch")

	// ErrReadbackUnsupported is returned by backends that cannot read
	// texture contents back to the CPU.
	ErrReadbackUnsupported = errors.New("gpucore: texture readback unsupported")
)

// Device is one command queue's view of a GPU share group.
//
// Methods on a Device must be called from the goroutine that owns the queue.
// Objects are shared with the other Devices of the same group.
type Device interface {
	// Label returns a debug name for the queue ("producer", "compositor").
	Label() string

	// CreateTexture allocates an RGBA8 texture of the given size.
	CreateTexture(size image.Point) (TextureID, error)

	// DestroyTexture releases a texture name. Destroying a name bound to a
	// platform surface does not release the surface itself.
	DestroyTexture(id TextureID)

	// FillTexture fills the whole texture with a packed 0xRRGGBBAA pixel.
	FillTexture(id TextureID, rgba uint32) error

	// WriteTexture replaces the whole texture contents with RGBA8 data.
	WriteTexture(id TextureID, data []byte) error

	// CopyTexture copies the contents of src into dst. Both must have the
	// same size.
	CopyTexture(dst, src TextureID) error

	// ReadTexture returns a copy of the texture contents as RGBA8 data.
	// This may cause a GPU-CPU synchronization stall.
	ReadTexture(id TextureID) ([]byte, error)

	// Size returns the dimensions of a texture.
	Size(id TextureID) (image.Point, error)

	// CreateFence inserts a marker at the current point of this queue's
	// command stream. Failure wraps ErrResourceExhausted.
	CreateFence() (FenceID, error)

	// WaitFence makes this queue wait, GPU-side, until the commands before
	// the fence have retired. It does not block the calling goroutine.
	WaitFence(id FenceID) error

	// DestroyFence releases a fence. It must be called exactly once; a
	// second call returns ErrInvalidFence.
	DestroyFence(id FenceID) error

	// Flush dispatches buffered commands (including fence signals) to the GPU.
	Flush() error

	// ExportSurface publishes a texture as a platform surface. Exporting the
	// same texture twice returns the same SurfaceID.
	ExportSurface(id TextureID) (SurfaceID, error)

	// BindSurface allocates a new local texture name bound to a platform
	// surface. Every call allocates; callers cache the result.
	BindSurface(id SurfaceID) (TextureID, error)
}

// StatsReporter is implemented by share groups that can count live objects.
type StatsReporter interface {
	Stats() Stats
}
