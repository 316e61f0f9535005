package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framebridge/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoAdapter is returned when a HAL instance exposes no adapters.
	ErrNoAdapter = errors.New("backend: no adapter")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("backend: nil DeviceProvider")

	// ErrUnsupportedProvider is returned when a DeviceProvider does not
	// expose wgpu HAL device and queue objects.
	ErrUnsupportedProvider = errors.New("backend: provider does not expose a HAL device")

	// ErrClosed is returned by operations on a closed share group.
	ErrClosed = errors.New("backend: share group closed")
)

// Option configures a ShareGroup.
type Option func(*groupOptions)

type groupOptions struct {
	label     string
	format    gputypes.TextureFormat
	maxFences int
}

func defaultOptions() groupOptions {
	return groupOptions{
		label:  "framebridge",
		format: gputypes.TextureFormatRGBA8Unorm,
	}
}

// WithLabel sets the debug label used for HAL objects and log records.
func WithLabel(label string) Option {
	return func(o *groupOptions) {
		if label != "" {
			o.label = label
		}
	}
}

// WithFormat sets the storage format of bridge textures.
// Only 8-bit RGBA and BGRA formats are accepted; anything else keeps the
// RGBA8Unorm default. Pixel data crossing the gpucore API is always RGBA.
func WithFormat(format gputypes.TextureFormat) Option {
	return func(o *groupOptions) {
		switch format {
		case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
			gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
			o.format = format
		}
	}
}

// WithMaxFences caps the number of live fences in the group. CreateFence
// fails with gpucore.ErrResourceExhausted once the cap is reached.
// Zero means no cap.
func WithMaxFences(n int) Option {
	return func(o *groupOptions) {
		if n >= 0 {
			o.maxFences = n
		}
	}
}

// isBGRA reports whether textures of this format store pixels as B, G, R, A.
func isBGRA(format gputypes.TextureFormat) bool {
	return format == gputypes.TextureFormatBGRA8Unorm || format == gputypes.TextureFormatBGRA8UnormSrgb
}

// swizzle swaps the red and blue channels of RGBA8/BGRA8 data in place.
func swizzle(data []byte) {
	for i := 0; i+3 < len(data); i += gpucore.BytesPerPixel {
		data[i], data[i+2] = data[i+2], data[i]
	}
}

// mapHALError translates HAL error sentinels into gpucore ones while keeping
// the original error in the chain.
func mapHALError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("backend: %s: %w: %w", op, gpucore.ErrDeviceLost, err)
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("backend: %s: %w: %w", op, gpucore.ErrResourceExhausted, err)
	default:
		return fmt.Errorf("backend: %s: %w", op, err)
	}
}
