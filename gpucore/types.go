package gpucore

import "image"

// Resource IDs
//
// These opaque IDs represent GPU resources inside a share group. Each backend
// maintains a mapping between IDs and actual backend resources.

// TextureID is an opaque handle to a GPU texture name.
type TextureID uint64

// FenceID is an opaque handle to a one-shot GPU fence.
type FenceID uint64

// SurfaceID is an opaque handle to an OS-specific shared surface
// (IOSurface, DMA-BUF, DXGI shared handle) that can be bound to a texture.
type SurfaceID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BytesPerPixel is the storage size of one RGBA8 pixel.
const BytesPerPixel = 4

// Stats reports the number of live objects in a share group.
// A leak-free bridge returns every counter to its starting value.
type Stats struct {
	// Textures is the number of live texture names, including names bound
	// to platform surfaces.
	Textures int

	// Fences is the number of fences created and not yet destroyed.
	Fences int

	// Surfaces is the number of exported platform surfaces.
	Surfaces int
}

// PackRGBA packs 8-bit channels into a 0xRRGGBBAA pixel value.
func PackRGBA(r, g, b, a uint8) uint32 {
	return uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)
}

// UnpackRGBA splits a 0xRRGGBBAA pixel value into 8-bit channels.
func UnpackRGBA(px uint32) (r, g, b, a uint8) {
	return uint8(px >> 24), uint8(px >> 16), uint8(px >> 8), uint8(px)
}

// TextureSize returns the byte length of an RGBA8 texture of the given size.
func TextureSize(size image.Point) int {
	if size.X <= 0 || size.Y <= 0 {
		return 0
	}
	return size.X * size.Y * BytesPerPixel
}

// SolidPixels returns RGBA8 pixel data of the given size filled with px.
func SolidPixels(size image.Point, px uint32) []byte {
	data := make([]byte, TextureSize(size))
	r, g, b, a := UnpackRGBA(px)
	for i := 0; i < len(data); i += BytesPerPixel {
		data[i+0] = r
		data[i+1] = g
		data[i+2] = b
		data[i+3] = a
	}
	return data
}

// PixelAt reads the packed pixel at (x, y) from RGBA8 data with the given
// row width. It returns 0 when the coordinate is outside the data.
func PixelAt(data []byte, width, x, y int) uint32 {
	if x < 0 || y < 0 || x >= width {
		return 0
	}
	off := (y*width + x) * BytesPerPixel
	if off < 0 || off+BytesPerPixel > len(data) {
		return 0
	}
	return PackRGBA(data[off], data[off+1], data[off+2], data[off+3])
}

// SetPixelAt writes a packed pixel at (x, y) into RGBA8 data with the given
// row width. Out-of-range coordinates are ignored.
func SetPixelAt(data []byte, width, x, y int, px uint32) {
	if x < 0 || y < 0 || x >= width {
		return
	}
	off := (y*width + x) * BytesPerPixel
	if off < 0 || off+BytesPerPixel > len(data) {
		return
	}
	data[off], data[off+1], data[off+2], data[off+3] = UnpackRGBA(px)
}
