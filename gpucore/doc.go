// Package gpucore defines the minimal GPU capability set the frame bridge is
// layered on.
//
// The bridge does not need a full GPU API. It needs textures, one-shot fences
// and platform surfaces, plus a handful of helpers used by commands and tests:
//
//	create/delete texture      CreateTexture, DestroyTexture
//	create/wait/delete fence   CreateFence, WaitFence, DestroyFence
//	bind platform surface      ExportSurface, BindSurface
//	command helpers            FillTexture, WriteTexture, CopyTexture, ReadTexture, Flush
//
// # Resource Management
//
// Resources are referred to by opaque IDs ([TextureID], [FenceID],
// [SurfaceID]). The zero value of every ID is [InvalidID]. A [Device] is one
// command queue's view of a share group: textures and fences created through
// one Device may be waited on or sampled through another Device of the same
// group, but only after the protocol says so.
//
// Resource lifecycle:
//   - Textures are created and destroyed by the queue that owns them
//   - Fences are created by the producing queue and destroyed exactly once,
//     by whichever side finished waiting on them
//   - IDs become invalid after destruction and are never reused
//
// # Pixels
//
// Pixel values are packed as 0xRRGGBBAA, so 0xFF0000FF is opaque red.
// Textures store 4 bytes per pixel in R, G, B, A order.
package gpucore
