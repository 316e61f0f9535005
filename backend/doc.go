// Package backend implements [gpucore.Device] on top of the gogpu/wgpu HAL.
//
// A [ShareGroup] wraps one HAL device and queue and owns the shared object
// namespace (textures, fences, platform surfaces). Each side of the frame
// bridge obtains its own [Device] view from the group, so the producer and
// the compositor each have a queue-local label and creator bookkeeping while
// still being able to wait on each other's fences.
//
// # Backend Selection
//
// Backends are registered by name and selected by priority:
//
//	g, err := backend.OpenDefault()        // native GPU if linked, else software
//	g, err := backend.OpenByName("software")
//	g, err := backend.FromProvider(app.GPUContextProvider())
//
// The "native" backend uses whatever HAL backends the application linked in,
// typically with:
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
//
// The "software" backend always works and is what tests run against.
//
// # Fences
//
// CreateFence allocates a HAL fence and records the queue submission index
// at the moment of creation. WaitFence never blocks the calling goroutine:
// the HAL queue executes submissions in order, so a queue waiting on a fence
// only needs the index to be ordered before its own next submission.
package backend
