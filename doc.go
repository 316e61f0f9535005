// Package framebridge hands finished GPU frames from a rendering context to
// a compositor running on another queue.
//
// # Overview
//
// A rendering context owns one command queue and writes frames into
// textures. A compositor wants to sample the latest finished frame without
// waiting for the GPU and without the renderer overwriting the texture
// while it is being read. framebridge implements the lock/unlock protocol
// between the two sides:
//
//   - the owner of the rendering queue keeps all presentation state and is
//     only reached through ordered messages;
//   - Lock returns the current frame plus a fence (or a platform surface)
//     the compositor uses to order its reads after the renderer's writes;
//   - until the frame is released the owner renders into another buffer.
//
// # Quick Start
//
//	group, _ := backend.OpenDefault()
//	defer group.Close()
//
//	b, _ := framebridge.New(group.Device("renderer"), group.Device("compositor"),
//	    framebridge.WithMode(framebridge.ModeDedicated))
//	defer b.Close()
//
//	ctx, _ := b.CreateContext(image.Pt(640, 480), true)
//	b.Submit(ctx, framebridge.Clear(0xFF0000FF))
//
//	frame, err := b.Lock(ctx)
//	if framebridge.IsSkipFrame(err) {
//	    return // try again next vsync
//	}
//	defer frame.Release()
//	draw(frame.Texture())
//
// # Execution Modes
//
// [ModeDedicated] runs the owner on its own OS thread. [ModeInline] runs it
// on the host event loop: the host calls [Bridge.Pump] when its
// [WakeRequester] fires, and bridge methods called on the host goroutine
// take a direct path with no message round trip. Goroutines other than the
// host use [Bridge.Client].
//
// # Sharing Strategies
//
// [SharingFence] hands out a fence the compositor waits on before reading.
// [SharingSurface] exports the frame as a platform surface which the
// compositor binds once and caches for the life of the bridge.
//
// # Output Streams
//
// The reverse direction, where the compositor produces a fence and the
// rendering context hands back a frame to sample, is keyed by [StreamID]:
// see [Bridge.AttachOutput] and [Bridge.OutputLock].
//
// # Logging
//
// framebridge is silent by default. Call [SetLogger] to enable structured
// logging through log/slog.
package framebridge

// Version is the current version of the library.
const Version = "0.1.0"
