package framebridge

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/framebridge/gpucore"
	"github.com/gogpu/framebridge/internal/owner"
)

// Frame is a locked frame of a context. The texture stays valid and
// unchanged on the consumer queue until Release is called.
//
// A Frame must be released exactly once. A Frame dropped without Release is
// unlocked when the garbage collector finds it, and a warning is logged.
type Frame struct {
	b       *Bridge
	ctx     ContextID
	reply   LockReply
	texture TextureID

	mu       sync.Mutex
	released bool
	cleanup  runtime.Cleanup
}

var _ gpucontext.Texture = (*Frame)(nil)

// frameLeak is what the cleanup of an unreleased Frame needs. It must not
// reference the Frame itself.
type frameLeak struct {
	b     *Bridge
	ctx   ContextID
	fence FenceID
}

func (f *Frame) track() {
	f.cleanup = runtime.AddCleanup(f, releaseLeakedFrame, frameLeak{b: f.b, ctx: f.ctx, fence: f.reply.Fence})
}

func releaseLeakedFrame(l frameLeak) {
	Logger().Warn("framebridge: frame leaked without Release", "context", l.ctx)
	if l.fence != gpucore.InvalidID {
		if err := l.b.consumer.DestroyFence(l.fence); err != nil {
			Logger().Warn("framebridge: destroy leaked fence", "context", l.ctx, "err", err)
		}
	}
	if err := l.b.handle.Post(owner.Unlock{Context: l.ctx}); err != nil {
		Logger().Debug("framebridge: unlock leaked frame", "context", l.ctx, "err", err)
	}
}

// Context returns the context the frame belongs to.
func (f *Frame) Context() ContextID { return f.ctx }

// Texture returns the texture to sample on the consumer queue. With surface
// sharing this is the compositor's cached binding of the frame's surface.
func (f *Frame) Texture() TextureID { return f.texture }

// Size returns the frame size.
func (f *Frame) Size() image.Point { return f.reply.Size }

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.reply.Size.X }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.reply.Size.Y }

// HasAlpha reports whether the frame carries an alpha channel.
func (f *Frame) HasAlpha() bool { return f.reply.HasAlpha }

// Fence returns the fence the consumer waited on, if the frame was shared
// with a fence.
func (f *Frame) Fence() (FenceID, bool) { return f.reply.Fence, f.reply.HasFence() }

// Surface returns the platform surface of the frame, if it was shared with
// a surface.
func (f *Frame) Surface() (SurfaceID, bool) { return f.reply.Surface, f.reply.HasSurface() }

// Reply returns the owner's reply as received.
func (f *Frame) Reply() LockReply { return f.reply }

// Release deletes the frame's fence and unlocks the context. A second call
// returns ErrNotLocked.
func (f *Frame) Release() error {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return fmt.Errorf("%w: frame of context %d already released", ErrNotLocked, f.ctx)
	}
	f.released = true
	f.cleanup.Stop()
	f.mu.Unlock()

	Logger().Debug("framebridge: unlocked", "context", f.ctx)
	return f.b.unlock(f.ctx, f.reply.Fence)
}
