package framebridge

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/gogpu/framebridge/internal/owner"
)

// AttachOutput binds an output stream to a context. Frames locked through
// the stream are the context's current frame.
func (b *Bridge) AttachOutput(stream StreamID, ctx ContextID) error {
	return b.ctl.AttachOutput(stream, ctx)
}

// DetachOutput unbinds an output stream. A frame still locked through the
// stream is released.
func (b *Bridge) DetachOutput(stream StreamID) error {
	var errs []error
	if lock, ok := b.takeOutput(stream, nil); ok {
		errs = append(errs, b.dropOutputFence(lock.fence))
	}
	if r := b.handle.Call(owner.DetachOutput{Stream: stream}); r.Err != nil {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}

// OutputFrame is a frame read back through an output stream. The consumer
// inserted a fence before the lock; the owner reads the frame only after
// that fence retired.
type OutputFrame struct {
	b      *Bridge
	stream StreamID
	lock   *outputLock
	reply  owner.OutputReply

	mu       sync.Mutex
	released bool
	cleanup  runtime.Cleanup
}

// outputLock is one entry of the output sync map. Its address identifies a
// single OutputLock call, so a stream locked again gets a new entry.
type outputLock struct {
	fence FenceID
}

type outputLeak struct {
	b      *Bridge
	stream StreamID
	lock   *outputLock
}

// OutputLock inserts a fence on the consumer queue, records it for the
// stream and asks the owner to hand out the stream's frame once the fence
// has retired.
//
// A stream that cannot produce a frame (unknown stream, lost context)
// reports ErrFrameUnavailable and keeps no fence.
func (b *Bridge) OutputLock(stream StreamID) (*OutputFrame, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := b.outputs[stream]; ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: stream %d", ErrAlreadyLocked, stream)
	}
	fence, err := b.consumer.CreateFence()
	if err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: output fence: %w", ErrFrameUnavailable, err)
	}
	lock := &outputLock{fence: fence}
	b.outputs[stream] = lock
	b.mu.Unlock()

	r := b.handle.Call(owner.OutputLock{Stream: stream, Fence: fence})
	if r.Err != nil || !r.OK {
		if _, ok := b.takeOutput(stream, lock); ok {
			if err := b.dropOutputFence(fence); err != nil {
				Logger().Warn("framebridge: drop output fence", "stream", stream, "err", err)
			}
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return nil, fmt.Errorf("%w: stream %d", ErrFrameUnavailable, stream)
	}

	f := &OutputFrame{b: b, stream: stream, lock: lock, reply: r.Output}
	f.cleanup = runtime.AddCleanup(f, releaseLeakedOutput, outputLeak{b: b, stream: stream, lock: lock})
	Logger().Debug("framebridge: output locked", "stream", stream, "fence", fence, "texture", r.Output.Texture)
	return f, nil
}

// OutputUnlock releases the frame of a stream: the fence is removed from
// the output sync map, the consumer queue is flushed so the fence signal
// reaches the GPU, the fence is deleted and the owner drops its hold.
func (b *Bridge) OutputUnlock(stream StreamID) error {
	return b.unlockOutput(stream, nil)
}

// unlockOutput releases the lock of a stream. A non-nil want only matches
// the entry created by that OutputLock call.
func (b *Bridge) unlockOutput(stream StreamID, want *outputLock) error {
	lock, ok := b.takeOutput(stream, want)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, stream)
	}
	var errs []error
	if err := b.dropOutputFence(lock.fence); err != nil {
		errs = append(errs, err)
	}
	if r := b.handle.Call(owner.OutputUnlock{Stream: stream}); r.Err != nil {
		errs = append(errs, r.Err)
	}
	Logger().Debug("framebridge: output unlocked", "stream", stream)
	return errors.Join(errs...)
}

// takeOutput removes the sync map entry of a stream. With a non-nil want
// the entry is removed only if it is that lock.
func (b *Bridge) takeOutput(stream StreamID, want *outputLock) (*outputLock, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.outputs[stream]
	if !ok || (want != nil && lock != want) {
		return nil, false
	}
	delete(b.outputs, stream)
	return lock, true
}

func (b *Bridge) dropOutputFence(fence FenceID) error {
	return errors.Join(b.consumer.Flush(), b.consumer.DestroyFence(fence))
}

// releaseLeakedOutput unlocks a stream whose OutputFrame was dropped while
// still locked. Locks already released through OutputUnlock, DetachOutput
// or Close are gone from the map and are left alone.
func releaseLeakedOutput(l outputLeak) {
	lock, ok := l.b.takeOutput(l.stream, l.lock)
	if !ok {
		return
	}
	Logger().Warn("framebridge: output frame leaked without Release", "stream", l.stream)
	if err := l.b.dropOutputFence(lock.fence); err != nil {
		Logger().Warn("framebridge: drop leaked output fence", "stream", l.stream, "err", err)
	}
	if err := l.b.handle.Post(owner.OutputUnlock{Stream: l.stream}); err != nil {
		Logger().Debug("framebridge: unlock leaked output", "stream", l.stream, "err", err)
	}
}

// Stream returns the output stream of the frame.
func (f *OutputFrame) Stream() StreamID { return f.stream }

// Texture returns the frame's texture on the owner's device.
func (f *OutputFrame) Texture() TextureID { return f.reply.Texture }

// Size returns the frame size.
func (f *OutputFrame) Size() image.Point { return f.reply.Size }

// Release unlocks the stream. A second call returns ErrNotLocked; a frame
// whose stream was already unlocked or detached returns ErrUnknownStream.
func (f *OutputFrame) Release() error {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return fmt.Errorf("%w: output stream %d already released", ErrNotLocked, f.stream)
	}
	f.released = true
	f.cleanup.Stop()
	f.mu.Unlock()
	return f.b.unlockOutput(f.stream, f.lock)
}
