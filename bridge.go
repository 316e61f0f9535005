package framebridge

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/framebridge/gpucore"
	"github.com/gogpu/framebridge/internal/owner"
)

// Bridge connects a rendering context's queue (the producer) to a
// compositor's queue (the consumer).
//
// In dedicated mode all methods are safe for concurrent use. In inline mode
// the methods must be called from the host goroutine that calls Pump; other
// goroutines use the handle returned by Client.
type Bridge struct {
	opts     options
	handle   owner.Handle
	inline   *owner.Inline
	ctl      *Client
	producer gpucore.Device
	consumer gpucore.Device
	surfaces *surfaceCache

	mu sync.Mutex
	// outputs is the output sync map: the consumer fence of every locked
	// output stream.
	outputs map[StreamID]*outputLock
	// held are frames locked through ImageProvider or FenceProvider.
	held   map[ContextID]*Frame
	closed bool
}

// New creates a bridge. producer is the device the owner renders with;
// consumer is the compositor's device. Both must belong to the same share
// group so fences and surfaces are visible to each other.
func New(producer, consumer gpucore.Device, opts ...Option) (*Bridge, error) {
	if producer == nil || consumer == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	own, err := owner.New(owner.Config{
		Device:        producer,
		Sharing:       o.sharing,
		OnContextLost: o.onLost,
	})
	if err != nil {
		return nil, fmt.Errorf("framebridge: %w", err)
	}

	b := &Bridge{
		opts:     o,
		producer: producer,
		consumer: consumer,
		surfaces: newSurfaceCache(consumer),
		outputs:  make(map[StreamID]*outputLock),
		held:     make(map[ContextID]*Frame),
	}
	switch o.mode {
	case ModeInline:
		var wake func()
		if o.wake != nil {
			wake = o.wake.Wake
		}
		b.inline = owner.NewInline(own, wake)
		b.handle = b.inline
	default:
		b.handle = owner.NewDedicated(own, o.queueDepth)
	}
	b.ctl = &Client{h: b.handle}

	Logger().Info("framebridge: bridge created",
		"mode", o.mode.String(),
		"sharing", o.sharing.String(),
		"producer", producer.Label(),
		"consumer", consumer.Label())
	return b, nil
}

// Mode reports where the owner runs.
func (b *Bridge) Mode() Mode { return b.opts.mode }

// Sharing reports the sharing strategy.
func (b *Bridge) Sharing() Sharing { return b.opts.sharing }

// Client returns a handle for goroutines other than the compositor, such as
// a script or rendering goroutine. In inline mode its calls are served at
// the host's next Pump; calling them from the host goroutine deadlocks.
func (b *Bridge) Client() *Client {
	if b.inline != nil {
		return &Client{h: b.inline.Remote()}
	}
	return b.ctl
}

// CreateContext creates a rendering context with a cleared frame.
func (b *Bridge) CreateContext(size image.Point, alpha bool) (ContextID, error) {
	return b.ctl.CreateContext(size, alpha)
}

// DestroyContext destroys a context and all its textures.
func (b *Bridge) DestroyContext(ctx ContextID) error {
	return b.ctl.DestroyContext(ctx)
}

// Resize changes the frame size of a context.
func (b *Bridge) Resize(ctx ContextID, size image.Point) error {
	return b.ctl.Resize(ctx, size)
}

// Submit queues commands for a context without waiting.
func (b *Bridge) Submit(ctx ContextID, cmds ...Command) error {
	return b.ctl.Submit(ctx, cmds...)
}

// Run applies commands to a context and waits until they were applied.
func (b *Bridge) Run(ctx ContextID, cmds ...Command) error {
	return b.ctl.Run(ctx, cmds...)
}

// Pump serves the requests queued for an inline owner and returns how many
// were served. It is a no-op in dedicated mode.
func (b *Bridge) Pump() int {
	if b.inline == nil {
		return 0
	}
	return b.inline.Pump()
}

// Exit stops the owner and destroys every context, leaving the bridge's
// compositor-side caches in place. Exit is idempotent.
func (b *Bridge) Exit() error {
	return b.handle.Exit()
}

// Lock locks the current frame of a context and makes it readable on the
// consumer queue: the consumer waits on the frame's fence, or the frame's
// surface is bound through the surface cache. The frame must be released.
//
// A skipped frame is reported as ErrFrameUnavailable, leaving the context
// unlocked.
func (b *Bridge) Lock(ctx ContextID) (*Frame, error) {
	return b.lock(ctx, true)
}

func (b *Bridge) lock(ctx ContextID, wait bool) (*Frame, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	r := b.handle.Call(owner.Lock{Context: ctx})
	if r.Err != nil {
		if IsSkipFrame(r.Err) {
			Logger().Debug("framebridge: frame skipped", "context", ctx, "err", r.Err)
		}
		return nil, r.Err
	}

	f := &Frame{b: b, ctx: ctx, reply: r.Lock, texture: r.Lock.Texture}
	if err := b.resolve(f, wait); err != nil {
		if uerr := b.unlock(ctx, r.Lock.Fence); uerr != nil {
			Logger().Warn("framebridge: unlock after failed resolve", "context", ctx, "err", uerr)
		}
		return nil, err
	}
	f.track()
	Logger().Debug("framebridge: locked", "context", ctx, "texture", f.texture,
		"fence", r.Lock.Fence, "surface", r.Lock.Surface)
	return f, nil
}

// resolve makes a locked frame usable on the consumer queue.
func (b *Bridge) resolve(f *Frame, wait bool) error {
	switch {
	case f.reply.HasSurface():
		tex, err := b.surfaces.bind(f.reply.Surface)
		if err != nil {
			return fmt.Errorf("%w: bind surface %d: %w", ErrFrameUnavailable, f.reply.Surface, err)
		}
		f.texture = tex
	case f.reply.HasFence() && wait:
		if err := b.consumer.WaitFence(f.reply.Fence); err != nil {
			return fmt.Errorf("%w: wait fence %d: %w", ErrFrameUnavailable, f.reply.Fence, err)
		}
	}
	return nil
}

// unlock deletes the consumer-held fence and tells the owner the frame may
// be reused.
func (b *Bridge) unlock(ctx ContextID, fence FenceID) error {
	var errs []error
	if fence != gpucore.InvalidID {
		if err := b.consumer.DestroyFence(fence); err != nil {
			errs = append(errs, err)
		}
	}
	if r := b.handle.Call(owner.Unlock{Context: ctx}); r.Err != nil {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}

// Stats returns the compositor-side object counts.
func (b *Bridge) Stats() Stats {
	cs := b.surfaces.stats()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		SurfaceBindings: cs.Len,
		OutputFences:    len(b.outputs),
		ProviderFrames:  len(b.held),
		SurfaceHits:     cs.Hits,
		SurfaceMisses:   cs.Misses,
		SurfaceFailures: cs.Failures,
	}
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close tears the bridge down: frames held by the providers are released,
// the owner exits, bound surfaces are destroyed and every remaining output
// fence is flushed and deleted. Close is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	held := b.held
	b.held = make(map[ContextID]*Frame)
	b.mu.Unlock()

	var errs []error
	for _, f := range held {
		if err := f.Release(); err != nil && !errors.Is(err, ErrContextLost) {
			errs = append(errs, err)
		}
	}
	if err := b.handle.Exit(); err != nil {
		errs = append(errs, err)
	}

	surfaces := b.surfaces.drain()

	b.mu.Lock()
	outputs := b.outputs
	b.outputs = make(map[StreamID]*outputLock)
	b.mu.Unlock()
	for stream, lock := range outputs {
		Logger().Warn("framebridge: output stream still locked at close", "stream", stream)
		if err := b.consumer.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := b.consumer.DestroyFence(lock.fence); err != nil {
			errs = append(errs, err)
		}
	}

	Logger().Info("framebridge: bridge closed",
		"frames", len(held), "surfaces", surfaces, "outputs", len(outputs))
	return errors.Join(errs...)
}
