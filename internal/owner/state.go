package owner

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/framebridge/gpucore"
)

// maxFreeBuffers bounds the recycled back buffers kept per context.
const maxFreeBuffers = 2

// contextState is the presentation state of one context. It is only touched
// from inside a dispatch turn.
type contextState struct {
	id    ContextID
	size  image.Point
	alpha bool

	// current is the texture the next frame is written to and the one Lock
	// hands out.
	current gpucore.TextureID

	// held counts outstanding holds (lock plus output locks) per texture.
	held map[gpucore.TextureID]int

	// free holds recycled back buffers of the current size.
	free []gpucore.TextureID

	locked        bool
	lockedTexture gpucore.TextureID
	pendingFence  gpucore.FenceID

	// surfaces maps exported textures to their platform surface.
	surfaces map[gpucore.TextureID]gpucore.SurfaceID

	// lost is set once the context failed; every later request but
	// DestroyContext is refused with it.
	lost error
}

func newContextState(size image.Point, alpha bool) *contextState {
	return &contextState{
		id:       nextContextID(),
		size:     size,
		alpha:    alpha,
		held:     make(map[gpucore.TextureID]int),
		surfaces: make(map[gpucore.TextureID]gpucore.SurfaceID),
	}
}

// initialPixel is the contents of a fresh frame.
func (st *contextState) initialPixel() uint32 {
	if st.alpha {
		return 0
	}
	return 0x000000FF
}

// newTexture allocates a texture of the context size with initial contents.
func (o *Owner) newTexture(st *contextState) (gpucore.TextureID, error) {
	tex, err := o.device.CreateTexture(st.size)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if px := st.initialPixel(); px != 0 {
		if err := o.device.FillTexture(tex, px); err != nil {
			o.device.DestroyTexture(tex)
			return gpucore.InvalidID, err
		}
	}
	return tex, nil
}

// writable returns a texture the current frame may be written to. If the
// current texture is held by a lock, the context first moves to a recycled
// or new back buffer, seeded with the held contents when seed is set.
func (o *Owner) writable(st *contextState, seed bool) (gpucore.TextureID, error) {
	if st.held[st.current] == 0 {
		return st.current, nil
	}

	var next gpucore.TextureID
	if n := len(st.free); n > 0 {
		next = st.free[n-1]
		st.free = st.free[:n-1]
	} else {
		tex, err := o.device.CreateTexture(st.size)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("owner: back buffer: %w", err)
		}
		next = tex
	}
	if seed {
		if err := o.device.CopyTexture(next, st.current); err != nil {
			st.free = append(st.free, next)
			return gpucore.InvalidID, fmt.Errorf("owner: seed back buffer: %w", err)
		}
	}

	slogger().Debug("owner: switched back buffer",
		"context", st.id, "held", st.current, "current", next)
	st.current = next
	return next, nil
}

// hold records one more outstanding hold on tex.
func (st *contextState) hold(tex gpucore.TextureID) {
	st.held[tex]++
}

// release drops one hold on tex. A texture that is neither held nor current
// is recycled or destroyed.
func (o *Owner) release(st *contextState, tex gpucore.TextureID) {
	n := st.held[tex] - 1
	if n > 0 {
		st.held[tex] = n
		return
	}
	delete(st.held, tex)
	if tex == st.current {
		return
	}

	size, err := o.device.Size(tex)
	if err == nil && size == st.size && len(st.free) < maxFreeBuffers {
		st.free = append(st.free, tex)
		return
	}
	o.destroyTexture(st, tex)
}

// destroyTexture destroys one of the context's textures and forgets its
// platform surface.
func (o *Owner) destroyTexture(st *contextState, tex gpucore.TextureID) {
	delete(st.surfaces, tex)
	o.device.DestroyTexture(tex)
}

// destroyAll destroys every texture of the context, held or not.
func (o *Owner) destroyAll(st *contextState) {
	textures := make(map[gpucore.TextureID]struct{}, len(st.held)+len(st.free)+1)
	if st.current != gpucore.InvalidID {
		textures[st.current] = struct{}{}
	}
	for tex := range st.held {
		textures[tex] = struct{}{}
	}
	for _, tex := range st.free {
		textures[tex] = struct{}{}
	}
	for tex := range textures {
		o.destroyTexture(st, tex)
	}

	st.current = gpucore.InvalidID
	st.held = make(map[gpucore.TextureID]int)
	st.free = nil
	st.locked = false
	st.lockedTexture = gpucore.InvalidID
	st.pendingFence = gpucore.InvalidID
}

// resize moves the context to a new frame size. Held textures survive until
// their holds are released; everything else is destroyed.
func (o *Owner) resize(st *contextState, size image.Point) error {
	if size == st.size {
		return nil
	}
	old := st.size
	st.size = size
	tex, err := o.newTexture(st)
	if err != nil {
		st.size = old
		return err
	}

	for _, f := range st.free {
		o.destroyTexture(st, f)
	}
	st.free = nil
	prev := st.current
	st.current = tex
	if st.held[prev] == 0 {
		o.destroyTexture(st, prev)
	}
	return nil
}

// lockFrame hands out the current frame.
func (o *Owner) lockFrame(st *contextState) (LockReply, error) {
	if st.locked {
		return LockReply{}, fmt.Errorf("%w: context %d", ErrAlreadyLocked, st.id)
	}

	reply := LockReply{Texture: st.current, Size: st.size, HasAlpha: st.alpha}
	switch o.sharing {
	case SharingSurface:
		sid, ok := st.surfaces[st.current]
		if !ok {
			var err error
			sid, err = o.device.ExportSurface(st.current)
			if err != nil {
				return LockReply{}, o.skipFrame(st, "export surface", err)
			}
			st.surfaces[st.current] = sid
		}
		reply.Surface = sid
	default:
		fence, err := o.device.CreateFence()
		if err != nil {
			return LockReply{}, o.skipFrame(st, "create fence", err)
		}
		reply.Fence = fence
		st.pendingFence = fence
	}

	st.locked = true
	st.lockedTexture = st.current
	st.hold(st.current)
	return reply, nil
}

// skipFrame turns a failure to share the current frame into
// ErrFrameUnavailable. Device loss is terminal instead.
func (o *Owner) skipFrame(st *contextState, op string, err error) error {
	if errors.Is(err, gpucore.ErrDeviceLost) {
		o.markLost(st, err)
		return fmt.Errorf("%w: %w", ErrContextLost, err)
	}
	slogger().Warn("owner: frame skipped", "context", st.id, "op", op, "err", err)
	return fmt.Errorf("%w: %s: %w", ErrFrameUnavailable, op, err)
}

// unlockFrame releases the frame handed out by lockFrame. The consumer owns
// and destroys the fence.
func (o *Owner) unlockFrame(st *contextState) error {
	if !st.locked {
		return fmt.Errorf("%w: context %d", ErrNotLocked, st.id)
	}
	tex := st.lockedTexture
	st.locked = false
	st.lockedTexture = gpucore.InvalidID
	st.pendingFence = gpucore.InvalidID
	o.release(st, tex)
	return nil
}
