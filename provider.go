package framebridge

import (
	"fmt"
	"image"
)

// ImageProvider is the compositor-facing view of the bridge that hands out
// ready-to-sample textures. The consumer wait is issued before Lock returns.
type ImageProvider interface {
	Lock(ctx ContextID) (TextureID, image.Point, error)
	Unlock(ctx ContextID) error
}

// FenceProvider hands out the raw fence of a frame. The caller issues the
// wait on its own queue. ok is false when the frame was shared through a
// platform surface and no wait is needed.
type FenceProvider interface {
	Lock(ctx ContextID) (fence FenceID, ok bool, err error)
	Unlock(ctx ContextID) error
}

// ImageProvider returns the bridge as an ImageProvider.
func (b *Bridge) ImageProvider() ImageProvider { return imageProvider{b} }

// FenceProvider returns the bridge as a FenceProvider.
func (b *Bridge) FenceProvider() FenceProvider { return fenceProvider{b} }

type imageProvider struct{ b *Bridge }

func (p imageProvider) Lock(ctx ContextID) (TextureID, image.Point, error) {
	f, err := p.b.hold(ctx, true)
	if err != nil {
		return 0, image.Point{}, err
	}
	return f.Texture(), f.Size(), nil
}

func (p imageProvider) Unlock(ctx ContextID) error { return p.b.unhold(ctx) }

type fenceProvider struct{ b *Bridge }

func (p fenceProvider) Lock(ctx ContextID) (FenceID, bool, error) {
	f, err := p.b.hold(ctx, false)
	if err != nil {
		return 0, false, err
	}
	fence, ok := f.Fence()
	return fence, ok, nil
}

func (p fenceProvider) Unlock(ctx ContextID) error { return p.b.unhold(ctx) }

// hold locks a frame and keeps it until unhold.
func (b *Bridge) hold(ctx ContextID, wait bool) (*Frame, error) {
	b.mu.Lock()
	_, held := b.held[ctx]
	b.mu.Unlock()
	if held {
		return nil, fmt.Errorf("%w: context %d", ErrAlreadyLocked, ctx)
	}

	f, err := b.lock(ctx, wait)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = f.Release()
		return nil, ErrClosed
	}
	b.held[ctx] = f
	b.mu.Unlock()
	return f, nil
}

func (b *Bridge) unhold(ctx ContextID) error {
	b.mu.Lock()
	f, ok := b.held[ctx]
	delete(b.held, ctx)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: context %d", ErrNotLocked, ctx)
	}
	return f.Release()
}
