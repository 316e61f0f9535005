package backend

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framebridge/gpucore"
)

// Device is one queue's view of a ShareGroup. It implements gpucore.Device.
//
// Textures are destroyed only through the view that created them; a name
// obtained from BindSurface belongs to the binding view.
type Device struct {
	group *ShareGroup
	label string
}

var _ gpucore.Device = (*Device)(nil)
var _ gpucore.StatsReporter = (*Device)(nil)

// Label returns the view's debug label.
func (d *Device) Label() string { return d.label }

// Group returns the share group this view belongs to.
func (d *Device) Group() *ShareGroup { return d.group }

// Stats returns the live object counts of the whole share group.
func (d *Device) Stats() gpucore.Stats { return d.group.Stats() }

// CreateTexture allocates an RGBA texture of the given size. Contents are
// zero (transparent black).
func (d *Device) CreateTexture(size image.Point) (gpucore.TextureID, error) {
	if size.X <= 0 || size.Y <= 0 {
		return gpucore.InvalidID, fmt.Errorf("backend: create texture %v: %w", size, gpucore.ErrSizeMismatch)
	}

	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return gpucore.InvalidID, ErrClosed
	}

	raw, err := g.device.CreateTexture(&hal.TextureDescriptor{
		Label:         g.opts.label + "/" + d.label,
		Size:          hal.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        g.opts.format,
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return gpucore.InvalidID, mapHALError("create texture", err)
	}

	id := gpucore.TextureID(g.allocID())
	g.textures[id] = &textureEntry{
		store:   &storage{raw: raw, size: size, refs: 1},
		creator: d,
	}
	slogger().Debug("backend: texture created", g.logAttrs(d), "texture", id, "size", size)
	return id, nil
}

// DestroyTexture releases a texture name. Destroying the owner's name of an
// exported texture withdraws the surface; the storage itself lives on while
// any bound name still references it. Unknown IDs and IDs owned by another
// view are ignored with a warning.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookupTexture(id)
	if err != nil {
		slogger().Warn("backend: destroy texture", g.logAttrs(d), "texture", id, "err", err)
		return
	}
	if t.creator != d {
		slogger().Warn("backend: destroy texture from foreign queue ignored",
			g.logAttrs(d), "texture", id, "owner", t.creator.label)
		return
	}

	delete(g.textures, id)
	if s := t.store; t.bound == gpucore.InvalidID && s.surface != gpucore.InvalidID {
		if _, ok := g.surfaces[s.surface]; ok {
			delete(g.surfaces, s.surface)
			g.release(s)
		}
	}
	g.release(t.store)
	slogger().Debug("backend: texture destroyed", g.logAttrs(d), "texture", id)
}

// Size returns the dimensions of a texture.
func (d *Device) Size(id gpucore.TextureID) (image.Point, error) {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookupTexture(id)
	if err != nil {
		return image.Point{}, err
	}
	return t.store.size, nil
}

// FillTexture sets every pixel of a texture to rgba (0xRRGGBBAA).
func (d *Device) FillTexture(id gpucore.TextureID, rgba uint32) error {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookupTexture(id)
	if err != nil {
		return err
	}
	return g.write(t.store, gpucore.SolidPixels(t.store.size, rgba))
}

// WriteTexture replaces the contents of a texture with tightly packed RGBA
// data. The data length must match the texture size exactly.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookupTexture(id)
	if err != nil {
		return err
	}
	return g.write(t.store, data)
}

// ReadTexture returns the RGBA contents of a texture. Only backends with
// host-visible texture storage support readback.
func (d *Device) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookupTexture(id)
	if err != nil {
		return nil, err
	}
	return g.read(t.store)
}

// CopyTexture records and submits a full-texture copy from src to dst.
// Both textures must have the same size.
func (d *Device) CopyTexture(dst, src gpucore.TextureID) error {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	dt, err := g.lookupTexture(dst)
	if err != nil {
		return err
	}
	st, err := g.lookupTexture(src)
	if err != nil {
		return err
	}
	if dt.store.size != st.store.size {
		return fmt.Errorf("backend: copy %v to %v: %w", st.store.size, dt.store.size, gpucore.ErrSizeMismatch)
	}
	if dt.store == st.store {
		return nil
	}

	enc, err := g.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: d.label})
	if err != nil {
		return mapHALError("create encoder", err)
	}
	if err := enc.BeginEncoding(d.label + "/copy"); err != nil {
		return mapHALError("begin encoding", err)
	}
	size := st.store.size
	enc.CopyTextureToTexture(st.store.raw, dt.store.raw, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: st.store.raw, Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: dt.store.raw, Aspect: gputypes.TextureAspectAll},
		Size:    hal.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), DepthOrArrayLayers: 1},
	}})
	cmd, err := enc.EndEncoding()
	if err != nil {
		return mapHALError("end encoding", err)
	}
	defer g.device.FreeCommandBuffer(cmd)

	if _, err := g.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return mapHALError("submit copy", err)
	}
	return nil
}

// CreateFence inserts a fence after all work submitted so far.
func (d *Device) CreateFence() (gpucore.FenceID, error) {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return gpucore.InvalidID, ErrClosed
	}
	if g.opts.maxFences > 0 && len(g.fences) >= g.opts.maxFences {
		return gpucore.InvalidID, fmt.Errorf("backend: create fence: %w: %d live fences",
			gpucore.ErrResourceExhausted, len(g.fences))
	}

	raw, err := g.device.CreateFence()
	if err != nil {
		return gpucore.InvalidID, mapHALError("create fence", err)
	}
	index, err := g.queue.Submit(nil)
	if err != nil {
		g.device.DestroyFence(raw)
		return gpucore.InvalidID, mapHALError("create fence", err)
	}

	id := gpucore.FenceID(g.allocID())
	g.fences[id] = &fenceEntry{raw: raw, index: index, creator: d}
	slogger().Debug("backend: fence created", g.logAttrs(d), "fence", id, "index", index)
	return id, nil
}

// WaitFence makes this view's subsequent work wait for the fence. The HAL
// queue executes submissions in order, so the wait never blocks the caller.
func (d *Device) WaitFence(id gpucore.FenceID) error {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	f, ok := g.fences[id]
	if !ok {
		return fmt.Errorf("%w: %d", gpucore.ErrInvalidFence, id)
	}
	f.waits++
	slogger().Debug("backend: fence wait", g.logAttrs(d),
		"fence", id,
		"index", f.index,
		"completed", g.queue.PollCompleted() >= f.index)
	return nil
}

// DestroyFence releases a fence. Destroying a fence twice is an error.
func (d *Device) DestroyFence(id gpucore.FenceID) error {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	f, ok := g.fences[id]
	if !ok {
		return fmt.Errorf("%w: %d", gpucore.ErrInvalidFence, id)
	}
	delete(g.fences, id)
	g.device.DestroyFence(f.raw)
	return nil
}

// Flush submits pending work on this view.
func (d *Device) Flush() error {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	_, err := g.queue.Submit(nil)
	return mapHALError("flush", err)
}

// ExportSurface publishes a texture as a platform surface. Exporting the same
// texture twice returns the same surface. Only textures created by this view
// can be exported.
func (d *Device) ExportSurface(id gpucore.TextureID) (gpucore.SurfaceID, error) {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookupTexture(id)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if t.creator != d || t.bound != gpucore.InvalidID {
		return gpucore.InvalidID, fmt.Errorf("backend: export texture %d from %q: %w",
			id, d.label, gpucore.ErrInvalidTexture)
	}
	s := t.store
	if s.surface != gpucore.InvalidID {
		return s.surface, nil
	}

	s.surface = gpucore.SurfaceID(g.allocID())
	s.refs++
	g.surfaces[s.surface] = s
	slogger().Debug("backend: surface exported", g.logAttrs(d), "texture", id, "surface", s.surface)
	return s.surface, nil
}

// BindSurface creates a new texture name in this view that aliases the
// storage of an exported surface. The storage stays alive until the bound
// name is destroyed, even if the exporter withdraws the surface.
func (d *Device) BindSurface(sid gpucore.SurfaceID) (gpucore.TextureID, error) {
	g := d.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return gpucore.InvalidID, ErrClosed
	}

	s, ok := g.surfaces[sid]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: %d", gpucore.ErrInvalidSurface, sid)
	}
	s.refs++
	id := gpucore.TextureID(g.allocID())
	g.textures[id] = &textureEntry{store: s, creator: d, bound: sid}
	slogger().Debug("backend: surface bound", g.logAttrs(d), "surface", sid, "texture", id)
	return id, nil
}
