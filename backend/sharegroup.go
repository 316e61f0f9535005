package backend

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"

	"github.com/gogpu/framebridge/gpucore"
)

// storage is one HAL texture, possibly shared by several texture names
// (the owner's name plus every name bound to its platform surface).
type storage struct {
	raw     hal.Texture
	size    image.Point
	refs    int
	surface gpucore.SurfaceID
}

type textureEntry struct {
	store   *storage
	creator *Device
	bound   gpucore.SurfaceID
}

type fenceEntry struct {
	raw     hal.Fence
	index   uint64
	creator *Device
	waits   int
}

// ShareGroup owns a HAL device/queue pair and the object namespace shared by
// the Devices created from it.
//
// ShareGroup is safe for concurrent use.
type ShareGroup struct {
	mu sync.Mutex

	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	adapter  hal.Adapter
	owned    bool
	opts     groupOptions

	nextID   uint64
	textures map[gpucore.TextureID]*textureEntry
	fences   map[gpucore.FenceID]*fenceEntry
	surfaces map[gpucore.SurfaceID]*storage
	closed   bool
}

// NewShareGroup wraps an existing HAL device and queue. The caller keeps
// ownership of both; Close releases bridge objects only.
func NewShareGroup(device hal.Device, queue hal.Queue, opts ...Option) *ShareGroup {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ShareGroup{
		device:   device,
		queue:    queue,
		opts:     o,
		textures: make(map[gpucore.TextureID]*textureEntry),
		fences:   make(map[gpucore.FenceID]*fenceEntry),
		surfaces: make(map[gpucore.SurfaceID]*storage),
	}
}

// Open creates an instance of the given HAL backend, opens its first adapter
// and returns a ShareGroup that owns the resulting device.
func Open(b hal.Backend, opts ...Option) (*ShareGroup, error) {
	inst, err := b.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, mapHALError("create instance", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, ErrNoAdapter
	}
	exposed := adapters[0]
	open, err := exposed.Adapter.Open(0, exposed.Capabilities.Limits)
	if err != nil {
		inst.Destroy()
		return nil, mapHALError("open adapter", err)
	}

	g := NewShareGroup(open.Device, open.Queue, opts...)
	g.instance = inst
	g.adapter = exposed.Adapter
	g.owned = true

	slogger().Info("backend: adapter opened",
		"label", g.opts.label,
		"adapter", exposed.Info.Name,
		"driver", exposed.Info.Driver,
		"format", g.opts.format.String())
	return g, nil
}

// OpenSoftware opens the CPU-based wgpu HAL backend. It never needs a GPU
// or a window and is used for tests and headless tools.
func OpenSoftware(opts ...Option) (*ShareGroup, error) {
	return Open(software.API{}, opts...)
}

// OpenNative opens the best GPU backend the application linked into the HAL
// registry. It returns ErrBackendNotAvailable when only the empty/software
// variant is registered.
func OpenNative(opts ...Option) (*ShareGroup, error) {
	b, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, err)
	}
	if b.Variant() == gputypes.BackendEmpty {
		return nil, ErrBackendNotAvailable
	}
	return Open(b, opts...)
}

// FromProvider builds a ShareGroup on the device of a host application
// (for example a gogpu window). The provider's Device and Queue must be wgpu
// HAL objects. The host keeps ownership of the device.
func FromProvider(p gpucontext.DeviceProvider, opts ...Option) (*ShareGroup, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	device, ok := p.Device().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: device is %T", ErrUnsupportedProvider, p.Device())
	}
	queue, ok := p.Queue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: queue is %T", ErrUnsupportedProvider, p.Queue())
	}

	// Options passed by the caller win over the provider's surface format.
	all := append([]Option{WithFormat(p.SurfaceFormat())}, opts...)
	g := NewShareGroup(device, queue, all...)

	info := p.AdapterInfo()
	slogger().Info("backend: using host device",
		"label", g.opts.label,
		"adapter", info.Name,
		"type", info.Type.String(),
		"format", g.opts.format.String())
	return g, nil
}

// Device returns a new queue view of the group. Every side of the bridge
// should use its own view.
func (g *ShareGroup) Device(label string) *Device {
	return &Device{group: g, label: label}
}

// Format returns the storage format of textures in this group.
func (g *ShareGroup) Format() gputypes.TextureFormat {
	return g.opts.format
}

// Stats returns the number of live objects in the group.
func (g *ShareGroup) Stats() gpucore.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return gpucore.Stats{
		Textures: len(g.textures),
		Fences:   len(g.fences),
		Surfaces: len(g.surfaces),
	}
}

// Close releases every object still alive in the group and, when the group
// owns its device, the device itself. Objects left alive at this point are
// leaks in the bridge protocol and are reported at warn level.
// Close is idempotent.
func (g *ShareGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if n := len(g.textures) + len(g.fences); n > 0 {
		slogger().Warn("backend: releasing leaked objects",
			"label", g.opts.label,
			"textures", len(g.textures),
			"fences", len(g.fences),
			"surfaces", len(g.surfaces))
	}

	for id, f := range g.fences {
		g.device.DestroyFence(f.raw)
		delete(g.fences, id)
	}
	released := make(map[*storage]bool)
	for id, t := range g.textures {
		if !released[t.store] {
			g.device.DestroyTexture(t.store.raw)
			released[t.store] = true
		}
		delete(g.textures, id)
	}
	for id, s := range g.surfaces {
		if !released[s] {
			g.device.DestroyTexture(s.raw)
			released[s] = true
		}
		delete(g.surfaces, id)
	}

	if g.owned {
		if err := g.device.WaitIdle(); err != nil {
			slogger().Warn("backend: wait idle failed", "label", g.opts.label, "err", err)
		}
		g.device.Destroy()
		if g.adapter != nil {
			g.adapter.Destroy()
		}
		if g.instance != nil {
			g.instance.Destroy()
		}
	}
	return nil
}

// allocID returns the next object ID. Texture, fence and surface IDs share
// one sequence so an ID is never valid in two namespaces. Caller holds mu.
func (g *ShareGroup) allocID() uint64 {
	g.nextID++
	return g.nextID
}

// release drops one reference to a storage and destroys the HAL texture with
// the last one. Caller holds mu.
func (g *ShareGroup) release(s *storage) {
	s.refs--
	if s.refs > 0 {
		return
	}
	g.device.DestroyTexture(s.raw)
}

// lookupTexture resolves a texture name. Caller holds mu.
func (g *ShareGroup) lookupTexture(id gpucore.TextureID) (*textureEntry, error) {
	if g.closed {
		return nil, ErrClosed
	}
	t, ok := g.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrInvalidTexture, id)
	}
	return t, nil
}

// write uploads RGBA data into a storage through the queue. Caller holds mu.
func (g *ShareGroup) write(s *storage, data []byte) error {
	if len(data) != gpucore.TextureSize(s.size) {
		return fmt.Errorf("%w: %d bytes for %dx%d texture",
			gpucore.ErrSizeMismatch, len(data), s.size.X, s.size.Y)
	}
	if isBGRA(g.opts.format) {
		converted := make([]byte, len(data))
		copy(converted, data)
		swizzle(converted)
		data = converted
	}
	w, h := uint32(s.size.X), uint32(s.size.Y)
	err := g.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: s.raw, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: w * gpucore.BytesPerPixel, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	return mapHALError("write texture", err)
}

// dataReader is implemented by HAL textures with host-visible storage
// (the software backend).
type dataReader interface {
	GetData() []byte
}

// read returns a copy of a storage's RGBA contents. Caller holds mu.
func (g *ShareGroup) read(s *storage) ([]byte, error) {
	r, ok := s.raw.(dataReader)
	if !ok {
		return nil, fmt.Errorf("backend: %T: %w", s.raw, gpucore.ErrReadbackUnsupported)
	}
	data := r.GetData()
	if n := gpucore.TextureSize(s.size); len(data) > n {
		data = data[:n]
	}
	if isBGRA(g.opts.format) {
		swizzle(data)
	}
	return data, nil
}

func (g *ShareGroup) logAttrs(d *Device) slog.Attr {
	return slog.Group("queue", "group", g.opts.label, "label", d.label)
}
