package framebridge

import (
	"github.com/gogpu/framebridge/cache"
	"github.com/gogpu/framebridge/gpucore"
)

// surfaceCache binds platform surfaces to compositor texture names. Each
// surface is bound once and stays bound until the bridge is closed.
type surfaceCache struct {
	device   gpucore.Device
	bindings *cache.Bindings[SurfaceID, TextureID]
}

func newSurfaceCache(device gpucore.Device) *surfaceCache {
	return &surfaceCache{
		device:   device,
		bindings: cache.NewBindings[SurfaceID, TextureID](cache.Uint64Hasher[SurfaceID]),
	}
}

// bind returns the compositor texture bound to a surface, binding it on
// first sight.
func (c *surfaceCache) bind(id SurfaceID) (TextureID, error) {
	tex, bound, err := c.bindings.GetOrBind(id, c.device.BindSurface)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if bound {
		Logger().Debug("framebridge: surface bound", "surface", id, "texture", tex)
	}
	return tex, nil
}

// drain destroys every bound texture and returns how many there were.
func (c *surfaceCache) drain() int {
	return c.bindings.Drain(func(_ SurfaceID, tex TextureID) {
		c.device.DestroyTexture(tex)
	})
}

func (c *surfaceCache) stats() cache.Stats {
	return c.bindings.Stats()
}
