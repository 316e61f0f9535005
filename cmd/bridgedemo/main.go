// Command bridgedemo renders a color ramp on a rendering context, hands
// every frame to a compositor through the frame bridge and saves the last
// frame as a PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"golang.org/x/image/draw"

	"github.com/gogpu/framebridge"
	"github.com/gogpu/framebridge/backend"
	"github.com/gogpu/framebridge/gpucore"
)

func main() {
	var (
		mode    = flag.String("mode", "dedicated", "owner mode: inline or dedicated")
		sharing = flag.String("sharing", "fence", "sharing strategy: fence or surface")
		frames  = flag.Int("frames", 60, "number of frames to render")
		sizeArg = flag.String("size", "64x48", "frame size WxH")
		scale   = flag.Int("scale", 4, "snapshot scale factor")
		output  = flag.String("output", "bridgedemo.png", "output file")
		verbose = flag.Bool("v", false, "log protocol traces")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	framebridge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	m, err := framebridge.ParseMode(*mode)
	if err != nil {
		log.Fatal(err)
	}
	s, err := framebridge.ParseSharing(*sharing)
	if err != nil {
		log.Fatal(err)
	}
	var size image.Point
	if _, err := fmt.Sscanf(*sizeArg, "%dx%d", &size.X, &size.Y); err != nil || size.X <= 0 || size.Y <= 0 {
		log.Fatalf("invalid size %q", *sizeArg)
	}
	if *scale < 1 {
		*scale = 1
	}

	group, err := backend.OpenSoftware(backend.WithLabel("bridgedemo"))
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer group.Close()

	compositor := group.Device("compositor")
	b, err := framebridge.New(group.Device("producer"), compositor,
		framebridge.WithMode(m), framebridge.WithSharing(s))
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}

	last, err := run(b, compositor, size, *frames)
	if err != nil {
		log.Fatal(err)
	}

	stats := b.Stats()
	if err := b.Close(); err != nil {
		log.Fatalf("Close: %v", err)
	}

	if last != nil {
		if err := savePNG(*output, last, *scale); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Last frame saved to %s (%dx%d, scale %d)", *output, size.X, size.Y, *scale)
	}

	leaks := group.Stats()
	log.Printf("mode=%s sharing=%s frames=%d surface bindings=%d hits=%d misses=%d",
		m, s, *frames, stats.SurfaceBindings, stats.SurfaceHits, stats.SurfaceMisses)
	if leaks != (gpucore.Stats{}) {
		log.Printf("leaked objects: textures=%d fences=%d surfaces=%d", leaks.Textures, leaks.Fences, leaks.Surfaces)
		os.Exit(1)
	}
}

// run renders frames and reads each one back on the compositor. It returns
// the last frame.
func run(b *framebridge.Bridge, compositor gpucore.Device, size image.Point, frames int) (*image.RGBA, error) {
	ctx, err := b.CreateContext(size, false)
	if err != nil {
		return nil, err
	}
	provider := b.ImageProvider()

	var last *image.RGBA
	for i := range frames {
		if err := b.Submit(ctx, framebridge.WritePixels(ramp(size, i, frames))); err != nil {
			return nil, err
		}

		tex, _, err := provider.Lock(ctx)
		if framebridge.IsSkipFrame(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		data, err := compositor.ReadTexture(tex)
		if uerr := provider.Unlock(ctx); uerr != nil && err == nil {
			err = uerr
		}
		if err != nil {
			return nil, err
		}
		r, g, bl, _ := gpucore.UnpackRGBA(gpucore.PixelAt(data, size.X, 0, 0))
		framebridge.Logger().Debug("bridgedemo: frame", "index", i, "r", r, "g", g, "b", bl)

		last = &image.RGBA{Pix: data, Stride: size.X * gpucore.BytesPerPixel, Rect: image.Rectangle{Max: size}}
	}
	return last, b.DestroyContext(ctx)
}

// ramp returns a horizontal gradient whose hue shifts with the frame index.
func ramp(size image.Point, frame, frames int) []byte {
	data := make([]byte, gpucore.TextureSize(size))
	shift := uint8(frame * 255 / max(frames-1, 1))
	for y := range size.Y {
		for x := range size.X {
			v := uint8(x * 255 / max(size.X-1, 1))
			w := uint8(y * 255 / max(size.Y-1, 1))
			gpucore.SetPixelAt(data, size.X, x, y, gpucore.PackRGBA(v, w, shift, 0xFF))
		}
	}
	return data
}

func savePNG(path string, src *image.RGBA, scale int) error {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
