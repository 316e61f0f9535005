package framebridge

import (
	"errors"
	"image"
	"runtime"
	"testing"
	"time"

	"github.com/gogpu/framebridge/gpucore"
)

func TestOutputLock(t *testing.T) {
	for _, c := range configs {
		t.Run(c.String(), func(t *testing.T) {
			fx := newFixture(t, nil, c.options()...)
			ctx := fx.create(t, image.Pt(4, 2), true)
			if err := fx.bridge.Submit(ctx, Clear(0xABCDEF01)); err != nil {
				t.Fatal(err)
			}
			if err := fx.bridge.AttachOutput(1, ctx); err != nil {
				t.Fatal(err)
			}
			if err := fx.bridge.AttachOutput(1, ctx); !errors.Is(err, ErrStreamAttached) {
				t.Errorf("second AttachOutput() error = %v, want ErrStreamAttached", err)
			}

			out, err := fx.bridge.OutputLock(1)
			if err != nil {
				t.Fatalf("OutputLock() error = %v", err)
			}
			if out.Stream() != 1 || out.Size() != image.Pt(4, 2) {
				t.Errorf("output frame = stream %d size %v", out.Stream(), out.Size())
			}
			if got := fx.bridge.Stats().OutputFences; got != 1 {
				t.Errorf("OutputFences = %d, want 1", got)
			}
			if px := readPixel(t, fx, out.Texture(), 0, 0); px != 0xABCDEF01 {
				t.Errorf("output pixel = %#08x, want 0xabcdef01", px)
			}

			if _, err := fx.bridge.OutputLock(1); !errors.Is(err, ErrAlreadyLocked) {
				t.Errorf("second OutputLock() error = %v, want ErrAlreadyLocked", err)
			}

			// The held output frame survives a redraw.
			if err := fx.bridge.Run(ctx, Clear(0x00000000)); err != nil {
				t.Fatal(err)
			}
			if px := readPixel(t, fx, out.Texture(), 0, 0); px != 0xABCDEF01 {
				t.Errorf("held output pixel after redraw = %#08x", px)
			}

			if err := out.Release(); err != nil {
				t.Fatalf("Release() error = %v", err)
			}
			if err := out.Release(); !errors.Is(err, ErrNotLocked) {
				t.Errorf("second Release() error = %v, want ErrNotLocked", err)
			}
			if err := fx.bridge.OutputUnlock(1); !errors.Is(err, ErrUnknownStream) {
				t.Errorf("OutputUnlock() without lock error = %v, want ErrUnknownStream", err)
			}
			if got := fx.group.Stats().Fences; got != 0 {
				t.Errorf("live fences = %d, want 0", got)
			}
		})
	}
}

func TestOutputLockUnavailable(t *testing.T) {
	fx := newFixture(t, nil)

	if _, err := fx.bridge.OutputLock(99); !IsSkipFrame(err) {
		t.Errorf("OutputLock(unknown stream) error = %v, want ErrFrameUnavailable", err)
	}
	if got := fx.bridge.Stats().OutputFences; got != 0 {
		t.Errorf("OutputFences = %d, want 0", got)
	}

	ctx := fx.create(t, image.Pt(2, 2), true)
	if err := fx.bridge.AttachOutput(2, ctx); err != nil {
		t.Fatal(err)
	}
	boom := CommandFunc(func(*Target) error { panic("boom") })
	if err := fx.bridge.Run(ctx, boom); !errors.Is(err, ErrContextLost) {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := fx.bridge.OutputLock(2); !IsSkipFrame(err) {
		t.Errorf("OutputLock(lost context) error = %v, want ErrFrameUnavailable", err)
	}
	if got := fx.group.Stats().Fences; got != 0 {
		t.Errorf("live fences = %d, want 0", got)
	}
}

func TestDetachLockedOutput(t *testing.T) {
	for _, mode := range []Mode{ModeInline, ModeDedicated} {
		t.Run(mode.String(), func(t *testing.T) {
			fx := newFixture(t, nil, WithMode(mode))
			ctx := fx.create(t, image.Pt(2, 2), true)
			if err := fx.bridge.AttachOutput(3, ctx); err != nil {
				t.Fatal(err)
			}
			out, err := fx.bridge.OutputLock(3)
			if err != nil {
				t.Fatal(err)
			}

			if err := fx.bridge.DetachOutput(3); err != nil {
				t.Fatalf("DetachOutput() error = %v", err)
			}
			if got := fx.bridge.Stats().OutputFences; got != 0 {
				t.Errorf("OutputFences after detach = %d, want 0", got)
			}
			if err := out.Release(); !errors.Is(err, ErrUnknownStream) {
				t.Errorf("Release() after detach error = %v, want ErrUnknownStream", err)
			}
			if err := fx.bridge.DetachOutput(3); !errors.Is(err, ErrUnknownStream) {
				t.Errorf("second DetachOutput() error = %v, want ErrUnknownStream", err)
			}
			if got := fx.group.Stats().Fences; got != 0 {
				t.Errorf("live fences = %d, want 0", got)
			}
		})
	}
}

func TestCloseDrainsOutputs(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := fx.create(t, image.Pt(2, 2), true)
	if err := fx.bridge.AttachOutput(4, ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.bridge.OutputLock(4); err != nil {
		t.Fatal(err)
	}

	if err := fx.bridge.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := fx.group.Stats(); got.Fences != 0 || got.Textures != 0 {
		t.Errorf("Stats() after Close = %+v, want empty", got)
	}
}

func TestLeakedOutputFrameIsUnlocked(t *testing.T) {
	for _, mode := range []Mode{ModeInline, ModeDedicated} {
		t.Run(mode.String(), func(t *testing.T) {
			fx := newFixture(t, nil, WithMode(mode))
			ctx := fx.create(t, image.Pt(2, 2), true)
			if err := fx.bridge.AttachOutput(7, ctx); err != nil {
				t.Fatal(err)
			}

			func() {
				if _, err := fx.bridge.OutputLock(7); err != nil {
					t.Fatal(err)
				}
			}()

			deadline := time.Now().Add(5 * time.Second)
			for fx.bridge.Stats().OutputFences != 0 {
				if time.Now().After(deadline) {
					t.Fatal("leaked output frame was never unlocked")
				}
				runtime.GC()
				time.Sleep(time.Millisecond)
			}
			if got := fx.group.Stats().Fences; got != 0 {
				t.Errorf("live fences = %d, want 0", got)
			}

			out, err := fx.bridge.OutputLock(7)
			if err != nil {
				t.Fatalf("OutputLock() after leak error = %v", err)
			}
			if err := out.Release(); err != nil {
				t.Errorf("Release() error = %v", err)
			}
		})
	}
}

// A frame released through Bridge.OutputUnlock and then dropped must not
// disturb a later lock on the same stream.
func TestReleasedOutputFrameKeepsNewLock(t *testing.T) {
	for _, mode := range []Mode{ModeInline, ModeDedicated} {
		t.Run(mode.String(), func(t *testing.T) {
			fx := newFixture(t, nil, WithMode(mode))
			ctx := fx.create(t, image.Pt(2, 2), true)
			if err := fx.bridge.AttachOutput(7, ctx); err != nil {
				t.Fatal(err)
			}

			func() {
				if _, err := fx.bridge.OutputLock(7); err != nil {
					t.Fatal(err)
				}
				if err := fx.bridge.OutputUnlock(7); err != nil {
					t.Fatal(err)
				}
			}()

			out, err := fx.bridge.OutputLock(7)
			if err != nil {
				t.Fatal(err)
			}
			for range 5 {
				runtime.GC()
				time.Sleep(time.Millisecond)
			}
			fx.bridge.Pump()

			if got := fx.bridge.Stats().OutputFences; got != 1 {
				t.Errorf("OutputFences = %d, want 1 while the new lock is held", got)
			}
			if err := out.Release(); err != nil {
				t.Errorf("Release() of the new lock error = %v", err)
			}
			if got := fx.group.Stats().Fences; got != 0 {
				t.Errorf("live fences = %d, want 0", got)
			}
		})
	}
}

func readPixel(t *testing.T, fx *fixture, tex TextureID, x, y int) uint32 {
	t.Helper()
	data, err := fx.consumer.ReadTexture(tex)
	if err != nil {
		t.Fatalf("ReadTexture(%d) error = %v", tex, err)
	}
	size, err := fx.consumer.Size(tex)
	if err != nil {
		t.Fatal(err)
	}
	return gpucore.PixelAt(data, size.X, x, y)
}
