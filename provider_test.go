package framebridge

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/framebridge/gpucore"
)

func TestImageProvider(t *testing.T) {
	for _, c := range configs {
		t.Run(c.String(), func(t *testing.T) {
			fx := newFixture(t, nil, c.options()...)
			ctx := fx.create(t, image.Pt(3, 3), true)
			if err := fx.bridge.Submit(ctx, Clear(0x0000FFFF)); err != nil {
				t.Fatal(err)
			}

			p := fx.bridge.ImageProvider()
			tex, size, err := p.Lock(ctx)
			if err != nil {
				t.Fatalf("Lock() error = %v", err)
			}
			if size != image.Pt(3, 3) {
				t.Errorf("size = %v, want 3x3", size)
			}
			data, err := fx.consumer.ReadTexture(tex)
			if err != nil {
				t.Fatal(err)
			}
			if px := gpucore.PixelAt(data, 3, 2, 2); px != 0x0000FFFF {
				t.Errorf("pixel = %#08x, want 0x0000ffff", px)
			}
			if got := fx.bridge.Stats().ProviderFrames; got != 1 {
				t.Errorf("ProviderFrames = %d, want 1", got)
			}

			if _, _, err := p.Lock(ctx); !errors.Is(err, ErrAlreadyLocked) {
				t.Errorf("second Lock() error = %v, want ErrAlreadyLocked", err)
			}
			if err := p.Unlock(ctx); err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			if err := p.Unlock(ctx); !errors.Is(err, ErrNotLocked) {
				t.Errorf("second Unlock() error = %v, want ErrNotLocked", err)
			}
			if got := fx.group.Stats().Fences; got != 0 {
				t.Errorf("live fences = %d, want 0", got)
			}
		})
	}
}

func TestFenceProvider(t *testing.T) {
	tests := []struct {
		sharing   Sharing
		wantFence bool
	}{
		{SharingFence, true},
		{SharingSurface, false},
	}
	for _, tt := range tests {
		t.Run(tt.sharing.String(), func(t *testing.T) {
			fx := newFixture(t, nil, WithSharing(tt.sharing))
			ctx := fx.create(t, image.Pt(2, 2), true)

			p := fx.bridge.FenceProvider()
			fence, ok, err := p.Lock(ctx)
			if err != nil {
				t.Fatalf("Lock() error = %v", err)
			}
			if ok != tt.wantFence {
				t.Fatalf("Lock() ok = %v, want %v", ok, tt.wantFence)
			}
			if ok {
				// The caller issues the wait.
				if err := fx.consumer.WaitFence(fence); err != nil {
					t.Errorf("WaitFence(%d) error = %v", fence, err)
				}
			}
			if err := p.Unlock(ctx); err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			if got := fx.group.Stats().Fences; got != 0 {
				t.Errorf("live fences = %d, want 0", got)
			}
		})
	}
}

func TestProviderUnlockAfterDestroy(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := fx.create(t, image.Pt(2, 2), true)

	p := fx.bridge.ImageProvider()
	if _, _, err := p.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	if err := fx.bridge.DestroyContext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Unlock(ctx); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("Unlock() after DestroyContext error = %v, want ErrUnknownContext", err)
	}
	if got := fx.bridge.Stats().ProviderFrames; got != 0 {
		t.Errorf("ProviderFrames = %d, want 0", got)
	}
	if got := fx.group.Stats().Fences; got != 0 {
		t.Errorf("live fences = %d, want 0", got)
	}
}
