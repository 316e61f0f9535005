package owner

import (
	"errors"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/framebridge/backend"
)

func TestInlineCallDrainsQueueFirst(t *testing.T) {
	g := newGroup(t)
	reader := g.Device("reader")
	var wakes atomic.Int32
	h := NewInline(newOwner(t, g, SharingFence), func() { wakes.Add(1) })

	ctx := mustCreate(t, h, image.Pt(1, 1), true)
	for i := range 5 {
		if err := h.Post(Execute{Context: ctx, Commands: []Command{fill(uint32(i+1) << 8)}}); err != nil {
			t.Fatal(err)
		}
	}
	if n := h.Pending(); n != 5 {
		t.Errorf("Pending() = %d, want 5", n)
	}
	if w := wakes.Load(); w != 5 {
		t.Errorf("wake called %d times, want 5", w)
	}

	r := h.Call(Lock{Context: ctx})
	if r.Err != nil {
		t.Fatal(r.Err)
	}
	if h.Pending() != 0 {
		t.Error("Call did not drain the queue")
	}
	if px := readPixel(t, reader, r.Lock.Texture, 0, 0); px != 5<<8 {
		t.Errorf("pixel = %#08x, want %#08x", px, 5<<8)
	}
	_ = reader.DestroyFence(r.Lock.Fence)
	h.Call(Unlock{Context: ctx})
}

func TestInlineRemote(t *testing.T) {
	g := newGroup(t)
	wake := make(chan struct{}, 1)
	h := NewInline(newOwner(t, g, SharingFence), func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	remote := h.Remote()
	if remote.Mode() != ModeInline {
		t.Errorf("Remote().Mode() = %v", remote.Mode())
	}

	// The host loop: pump on every wake until the owner exits.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-wake:
				h.Pump()
			case <-h.Done():
				return
			}
		}
	}()

	var eg errgroup.Group
	for range 4 {
		eg.Go(func() error {
			r := remote.Call(CreateContext{Size: image.Pt(2, 2), Alpha: true})
			if r.Err != nil {
				return r.Err
			}
			if r := remote.Call(Lock{Context: r.Context}); r.Err != nil {
				return r.Err
			}
			return remote.Call(Unlock{Context: r.Context}).Err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("remote calls: %v", err)
	}

	if err := remote.Exit(); err != nil {
		t.Errorf("remote Exit() error = %v", err)
	}
	wg.Wait()
	if r := remote.Call(Lock{Context: 1}); !errors.Is(r.Err, ErrContextLost) {
		t.Errorf("remote Call after Exit error = %v, want ErrContextLost", r.Err)
	}
}

func TestInlineRefusesRequestsAfterQueuedExit(t *testing.T) {
	g := newGroup(t)
	h := NewInline(newOwner(t, g, SharingFence), nil)
	remote := h.Remote()

	if err := h.Post(Exit{}); err != nil {
		t.Fatal(err)
	}
	if r := remote.Call(CreateContext{Size: image.Pt(1, 1)}); !errors.Is(r.Err, ErrContextLost) {
		t.Errorf("Call behind a queued Exit: %v, want ErrContextLost", r.Err)
	}
	if err := h.Post(Execute{Context: 1}); !errors.Is(err, ErrContextLost) {
		t.Errorf("Post behind a queued Exit: %v, want ErrContextLost", err)
	}
	if n := h.Pending(); n != 1 {
		t.Errorf("Pending() = %d, want only the Exit", n)
	}
	if n := h.Pump(); n != 1 {
		t.Errorf("Pump() = %d, want 1", n)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after the queued Exit was served")
	}
}

// Every Post that reports success must be served, even when it races Exit.
func TestPostRacingExitIsServed(t *testing.T) {
	for _, name := range []string{"inline", "dedicated"} {
		t.Run(name, func(t *testing.T) {
			g := newGroup(t)
			o := newOwner(t, g, SharingFence)
			var h Handle
			var host func()
			if name == "inline" {
				in := NewInline(o, nil)
				h, host = in.Remote(), func() { in.Pump() }
				t.Cleanup(func() { _ = in.Exit() })
			} else {
				d := NewDedicated(o, 1)
				h, host = d, func() {}
				t.Cleanup(func() { _ = d.Exit() })
			}

			ctxReply := make(chan Reply, 1)
			go func() { ctxReply <- h.Call(CreateContext{Size: image.Pt(1, 1), Alpha: true}) }()
			var r Reply
			for done := false; !done; {
				host()
				select {
				case r = <-ctxReply:
					done = true
				default:
					runtime.Gosched()
				}
			}
			if r.Err != nil {
				t.Fatal(r.Err)
			}

			var served, accepted atomic.Int64
			count := CommandFunc(func(*Target) error {
				served.Add(1)
				return nil
			})
			var posters sync.WaitGroup
			for range 4 {
				posters.Add(1)
				go func() {
					defer posters.Done()
					for {
						err := h.Post(Execute{Context: r.Context, Commands: []Command{count}})
						if err != nil {
							if !errors.Is(err, ErrContextLost) {
								t.Errorf("Post() error = %v", err)
							}
							return
						}
						accepted.Add(1)
					}
				}()
			}

			for accepted.Load() < 20 {
				host()
				runtime.Gosched()
			}
			if err := h.Post(Exit{}); err != nil {
				t.Fatal(err)
			}
			postersDone := make(chan struct{})
			go func() {
				posters.Wait()
				close(postersDone)
			}()
			for waiting := true; waiting; {
				host()
				select {
				case <-postersDone:
					waiting = false
				default:
					runtime.Gosched()
				}
			}
			host()
			if name == "dedicated" {
				<-h.(*Dedicated).Done()
			}

			if s, a := served.Load(), accepted.Load(); s != a {
				t.Errorf("served %d of %d accepted posts", s, a)
			}
		})
	}
}

func TestDedicatedConcurrentCalls(t *testing.T) {
	g := newGroup(t)
	d := NewDedicated(newOwner(t, g, SharingFence), 4)
	if d.Mode() != ModeDedicated {
		t.Errorf("Mode() = %v", d.Mode())
	}

	var eg errgroup.Group
	for range 8 {
		eg.Go(func() error {
			r := d.Call(CreateContext{Size: image.Pt(2, 2), Alpha: true})
			if r.Err != nil {
				return r.Err
			}
			for range 10 {
				if err := d.Post(Execute{Context: r.Context, Commands: []Command{fill(0xFFFFFFFF)}}); err != nil {
					return err
				}
				if r := d.Call(Lock{Context: r.Context}); r.Err != nil {
					return r.Err
				}
				if r := d.Call(Unlock{Context: r.Context}); r.Err != nil {
					return r.Err
				}
			}
			return d.Call(DestroyContext{Context: r.Context}).Err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	if err := d.Exit(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done() not closed after Exit")
	}
	if s := g.Stats(); s.Textures != 0 {
		t.Errorf("live textures = %d, want 0", s.Textures)
	}
}

func TestModeAndSharingString(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ModeInline.String(), "inline"},
		{ModeDedicated.String(), "dedicated"},
		{Mode(9).String(), "Mode(9)"},
		{SharingFence.String(), "fence"},
		{SharingSurface.String(), "surface"},
		{Sharing(9).String(), "Sharing(9)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func BenchmarkInlineLockUnlock(b *testing.B) {
	g, err := backend.OpenSoftware()
	if err != nil {
		b.Fatal(err)
	}
	defer g.Close()
	o, _ := New(Config{Device: g.Device("owner"), Sharing: SharingSurface})
	h := NewInline(o, nil)
	ctx := h.Call(CreateContext{Size: image.Pt(64, 64)}).Context

	for b.Loop() {
		h.Call(Lock{Context: ctx})
		h.Call(Unlock{Context: ctx})
	}
}

func BenchmarkDedicatedLockUnlock(b *testing.B) {
	g, err := backend.OpenSoftware()
	if err != nil {
		b.Fatal(err)
	}
	defer g.Close()
	o, _ := New(Config{Device: g.Device("owner"), Sharing: SharingSurface})
	d := NewDedicated(o, 0)
	defer d.Exit()
	ctx := d.Call(CreateContext{Size: image.Pt(64, 64)}).Context

	for b.Loop() {
		d.Call(Lock{Context: ctx})
		d.Call(Unlock{Context: ctx})
	}
}
