package owner

import (
	"errors"
	"sync"
)

// Inline runs an owner on the host event loop.
//
// Call, Pump and Exit must be invoked from the host goroutine. Other
// goroutines use Post, or the handle returned by Remote, and rely on the
// wake hook to get the host to Pump.
type Inline struct {
	owner *Owner
	wake  func()

	mu    sync.Mutex
	queue []envelope
	// exiting is set once Exit is queued or being called; later requests
	// are refused so every accepted request is served.
	exiting bool

	stopped  chan struct{}
	stopOnce sync.Once
}

var _ Handle = (*Inline)(nil)

// NewInline wraps an owner for inline dispatch. wake is called whenever a
// request is queued for the host; it may be nil when the host pumps on its
// own schedule.
func NewInline(o *Owner, wake func()) *Inline {
	return &Inline{
		owner:   o,
		wake:    wake,
		stopped: make(chan struct{}),
	}
}

// Mode returns ModeInline.
func (in *Inline) Mode() Mode { return ModeInline }

// Call serves req on the calling goroutine after draining every queued
// request, so it observes everything posted before it.
func (in *Inline) Call(req Request) Reply {
	if in.isStopped() {
		return Reply{Err: ErrContextLost}
	}
	if IsExit(req) {
		in.mu.Lock()
		in.exiting = true
		in.mu.Unlock()
	}
	in.Pump()
	if in.isStopped() {
		return Reply{Err: ErrContextLost}
	}
	r := in.owner.dispatch(req)
	if IsExit(req) {
		in.stop()
	}
	return r
}

// Post queues req for the next Pump and wakes the host.
func (in *Inline) Post(req Request) error {
	return in.enqueue(envelope{req: req})
}

func (in *Inline) enqueue(env envelope) error {
	in.mu.Lock()
	if in.exiting || in.isStopped() {
		in.mu.Unlock()
		return ErrContextLost
	}
	if IsExit(env.req) {
		in.exiting = true
	}
	in.queue = append(in.queue, env)
	in.mu.Unlock()
	if in.wake != nil {
		in.wake()
	}
	return nil
}

// Pump serves every queued request in order and returns how many were
// served. Requests queued while pumping are served in the same call.
func (in *Inline) Pump() int {
	n := 0
	for {
		in.mu.Lock()
		batch := in.queue
		in.queue = nil
		in.mu.Unlock()
		if len(batch) == 0 {
			return n
		}

		for _, env := range batch {
			if in.isStopped() {
				env.answer(Reply{Err: ErrContextLost})
				continue
			}
			env.answer(in.owner.dispatch(env.req))
			n++
			if IsExit(env.req) {
				in.stop()
			}
		}
	}
}

// Pending returns the number of queued requests.
func (in *Inline) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

// Exit serves every queued request and then stops the owner.
func (in *Inline) Exit() error {
	r := in.Call(Exit{})
	if r.Err != nil && !errors.Is(r.Err, ErrContextLost) {
		return r.Err
	}
	return nil
}

// Remote returns a handle for goroutines other than the host. Its Call
// queues the request and blocks until the host pumps it; calling it from the
// host goroutine deadlocks.
func (in *Inline) Remote() Handle {
	return remote{in: in}
}

// Done returns a channel closed once the owner has exited.
func (in *Inline) Done() <-chan struct{} { return in.stopped }

func (in *Inline) stop() {
	in.stopOnce.Do(func() { close(in.stopped) })
}

func (in *Inline) isStopped() bool {
	select {
	case <-in.stopped:
		return true
	default:
		return false
	}
}

// remote is the cross-goroutine view of an Inline owner.
type remote struct {
	in *Inline
}

func (r remote) Mode() Mode { return ModeInline }

func (r remote) Call(req Request) Reply {
	env := envelope{req: req, reply: make(chan Reply, 1)}
	if err := r.in.enqueue(env); err != nil {
		return Reply{Err: err}
	}
	return await(env.reply, r.in.stopped)
}

func (r remote) Post(req Request) error {
	return r.in.Post(req)
}

func (r remote) Exit() error {
	reply := r.Call(Exit{})
	if reply.Err != nil && !errors.Is(reply.Err, ErrContextLost) {
		return reply.Err
	}
	return nil
}
