package owner

import (
	"errors"
	"runtime"
	"sync"
)

// DefaultQueueDepth is the request buffer of a dedicated owner.
const DefaultQueueDepth = 64

// Dedicated runs an owner on its own goroutine, locked to an OS thread for
// its whole life, fed by a buffered FIFO channel.
//
// Thread safety: Dedicated is safe for concurrent use.
type Dedicated struct {
	owner *Owner

	// requests is the ordered, single-consumer message channel.
	requests chan envelope

	// mu orders sends against the Exit request: once Exit is queued no
	// other request is accepted, so every accepted request is served.
	mu      sync.Mutex
	exiting bool

	// stopped is closed when the owner goroutine returns.
	stopped chan struct{}
}

var _ Handle = (*Dedicated)(nil)

// NewDedicated starts the owner goroutine. depth <= 0 selects
// DefaultQueueDepth.
func NewDedicated(o *Owner, depth int) *Dedicated {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	d := &Dedicated{
		owner:    o,
		requests: make(chan envelope, depth),
		stopped:  make(chan struct{}),
	}
	started := make(chan struct{})
	go d.loop(started)
	<-started
	return d
}

func (d *Dedicated) loop(started chan<- struct{}) {
	defer close(d.stopped)
	runtime.LockOSThread()
	// Don't UnlockOSThread: the thread held the device's queue and is
	// retired with the goroutine.

	slogger().Info("owner: dedicated thread started")
	close(started)

	for env := range d.requests {
		r := d.owner.dispatch(env.req)
		env.answer(r)
		if IsExit(env.req) {
			return
		}
	}
}

// Mode returns ModeDedicated.
func (d *Dedicated) Mode() Mode { return ModeDedicated }

// Call sends req to the owner thread and waits for the reply.
func (d *Dedicated) Call(req Request) Reply {
	env := envelope{req: req, reply: make(chan Reply, 1)}
	if err := d.send(env); err != nil {
		return Reply{Err: err}
	}
	return await(env.reply, d.stopped)
}

// Post sends req to the owner thread. It blocks while the queue is full.
// A nil error means the request will be served.
func (d *Dedicated) Post(req Request) error {
	return d.send(envelope{req: req})
}

// send queues env unless Exit was queued before it. The loop never takes
// mu, so blocking on a full queue while holding it cannot deadlock.
func (d *Dedicated) send(env envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exiting {
		return ErrContextLost
	}
	if IsExit(env.req) {
		d.exiting = true
	}
	d.requests <- env
	return nil
}

// Exit stops the owner thread after the requests already queued and waits
// for it to return.
func (d *Dedicated) Exit() error {
	r := d.Call(Exit{})
	<-d.stopped
	if r.Err != nil && !errors.Is(r.Err, ErrContextLost) {
		return r.Err
	}
	return nil
}

// Done returns a channel closed when the owner thread has stopped.
func (d *Dedicated) Done() <-chan struct{} { return d.stopped }
