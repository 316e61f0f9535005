package owner

import (
	"fmt"
	"image"

	"github.com/gogpu/framebridge/gpucore"
)

// Request is a message served by the owner in a dispatch turn.
// The set of requests is closed.
type Request interface {
	serve(o *Owner) Reply
}

// Reply is the answer to a Request. Only the fields relevant to the request
// are set.
type Reply struct {
	Context ContextID
	Lock    LockReply
	Output  OutputReply

	// OK is false when an OutputLock could not hand out a frame.
	OK bool

	Err error
}

// CreateContext creates a context with a cleared frame of the given size.
type CreateContext struct {
	Size  image.Point
	Alpha bool
}

func (r CreateContext) serve(o *Owner) Reply {
	if r.Size.X <= 0 || r.Size.Y <= 0 {
		return Reply{Err: fmt.Errorf("owner: create context %v: %w", r.Size, gpucore.ErrSizeMismatch)}
	}
	st := newContextState(r.Size, r.Alpha)
	tex, err := o.newTexture(st)
	if err != nil {
		return Reply{Err: fmt.Errorf("owner: create context: %w", err)}
	}
	st.current = tex
	o.contexts[st.id] = st
	slogger().Info("owner: context created", "context", st.id, "size", r.Size, "alpha", r.Alpha)
	return Reply{Context: st.id, OK: true}
}

// DestroyContext destroys a context and every texture it owns, including
// textures still held by a lock. Lost contexts can be destroyed.
type DestroyContext struct {
	Context ContextID
}

func (r DestroyContext) serve(o *Owner) Reply {
	st, ok := o.contexts[r.Context]
	if !ok {
		return Reply{Err: fmt.Errorf("%w: %d", ErrUnknownContext, r.Context)}
	}
	if st.locked {
		slogger().Warn("owner: destroying locked context", "context", st.id)
	}
	o.detachContext(st.id)
	o.destroyAll(st)
	delete(o.contexts, r.Context)
	slogger().Info("owner: context destroyed", "context", r.Context)
	return Reply{Context: r.Context, OK: true}
}

// Resize changes the frame size of a context. The new frame is cleared.
type Resize struct {
	Context ContextID
	Size    image.Point
}

func (r Resize) serve(o *Owner) Reply {
	st, err := o.lookup(r.Context)
	if err != nil {
		return Reply{Err: err}
	}
	if r.Size.X <= 0 || r.Size.Y <= 0 {
		return Reply{Err: fmt.Errorf("owner: resize %v: %w", r.Size, gpucore.ErrSizeMismatch)}
	}
	if err := o.resize(st, r.Size); err != nil {
		return Reply{Err: fmt.Errorf("owner: resize: %w", err)}
	}
	return Reply{Context: r.Context, OK: true}
}

// Execute applies rendering commands to a context.
type Execute struct {
	Context  ContextID
	Commands []Command
}

func (r Execute) serve(o *Owner) Reply {
	st, err := o.lookup(r.Context)
	if err != nil {
		return Reply{Err: err}
	}
	if err := o.execute(st, r.Commands); err != nil {
		return Reply{Context: r.Context, Err: err}
	}
	return Reply{Context: r.Context, OK: true}
}

// Lock hands out the current frame of a context.
type Lock struct {
	Context ContextID
}

func (r Lock) serve(o *Owner) Reply {
	st, err := o.lookup(r.Context)
	if err != nil {
		return Reply{Err: err}
	}
	lr, err := o.lockFrame(st)
	if err != nil {
		return Reply{Err: err}
	}
	return Reply{Context: r.Context, Lock: lr, OK: true}
}

// Unlock releases the frame handed out by Lock. A lost context may still be
// unlocked.
type Unlock struct {
	Context ContextID
}

func (r Unlock) serve(o *Owner) Reply {
	st, ok := o.contexts[r.Context]
	if !ok {
		return Reply{Err: fmt.Errorf("%w: %d", ErrUnknownContext, r.Context)}
	}
	if err := o.unlockFrame(st); err != nil {
		return Reply{Err: err}
	}
	return Reply{Context: r.Context, OK: true}
}

// Exit destroys every context and stops the owner. Requests after Exit fail
// with ErrContextLost.
type Exit struct{}

func (Exit) serve(o *Owner) Reply {
	o.shutdown()
	return Reply{OK: true}
}

// IsExit reports whether req is an Exit request.
func IsExit(req Request) bool {
	_, ok := req.(Exit)
	return ok
}
