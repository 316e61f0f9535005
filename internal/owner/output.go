package owner

import (
	"fmt"

	"github.com/gogpu/framebridge/gpucore"
)

// outputState is the owner side of one output stream.
type outputState struct {
	stream  StreamID
	context ContextID

	// texture is the frame held for the consumer between OutputLock and
	// OutputUnlock; zero when unlocked.
	texture gpucore.TextureID

	// dropped is set when the context went away while the frame was held,
	// so the consumer's OutputUnlock still succeeds.
	dropped bool
}

// detachContext drops the holds of every output stream reading from ctx.
// The streams stay attached; OutputLock on them reports no frame.
func (o *Owner) detachContext(ctx ContextID) {
	for _, out := range o.outputs {
		if out.context == ctx && out.texture != gpucore.InvalidID {
			out.texture = gpucore.InvalidID
			out.dropped = true
		}
	}
}

// AttachOutput binds an output stream to a context.
type AttachOutput struct {
	Stream  StreamID
	Context ContextID
}

func (r AttachOutput) serve(o *Owner) Reply {
	if _, ok := o.outputs[r.Stream]; ok {
		return Reply{Err: fmt.Errorf("%w: %d", ErrStreamAttached, r.Stream)}
	}
	if _, err := o.lookup(r.Context); err != nil {
		return Reply{Err: err}
	}
	o.outputs[r.Stream] = &outputState{stream: r.Stream, context: r.Context}
	slogger().Debug("owner: output attached", "stream", r.Stream, "context", r.Context)
	return Reply{Context: r.Context, OK: true}
}

// DetachOutput unbinds an output stream, dropping any frame it holds.
type DetachOutput struct {
	Stream StreamID
}

func (r DetachOutput) serve(o *Owner) Reply {
	out, ok := o.outputs[r.Stream]
	if !ok {
		return Reply{Err: fmt.Errorf("%w: %d", ErrUnknownStream, r.Stream)}
	}
	if out.texture != gpucore.InvalidID {
		if st, ok := o.contexts[out.context]; ok {
			o.release(st, out.texture)
		}
	}
	delete(o.outputs, r.Stream)
	return Reply{Context: out.context, OK: true}
}

// OutputLock asks the owner to make its next read of the stream wait on the
// consumer's fence and to hand out the stream's frame. The reply has OK
// false when the stream or its context cannot produce a frame.
type OutputLock struct {
	Stream StreamID
	Fence  gpucore.FenceID
}

func (r OutputLock) serve(o *Owner) Reply {
	out, ok := o.outputs[r.Stream]
	if !ok {
		slogger().Debug("owner: output lock on unknown stream", "stream", r.Stream)
		return Reply{}
	}
	if out.texture != gpucore.InvalidID {
		return Reply{Err: fmt.Errorf("%w: stream %d", ErrAlreadyLocked, r.Stream)}
	}
	st, err := o.lookup(out.context)
	if err != nil {
		slogger().Debug("owner: output lock without frame", "stream", r.Stream, "err", err)
		return Reply{}
	}
	if err := o.device.WaitFence(r.Fence); err != nil {
		slogger().Warn("owner: output fence wait failed", "stream", r.Stream, "err", err)
		return Reply{}
	}

	out.texture = st.current
	st.hold(st.current)
	return Reply{
		Context: st.id,
		Output:  OutputReply{Texture: st.current, Size: st.size},
		OK:      true,
	}
}

// OutputUnlock releases the frame held for a stream.
type OutputUnlock struct {
	Stream StreamID
}

func (r OutputUnlock) serve(o *Owner) Reply {
	out, ok := o.outputs[r.Stream]
	if !ok {
		return Reply{Err: fmt.Errorf("%w: %d", ErrUnknownStream, r.Stream)}
	}
	if out.texture == gpucore.InvalidID {
		if out.dropped {
			out.dropped = false
			return Reply{Context: out.context, OK: true}
		}
		return Reply{Err: fmt.Errorf("%w: stream %d", ErrNotLocked, r.Stream)}
	}
	tex := out.texture
	out.texture = gpucore.InvalidID
	if st, ok := o.contexts[out.context]; ok {
		o.release(st, tex)
	}
	return Reply{Context: out.context, OK: true}
}
