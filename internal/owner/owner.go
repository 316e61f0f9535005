package owner

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/framebridge/gpucore"
)

// Config configures an Owner.
type Config struct {
	// Device is the owner's queue. Required.
	Device gpucore.Device

	// Sharing selects fence or surface based frame sharing.
	Sharing Sharing

	// OnContextLost is called after the dispatch turn in which a context was
	// lost. It runs on the owner's execution context and must not wait on a
	// reply from the same owner.
	OnContextLost func(ContextID, error)
}

// lostEvent is a context loss waiting to be reported.
type lostEvent struct {
	id  ContextID
	err error
}

// Owner holds the presentation state of the contexts on one queue.
//
// Owner methods must only run inside dispatch turns; use a Handle.
type Owner struct {
	device  gpucore.Device
	sharing Sharing
	onLost  func(ContextID, error)

	contexts map[ContextID]*contextState
	outputs  map[StreamID]*outputState
	exited   bool

	// pendingLost collects losses reported at the end of the turn.
	pendingLost []lostEvent

	// dispatching guards against overlapping dispatch turns.
	dispatching atomic.Bool
}

// New creates an owner. Dispatch turns start once the owner is wrapped in a
// handle with NewInline or NewDedicated.
func New(cfg Config) (*Owner, error) {
	if cfg.Device == nil {
		return nil, errors.New("owner: nil device")
	}
	return &Owner{
		device:   cfg.Device,
		sharing:  cfg.Sharing,
		onLost:   cfg.OnContextLost,
		contexts: make(map[ContextID]*contextState),
		outputs:  make(map[StreamID]*outputState),
	}, nil
}

// Sharing returns the owner's sharing strategy.
func (o *Owner) Sharing() Sharing { return o.sharing }

// dispatch serves one request. It panics if another dispatch turn is in
// progress, which means presentation state was reached from two execution
// contexts at once.
func (o *Owner) dispatch(req Request) (reply Reply) {
	if !o.dispatching.CompareAndSwap(false, true) {
		panic("owner: overlapping dispatch turns; presentation state accessed off the owner")
	}
	defer func() {
		o.dispatching.Store(false)
		o.reportLost()
	}()

	if o.exited {
		return Reply{Err: ErrContextLost}
	}
	reply = req.serve(o)
	slogger().Debug("owner: served", "request", fmt.Sprintf("%T", req), "err", reply.Err)
	return reply
}

// lookup returns a live context.
func (o *Owner) lookup(id ContextID) (*contextState, error) {
	st, ok := o.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
	}
	if st.lost != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextLost, st.lost)
	}
	return st, nil
}

// markLost flags a context as lost and queues the loss report.
func (o *Owner) markLost(st *contextState, err error) {
	if st.lost != nil {
		return
	}
	st.lost = err
	slogger().Warn("owner: context lost", "context", st.id, "err", err)
	o.pendingLost = append(o.pendingLost, lostEvent{id: st.id, err: err})
}

func (o *Owner) reportLost() {
	events := o.pendingLost
	o.pendingLost = nil
	if o.onLost == nil {
		return
	}
	for _, ev := range events {
		o.onLost(ev.id, ev.err)
	}
}

// execute applies commands in order. A panicking command or device loss
// marks the context lost; other command errors are logged and returned.
func (o *Owner) execute(st *contextState, cmds []Command) error {
	var errs []error
	t := &Target{o: o, st: st}
	for i, cmd := range cmds {
		err := applyCommand(cmd, t)
		if err == nil {
			continue
		}
		var p *panicError
		if errors.As(err, &p) || errors.Is(err, gpucore.ErrDeviceLost) {
			o.markLost(st, err)
			return fmt.Errorf("%w: %w", ErrContextLost, err)
		}
		slogger().Warn("owner: command failed", "context", st.id, "index", i, "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// panicError carries a value recovered from a command.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("owner: command panicked: %v", e.value)
}

func applyCommand(cmd Command, t *Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return cmd.Apply(t)
}

// shutdown destroys every context and forgets every output stream.
func (o *Owner) shutdown() int {
	n := len(o.contexts)
	for id, st := range o.contexts {
		o.destroyAll(st)
		delete(o.contexts, id)
	}
	clear(o.outputs)
	o.exited = true
	slogger().Info("owner: exited", "contexts", n)
	return n
}
