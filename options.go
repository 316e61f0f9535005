package framebridge

// Option configures a Bridge during creation.
//
// Example:
//
//	// Owner on its own OS thread, fence based sharing (the defaults)
//	b, err := framebridge.New(producer, consumer)
//
//	// Owner on the host event loop, surface based sharing
//	b, err := framebridge.New(producer, consumer,
//	    framebridge.WithMode(framebridge.ModeInline),
//	    framebridge.WithSharing(framebridge.SharingSurface),
//	    framebridge.WithWakeRequester(framebridge.WakeFunc(loop.Wake)))
type Option func(*options)

// options holds optional configuration for Bridge creation.
type options struct {
	mode       Mode
	sharing    Sharing
	wake       WakeRequester
	queueDepth int
	onLost     func(ContextID, error)
}

// defaultOptions returns the default bridge options.
func defaultOptions() options {
	return options{
		mode:    ModeDedicated,
		sharing: SharingFence,
	}
}

// WithMode selects where the owner of the rendering queue runs.
// The mode is fixed for the life of the bridge.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithSharing selects how frames cross to the compositor's queue.
func WithSharing(s Sharing) Option {
	return func(o *options) {
		o.sharing = s
	}
}

// WithWakeRequester sets the hook called in inline mode whenever work is
// queued for the host event loop. The host answers by calling Bridge.Pump.
// Ignored in dedicated mode.
func WithWakeRequester(w WakeRequester) Option {
	return func(o *options) {
		o.wake = w
	}
}

// WithQueueDepth sets the request buffer of a dedicated owner. Posting
// blocks while the buffer is full. Zero or negative selects the default.
func WithQueueDepth(n int) Option {
	return func(o *options) {
		o.queueDepth = n
	}
}

// WithContextLostHandler sets a callback invoked when a context is lost
// (a command panicked or the device was lost). It runs on the owner's
// execution context after the failing request was served: it may post to
// the bridge but must not wait on a reply.
func WithContextLostHandler(fn func(ContextID, error)) Option {
	return func(o *options) {
		o.onLost = fn
	}
}

// WakeRequester asks the host event loop to call Bridge.Pump soon.
// Wake may be called from any goroutine and must not block.
type WakeRequester interface {
	Wake()
}

// WakeFunc adapts a function to WakeRequester.
type WakeFunc func()

// Wake calls f.
func (f WakeFunc) Wake() { f() }
