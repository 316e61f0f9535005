package framebridge

import (
	"image"

	"github.com/gogpu/framebridge/internal/owner"
)

// Client sends context management and rendering requests to the owner.
// Requests from one Client are served in the order they were made.
//
// The Client returned by Bridge.Client is safe for use from any goroutine.
type Client struct {
	h owner.Handle
}

// CreateContext creates a rendering context with a cleared frame.
func (c *Client) CreateContext(size image.Point, alpha bool) (ContextID, error) {
	r := c.h.Call(owner.CreateContext{Size: size, Alpha: alpha})
	return r.Context, r.Err
}

// DestroyContext destroys a context and all its textures. A frame still
// locked from the context must be released afterwards; its texture is gone.
func (c *Client) DestroyContext(ctx ContextID) error {
	return c.h.Call(owner.DestroyContext{Context: ctx}).Err
}

// Resize changes the frame size of a context. The new frame is cleared.
func (c *Client) Resize(ctx ContextID, size image.Point) error {
	return c.h.Call(owner.Resize{Context: ctx, Size: size}).Err
}

// Submit queues commands for a context without waiting. Command errors are
// logged by the owner; use Run to receive them.
func (c *Client) Submit(ctx ContextID, cmds ...Command) error {
	return c.h.Post(owner.Execute{Context: ctx, Commands: cmds})
}

// Run applies commands to a context and waits until they were applied.
func (c *Client) Run(ctx ContextID, cmds ...Command) error {
	return c.h.Call(owner.Execute{Context: ctx, Commands: cmds}).Err
}

// AttachOutput binds an output stream to a context.
func (c *Client) AttachOutput(stream StreamID, ctx ContextID) error {
	return c.h.Call(owner.AttachOutput{Stream: stream, Context: ctx}).Err
}

// Exit stops the owner after every request made before it and destroys all
// contexts. Exit on a stopped owner returns nil.
func (c *Client) Exit() error {
	return c.h.Exit()
}

// Mode reports where the owner runs.
func (c *Client) Mode() Mode {
	return c.h.Mode()
}
