package owner

import (
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/framebridge/gpucore"
)

// Command is one unit of rendering work applied to a context on the owner.
type Command interface {
	Apply(t *Target) error
}

// CommandFunc adapts a function to Command.
type CommandFunc func(t *Target) error

// Apply calls f(t).
func (f CommandFunc) Apply(t *Target) error { return f(t) }

// Target gives a command access to its context during one dispatch turn.
// A Target must not be retained after Apply returns.
type Target struct {
	o  *Owner
	st *contextState
}

var (
	_ gpucontext.Texture        = (*Target)(nil)
	_ gpucontext.TextureUpdater = (*Target)(nil)
)

// Context returns the id of the context being rendered.
func (t *Target) Context() ContextID { return t.st.id }

// Size returns the frame size.
func (t *Target) Size() image.Point { return t.st.size }

// Width returns the frame width in pixels.
func (t *Target) Width() int { return t.st.size.X }

// Height returns the frame height in pixels.
func (t *Target) Height() int { return t.st.size.Y }

// HasAlpha reports whether the frame carries an alpha channel.
func (t *Target) HasAlpha() bool { return t.st.alpha }

// Device returns the owner's device.
func (t *Target) Device() gpucore.Device { return t.o.device }

// Texture returns the texture to render into, seeded with the contents of
// the last frame. Callers that overwrite every pixel should use Fill or
// UpdateData instead, which skip the seeding copy.
func (t *Target) Texture() (gpucore.TextureID, error) {
	return t.o.writable(t.st, true)
}

// Fill sets every pixel of the frame to rgba (0xRRGGBBAA). Frames without
// alpha are filled opaque.
func (t *Target) Fill(rgba uint32) error {
	tex, err := t.o.writable(t.st, false)
	if err != nil {
		return err
	}
	if !t.st.alpha {
		rgba |= 0xFF
	}
	return t.o.device.FillTexture(tex, rgba)
}

// UpdateData replaces the frame with tightly packed RGBA data.
func (t *Target) UpdateData(data []byte) error {
	tex, err := t.o.writable(t.st, false)
	if err != nil {
		return err
	}
	return t.o.device.WriteTexture(tex, data)
}

// CopyFrom replaces the frame with the current frame of another context on
// the same owner. Both frames must have the same size.
func (t *Target) CopyFrom(src ContextID) error {
	if src == t.st.id {
		return nil
	}
	from, err := t.o.lookup(src)
	if err != nil {
		return err
	}
	if from.size != t.st.size {
		return fmt.Errorf("%w: context %d is %v, context %d is %v",
			gpucore.ErrSizeMismatch, src, from.size, t.st.id, t.st.size)
	}
	tex, err := t.o.writable(t.st, false)
	if err != nil {
		return err
	}
	return t.o.device.CopyTexture(tex, from.current)
}
