package framebridge

import (
	"slices"

	"github.com/gogpu/framebridge/internal/owner"
)

// Command is one unit of rendering work applied to a context by the owner.
type Command = owner.Command

// CommandFunc adapts a function to Command.
type CommandFunc = owner.CommandFunc

// Target gives a command access to its context. It is only valid during
// Apply.
type Target = owner.Target

// Clear fills the frame with a packed 0xRRGGBBAA color.
func Clear(rgba uint32) Command {
	return CommandFunc(func(t *Target) error {
		return t.Fill(rgba)
	})
}

// WritePixels replaces the frame with tightly packed RGBA data. The data is
// copied, so the caller may reuse the slice once WritePixels returns.
func WritePixels(data []byte) Command {
	data = slices.Clone(data)
	return CommandFunc(func(t *Target) error {
		return t.UpdateData(data)
	})
}

// CopyFrom copies the current frame of another context into this one.
// Both frames must have the same size.
func CopyFrom(src ContextID) Command {
	return CommandFunc(func(t *Target) error {
		return t.CopyFrom(src)
	})
}
