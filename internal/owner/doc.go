// Package owner implements the queue-owner side of the frame bridge.
//
// An [Owner] holds the presentation state of every rendering context it
// manages. That state is reachable only from inside a dispatch turn: all
// access goes through [Request] values delivered by a [Handle], one at a
// time and in send order. Overlapping dispatch turns panic.
//
// Two handle variants exist:
//
//   - [Inline] runs dispatch turns on the host event loop. Requests from the
//     host goroutine are served directly after the queue has been drained;
//     other goroutines post into a FIFO that the host drains with Pump.
//   - [Dedicated] runs dispatch turns on a goroutine locked to an OS thread,
//     fed by a buffered channel.
//
// Textures handed out by Lock or OutputLock are never written again until
// their hold is released: write commands targeting a held texture first move
// the context to another back buffer.
package owner
