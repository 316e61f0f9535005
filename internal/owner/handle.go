package owner

// Handle is the uniform entry point to an owner, regardless of where its
// dispatch turns run. The variants are *Inline and *Dedicated.
type Handle interface {
	// Call delivers req after every request sent before it and returns the
	// reply. It blocks only for the message round trip.
	Call(req Request) Reply

	// Post delivers req without waiting for the reply. It fails with
	// ErrContextLost once the owner has exited.
	Post(req Request) error

	// Exit stops the owner after every request sent before it. Calling Exit
	// on an exited owner returns nil.
	Exit() error

	// Mode reports where dispatch turns run.
	Mode() Mode
}

// envelope carries a request and, for Call, the channel its reply goes to.
type envelope struct {
	req   Request
	reply chan Reply
}

func (e envelope) answer(r Reply) {
	if e.reply != nil {
		e.reply <- r
	}
}

// await waits for the reply to a delivered envelope. If the owner stops
// first, a reply sent just before stopping still wins.
func await(reply <-chan Reply, stopped <-chan struct{}) Reply {
	select {
	case r := <-reply:
		return r
	case <-stopped:
		select {
		case r := <-reply:
			return r
		default:
			return Reply{Err: ErrContextLost}
		}
	}
}
