package notification

import "sync"

// ChanStream is a Stream backed by a buffered channel.
type ChanStream struct {
	ch        chan *Notification
	done      chan struct{}
	closeOnce sync.Once
}

// NewChanStream creates a stream buffering up to size notifications.
func NewChanStream(size int) *ChanStream {
	return &ChanStream{
		ch:   make(chan *Notification, size),
		done: make(chan struct{}),
	}
}

// Send blocks until the notification is buffered or the stream is closed.
func (s *ChanStream) Send(n *Notification) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	select {
	case s.ch <- n:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// C returns the receive side.
func (s *ChanStream) C() <-chan *Notification {
	return s.ch
}

// Done is closed when the stream is closed.
func (s *ChanStream) Done() <-chan struct{} {
	return s.done
}

// Close stops accepting notifications. The channel itself is left open.
func (s *ChanStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
