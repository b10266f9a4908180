// Package notification fans player events out to subscribers.
package notification

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const (
	// SendTimeout bounds a single subscriber send.
	SendTimeout = 500 * time.Millisecond

	// MaxMissedSends is the number of consecutive timed-out sends after which
	// a subscriber is dropped.
	MaxMissedSends = 3
)

// ErrStreamClosed is returned by a stream that no longer accepts notifications.
var ErrStreamClosed = errors.New("notification stream closed")

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(*Notification) error
}

type subscriber struct {
	id     string
	stream Stream
	types  map[Type]struct{} // nil accepts every type
	missed int               // consecutive timeouts, guarded by Manager.mu
}

func (s *subscriber) wants(t Type) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Manager assigns sequence numbers and delivers notifications to subscribers.
type Manager struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber

	// held for a whole broadcast so every subscriber sees ascending sequence numbers
	broadcastMu sync.Mutex
	sequenceNo  uint64
}

// NewManager creates a manager with no subscribers.
func NewManager() *Manager {
	return &Manager{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers stream and returns its subscription ID. When types is
// non-empty only notifications of those types are delivered.
func (m *Manager) Subscribe(stream Stream, types ...Type) string {
	sub := &subscriber{id: uuid.NewString(), stream: stream}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	m.mu.Lock()
	m.subscribers[sub.id] = sub
	m.mu.Unlock()

	zlog.Debug().Msgf("notification: subscribed %s (types=%v)", sub.id, types)
	return sub.id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, id)
}

// Broadcast stamps the next sequence number on n and delivers it to every
// interested subscriber in parallel. It returns once each send has finished
// or hit SendTimeout. Closed streams are removed immediately, and streams that
// time out MaxMissedSends times in a row are removed too.
func (m *Manager) Broadcast(n *Notification) {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	targets := m.targets(n.Type)
	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.settle(sub, m.deliver(sub, n), n.SequenceNo)
		}()
	}
	wg.Wait()
}

func (m *Manager) targets(t Type) []*subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		if sub.wants(t) {
			out = append(out, sub)
		}
	}
	return out
}

// errSendTimeout marks a send abandoned after SendTimeout. The stream goroutine
// may still complete later.
var errSendTimeout = errors.New("send timed out")

func (m *Manager) deliver(sub *subscriber, n *Notification) error {
	done := make(chan error, 1)
	go func() { done <- sub.stream.Send(n) }()

	timer := time.NewTimer(SendTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errSendTimeout
	}
}

func (m *Manager) settle(sub *subscriber, err error, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case err == nil:
		sub.missed = 0
	case errors.Is(err, ErrStreamClosed):
		delete(m.subscribers, sub.id)
		zlog.Debug().Msgf("notification: %s closed, unsubscribed", sub.id)
	case errors.Is(err, errSendTimeout):
		sub.missed++
		if sub.missed >= MaxMissedSends {
			delete(m.subscribers, sub.id)
			zlog.Warn().Msgf("notification: dropping %s after %d missed sends (seq=%d)", sub.id, sub.missed, seq)
		} else {
			zlog.Debug().Msgf("notification: send to %s timed out (seq=%d)", sub.id, seq)
		}
	default:
		zlog.Debug().Msgf("notification: send to %s failed: %v", sub.id, err)
	}
}

// SequenceNo returns the last assigned sequence number.
func (m *Manager) SequenceNo() uint64 {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()
	return m.sequenceNo
}

// Send delivers n to one subscriber without assigning a sequence number.
// Sending to an unknown subscription is a no-op.
func (m *Manager) Send(id string, n *Notification) error {
	m.mu.Lock()
	sub, ok := m.subscribers[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = make(map[string]*subscriber)
}

// ParseTypes converts type names into notification types, rejecting unknown names.
func ParseTypes(names []string) ([]Type, error) {
	types := make([]Type, 0, len(names))
	for _, name := range names {
		switch t := Type(name); t {
		case TypeTrackChanged, TypeStateChanged, TypeQueueChanged, TypeProgress, TypeMessage:
			types = append(types, t)
		default:
			return nil, errors.Newf("unknown notification type %q", name)
		}
	}
	return types, nil
}
