package shell

import "sync"

// Stream fans job events out to subscribers. Delivery is best effort: a
// subscriber that stops draining its channel loses events rather than
// blocking the shell. New subscribers receive the retained backlog first.
type Stream struct {
	mu       sync.Mutex
	closed   bool
	subs     map[chan Event]struct{}
	backlog  []Event
	capacity int
}

// NewStream returns a stream retaining at most capacity backlog events.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = 1
	}
	return &Stream{
		subs:     make(map[chan Event]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber with the given channel buffer. The
// returned release function detaches the subscriber and closes its channel.
// The boolean is false when the stream is already closed.
func (s *Stream) Subscribe(buffer int) (<-chan Event, func(), bool) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}, false
	}
	if s.subs == nil {
		s.subs = make(map[chan Event]struct{})
	}
	s.subs[ch] = struct{}{}
	for _, evt := range s.backlog {
		select {
		case ch <- evt:
		default:
		}
	}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.subs != nil {
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		}
		s.mu.Unlock()
	}

	return ch, release, true
}

// Publish delivers evt to every subscriber and appends it to the backlog.
// Sends happen under the stream mutex: they are non-blocking anyway, and
// holding it guarantees no send can race a release or Close closing the
// channel.
func (s *Stream) Publish(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.backlog = append(s.backlog, evt)
	if len(s.backlog) > s.capacity {
		s.backlog = s.backlog[len(s.backlog)-s.capacity:]
	}
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close detaches all subscribers and drops the backlog. Publish and
// Subscribe become no-ops afterwards.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.backlog = nil
	s.mu.Unlock()
}
