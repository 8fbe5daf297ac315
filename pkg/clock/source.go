package clock

import (
	"sync"
	"time"
)

// Source is a single shared ticker. Views that render countdowns subscribe to
// it instead of running their own timers.
type Source struct {
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	subs   map[int]chan time.Time
	nextID int

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewSource creates a Source ticking every interval. A non-positive interval
// defaults to one second.
func NewSource(interval time.Duration) *Source {
	if interval <= 0 {
		interval = time.Second
	}
	return &Source{
		interval: interval,
		now:      time.Now,
		subs:     make(map[int]chan time.Time),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a subscriber and returns its tick channel and a cancel
// func. Ticks are dropped for subscribers that have not drained the previous one.
// After Stop the returned channel is already closed.
func (s *Source) Subscribe() (<-chan time.Time, func()) {
	ch := make(chan time.Time, 1)

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	s.startOnce.Do(func() { go s.run() })

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (s *Source) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Stop halts the ticker and closes every subscriber channel.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	})
}

func (s *Source) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.broadcast(s.now())
		}
	}
}

func (s *Source) broadcast(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
}
