// Package framebus distributes encoded frames from one producer to many
// subscribers. Publishing never blocks; slow subscribers lose old frames.
package framebus

import (
	"context"
	"sync"

	"deskrelay/internal/core/domain"
)

type Bus struct {
	mu          sync.Mutex
	ring        []domain.EncodedFrame
	next        uint64 // sequence number of the next published frame
	notify      chan struct{}
	closed      bool
	subscribers int
}

// New returns a bus retaining the last capacity frames.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		ring:   make([]domain.EncodedFrame, capacity),
		next:   1,
		notify: make(chan struct{}),
	}
}

// Publish stores frame under the next sequence number, overwriting the oldest
// retained frame, and wakes all waiting subscribers. It returns the assigned
// sequence number, or 0 once the bus is closed.
func (b *Bus) Publish(frame domain.EncodedFrame) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	frame.Seq = b.next
	b.ring[frame.Seq%uint64(len(b.ring))] = frame
	b.next++

	close(b.notify)
	b.notify = make(chan struct{})
	return frame.Seq
}

// Latest returns the most recently published frame.
func (b *Bus) Latest() (domain.EncodedFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next == 1 {
		return domain.EncodedFrame{}, false
	}
	return b.ring[(b.next-1)%uint64(len(b.ring))], true
}

// Subscribe returns a subscription whose first frame is the next one
// published.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers++
	return &Subscription{
		bus:    b,
		cursor: b.next,
		done:   make(chan struct{}),
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribers
}

// Close wakes every subscriber with domain.ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// oldest returns the sequence number of the oldest retained frame.
// Caller holds b.mu.
func (b *Bus) oldest() uint64 {
	capacity := uint64(len(b.ring))
	if b.next > capacity {
		return b.next - capacity
	}
	return 1
}

type Subscription struct {
	bus       *Bus
	cursor    uint64
	done      chan struct{}
	closeOnce sync.Once
}

// Next blocks until a frame at or after the cursor is available. skipped is
// the number of frames the subscriber lost because it fell more than the
// bus capacity behind.
func (s *Subscription) Next(ctx context.Context) (frame domain.EncodedFrame, skipped int, err error) {
	for {
		select {
		case <-s.done:
			return frame, 0, domain.ErrBusClosed
		default:
		}

		s.bus.mu.Lock()
		if s.bus.closed {
			s.bus.mu.Unlock()
			return frame, 0, domain.ErrBusClosed
		}

		if s.cursor < s.bus.next {
			if oldest := s.bus.oldest(); s.cursor < oldest {
				skipped = int(oldest - s.cursor)
				s.cursor = oldest
			}
			frame = s.bus.ring[s.cursor%uint64(len(s.bus.ring))]
			s.cursor++
			s.bus.mu.Unlock()
			return frame, skipped, nil
		}

		wait := s.bus.notify
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return frame, 0, ctx.Err()
		case <-s.done:
			return frame, 0, domain.ErrBusClosed
		case <-wait:
		}
	}
}

// Close detaches the subscription. Pending and later Next calls return
// domain.ErrBusClosed.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bus.mu.Lock()
		s.bus.subscribers--
		s.bus.mu.Unlock()
	})
}
