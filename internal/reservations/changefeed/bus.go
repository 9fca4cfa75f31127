package changefeed

import (
	"errors"
	"sync"

	"reservd/pkg/model"
)

// ErrSubscriberOverrun is reported on a subscription whose backlog filled up
// faster than the subscriber drained it. The bus disconnects the subscriber
// instead of blocking writers; the gap can be recovered from the change log.
var ErrSubscriberOverrun = errors.New("subscriber overran its backlog and was disconnected")

// Bus fans change records out to live subscribers in append order. Publishing
// never blocks: a subscriber that cannot keep up within its buffered backlog
// is disconnected with ErrSubscriberOverrun while other subscribers and the
// write path continue unaffected.
type Bus struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	backlog int
	closed  bool
}

// Subscription is one listener's view of the feed. Records delivers change
// records in append order starting at the subscribe point; it is closed on
// Close or on overrun, after which Err distinguishes the two.
type Subscription struct {
	id     uint64
	ch     chan model.ChangeRecord
	bus    *Bus
	mu     sync.Mutex
	err    error
	closed bool
}

func NewBus(backlog int) *Bus {
	if backlog < 1 {
		backlog = 1
	}
	return &Bus{
		subs:    make(map[uint64]*Subscription),
		backlog: backlog,
	}
}

// Subscribe registers a new listener. Subscribers receive only records
// published after this call; history is replayed separately via Log.ReadFrom.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:  b.nextID,
		ch:  make(chan model.ChangeRecord, b.backlog),
		bus: b,
	}
	if b.closed {
		sub.finish(nil)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish pushes a record to every live subscriber without blocking.
// Subscribers whose backlog is full are dropped with ErrSubscriberOverrun.
func (b *Bus) Publish(rec model.ChangeRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		select {
		case sub.ch <- rec:
		default:
			delete(b.subs, id)
			sub.finish(ErrSubscriberOverrun)
		}
	}
}

// Close shuts the bus down, ending every remaining subscription cleanly.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.finish(nil)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		sub.finish(nil)
	}
}

// Records is the subscriber's receive channel. It is closed when the
// subscription ends; check Err afterwards.
func (s *Subscription) Records() <-chan model.ChangeRecord {
	return s.ch
}

// Err reports why the subscription ended: ErrSubscriberOverrun after an
// overrun, nil after a clean Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes the listener. Records still queued are discarded by the
// channel close; calling Close more than once is safe.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}
