package events

import (
	"context"
	"sync"

	"habitquest/utils"

	"go.uber.org/zap"
)

// Sink receives every published event on the bus dispatcher goroutine.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// Publisher is the write side of the bus used by services.
type Publisher interface {
	Publish(e Event)
}

const (
	subscriberBuffer = 16
	sinkQueueSize    = 1024
)

type subscriber struct {
	userID string
	ch     chan Event
}

// Bus fans events out to per-user subscribers and to registered sinks.
// Create it with NewBus, call Start once, and Close on shutdown.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	sinks  []Sink
	queue  chan Event
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{
		subs:  make(map[*subscriber]struct{}),
		queue: make(chan Event, sinkQueueSize),
		done:  make(chan struct{}),
	}
}

// AddSink must be called before Start.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Start runs the sink dispatcher until ctx is cancelled or Close is called.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case e := <-b.queue:
				b.dispatch(ctx, e)
			case <-ctx.Done():
				return
			case <-b.done:
				// drain what is already queued
				for {
					select {
					case e := <-b.queue:
						b.dispatch(ctx, e)
					default:
						return
					}
				}
			}
		}
	}()
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Handle(ctx, e); err != nil {
			utils.Logger.Warn("event_sink_failed",
				zap.String("sink", s.Name()),
				zap.String("event_type", string(e.Type)),
				zap.String("user_id", e.UserID),
				zap.Error(err),
			)
		}
	}
}

// Subscribe returns a channel receiving events addressed to userID and a
// function that removes the subscription. The channel is closed on
// unsubscribe or when the bus closes.
func (b *Bus) Subscribe(userID string) (<-chan Event, func()) {
	sub := &subscriber{userID: userID, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
		})
	}
}

// Publish never blocks: a full subscriber buffer or sink queue drops the event.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		if sub.userID != e.UserID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			utils.Logger.Warn("event_subscriber_slow",
				zap.String("user_id", e.UserID),
				zap.String("event_type", string(e.Type)),
			)
		}
	}

	if len(b.sinks) == 0 {
		return
	}
	select {
	case b.queue <- e:
	default:
		utils.Logger.Warn("event_queue_full", zap.String("event_type", string(e.Type)))
	}
}

// SubscriberCount reports active subscriptions for userID.
func (b *Bus) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for sub := range b.subs {
		if sub.userID == userID {
			n++
		}
	}
	return n
}

// Close stops the dispatcher after draining queued events and closes every
// subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}
