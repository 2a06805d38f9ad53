package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.fail {
		return errors.New("sink failure")
	}
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestSubscribeReceivesOnlyOwnEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	alice, unsubAlice := bus.Subscribe("alice")
	defer unsubAlice()
	bob, unsubBob := bus.Subscribe("bob")
	defer unsubBob()

	bus.Publish(New(LevelUp, "alice", map[string]any{"level": 2}))

	select {
	case e := <-alice:
		assert.Equal(t, LevelUp, e.Type)
		assert.Equal(t, 2, e.Payload["level"])
	case <-time.After(time.Second):
		t.Fatal("alice did not receive event")
	}

	select {
	case e := <-bob:
		t.Fatalf("bob received unexpected event %v", e)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe("alice")
	assert.Equal(t, 1, bus.SubscriberCount("alice"))

	unsub()
	unsub() // idempotent

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount("alice"))

	// publishing with no subscribers is fine
	bus.Publish(New(LevelUp, "alice", nil))
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_, unsub := bus.Subscribe("alice")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			bus.Publish(New(HabitCompleted, "alice", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestSinksReceiveEventsAndFailuresAreIsolated(t *testing.T) {
	bus := NewBus()
	failing := &recordingSink{fail: true}
	ok := &recordingSink{}
	bus.AddSink(failing)
	bus.AddSink(ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	bus.Publish(New(AchievementUnlocked, "alice", nil))
	bus.Publish(New(GoalCompleted, "bob", nil))

	require.Eventually(t, func() bool { return ok.count() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, failing.count())

	bus.Close()
}

func TestCloseDrainsQueueAndClosesSubscribers(t *testing.T) {
	bus := NewBus()
	sink := &recordingSink{}
	bus.AddSink(sink)
	bus.Start(context.Background())

	ch, _ := bus.Subscribe("alice")
	for i := 0; i < 5; i++ {
		bus.Publish(New(HabitCompleted, "alice", nil))
	}
	bus.Close()

	assert.Equal(t, 5, sink.count())

	received := 0
	for range ch {
		received++
	}
	assert.Equal(t, 5, received)

	// after close: no panic, subscriptions come back closed
	bus.Publish(New(HabitCompleted, "alice", nil))
	late, unsub := bus.Subscribe("alice")
	unsub()
	_, open := <-late
	assert.False(t, open)
}
