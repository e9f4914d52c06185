package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitEvent(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerDeliversToSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventTaskCreated, TaskID: "a.md", Message: "task created"})

	e := waitEvent(t, sub)
	assert.Equal(t, EventTaskCreated, e.Type)
	assert.Equal(t, "a.md", e.TaskID)
	assert.Equal(t, "task created", e.Message)
	assert.False(t, e.Time.IsZero(), "publish should stamp the time")
}

func TestBrokerFansOut(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventPlanGenerated, TaskID: "b.md"})

	assert.Equal(t, "b.md", waitEvent(t, first).TaskID)
	assert.Equal(t, "b.md", waitEvent(t, second).TaskID)
}

func TestBrokerKeepsExplicitTime(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b.Publish(&Event{Type: EventSystem, Message: "startup", Time: ts})

	assert.Equal(t, ts, waitEvent(t, sub).Time)
}

func TestBrokerSkipsFullSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	// Overrun the per-subscriber buffer without draining. The loop
	// must keep broadcasting instead of blocking on the laggard.
	for i := 0; i < 150; i++ {
		b.Publish(&Event{Type: EventTaskCompleted, TaskID: "c.md"})
	}

	deadline := time.After(2 * time.Second)
	received := 0
	for {
		select {
		case <-sub:
			received++
			if received == cap(sub) {
				return
			}
		case <-deadline:
			require.GreaterOrEqual(t, received, 1, "expected at least some events")
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			b.Publish(&Event{Type: EventSystem})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after stop")
	}
}
