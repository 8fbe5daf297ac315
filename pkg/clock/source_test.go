package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSource_FansOutToSubscribers(t *testing.T) {
	src := NewSource(10 * time.Millisecond)
	defer src.Stop()

	a, cancelA := src.Subscribe()
	b, cancelB := src.Subscribe()
	defer cancelA()
	defer cancelB()

	assert.Equal(t, 2, src.Subscribers())

	for _, ch := range []<-chan time.Time{a, b} {
		select {
		case tick := <-ch:
			assert.False(t, tick.IsZero())
		case <-time.After(time.Second):
			t.Fatal("no tick received")
		}
	}
}

func TestSource_CancelClosesChannel(t *testing.T) {
	src := NewSource(10 * time.Millisecond)
	defer src.Stop()

	ch, cancel := src.Subscribe()
	cancel()
	cancel()

	assert.Equal(t, 0, src.Subscribers())

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSource_SlowSubscriberDoesNotBlock(t *testing.T) {
	src := NewSource(5 * time.Millisecond)
	defer src.Stop()

	_, cancelSlow := src.Subscribe()
	defer cancelSlow()
	fast, cancelFast := src.Subscribe()
	defer cancelFast()

	received := 0
	deadline := time.After(time.Second)
	for received < 3 {
		select {
		case <-fast:
			received++
		case <-deadline:
			t.Fatalf("fast subscriber starved after %d ticks", received)
		}
	}
}

func TestSource_StopClosesAll(t *testing.T) {
	src := NewSource(time.Hour)
	ch, _ := src.Subscribe()
	src.Stop()
	src.Stop()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestSource_SubscribeAfterStop(t *testing.T) {
	src := NewSource(10 * time.Millisecond)
	src.Stop()

	ch, cancel := src.Subscribe()
	defer cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("subscriber after stop was never closed")
	}
	assert.Equal(t, 0, src.Subscribers())
}
