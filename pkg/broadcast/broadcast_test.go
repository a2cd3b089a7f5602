package broadcast_test

import (
	"testing"
	"time"

	"github.com/pencilops/gradeflow/pkg/broadcast"
)

func collect(t *testing.T, ch <-chan int, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d events", len(out), n)
			}
			out = append(out, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestPublishOrder(t *testing.T) {
	b := broadcast.New[int](8)
	ch, cancel := b.Subscribe("run")
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish("run", i)
	}

	got := collect(t, ch, 5)
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("event %d = %d, want %d", i, v, i+1)
		}
	}
}

func TestLateSubscriberMissesOnlyEarlierEvents(t *testing.T) {
	b := broadcast.New[int](8)

	b.Publish("run", 1)
	b.Publish("run", 2)

	ch, cancel := b.Subscribe("run")
	defer cancel()

	b.Publish("run", 3)
	b.Publish("run", 4)

	got := collect(t, ch, 2)
	if got[0] != 3 || got[1] != 4 {
		t.Errorf("got %v, want [3 4]", got)
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := broadcast.New[int](2)
	ch, cancel := b.Subscribe("run")
	defer cancel()

	// Buffer holds 2; publishing 4 without draining should evict 1 and 2.
	for i := 1; i <= 4; i++ {
		b.Publish("run", i)
	}

	got := collect(t, ch, 2)
	if got[0] != 3 || got[1] != 4 {
		t.Errorf("got %v, want [3 4]", got)
	}
}

func TestTopicIsolation(t *testing.T) {
	b := broadcast.New[int](8)
	a, cancelA := b.Subscribe("run-a")
	defer cancelA()
	c, cancelC := b.Subscribe("run-b")
	defer cancelC()

	b.Publish("run-a", 1)
	b.Publish("run-b", 2)

	if got := collect(t, a, 1); got[0] != 1 {
		t.Errorf("topic a got %v, want [1]", got)
	}
	if got := collect(t, c, 1); got[0] != 2 {
		t.Errorf("topic b got %v, want [2]", got)
	}

	select {
	case v := <-a:
		t.Errorf("topic a received stray event %d", v)
	default:
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	b := broadcast.New[int](8)
	ch, cancel := b.Subscribe("run")

	if n := b.Subscribers("run"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	cancel()
	cancel() // safe to call twice

	if n := b.Subscribers("run"); n != 0 {
		t.Errorf("subscribers after cancel = %d, want 0", n)
	}

	if _, ok := <-ch; ok {
		t.Error("channel not closed after cancel")
	}
}

func TestCloseSignalsSubscribers(t *testing.T) {
	b := broadcast.New[int](8)
	ch, cancel := b.Subscribe("run")

	b.Publish("run", 1)
	b.Close("run")

	got := collect(t, ch, 1)
	if got[0] != 1 {
		t.Errorf("got %v, want [1]", got)
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed after Close")
	}

	// Cancel after Close must be a no-op, not a double close.
	cancel()
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := broadcast.New[int](8)
	b.Publish("nobody", 1)

	if n := b.Subscribers("nobody"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}
