package pipeline

import "testing"

func TestNotifierDeliversInOrder(t *testing.T) {
	n := NewNotifier(8)
	ch := n.Subscribe("caller-1")

	n.Publish("caller-1", StageStarted, nil)
	n.Publish("caller-1", StageQueryParsed, nil)
	n.Publish("caller-1", StageComplete, map[string]any{"total": 3})

	for _, want := range []string{StageStarted, StageQueryParsed, StageComplete} {
		got := <-ch
		if got.Stage != want {
			t.Fatalf("stage = %q, want %q", got.Stage, want)
		}
	}
}

func TestNotifierDropsWithoutSubscriber(t *testing.T) {
	n := NewNotifier(8)
	n.Publish("nobody", StageStarted, nil) // must not block or panic
}

func TestNotifierDropsWhenBufferFull(t *testing.T) {
	n := NewNotifier(1)
	ch := n.Subscribe("slow")

	n.Publish("slow", StageStarted, nil)
	n.Publish("slow", StageQueryParsed, nil) // dropped, buffer is full

	got := <-ch
	if got.Stage != StageStarted {
		t.Fatalf("stage = %q", got.Stage)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event %q", extra.Stage)
	default:
	}
}

func TestNotifierUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier(8)
	ch := n.Subscribe("caller-1")
	n.Unsubscribe("caller-1")

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	n.Publish("caller-1", StageStarted, nil) // pruned subscriber, no panic
}

func TestNotifierResubscribeReplacesChannel(t *testing.T) {
	n := NewNotifier(8)
	old := n.Subscribe("caller-1")
	fresh := n.Subscribe("caller-1")

	if _, ok := <-old; ok {
		t.Fatal("old channel should be closed on resubscribe")
	}
	n.Publish("caller-1", StageStarted, nil)
	if got := <-fresh; got.Stage != StageStarted {
		t.Fatalf("stage = %q", got.Stage)
	}
}
