package audio

import (
	"testing"
	"time"
)

func TestQueue_DropNewestOnFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)

	for i := 0; i < 3; i++ {
		if !q.TryPut(Frame{byte(i)}) {
			t.Fatalf("put %d: expected room in queue", i)
		}
	}
	// Capacity reached: further puts must drop, never block or grow.
	for i := 3; i < 10; i++ {
		if q.TryPut(Frame{byte(i)}) {
			t.Errorf("put %d: expected drop on full queue", i)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected queue length 3, got %d", q.Len())
	}

	// Retained frames come out in FIFO order: only drops, no reordering.
	for i := 0; i < 3; i++ {
		f, ok := q.TryGet()
		if !ok {
			t.Fatalf("get %d: expected frame", i)
		}
		if f[0] != byte(i) {
			t.Errorf("get %d: expected frame %d, got %d", i, i, f[0])
		}
	}
	if _, ok := q.TryGet(); ok {
		t.Error("expected empty queue")
	}
}

func TestQueue_PollTimeout(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)

	start := time.Now()
	if _, ok := q.Poll(20 * time.Millisecond); ok {
		t.Fatal("expected timeout on empty queue")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("poll returned before the timeout elapsed")
	}

	q.TryPut(Frame{42})
	f, ok := q.Poll(time.Second)
	if !ok || f[0] != 42 {
		t.Errorf("expected queued frame, got %v %v", f, ok)
	}
}
