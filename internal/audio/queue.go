package audio

import "time"

// Frame is one fixed-size chunk of raw little-endian 16-bit PCM.
type Frame []byte

// Queue is a fixed-capacity FIFO of audio frames between the capture callback
// and the chunk feed. The producer side never blocks: when the queue is full
// the newest frame is dropped. Safe for one producer and one consumer.
type Queue struct {
	frames chan Frame
}

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{frames: make(chan Frame, capacity)}
}

// TryPut enqueues f without blocking. It reports false when the queue is full
// and the frame was dropped.
func (q *Queue) TryPut(f Frame) bool {
	select {
	case q.frames <- f:
		return true
	default:
		return false
	}
}

// Poll waits up to d for a frame. It reports false on timeout.
func (q *Queue) Poll(d time.Duration) (Frame, bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case f := <-q.frames:
		return f, true
	case <-t.C:
		return nil, false
	}
}

// TryGet dequeues a frame without waiting.
func (q *Queue) TryGet() (Frame, bool) {
	select {
	case f := <-q.frames:
		return f, true
	default:
		return nil, false
	}
}

// Len returns the number of frames currently queued.
func (q *Queue) Len() int { return len(q.frames) }
