package audio

import (
	"context"
	"time"
)

// DefaultPollInterval bounds how long Next waits on the queue before checking
// for cancellation again, so shutdown latency stays bounded.
const DefaultPollInterval = 500 * time.Millisecond

// Feed turns the frame queue into a restartable, cancellable frame sequence
// for the recognition client. Brief silence never ends the stream: Next
// re-polls on timeout until ctx is cancelled, then drains what is left.
type Feed struct {
	queue *Queue
	poll  time.Duration
}

// NewFeed wraps q. poll <= 0 selects DefaultPollInterval.
func NewFeed(q *Queue, poll time.Duration) *Feed {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Feed{queue: q, poll: poll}
}

// Next returns the next frame. It reports false only after ctx is cancelled
// and the queue has been drained.
func (f *Feed) Next(ctx context.Context) (Frame, bool) {
	for {
		select {
		case <-ctx.Done():
			return f.queue.TryGet()
		default:
		}

		if frame, ok := f.queue.Poll(f.poll); ok {
			return frame, true
		}
	}
}
