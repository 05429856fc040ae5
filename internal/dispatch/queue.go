package dispatch

import (
	"sync"
)

// Kind discriminates queued actions.
type Kind int

const (
	// ActivatePair activates a variant by group and name.
	ActivatePair Kind = iota
	// ActivateByName activates a variant set by bare name.
	ActivateByName
	// Ping is a connectivity probe; the executor treats it as a no-op.
	Ping
)

// String returns the wire-ish label for logging.
func (k Kind) String() string {
	switch k {
	case ActivatePair:
		return "activate_pair"
	case ActivateByName:
		return "activate_vset"
	case Ping:
		return "ping"
	default:
		return "unknown"
	}
}

// Action is one validated command accepted off the wire, waiting for the
// executor's next tick.
type Action struct {
	Kind  Kind
	Group string
	Name  string
}

// ActionQueue is an unbounded multi-producer single-consumer queue between
// connection handlers and the executor. Put never blocks; ordering is FIFO.
type ActionQueue struct {
	mu      sync.Mutex
	pending []Action
}

// NewActionQueue returns an empty queue.
func NewActionQueue() *ActionQueue {
	return &ActionQueue{}
}

// Put appends an action. Safe from any goroutine, never blocks on the
// consumer.
func (q *ActionQueue) Put(a Action) {
	q.mu.Lock()
	q.pending = append(q.pending, a)
	q.mu.Unlock()
}

// TryGet pops the oldest action, reporting false when the queue is empty.
func (q *ActionQueue) TryGet() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Action{}, false
	}
	a := q.pending[0]
	q.pending = q.pending[1:]
	return a, true
}

// Drain removes and returns everything queued so far, in arrival order.
func (q *ActionQueue) Drain() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	return out
}

// Len reports the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
