package terminal

import "sync"

// maxPendingInput is the number of queued input chunks a pane accepts
// before Write fails with ErrInputQueueFull.
const maxPendingInput = 1024

// inputQueue is an ordered queue of byte chunks waiting to be written to a
// PTY. Pushing never blocks.
type inputQueue struct {
	mu     sync.Mutex
	chunks [][]byte
	limit  int
	closed bool
	ready  chan struct{}
}

func newInputQueue(limit int) *inputQueue {
	if limit <= 0 {
		limit = maxPendingInput
	}
	return &inputQueue{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// push appends a copy of data.
func (q *inputQueue) push(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrTerminalClosed
	}
	if len(q.chunks) >= q.limit {
		q.mu.Unlock()
		return ErrInputQueueFull
	}
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// pop returns the next chunk, blocking until one is available. It returns
// false once the queue is closed.
func (q *inputQueue) pop() ([]byte, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.chunks) > 0 {
			chunk := q.chunks[0]
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
			q.mu.Unlock()
			return chunk, true
		}
		q.mu.Unlock()
		<-q.ready
	}
}

// close discards pending chunks and wakes the consumer.
func (q *inputQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.chunks = nil
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// len returns the number of pending chunks.
func (q *inputQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
