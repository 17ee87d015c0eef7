package scclient

import "sync"

// outboundFrame is a single already-encoded message waiting to be
// written. Encoding happens before the frame reaches the queue so the
// write pump never touches the codec.
type outboundFrame struct {
	data   []byte
	binary bool
}

// egressQueue is the socket's single-writer outbound FIFO. Exactly one goroutine
// (the write pump started by Socket.handleDialSuccess) ever calls pop; any number
// of goroutines may call push, though in practice only the socket's
// actor goroutine does.
type egressQueue struct {
	mu     sync.Mutex
	frames []outboundFrame
	wake   chan struct{}
	closed chan struct{}
}

func newEgressQueue() *egressQueue {
	return &egressQueue{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (q *egressQueue) push(f outboundFrame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop blocks until a frame is available, the queue is closed (ok=false),
// or the queue was drained and closed concurrently.
func (q *egressQueue) pop() (outboundFrame, bool) {
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			f := q.frames[0]
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return f, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
			continue
		case <-q.closed:
			q.mu.Lock()
			empty := len(q.frames) == 0
			q.mu.Unlock()
			if empty {
				return outboundFrame{}, false
			}
			continue
		}
	}
}

// clear discards all buffered frames, per the CLOSED-transition
// invariant. A frame already handed to pop (mid-write) is unaffected.
func (q *egressQueue) clear() {
	q.mu.Lock()
	q.frames = nil
	q.mu.Unlock()
}

// close stops the write pump once the queue drains. Safe to call more
// than once.
func (q *egressQueue) close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
