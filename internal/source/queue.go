package source

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// frameQueue is the bounded hand-off between one producer and one consumer.
// The producer either drops (offer) or blocks (send); dropped frames are reported
// on the next delivered frame through Frame.Lost so the consumer can still count them.
// Drops after the last delivered frame reach the consumer only through Stats.
type frameQueue struct {
	ch   chan audio.Frame
	stop chan struct{}

	mu       sync.Mutex
	finished bool
	err      error
	lost     int

	delivered atomic.Int64
	dropped   atomic.Int64
}

func newFrameQueue(capacity int) *frameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &frameQueue{
		ch:   make(chan audio.Frame, capacity),
		stop: make(chan struct{}),
	}
}

// offer hands a frame over without blocking. Returns false if the frame was dropped.
func (q *frameQueue) offer(f audio.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.finished {
		return false
	}

	f.Lost += q.lost
	select {
	case q.ch <- f:
		q.lost = 0
		q.delivered.Add(1)
		return true
	default:
		q.lost = f.Lost + 1
		q.dropped.Add(1)
		return false
	}
}

// send hands a frame over, blocking until there is room or the queue is finished.
// A finished queue never accepts another frame.
func (q *frameQueue) send(f audio.Frame) bool {
	select {
	case <-q.stop:
		return false
	default:
	}

	select {
	case q.ch <- f:
		q.delivered.Add(1)
		return true
	case <-q.stop:
		return false
	}
}

// finish ends the stream. err is reported to the consumer once buffered frames are read;
// a nil err ends the stream with io.EOF. Only the first call has an effect.
func (q *frameQueue) finish(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.finished {
		return
	}
	q.finished = true
	q.err = err
	close(q.stop)
}

// read returns the next frame, the terminal error, or the context error
func (q *frameQueue) read(ctx context.Context) (audio.Frame, error) {
	// Buffered frames are delivered before the terminal error
	select {
	case f := <-q.ch:
		return f, nil
	default:
	}

	select {
	case f := <-q.ch:
		return f, nil
	case <-q.stop:
		select {
		case f := <-q.ch:
			return f, nil
		default:
		}
		q.mu.Lock()
		err := q.err
		q.mu.Unlock()
		if err == nil {
			err = io.EOF
		}
		return audio.Frame{}, err
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}
