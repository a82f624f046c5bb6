package audio

import (
	"sync/atomic"
	"time"
)

// FrameQueue is the bounded queue between the capture and processing
// workers. Pushes never block: when the queue is full the frame is dropped
// and counted, protecting the capture path under sustained overload.
type FrameQueue struct {
	frames  chan []float32
	dropped atomic.Uint64
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{
		frames: make(chan []float32, capacity),
	}
}

// TryPush enqueues the frame without blocking. Returns false when the frame
// was dropped because the queue is full.
func (q *FrameQueue) TryPush(frame []float32) bool {
	select {
	case q.frames <- frame:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop waits up to timeout for a frame. The short timeout lets the consumer
// observe stop and pause signals promptly even with no incoming audio.
func (q *FrameQueue) Pop(timeout time.Duration) ([]float32, bool) {
	select {
	case frame := <-q.frames:
		return frame, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-q.frames:
		return frame, true
	case <-timer.C:
		return nil, false
	}
}

// Drain discards all queued frames and returns how many were removed.
func (q *FrameQueue) Drain() int {
	n := 0
	for {
		select {
		case <-q.frames:
			n++
		default:
			return n
		}
	}
}

// Len returns the current queue depth.
func (q *FrameQueue) Len() int { return len(q.frames) }

// Cap returns the fixed queue capacity.
func (q *FrameQueue) Cap() int { return cap(q.frames) }

// Dropped returns the total number of frames dropped on push.
func (q *FrameQueue) Dropped() uint64 { return q.dropped.Load() }
