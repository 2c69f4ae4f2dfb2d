package audio

// RingBuffer keeps the most recent frames observed before speech onset.
// Capacity is fixed at construction; pushing into a full buffer evicts the oldest frame.
// It is owned by a single capture session and is not safe for concurrent use.
type RingBuffer struct {
	frames []Frame
	size   int
	start  int
	count  int
}

// NewRingBuffer creates a new ring buffer holding at most size frames
func NewRingBuffer(size int) *RingBuffer {
	if size < 0 {
		size = 0
	}
	return &RingBuffer{
		frames: make([]Frame, size),
		size:   size,
	}
}

// Push inserts a frame, evicting the oldest one when the buffer is full.
// Returns true if a frame was evicted.
func (rb *RingBuffer) Push(f Frame) bool {
	if rb.size == 0 {
		return false
	}

	if rb.count < rb.size {
		rb.frames[(rb.start+rb.count)%rb.size] = f
		rb.count++
		return false
	}

	// Full: overwrite the oldest slot and advance the head
	rb.frames[rb.start] = f
	rb.start = (rb.start + 1) % rb.size
	return true
}

// DrainTo appends all buffered frames to dst in chronological order and empties the buffer
func (rb *RingBuffer) DrainTo(dst []Frame) []Frame {
	for i := 0; i < rb.count; i++ {
		idx := (rb.start + i) % rb.size
		dst = append(dst, rb.frames[idx])
		rb.frames[idx] = Frame{}
	}
	rb.start = 0
	rb.count = 0
	return dst
}

// Len returns the number of buffered frames
func (rb *RingBuffer) Len() int {
	return rb.count
}

// Cap returns the maximum number of frames the buffer holds
func (rb *RingBuffer) Cap() int {
	return rb.size
}
