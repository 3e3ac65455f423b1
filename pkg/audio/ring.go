package audio

// Ring is a fixed-capacity ring buffer of int16 PCM samples. It backs the
// playback buffer manager: synthesis output is written in, the output device
// reads fixed-size frames out.
//
// Ring is not safe for concurrent use; the playback manager is its single
// owner and serialises access.
type Ring struct {
	buf   []int16
	head  int // next read position
	tail  int // next write position
	count int
}

// NewRing creates a ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]int16, capacity)}
}

// Cap returns the total sample capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of buffered samples.
func (r *Ring) Len() int { return r.count }

// Free returns the number of samples that can be written without overflow.
func (r *Ring) Free() int { return len(r.buf) - r.count }

// Write appends samples to the ring. It writes at most Free() samples and
// returns the number written; the caller is responsible for retrying the
// remainder once space frees up (this is how backpressure propagates to the
// upstream queue).
func (r *Ring) Write(samples []int16) int {
	n := len(samples)
	if free := r.Free(); n > free {
		n = free
	}
	for i := range n {
		r.buf[r.tail] = samples[i]
		r.tail++
		if r.tail == len(r.buf) {
			r.tail = 0
		}
	}
	r.count += n
	return n
}

// Read fills dst with buffered samples and returns the number copied.
// When fewer than len(dst) samples are buffered, only the available samples
// are copied; the caller decides whether that constitutes an underrun.
func (r *Ring) Read(dst []int16) int {
	n := len(dst)
	if n > r.count {
		n = r.count
	}
	for i := range n {
		dst[i] = r.buf[r.head]
		r.head++
		if r.head == len(r.buf) {
			r.head = 0
		}
	}
	r.count -= n
	return n
}

// Reset discards all buffered samples.
func (r *Ring) Reset() {
	r.head, r.tail, r.count = 0, 0, 0
}
