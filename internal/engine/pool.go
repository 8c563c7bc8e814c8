package engine

import "github.com/valyala/bytebufferpool"

// BufferPool is a fixed-capacity pool of reusable message-batch buffers.
//
// It is accessed only by the single engine goroutine (see sink.go), so
// unlike github.com/valyala/bytebufferpool's own global Pool it needs no
// internal synchronization and no size-classed calibration — it is a plain
// bounded free list built on top of bytebufferpool.ByteBuffer for the
// growable-backing-array behavior. Capacity is enforced by the free list's
// length, not by bytebufferpool itself: checkout never allocates and put
// silently drops a buffer once the free list is full, which is how the
// pool-size invariant (excess returns are dropped) is upheld.
type BufferPool struct {
	free     []*bytebufferpool.ByteBuffer
	capacity int
	initCap  int
}

// NewBufferPool builds a pool with room for capacity buffers, each starting
// life at initialBytes of backing capacity.
func NewBufferPool(capacity, initialBytes int) *BufferPool {
	if capacity < 0 {
		capacity = 0
	}
	p := &BufferPool{
		free:     make([]*bytebufferpool.ByteBuffer, 0, capacity),
		capacity: capacity,
		initCap:  initialBytes,
	}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, p.newBuffer())
	}
	return p
}

// checkout returns a buffer owning room from the free list, or nil if the
// pool is empty. Non-blocking; nil is not an error, callers fall back to a
// freshly allocated buffer.
func (p *BufferPool) checkout() *bytebufferpool.ByteBuffer {
	n := len(p.free)
	if n == 0 {
		return nil
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	return buf
}

// put returns buf to the pool after clearing its length (capacity is
// retained). Dropped silently once the pool is at capacity.
func (p *BufferPool) put(buf *bytebufferpool.ByteBuffer) {
	if buf == nil || len(p.free) >= p.capacity {
		return
	}
	buf.Reset()
	p.free = append(p.free, buf)
}

// newBuffer allocates a buffer pre-sized to the pool's configured initial
// capacity. Used both to seed the free list and, on checkout miss, to hand
// the sink a plain Owned backing array.
func (p *BufferPool) newBuffer() *bytebufferpool.ByteBuffer {
	buf := &bytebufferpool.ByteBuffer{}
	if p.initCap > 0 {
		buf.B = make([]byte, 0, p.initCap)
	}
	return buf
}

// Len reports the number of buffers currently sitting in the free list.
func (p *BufferPool) Len() int { return len(p.free) }

// Cap reports the configured pool capacity.
func (p *BufferPool) Cap() int { return p.capacity }
