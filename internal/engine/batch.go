package engine

import "github.com/valyala/bytebufferpool"

// Kind distinguishes the three ways a MessageBatch can own its bytes.
type Kind int

const (
	// Pooled batches lease their backing array from a BufferPool and
	// return it on Release.
	Pooled Kind = iota
	// Owned batches hold a freshly allocated backing array (the fallback
	// taken when the pool has nothing to check out).
	Owned
	// Borrowed batches wrap byte slices whose lifetime is owned elsewhere
	// (here: slices handed back by internal/commitlog's Read). They are
	// read-only; Append on a Borrowed batch panics.
	Borrowed
)

type span struct{ start, length int }

// MessageBatch is a sequence of raw message payloads backed by one of the
// three Kind variants. Pooled and Owned batches are built up with Append as
// the engine drains the ingress; Borrowed batches are constructed once,
// directly from the messages they wrap, and are never appended to.
type MessageBatch struct {
	kind     Kind
	pool     *BufferPool
	buf      *bytebufferpool.ByteBuffer // backing array for Pooled/Owned
	offsets  []span
	borrowed [][]byte
	released bool
}

func newPooledBatch(buf *bytebufferpool.ByteBuffer, pool *BufferPool) *MessageBatch {
	buf.Reset()
	return &MessageBatch{kind: Pooled, buf: buf, pool: pool}
}

func newOwnedBatch(buf *bytebufferpool.ByteBuffer) *MessageBatch {
	buf.Reset()
	return &MessageBatch{kind: Owned, buf: buf}
}

func newBorrowedBatch(messages [][]byte) *MessageBatch {
	return &MessageBatch{kind: Borrowed, borrowed: messages}
}

// Kind reports which of the three variants this batch is.
func (b *MessageBatch) Kind() Kind { return b.kind }

// Append pushes payload into the batch's backing array, recording its
// boundary so Messages can later hand back the exact slice. Only valid for
// Pooled and Owned batches — a programmer error (panic) on Borrowed.
func (b *MessageBatch) Append(payload []byte) {
	if b.kind == Borrowed {
		panic("engine: Append on a Borrowed MessageBatch")
	}
	start := len(b.buf.B)
	b.buf.Write(payload)
	b.offsets = append(b.offsets, span{start: start, length: len(payload)})
}

// Len reports the number of messages held in the batch.
func (b *MessageBatch) Len() int {
	if b.kind == Borrowed {
		return len(b.borrowed)
	}
	return len(b.offsets)
}

// Messages returns a read-only view of every message in the batch, in
// append order.
func (b *MessageBatch) Messages() [][]byte {
	if b.kind == Borrowed {
		return b.borrowed
	}
	out := make([][]byte, len(b.offsets))
	for i, sp := range b.offsets {
		out[i] = b.buf.B[sp.start : sp.start+sp.length]
	}
	return out
}

// First returns the first message in the batch, or nil if the batch is
// empty. Convenience for the common single-message read case (S1, property 6).
func (b *MessageBatch) First() []byte {
	msgs := b.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[0]
}

// Release returns a Pooled batch's backing buffer to its pool. A no-op for
// Owned and Borrowed batches, and safe to call more than once.
func (b *MessageBatch) Release() {
	if b.released {
		return
	}
	b.released = true
	if b.kind == Pooled && b.pool != nil {
		b.pool.put(b.buf)
	}
}
